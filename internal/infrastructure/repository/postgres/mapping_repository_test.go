package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/covlens/covlens/internal/core/domain"
)

func newMappingRepoWithMock(t *testing.T) (*MappingRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &MappingRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveMappingPassWritesMappingAndSlotsInOneTx(t *testing.T) {
	repo, mock, done := newMappingRepoWithMock(t)
	defer done()

	pass := domain.MappingPass{
		PassID:     "pass-1",
		DocumentID: "doc-1",
		Mappings: []domain.CanonicalMapping{
			{
				RecordID:      "rec-1",
				Status:        domain.MappingStatusMapped,
				CanonicalCode: "CAN-001",
				Evidence: domain.MappingEvidence{
					LookupKey:    "alpha\x1f암진단비",
					MatchedAlias: "암진단비",
					SourceTable:  "coverage_map_v3",
				},
			},
		},
		Slots: []domain.CoverageSlots{{RecordID: "rec-1"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO coverage_mappings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO coverage_slot_sets").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SaveMappingPass(context.Background(), pass); err != nil {
		t.Fatalf("SaveMappingPass() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveMappingPassRejectsInvalidMappingBeforeAnyWrite(t *testing.T) {
	repo, mock, done := newMappingRepoWithMock(t)
	defer done()

	// mapped status without a canonical code violates the status contract
	pass := domain.MappingPass{
		PassID:     "pass-1",
		DocumentID: "doc-1",
		Mappings: []domain.CanonicalMapping{
			{RecordID: "rec-1", Status: domain.MappingStatusMapped},
		},
		Slots: []domain.CoverageSlots{{RecordID: "rec-1"}},
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.SaveMappingPass(context.Background(), pass)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrReferenceDataCorrupt) {
		t.Fatalf("expected ErrReferenceDataCorrupt, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetLatestMappingReturnsRecordNotFound(t *testing.T) {
	repo, mock, done := newMappingRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT record_id, status, canonical_code").
		WithArgs("rec-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetLatestMapping(context.Background(), "rec-missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetLatestSlotsRoundTripsJSON(t *testing.T) {
	repo, mock, done := newMappingRepoWithMock(t)
	defer done()

	raw := `{"record_id":"rec-1","event_type":{"status":"resolved","value":"diagnosis","confidence":"proposal_confirmed","evidence":{"document_id":"doc-1","document_kind":"proposal","page":2,"span":"암진단비"}},"disease_scope":{"status":"unresolved","confidence":"policy_required"},"amount":{"status":"resolved","value":30000000,"currency":"KRW","confidence":"proposal_confirmed","evidence":{"document_id":"doc-1","document_kind":"proposal","page":2,"span":"3,000만원"}},"waiting_days":{"status":"unresolved","confidence":"policy_required"},"payout_limit":{"status":"unresolved","confidence":"policy_required"},"renewal":{"status":"unresolved","confidence":"policy_required"}}`

	mock.ExpectQuery("SELECT slots").
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"slots"}).AddRow([]byte(raw)))

	slots, err := repo.GetLatestSlots(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("GetLatestSlots() error = %v", err)
	}
	if slots.Amount.Status != domain.SlotResolved || slots.Amount.Value != 30000000 {
		t.Fatalf("unexpected amount slot: %+v", slots.Amount)
	}
	if slots.DiseaseScope.Confidence != domain.ConfidencePolicyRequired {
		t.Fatalf("unexpected scope confidence: %s", slots.DiseaseScope.Confidence)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
