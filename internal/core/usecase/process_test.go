package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/parser"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type processRepoFake struct {
	doc         *domain.ProposalDocument
	getErr      error
	insertErr   error
	stored      []domain.ProposalCoverageRecord
	statusCalls []statusCall
	rowCount    int
}

func (f *processRepoFake) CreateDocument(context.Context, *domain.ProposalDocument) error {
	return nil
}

func (f *processRepoFake) GetDocument(context.Context, string) (*domain.ProposalDocument, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) UpdateDocumentStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return nil
}

func (f *processRepoFake) SetDocumentRowCount(_ context.Context, _ string, rowCount int) error {
	f.rowCount = rowCount
	return nil
}

// InsertCoverageRecords keeps first-writer-wins content-hash dedup, the
// same contract the real repository enforces with ON CONFLICT DO NOTHING.
func (f *processRepoFake) InsertCoverageRecords(_ context.Context, records []domain.ProposalCoverageRecord) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	existing := make(map[string]struct{}, len(f.stored))
	for _, r := range f.stored {
		existing[r.ContentHash] = struct{}{}
	}
	inserted := 0
	for _, r := range records {
		if _, dup := existing[r.ContentHash]; dup {
			continue
		}
		existing[r.ContentHash] = struct{}{}
		f.stored = append(f.stored, r)
		inserted++
	}
	return inserted, nil
}

func (f *processRepoFake) ListCoverageRecords(context.Context, string) ([]domain.ProposalCoverageRecord, error) {
	out := make([]domain.ProposalCoverageRecord, len(f.stored))
	copy(out, f.stored)
	return out, nil
}

func (f *processRepoFake) FindRecordByInsurerAndName(context.Context, string, string) (*domain.ProposalCoverageRecord, error) {
	return nil, errors.New("not implemented")
}

type mappingRepoFake struct {
	pass    *domain.MappingPass
	saveErr error
}

func (f *mappingRepoFake) SaveMappingPass(_ context.Context, pass domain.MappingPass) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copyPass := pass
	f.pass = &copyPass
	return nil
}

func (f *mappingRepoFake) GetLatestMapping(context.Context, string) (*domain.CanonicalMapping, error) {
	return nil, errors.New("not implemented")
}

func (f *mappingRepoFake) GetLatestSlots(context.Context, string) (*domain.CoverageSlots, error) {
	return nil, errors.New("not implemented")
}

func (f *mappingRepoFake) FindLatestMappedRecord(context.Context, string, string) (*domain.ProposalCoverageRecord, *domain.CanonicalMapping, error) {
	return nil, nil, errors.New("not implemented")
}

type pagesFake struct {
	pages []domain.PageText
	err   error
}

func (f *pagesFake) ExtractPages(context.Context, *domain.ProposalDocument) ([]domain.PageText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type tableFake struct {
	table *domain.MappingTable
	err   error
}

func (f *tableFake) Snapshot(context.Context) (*domain.MappingTable, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

type processRefdataFake struct {
	coverages []domain.CanonicalCoverage
	codes     []domain.DiseaseCode
	groups    []domain.DiseaseCodeGroup
	scopes    []domain.CoverageDiseaseScope
}

func (f *processRefdataFake) UpsertCanonicalCoverages(context.Context, []domain.CanonicalCoverage) error {
	return errors.New("not implemented")
}
func (f *processRefdataFake) ListCanonicalCoverages(context.Context) ([]domain.CanonicalCoverage, error) {
	return f.coverages, nil
}
func (f *processRefdataFake) UpsertDiseaseCodes(context.Context, []domain.DiseaseCode) error {
	return errors.New("not implemented")
}
func (f *processRefdataFake) ListDiseaseCodes(context.Context) ([]domain.DiseaseCode, error) {
	return f.codes, nil
}
func (f *processRefdataFake) CreateGroup(context.Context, *domain.DiseaseCodeGroup) error {
	return errors.New("not implemented")
}
func (f *processRefdataFake) ListGroups(context.Context) ([]domain.DiseaseCodeGroup, error) {
	return f.groups, nil
}
func (f *processRefdataFake) CreateScope(context.Context, *domain.CoverageDiseaseScope) error {
	return errors.New("not implemented")
}
func (f *processRefdataFake) ListScopes(context.Context) ([]domain.CoverageDiseaseScope, error) {
	return f.scopes, nil
}

func newProcessUseCase(t *testing.T, repo *processRepoFake, mappings *mappingRepoFake, extractor *pagesFake, table *tableFake) *ProcessProposalUseCase {
	t.Helper()

	parsers, err := parser.BuiltinRegistry()
	if err != nil {
		t.Fatalf("BuiltinRegistry() error = %v", err)
	}
	refdata := &processRefdataFake{coverages: []domain.CanonicalCoverage{
		{Code: "DEATH_BENEFIT", DisplayName: "사망보험금", Domain: "death"},
	}}

	return NewProcessProposalUseCase(
		repo,
		mappings,
		extractor,
		table,
		NewSnapshotBuilder(refdata),
		parsers,
		NewSlotExtractor(parsers, 0),
		NewScopeResolver(refdata),
		nil,
		nil,
		2,
	)
}

func deathMappingTable(t *testing.T, insurerCode string) *domain.MappingTable {
	t.Helper()
	table, err := domain.NewMappingTable([]domain.MappingEntry{
		{InsurerCode: insurerCode, RawName: "사망보험금", CanonicalCode: "DEATH_BENEFIT"},
	}, "unit_test_table")
	if err != nil {
		t.Fatalf("NewMappingTable() error = %v", err)
	}
	return table
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{doc: &domain.ProposalDocument{ID: "prop-1", InsurerCode: "samsung_fire"}}
	mappings := &mappingRepoFake{}
	extractor := &pagesFake{pages: []domain.PageText{
		{Number: 1, Text: "담보명 가입금액\n사망보험금 1억원\n"},
	}}
	uc := newProcessUseCase(t, repo, mappings, extractor, &tableFake{table: deathMappingTable(t, "samsung_fire")})

	if err := uc.ProcessByID(context.Background(), "prop-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %+v", repo.statusCalls)
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusReady {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.rowCount != 1 {
		t.Fatalf("expected row count 1, got %d", repo.rowCount)
	}

	if mappings.pass == nil {
		t.Fatalf("expected saved mapping pass")
	}
	if len(mappings.pass.Mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(mappings.pass.Mappings))
	}
	m := mappings.pass.Mappings[0]
	if m.Status != domain.MappingStatusMapped || m.CanonicalCode != "DEATH_BENEFIT" {
		t.Fatalf("unexpected mapping verdict: %+v", m)
	}
	if m.Evidence.SourceTable != "unit_test_table" {
		t.Fatalf("expected mapping evidence source, got %+v", m.Evidence)
	}

	slots := mappings.pass.Slots[0]
	if slots.Amount.Status != domain.SlotResolved || slots.Amount.Value != 100_000_000 {
		t.Fatalf("unexpected amount slot: %+v", slots.Amount)
	}
	if slots.EventType.Value != "death" {
		t.Fatalf("unexpected event slot: %+v", slots.EventType)
	}
	// death coverages have no disease scope dimension
	if slots.DiseaseScope.Status != domain.SlotResolved {
		t.Fatalf("expected scopeless coverage to resolve the scope slot: %+v", slots.DiseaseScope)
	}
}

func TestProcessByIDIsIdempotentOnRecordIDs(t *testing.T) {
	repo := &processRepoFake{doc: &domain.ProposalDocument{ID: "prop-1", InsurerCode: "samsung_fire"}}
	mappings := &mappingRepoFake{}
	extractor := &pagesFake{pages: []domain.PageText{{Number: 1, Text: "사망보험금 1억원\n"}}}
	uc := newProcessUseCase(t, repo, mappings, extractor, &tableFake{table: deathMappingTable(t, "samsung_fire")})

	if err := uc.ProcessByID(context.Background(), "prop-1"); err != nil {
		t.Fatalf("first ProcessByID() error = %v", err)
	}
	firstID := repo.stored[0].ID

	repo.statusCalls = nil
	if err := uc.ProcessByID(context.Background(), "prop-1"); err != nil {
		t.Fatalf("second ProcessByID() error = %v", err)
	}
	if mappings.pass.Mappings[0].RecordID == "" {
		t.Fatalf("expected mapping bound to a record id")
	}
	if got := mappings.pass.Mappings[0].RecordID; got != firstID {
		t.Fatalf("expected second pass to reuse record %s, got %s", firstID, got)
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{doc: &domain.ProposalDocument{ID: "prop-1", InsurerCode: "samsung_fire"}}
	mappings := &mappingRepoFake{}
	extractor := &pagesFake{err: errors.New("extract fail")}
	uc := newProcessUseCase(t, repo, mappings, extractor, &tableFake{table: deathMappingTable(t, "samsung_fire")})

	err := uc.ProcessByID(context.Background(), "prop-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected processing + failed status updates, got %+v", repo.statusCalls)
	}
	if repo.statusCalls[1].errMsg == "" {
		t.Fatalf("expected failure message on failed status")
	}
}

func TestProcessByIDAbortsWhenMappingTableUnavailable(t *testing.T) {
	repo := &processRepoFake{doc: &domain.ProposalDocument{ID: "prop-1", InsurerCode: "samsung_fire"}}
	mappings := &mappingRepoFake{}
	extractor := &pagesFake{pages: []domain.PageText{{Number: 1, Text: "사망보험금 1억원\n"}}}
	tableErr := domain.WrapError(domain.ErrMappingTableUnavailable, "load table", errors.New("workbook missing"))
	uc := newProcessUseCase(t, repo, mappings, extractor, &tableFake{err: tableErr})

	err := uc.ProcessByID(context.Background(), "prop-1")
	if !domain.IsKind(err, domain.ErrMappingTableUnavailable) {
		t.Fatalf("expected mapping table unavailable, got %v", err)
	}
	if mappings.pass != nil {
		t.Fatalf("expected no mapping pass write on fatal batch error")
	}
	if !domain.IsFatal(err) {
		t.Fatalf("expected batch-fatal error, got %v", err)
	}
}

func TestProcessByIDRecordsUnmappedWithoutFailing(t *testing.T) {
	repo := &processRepoFake{doc: &domain.ProposalDocument{ID: "prop-1", InsurerCode: "hyundai"}}
	mappings := &mappingRepoFake{}
	extractor := &pagesFake{pages: []domain.PageText{{Number: 1, Text: "사망보험금 1억원\n"}}}
	// table only knows this alias for a different insurer
	uc := newProcessUseCase(t, repo, mappings, extractor, &tableFake{table: deathMappingTable(t, "samsung_fire")})

	if err := uc.ProcessByID(context.Background(), "prop-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if mappings.pass == nil || len(mappings.pass.Mappings) != 1 {
		t.Fatalf("expected one persisted mapping, got %+v", mappings.pass)
	}
	m := mappings.pass.Mappings[0]
	if m.Status != domain.MappingStatusUnmapped {
		t.Fatalf("expected unmapped verdict, got %+v", m)
	}
	if m.CanonicalCode != "" {
		t.Fatalf("unmapped verdict must not carry a canonical code: %+v", m)
	}
	if !strings.Contains(m.Evidence.LookupKey, "사망보험금") {
		t.Fatalf("expected lookup key evidence, got %+v", m.Evidence)
	}
}
