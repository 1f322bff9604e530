package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covlens/covlens/internal/core/domain"
)

type MappingRepository struct {
	db *sql.DB
}

func NewMappingRepository(db *sql.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// SaveMappingPass persists every mapping and slot set of one pipeline pass in
// a single transaction. Rows are insert-only; a re-run writes a new pass and
// readers pick the newest one.
func (r *MappingRepository) SaveMappingPass(ctx context.Context, pass domain.MappingPass) error {
	if pass.PassID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save mapping pass", errors.New("pass id is empty"))
	}
	if len(pass.Mappings) != len(pass.Slots) {
		return domain.WrapError(domain.ErrInvalidInput, "save mapping pass",
			fmt.Errorf("%d mappings vs %d slot sets", len(pass.Mappings), len(pass.Slots)))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pass tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for i, m := range pass.Mappings {
		if err := m.Validate(); err != nil {
			return err
		}
		var code sql.NullString
		if m.CanonicalCode != "" {
			code = sql.NullString{String: m.CanonicalCode, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO coverage_mappings (id, record_id, pass_id, status, canonical_code, lookup_key, matched_alias, source_table, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
			uuid.NewString(), m.RecordID, pass.PassID, string(m.Status), code,
			m.Evidence.LookupKey, m.Evidence.MatchedAlias, m.Evidence.SourceTable, now,
		)
		if err != nil {
			return fmt.Errorf("insert mapping for record %s: %w", m.RecordID, err)
		}

		slotsJSON, err := json.Marshal(pass.Slots[i])
		if err != nil {
			return fmt.Errorf("marshal slots for record %s: %w", m.RecordID, err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO coverage_slot_sets (id, record_id, pass_id, slots, created_at)
VALUES ($1,$2,$3,$4,$5)
`, uuid.NewString(), pass.Slots[i].RecordID, pass.PassID, slotsJSON, now)
		if err != nil {
			return fmt.Errorf("insert slot set for record %s: %w", m.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pass tx: %w", err)
	}
	return nil
}

func (r *MappingRepository) GetLatestMapping(ctx context.Context, recordID string) (*domain.CanonicalMapping, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT record_id, status, canonical_code, lookup_key, matched_alias, source_table
FROM coverage_mappings
WHERE record_id = $1
ORDER BY created_at DESC
LIMIT 1
`, recordID)

	mapping, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get latest mapping", fmt.Errorf("record=%s", recordID))
		}
		return nil, fmt.Errorf("get latest mapping: %w", err)
	}
	return &mapping, nil
}

func (r *MappingRepository) GetLatestSlots(ctx context.Context, recordID string) (*domain.CoverageSlots, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT slots
FROM coverage_slot_sets
WHERE record_id = $1
ORDER BY created_at DESC
LIMIT 1
`, recordID)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get latest slots", fmt.Errorf("record=%s", recordID))
		}
		return nil, fmt.Errorf("get latest slots: %w", err)
	}

	var slots domain.CoverageSlots
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("unmarshal slot set: %w", err)
	}
	return &slots, nil
}

// FindLatestMappedRecord answers the code-driven universe check: the newest
// record of an insurer whose latest mapping resolved to the canonical code.
func (r *MappingRepository) FindLatestMappedRecord(ctx context.Context, insurerCode, canonicalCode string) (*domain.ProposalCoverageRecord, *domain.CanonicalMapping, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT c.id, c.document_id, c.insurer_code, c.raw_name, c.normalized_name, c.currency, c.amount_value, c.payout_unit, c.source_page, c.source_span, c.content_hash, c.created_at,
       m.record_id, m.status, m.canonical_code, m.lookup_key, m.matched_alias, m.source_table
FROM coverage_mappings m
JOIN proposal_coverages c ON c.id = m.record_id
WHERE c.insurer_code = $1
  AND m.canonical_code = $2
  AND m.created_at = (SELECT MAX(created_at) FROM coverage_mappings WHERE record_id = m.record_id)
ORDER BY m.created_at DESC
LIMIT 1
`, strings.ToLower(insurerCode), canonicalCode)

	var rec domain.ProposalCoverageRecord
	var amount sql.NullInt64
	var mapping domain.CanonicalMapping
	var code sql.NullString
	var status string
	err := row.Scan(
		&rec.ID, &rec.DocumentID, &rec.InsurerCode, &rec.RawName, &rec.NormalizedName,
		&rec.Currency, &amount, &rec.PayoutUnit, &rec.SourcePage, &rec.SourceSpan,
		&rec.ContentHash, &rec.CreatedAt,
		&mapping.RecordID, &status, &code,
		&mapping.Evidence.LookupKey, &mapping.Evidence.MatchedAlias, &mapping.Evidence.SourceTable,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.WrapError(domain.ErrRecordNotFound, "find mapped record", fmt.Errorf("insurer=%s code=%s", insurerCode, canonicalCode))
		}
		return nil, nil, fmt.Errorf("find mapped record: %w", err)
	}
	if amount.Valid {
		v := amount.Int64
		rec.AmountValue = &v
	}
	mapping.Status = domain.MappingStatus(status)
	mapping.CanonicalCode = code.String
	return &rec, &mapping, nil
}

func scanMapping(row rowScanner) (domain.CanonicalMapping, error) {
	var mapping domain.CanonicalMapping
	var status string
	var code sql.NullString
	err := row.Scan(
		&mapping.RecordID,
		&status,
		&code,
		&mapping.Evidence.LookupKey,
		&mapping.Evidence.MatchedAlias,
		&mapping.Evidence.SourceTable,
	)
	if err != nil {
		return domain.CanonicalMapping{}, err
	}
	mapping.Status = domain.MappingStatus(status)
	mapping.CanonicalCode = code.String
	return mapping, nil
}
