package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/covlens/covlens/internal/core/domain"
)

type ProposalRepository struct {
	db *sql.DB
}

func NewProposalRepository(db *sql.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ProposalRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS proposal_documents (
	id TEXT PRIMARY KEY,
	insurer_code TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	row_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proposal_documents_insurer ON proposal_documents(insurer_code);
CREATE INDEX IF NOT EXISTS idx_proposal_documents_status ON proposal_documents(status);

CREATE TABLE IF NOT EXISTS proposal_coverages (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES proposal_documents(id),
	insurer_code TEXT NOT NULL,
	raw_name TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	currency TEXT NOT NULL DEFAULT '',
	amount_value BIGINT,
	payout_unit TEXT NOT NULL DEFAULT '',
	source_page INTEGER NOT NULL,
	source_span TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(insurer_code, document_id, normalized_name)
);

CREATE INDEX IF NOT EXISTS idx_proposal_coverages_lookup ON proposal_coverages(insurer_code, normalized_name);

CREATE TABLE IF NOT EXISTS coverage_mappings (
	id TEXT PRIMARY KEY,
	record_id TEXT NOT NULL REFERENCES proposal_coverages(id),
	pass_id TEXT NOT NULL,
	status TEXT NOT NULL,
	canonical_code TEXT,
	lookup_key TEXT NOT NULL,
	matched_alias TEXT NOT NULL DEFAULT '',
	source_table TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	CHECK ((status = 'mapped') = (canonical_code IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_coverage_mappings_record ON coverage_mappings(record_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_coverage_mappings_code ON coverage_mappings(canonical_code) WHERE canonical_code IS NOT NULL;

CREATE TABLE IF NOT EXISTS coverage_slot_sets (
	id TEXT PRIMARY KEY,
	record_id TEXT NOT NULL REFERENCES proposal_coverages(id),
	pass_id TEXT NOT NULL,
	slots JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_coverage_slot_sets_record ON coverage_slot_sets(record_id, created_at DESC);

CREATE TABLE IF NOT EXISTS canonical_coverages (
	code TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	domain TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS disease_codes (
	code TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS disease_code_groups (
	id TEXT PRIMARY KEY,
	insurer_code TEXT,
	name TEXT NOT NULL,
	concept_kind TEXT NOT NULL,
	source_document_id TEXT NOT NULL,
	source_document_kind TEXT NOT NULL,
	source_page INTEGER NOT NULL,
	source_span TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	CHECK (concept_kind <> 'insurer_concept' OR insurer_code IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS disease_group_members (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL REFERENCES disease_code_groups(id),
	kind TEXT NOT NULL,
	code TEXT,
	range_from TEXT,
	range_to TEXT,
	CHECK (
		(kind = 'code' AND code IS NOT NULL AND range_from IS NULL AND range_to IS NULL) OR
		(kind = 'range' AND code IS NULL AND range_from IS NOT NULL AND range_to IS NOT NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_disease_group_members_group ON disease_group_members(group_id);

CREATE TABLE IF NOT EXISTS coverage_disease_scopes (
	id TEXT PRIMARY KEY,
	canonical_code TEXT NOT NULL REFERENCES canonical_coverages(code),
	insurer_code TEXT NOT NULL,
	include_group_id TEXT NOT NULL REFERENCES disease_code_groups(id),
	exclude_group_id TEXT REFERENCES disease_code_groups(id),
	source_document_id TEXT NOT NULL,
	source_document_kind TEXT NOT NULL,
	source_page INTEGER NOT NULL,
	source_span TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(canonical_code, insurer_code)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ProposalRepository) CreateDocument(ctx context.Context, doc *domain.ProposalDocument) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO proposal_documents (
	id, insurer_code, filename, mime_type, storage_path, status, error_message, row_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.InsurerCode, doc.Filename, doc.MimeType, doc.StoragePath,
		string(doc.Status), doc.Error, doc.RowCount, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert proposal document: %w", err)
	}
	return nil
}

func (r *ProposalRepository) GetDocument(ctx context.Context, id string) (*domain.ProposalDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, insurer_code, filename, mime_type, storage_path, status, error_message, row_count, created_at, updated_at
FROM proposal_documents
WHERE id = $1
`, id)

	var doc domain.ProposalDocument
	var status string
	err := row.Scan(
		&doc.ID, &doc.InsurerCode, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&status, &doc.Error, &doc.RowCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get proposal document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan proposal document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *ProposalRepository) UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE proposal_documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update proposal status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update proposal status rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update proposal status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *ProposalRepository) SetDocumentRowCount(ctx context.Context, id string, rowCount int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE proposal_documents
SET row_count = $2, updated_at = $3
WHERE id = $1
`, id, rowCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set proposal row count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set proposal row count rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "set proposal row count", fmt.Errorf("id=%s", id))
	}
	return nil
}

// InsertCoverageRecords writes new records and skips rows whose content hash
// is already stored, so re-processing a document never duplicates its rows.
// Returns the number of rows actually inserted.
func (r *ProposalRepository) InsertCoverageRecords(ctx context.Context, records []domain.ProposalCoverageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin coverage tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	inserted := 0
	for _, rec := range records {
		result, err := tx.ExecContext(ctx, `
INSERT INTO proposal_coverages (
	id, document_id, insurer_code, raw_name, normalized_name, currency, amount_value, payout_unit, source_page, source_span, content_hash, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (content_hash) DO NOTHING
`,
			rec.ID, rec.DocumentID, rec.InsurerCode, rec.RawName, rec.NormalizedName,
			rec.Currency, rec.AmountValue, rec.PayoutUnit, rec.SourcePage, rec.SourceSpan,
			rec.ContentHash, rec.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert coverage record %s: %w", rec.NormalizedName, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("coverage record rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit coverage tx: %w", err)
	}
	return inserted, nil
}

func (r *ProposalRepository) ListCoverageRecords(ctx context.Context, documentID string) ([]domain.ProposalCoverageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, insurer_code, raw_name, normalized_name, currency, amount_value, payout_unit, source_page, source_span, content_hash, created_at
FROM proposal_coverages
WHERE document_id = $1
ORDER BY source_page, normalized_name
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list coverage records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProposalCoverageRecord, 0)
	for rows.Next() {
		rec, err := scanCoverageRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coverage records: %w", err)
	}
	return out, nil
}

// FindRecordByInsurerAndName returns the newest record for (insurer,
// normalized name) across all of that insurer's documents. No rows means the
// coverage is outside the insurer's proposal universe.
func (r *ProposalRepository) FindRecordByInsurerAndName(ctx context.Context, insurerCode, normalizedName string) (*domain.ProposalCoverageRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, insurer_code, raw_name, normalized_name, currency, amount_value, payout_unit, source_page, source_span, content_hash, created_at
FROM proposal_coverages
WHERE insurer_code = $1 AND normalized_name = $2
ORDER BY created_at DESC
LIMIT 1
`, strings.ToLower(insurerCode), normalizedName)

	rec, err := scanCoverageRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "find coverage record", fmt.Errorf("insurer=%s name=%s", insurerCode, normalizedName))
		}
		return nil, fmt.Errorf("find coverage record: %w", err)
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoverageRecord(row rowScanner) (domain.ProposalCoverageRecord, error) {
	var rec domain.ProposalCoverageRecord
	var amount sql.NullInt64
	err := row.Scan(
		&rec.ID,
		&rec.DocumentID,
		&rec.InsurerCode,
		&rec.RawName,
		&rec.NormalizedName,
		&rec.Currency,
		&amount,
		&rec.PayoutUnit,
		&rec.SourcePage,
		&rec.SourceSpan,
		&rec.ContentHash,
		&rec.CreatedAt,
	)
	if err != nil {
		return domain.ProposalCoverageRecord{}, err
	}
	if amount.Valid {
		v := amount.Int64
		rec.AmountValue = &v
	}
	return rec, nil
}
