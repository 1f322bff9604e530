package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/covlens/covlens/internal/core/domain"
)

// ReferenceDataRepository is the single writer for canonical coverages,
// disease codes, disease code groups and coverage scopes. The pipeline and
// the comparison engine read this data only through snapshots.
type ReferenceDataRepository struct {
	db *sql.DB
}

func NewReferenceDataRepository(db *sql.DB) *ReferenceDataRepository {
	return &ReferenceDataRepository{db: db}
}

func (r *ReferenceDataRepository) UpsertCanonicalCoverages(ctx context.Context, coverages []domain.CanonicalCoverage) error {
	if len(coverages) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin canonical tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range coverages {
		_, err := tx.ExecContext(ctx, `
INSERT INTO canonical_coverages (code, display_name, domain)
VALUES ($1,$2,$3)
ON CONFLICT (code) DO UPDATE SET display_name = EXCLUDED.display_name, domain = EXCLUDED.domain
`, c.Code, c.DisplayName, c.Domain)
		if err != nil {
			return fmt.Errorf("upsert canonical coverage %s: %w", c.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit canonical tx: %w", err)
	}
	return nil
}

func (r *ReferenceDataRepository) ListCanonicalCoverages(ctx context.Context) ([]domain.CanonicalCoverage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT code, display_name, domain
FROM canonical_coverages
ORDER BY code
`)
	if err != nil {
		return nil, fmt.Errorf("list canonical coverages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CanonicalCoverage, 0)
	for rows.Next() {
		var c domain.CanonicalCoverage
		if err := rows.Scan(&c.Code, &c.DisplayName, &c.Domain); err != nil {
			return nil, fmt.Errorf("scan canonical coverage: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canonical coverages: %w", err)
	}
	return out, nil
}

func (r *ReferenceDataRepository) UpsertDiseaseCodes(ctx context.Context, codes []domain.DiseaseCode) error {
	if len(codes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin disease codes tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, d := range codes {
		_, err := tx.ExecContext(ctx, `
INSERT INTO disease_codes (code, name, source)
VALUES ($1,$2,$3)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, source = EXCLUDED.source
`, domain.NormalizeDiseaseCode(d.Code), d.Name, d.Source)
		if err != nil {
			return fmt.Errorf("upsert disease code %s: %w", d.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit disease codes tx: %w", err)
	}
	return nil
}

func (r *ReferenceDataRepository) ListDiseaseCodes(ctx context.Context) ([]domain.DiseaseCode, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT code, name, source
FROM disease_codes
ORDER BY code
`)
	if err != nil {
		return nil, fmt.Errorf("list disease codes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DiseaseCode, 0)
	for rows.Next() {
		var d domain.DiseaseCode
		if err := rows.Scan(&d.Code, &d.Name, &d.Source); err != nil {
			return nil, fmt.Errorf("scan disease code: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disease codes: %w", err)
	}
	return out, nil
}

// CreateGroup stores a group and its members in one transaction. The group
// must already be validated; the evidence columns are NOT NULL so a group
// without provenance cannot land even through a bypassing caller.
func (r *ReferenceDataRepository) CreateGroup(ctx context.Context, group *domain.DiseaseCodeGroup) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin group tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var insurer sql.NullString
	if group.InsurerCode != "" {
		insurer = sql.NullString{String: group.InsurerCode, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO disease_code_groups (id, insurer_code, name, concept_kind, source_document_id, source_document_kind, source_page, source_span, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		group.ID, insurer, group.Name, string(group.ConceptKind),
		group.Evidence.DocumentID, string(group.Evidence.DocumentKind), group.Evidence.Page, group.Evidence.Span,
		group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert group %s: %w", group.ID, err)
	}

	for _, m := range group.Members {
		var code, from, to sql.NullString
		switch m.Kind {
		case domain.MemberKindCode:
			code = sql.NullString{String: m.Code, Valid: true}
		case domain.MemberKindRange:
			from = sql.NullString{String: m.RangeFrom, Valid: true}
			to = sql.NullString{String: m.RangeTo, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO disease_group_members (id, group_id, kind, code, range_from, range_to)
VALUES ($1,$2,$3,$4,$5,$6)
`, uuid.NewString(), group.ID, string(m.Kind), code, from, to)
		if err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group tx: %w", err)
	}
	return nil
}

func (r *ReferenceDataRepository) ListGroups(ctx context.Context) ([]domain.DiseaseCodeGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, insurer_code, name, concept_kind, source_document_id, source_document_kind, source_page, source_span, created_at
FROM disease_code_groups
ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]domain.DiseaseCodeGroup, 0)
	index := make(map[string]int)
	for rows.Next() {
		var g domain.DiseaseCodeGroup
		var insurer sql.NullString
		var conceptKind, docKind string
		err := rows.Scan(
			&g.ID, &insurer, &g.Name, &conceptKind,
			&g.Evidence.DocumentID, &docKind, &g.Evidence.Page, &g.Evidence.Span,
			&g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.InsurerCode = insurer.String
		g.ConceptKind = domain.GroupConceptKind(conceptKind)
		g.Evidence.DocumentKind = domain.DocumentKind(docKind)
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	memberRows, err := r.db.QueryContext(ctx, `
SELECT group_id, kind, code, range_from, range_to
FROM disease_group_members
ORDER BY group_id, id
`)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var groupID, kind string
		var code, from, to sql.NullString
		if err := memberRows.Scan(&groupID, &kind, &code, &from, &to); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		i, ok := index[groupID]
		if !ok {
			return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "list group members",
				fmt.Errorf("member references unknown group %s", groupID))
		}
		groups[i].Members = append(groups[i].Members, domain.GroupMember{
			Kind:      domain.GroupMemberKind(kind),
			Code:      code.String,
			RangeFrom: from.String,
			RangeTo:   to.String,
		})
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return groups, nil
}

func (r *ReferenceDataRepository) CreateScope(ctx context.Context, scope *domain.CoverageDiseaseScope) error {
	var exclude sql.NullString
	if scope.ExcludeGroupID != "" {
		exclude = sql.NullString{String: scope.ExcludeGroupID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO coverage_disease_scopes (id, canonical_code, insurer_code, include_group_id, exclude_group_id, source_document_id, source_document_kind, source_page, source_span, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		scope.ID, scope.CanonicalCode, scope.InsurerCode, scope.IncludeGroupID, exclude,
		scope.Evidence.DocumentID, string(scope.Evidence.DocumentKind), scope.Evidence.Page, scope.Evidence.Span,
		scope.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scope %s/%s: %w", scope.CanonicalCode, scope.InsurerCode, err)
	}
	return nil
}

func (r *ReferenceDataRepository) ListScopes(ctx context.Context) ([]domain.CoverageDiseaseScope, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, canonical_code, insurer_code, include_group_id, exclude_group_id, source_document_id, source_document_kind, source_page, source_span, created_at
FROM coverage_disease_scopes
ORDER BY canonical_code, insurer_code
`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CoverageDiseaseScope, 0)
	for rows.Next() {
		var s domain.CoverageDiseaseScope
		var exclude sql.NullString
		var docKind string
		err := rows.Scan(
			&s.ID, &s.CanonicalCode, &s.InsurerCode, &s.IncludeGroupID, &exclude,
			&s.Evidence.DocumentID, &docKind, &s.Evidence.Page, &s.Evidence.Span,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		s.ExcludeGroupID = exclude.String
		s.Evidence.DocumentKind = domain.DocumentKind(docKind)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return out, nil
}
