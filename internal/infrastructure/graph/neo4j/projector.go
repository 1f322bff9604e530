// Package neo4j mirrors resolved disease scopes into a lineage graph:
// (:Coverage)-[:INCLUDES|:EXCLUDES]->(:DiseaseCode) edges per insurer. The
// graph is a derived read model for cross-insurer reachability queries; the
// reference store in Postgres stays the source of truth.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/covlens/covlens/internal/core/domain"
)

type Projector struct {
	driver neo4j.DriverWithContext
}

func New(ctx context.Context, uri, user, password string) (*Projector, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Projector{driver: driver}, nil
}

func (p *Projector) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

// ProjectScope rewrites one scope's edge set. Existing edges of the
// (coverage, insurer) pair are detached first so a re-projection never
// accumulates stale includes.
func (p *Projector) ProjectScope(ctx context.Context, scope domain.CoverageDiseaseScope, include, exclude []string) error {
	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
MERGE (c:Coverage {canonical_code: $code, insurer_code: $insurer})
WITH c
OPTIONAL MATCH (c)-[r:INCLUDES|EXCLUDES]->()
DELETE r
`, map[string]any{"code": scope.CanonicalCode, "insurer": scope.InsurerCode})
		if err != nil {
			return nil, fmt.Errorf("reset coverage edges: %w", err)
		}

		if len(include) > 0 {
			_, err = tx.Run(ctx, `
MATCH (c:Coverage {canonical_code: $code, insurer_code: $insurer})
UNWIND $codes AS disease
MERGE (d:DiseaseCode {code: disease})
MERGE (c)-[:INCLUDES {scope_id: $scopeID}]->(d)
`, map[string]any{
				"code": scope.CanonicalCode, "insurer": scope.InsurerCode,
				"codes": include, "scopeID": scope.ID,
			})
			if err != nil {
				return nil, fmt.Errorf("project include edges: %w", err)
			}
		}

		if len(exclude) > 0 {
			_, err = tx.Run(ctx, `
MATCH (c:Coverage {canonical_code: $code, insurer_code: $insurer})
UNWIND $codes AS disease
MERGE (d:DiseaseCode {code: disease})
MERGE (c)-[:EXCLUDES {scope_id: $scopeID}]->(d)
`, map[string]any{
				"code": scope.CanonicalCode, "insurer": scope.InsurerCode,
				"codes": exclude, "scopeID": scope.ID,
			})
			if err != nil {
				return nil, fmt.Errorf("project exclude edges: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("project scope %s: %w", scope.ID, err)
	}
	return nil
}

// CoveragesIncludingCode answers "whose coverages pay for this code":
// coverages with an INCLUDES edge and no EXCLUDES edge to the code.
func (p *Projector) CoveragesIncludingCode(ctx context.Context, diseaseCode string) ([]domain.ScopeLineageHit, error) {
	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
MATCH (c:Coverage)-[:INCLUDES]->(d:DiseaseCode {code: $code})
WHERE NOT (c)-[:EXCLUDES]->(d)
RETURN c.canonical_code AS canonical_code, c.insurer_code AS insurer_code
ORDER BY canonical_code, insurer_code
`, map[string]any{"code": domain.NormalizeDiseaseCode(diseaseCode)})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("query lineage for %s: %w", diseaseCode, err)
	}

	rows, _ := records.([]*neo4j.Record)
	hits := make([]domain.ScopeLineageHit, 0, len(rows))
	for _, rec := range rows {
		code, _ := rec.Get("canonical_code")
		insurer, _ := rec.Get("insurer_code")
		hit := domain.ScopeLineageHit{}
		if s, ok := code.(string); ok {
			hit.CanonicalCode = s
		}
		if s, ok := insurer.(string); ok {
			hit.InsurerCode = s
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
