package usecase

import (
	"context"
	"fmt"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
)

// SnapshotBuilder loads the reference store into an integrity-checked,
// read-only snapshot. Each pipeline batch and each comparison request builds
// one snapshot up front and works against it alone, so mid-run reference
// edits never leak in.
type SnapshotBuilder struct {
	refdata ports.ReferenceDataRepository
}

func NewSnapshotBuilder(refdata ports.ReferenceDataRepository) *SnapshotBuilder {
	return &SnapshotBuilder{refdata: refdata}
}

func (b *SnapshotBuilder) Build(ctx context.Context) (*domain.ReferenceSnapshot, error) {
	coverages, err := b.refdata.ListCanonicalCoverages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load canonical coverages: %w", err)
	}
	codes, err := b.refdata.ListDiseaseCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load disease codes: %w", err)
	}
	groups, err := b.refdata.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load disease code groups: %w", err)
	}
	scopes, err := b.refdata.ListScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load coverage scopes: %w", err)
	}

	snap, err := domain.BuildReferenceSnapshot(coverages, codes, groups, scopes)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
