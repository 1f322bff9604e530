package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
)

// ReferenceAdminUseCase maintains the reference store: canonical dictionary
// and disease master imports, plus seeded disease groups and scope bindings.
// All writes go through here; the pipeline and the comparison engine only
// ever read snapshots.
type ReferenceAdminUseCase struct {
	refdata    ports.ReferenceDataRepository
	dictionary ports.CanonicalDictionarySource
	diseases   ports.DiseaseCodeSource
	seed       ports.ReferenceSeedSource
	resolver   *ScopeResolver
	snapshots  *SnapshotBuilder
}

func NewReferenceAdminUseCase(
	refdata ports.ReferenceDataRepository,
	dictionary ports.CanonicalDictionarySource,
	diseases ports.DiseaseCodeSource,
	seed ports.ReferenceSeedSource,
	resolver *ScopeResolver,
	snapshots *SnapshotBuilder,
) *ReferenceAdminUseCase {
	return &ReferenceAdminUseCase{
		refdata:    refdata,
		dictionary: dictionary,
		diseases:   diseases,
		seed:       seed,
		resolver:   resolver,
		snapshots:  snapshots,
	}
}

// SyncReport summarizes one reference data synchronization.
type SyncReport struct {
	Coverages    int
	DiseaseCodes int
	Groups       int
	Scopes       int
}

// SyncReferenceData imports the canonical dictionary and disease master,
// applies the optional seed and verifies that the resulting store builds a
// valid snapshot. A store that fails verification is reported as corrupt
// rather than silently served.
func (uc *ReferenceAdminUseCase) SyncReferenceData(ctx context.Context) (SyncReport, error) {
	report := SyncReport{}

	if uc.dictionary != nil {
		coverages, err := uc.dictionary.CanonicalCoverages(ctx)
		if err != nil {
			return report, fmt.Errorf("load canonical dictionary: %w", err)
		}
		if err := uc.refdata.UpsertCanonicalCoverages(ctx, coverages); err != nil {
			return report, fmt.Errorf("upsert canonical coverages: %w", err)
		}
		report.Coverages = len(coverages)
	}

	if uc.diseases != nil {
		codes, err := uc.diseases.Fetch(ctx)
		if err != nil {
			return report, fmt.Errorf("fetch disease codes: %w", err)
		}
		if err := uc.refdata.UpsertDiseaseCodes(ctx, codes); err != nil {
			return report, fmt.Errorf("upsert disease codes: %w", err)
		}
		report.DiseaseCodes = len(codes)
	}

	if uc.seed != nil {
		groups, scopes, err := uc.seed.Load(ctx)
		if err != nil {
			return report, fmt.Errorf("load reference seed: %w", err)
		}
		for i := range groups {
			if err := uc.resolver.CreateGroup(ctx, &groups[i]); err != nil {
				return report, err
			}
		}
		for i := range scopes {
			if err := uc.resolver.CreateScope(ctx, &scopes[i]); err != nil {
				return report, err
			}
		}
		report.Groups = len(groups)
		report.Scopes = len(scopes)
	}

	if _, err := uc.snapshots.Build(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// ListCanonicalCoverages exposes the dictionary to read surfaces.
func (uc *ReferenceAdminUseCase) ListCanonicalCoverages(ctx context.Context) ([]domain.CanonicalCoverage, error) {
	coverages, err := uc.refdata.ListCanonicalCoverages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list canonical coverages: %w", err)
	}
	return coverages, nil
}

// CoverageScopes returns every insurer's resolved scope for one canonical
// coverage, with group membership fully expanded.
func (uc *ReferenceAdminUseCase) CoverageScopes(ctx context.Context, canonicalCode string) ([]domain.ScopeView, error) {
	if canonicalCode == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list coverage scopes", errors.New("canonical code is empty"))
	}

	snap, err := uc.snapshots.Build(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Coverage(canonicalCode); !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "list coverage scopes", fmt.Errorf("canonical coverage %s not found", canonicalCode))
	}

	scopes := snap.ScopesForCoverage(canonicalCode)
	views := make([]domain.ScopeView, 0, len(scopes))
	for _, scope := range scopes {
		view := domain.ScopeView{Scope: scope}
		if group, ok := snap.Group(scope.IncludeGroupID); ok {
			view.IncludeGroup = group.Name
		}
		view.IncludeCodes, _ = snap.GroupCodes(scope.IncludeGroupID)
		if scope.ExcludeGroupID != "" {
			if group, ok := snap.Group(scope.ExcludeGroupID); ok {
				view.ExcludeGroup = group.Name
			}
			view.ExcludeCodes, _ = snap.GroupCodes(scope.ExcludeGroupID)
		}
		views = append(views, view)
	}
	return views, nil
}
