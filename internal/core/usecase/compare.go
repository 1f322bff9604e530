package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
)

// CompareCoverageUseCase assembles a comparison verdict for one coverage
// selection per insurer. The result is a pure function of the stored
// universe, the latest mapping pass and the reference snapshot; it is
// returned to the caller and never persisted.
type CompareCoverageUseCase struct {
	universe  *UniverseValidator
	mappings  ports.MappingRepository
	snapshots *SnapshotBuilder
	resolver  *ScopeResolver
	overlap   *OverlapDetector
	guardrail *Guardrail
}

func NewCompareCoverageUseCase(
	universe *UniverseValidator,
	mappings ports.MappingRepository,
	snapshots *SnapshotBuilder,
	resolver *ScopeResolver,
) *CompareCoverageUseCase {
	return &CompareCoverageUseCase{
		universe:  universe,
		mappings:  mappings,
		snapshots: snapshots,
		resolver:  resolver,
		overlap:   NewOverlapDetector(),
		guardrail: NewGuardrail(),
	}
}

func (uc *CompareCoverageUseCase) Compare(ctx context.Context, selections []domain.CoverageSelection) (*domain.ComparisonResult, error) {
	if err := validateSelections(selections); err != nil {
		return nil, err
	}

	snap, err := uc.snapshots.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build reference snapshot: %w", err)
	}

	details := make([]domain.InsurerComparisonDetail, 0, len(selections))
	for _, sel := range selections {
		detail, err := uc.insurerDetail(ctx, snap, sel)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}

	result := uc.decide(snap, details)
	if err := uc.guardrail.VerifyResult(result); err != nil {
		return nil, err
	}
	return result, nil
}

func validateSelections(selections []domain.CoverageSelection) error {
	if len(selections) < 2 {
		return domain.WrapError(domain.ErrInvalidInput, "compare coverages", errors.New("at least two insurer selections required"))
	}
	seen := make(map[string]struct{}, len(selections))
	for _, sel := range selections {
		if sel.InsurerCode == "" || sel.CoverageName == "" {
			return domain.WrapError(domain.ErrInvalidInput, "compare coverages", errors.New("selection missing insurer or coverage name"))
		}
		if _, dup := seen[sel.InsurerCode]; dup {
			return domain.WrapError(domain.ErrInvalidInput, "compare coverages", fmt.Errorf("insurer %s selected twice", sel.InsurerCode))
		}
		seen[sel.InsurerCode] = struct{}{}
	}
	return nil
}

func (uc *CompareCoverageUseCase) insurerDetail(ctx context.Context, snap *domain.ReferenceSnapshot, sel domain.CoverageSelection) (domain.InsurerComparisonDetail, error) {
	detail := domain.InsurerComparisonDetail{
		InsurerCode:  sel.InsurerCode,
		CoverageName: sel.CoverageName,
	}

	check, err := uc.universe.ValidateName(ctx, sel.InsurerCode, sel.CoverageName)
	if err != nil {
		return detail, err
	}
	if !check.InUniverse {
		return detail, nil
	}

	detail.InUniverse = true
	detail.RecordID = check.Record.ID
	detail.Evidence = append(detail.Evidence, check.Record.Evidence())

	if check.Mapping == nil {
		// Stored but never mapped: the selection counts as unmapped.
		detail.MappingStatus = domain.MappingStatusUnmapped
		return detail, nil
	}
	detail.Mapping = check.Mapping
	detail.MappingStatus = check.Mapping.Status
	detail.CanonicalCode = check.Mapping.CanonicalCode

	slots, err := uc.mappings.GetLatestSlots(ctx, check.Record.ID)
	if err != nil && !domain.IsKind(err, domain.ErrRecordNotFound) {
		return detail, fmt.Errorf("load latest slots: %w", err)
	}
	if slots != nil {
		detail.Slots = slots
		detail.SlotGaps = slots.Gaps()
		appendSlotEvidence(&detail, slots)
	}

	if check.Mapping.Status == domain.MappingStatusMapped {
		if scope := uc.resolver.Resolve(snap, check.Mapping.CanonicalCode, sel.InsurerCode); scope != nil {
			detail.Scope = scope
			detail.Evidence = append(detail.Evidence, scope.Evidence)
		}
	}
	return detail, nil
}

func appendSlotEvidence(detail *domain.InsurerComparisonDetail, slots *domain.CoverageSlots) {
	for _, ev := range []*domain.Evidence{
		slots.EventType.Evidence,
		slots.DiseaseScope.Evidence,
		slots.Amount.Evidence,
		slots.WaitingDays.Evidence,
		slots.PayoutLimit.Evidence,
		slots.Renewal.Evidence,
	} {
		if ev == nil {
			continue
		}
		if containsEvidence(detail.Evidence, *ev) {
			continue
		}
		detail.Evidence = append(detail.Evidence, *ev)
	}
}

func containsEvidence(list []domain.Evidence, ev domain.Evidence) bool {
	for _, e := range list {
		if e == ev {
			return true
		}
	}
	return false
}

func (uc *CompareCoverageUseCase) decide(snap *domain.ReferenceSnapshot, details []domain.InsurerComparisonDetail) *domain.ComparisonResult {
	in := VerdictInput{AllInUniverse: true, SlotsComplete: true}
	for _, d := range details {
		if !d.InUniverse {
			in.AllInUniverse = false
			continue
		}
		in.MappingStatuses = append(in.MappingStatuses, d.MappingStatus)
		if d.MappingStatus == domain.MappingStatusMapped {
			in.CanonicalCodes = append(in.CanonicalCodes, d.CanonicalCode)
		}
		if d.Slots == nil || !d.Slots.Complete() {
			in.SlotsComplete = false
		}
	}
	in.Overlap = uc.overlapState(snap, details, in)

	state, reason := DecideState(in)
	return &domain.ComparisonResult{
		State:       state,
		ReasonCode:  reason,
		Overlap:     in.Overlap,
		PerInsurer:  details,
		EvaluatedAt: time.Now().UTC(),
	}
}

// overlapState applies only once every insurer is mapped to one shared
// canonical code. Coverages without a disease scope dimension short-circuit
// to not_applicable.
func (uc *CompareCoverageUseCase) overlapState(snap *domain.ReferenceSnapshot, details []domain.InsurerComparisonDetail, in VerdictInput) domain.OverlapState {
	if !in.AllInUniverse || len(in.MappingStatuses) != len(details) || len(in.CanonicalCodes) != len(details) {
		return domain.OverlapUnknown
	}
	if distinctCount(in.CanonicalCodes) != 1 {
		return domain.OverlapUnknown
	}

	coverage, ok := snap.Coverage(in.CanonicalCodes[0])
	if !ok {
		return domain.OverlapUnknown
	}
	if !coverage.DiseaseScoped() {
		return domain.OverlapNotApplicable
	}

	scopes := make([]*domain.CoverageDiseaseScope, len(details))
	for i, d := range details {
		scopes[i] = d.Scope
	}
	return uc.overlap.Aggregate(scopes, snap)
}
