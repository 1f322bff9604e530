package usecase

import (
	"github.com/covlens/covlens/internal/core/domain"
)

// VerdictInput is the condensed picture of one comparison after universe
// validation, mapping, slot extraction and overlap analysis.
type VerdictInput struct {
	AllInUniverse   bool
	MappingStatuses []domain.MappingStatus
	CanonicalCodes  []string
	SlotsComplete   bool
	Overlap         domain.OverlapState
}

// DecideState walks the verdict rules in strict precedence order and
// returns the first state whose condition holds, together with the rule
// that fired. Adding evidence can only ever move a verdict toward
// comparable, never past a failed earlier rule.
func DecideState(in VerdictInput) (domain.ComparisonState, domain.ReasonCode) {
	if !in.AllInUniverse {
		return domain.StateOutOfUniverse, domain.ReasonUniverseMissing
	}

	ambiguous, unmapped := false, false
	for _, st := range in.MappingStatuses {
		switch st {
		case domain.MappingStatusAmbiguous:
			ambiguous = true
		case domain.MappingStatusMapped:
		default:
			unmapped = true
		}
	}
	if ambiguous {
		return domain.StateUnmapped, domain.ReasonMappingAmbiguous
	}
	if unmapped || len(in.MappingStatuses) == 0 {
		return domain.StateUnmapped, domain.ReasonMappingUnmapped
	}

	if distinctCount(in.CanonicalCodes) > 1 {
		return domain.StateNonComparable, domain.ReasonCanonicalMismatch
	}
	if in.Overlap == domain.OverlapNone {
		return domain.StateNonComparable, domain.ReasonScopeDisjoint
	}

	if !in.SlotsComplete {
		return domain.StateComparableWithGaps, domain.ReasonSlotsIncomplete
	}
	switch in.Overlap {
	case domain.OverlapPartial:
		return domain.StateComparableWithGaps, domain.ReasonScopePartial
	case domain.OverlapUnknown:
		return domain.StateComparableWithGaps, domain.ReasonScopeUnresolved
	case domain.OverlapNotApplicable:
		return domain.StateComparable, domain.ReasonScopeNotApplicable
	}
	return domain.StateComparable, domain.ReasonScopeFullMatch
}

func distinctCount(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
