package usecase

import (
	"github.com/covlens/covlens/internal/core/domain"
)

// OverlapDetector relates the disease scopes of N insurers after full group
// expansion. Aggregation is pure set arithmetic over the snapshot, so the
// verdict cannot depend on the order insurers were listed in.
type OverlapDetector struct{}

func NewOverlapDetector() *OverlapDetector { return &OverlapDetector{} }

type expandedScope struct {
	known   bool
	include map[string]struct{}
	exclude map[string]struct{}
}

// Aggregate computes the joint overlap state for one scope per insurer. A
// nil entry stands for an insurer whose scope could not be resolved.
func (d *OverlapDetector) Aggregate(scopes []*domain.CoverageDiseaseScope, snap *domain.ReferenceSnapshot) domain.OverlapState {
	if len(scopes) == 0 {
		return domain.OverlapUnknown
	}

	expanded := make([]expandedScope, len(scopes))
	for i, scope := range scopes {
		expanded[i] = expandScope(scope, snap)
		if !expanded[i].known {
			return domain.OverlapUnknown
		}
	}

	allIdentical := true
	for i := 0; i < len(expanded); i++ {
		for j := i + 1; j < len(expanded); j++ {
			if disjoint(expanded[i].include, expanded[j].include) {
				return domain.OverlapNone
			}
			if !setsEqual(expanded[i].include, expanded[j].include) || !setsEqual(expanded[i].exclude, expanded[j].exclude) {
				allIdentical = false
			}
		}
	}
	if allIdentical {
		return domain.OverlapFullMatch
	}
	return domain.OverlapPartial
}

func expandScope(scope *domain.CoverageDiseaseScope, snap *domain.ReferenceSnapshot) expandedScope {
	if scope == nil || snap == nil {
		return expandedScope{}
	}
	include, ok := snap.MemberSet(scope.IncludeGroupID)
	if !ok {
		return expandedScope{}
	}
	out := expandedScope{known: true, include: include, exclude: map[string]struct{}{}}
	if scope.ExcludeGroupID != "" {
		exclude, ok := snap.MemberSet(scope.ExcludeGroupID)
		if !ok {
			return expandedScope{}
		}
		out.exclude = exclude
	}
	return out
}

func disjoint(a, b map[string]struct{}) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for code := range small {
		if _, ok := large[code]; ok {
			return false
		}
	}
	return true
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for code := range a {
		if _, ok := b[code]; !ok {
			return false
		}
	}
	return true
}
