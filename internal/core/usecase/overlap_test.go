package usecase

import (
	"testing"

	"github.com/covlens/covlens/internal/core/domain"
)

func overlapEvidence() domain.Evidence {
	return domain.Evidence{DocumentID: "policy-1", DocumentKind: domain.DocumentKindPolicy, Page: 12, Span: "유사암: C73, C44"}
}

func overlapSnapshot(t *testing.T) *domain.ReferenceSnapshot {
	t.Helper()
	coverages := []domain.CanonicalCoverage{
		{Code: "CA_DX_MINOR", DisplayName: "Minor Cancer Diagnosis", Domain: "cancer"},
	}
	codes := []domain.DiseaseCode{
		{Code: "C44", Name: "Other malignant neoplasms of skin"},
		{Code: "C50", Name: "Malignant neoplasm of breast"},
		{Code: "C73", Name: "Malignant neoplasm of thyroid gland"},
		{Code: "D09", Name: "Carcinoma in situ"},
	}
	makeGroup := func(id, insurer string, members ...domain.GroupMember) domain.DiseaseCodeGroup {
		return domain.DiseaseCodeGroup{
			ID:          id,
			InsurerCode: insurer,
			Name:        "유사암",
			ConceptKind: domain.ConceptInsurerDefined,
			Evidence:    overlapEvidence(),
			Members:     members,
		}
	}
	groups := []domain.DiseaseCodeGroup{
		makeGroup("grp-samsung", "samsung",
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "C73"},
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "C44"}),
		makeGroup("grp-hanwha", "hanwha",
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "C44"},
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "C73"}),
		makeGroup("grp-kyobo", "kyobo",
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "C73"},
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "C44"},
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "D09"}),
		makeGroup("grp-breast", "meritz",
			domain.GroupMember{Kind: domain.MemberKindCode, Code: "C50"}),
	}
	snap, err := domain.BuildReferenceSnapshot(coverages, codes, groups, nil)
	if err != nil {
		t.Fatalf("BuildReferenceSnapshot() error = %v", err)
	}
	return snap
}

func scopeFor(insurer, includeGroup string) *domain.CoverageDiseaseScope {
	return &domain.CoverageDiseaseScope{
		ID:             "scope-" + insurer,
		CanonicalCode:  "CA_DX_MINOR",
		InsurerCode:    insurer,
		IncludeGroupID: includeGroup,
		Evidence:       overlapEvidence(),
	}
}

func TestAggregateIdenticalExpansionsFullMatch(t *testing.T) {
	snap := overlapSnapshot(t)
	scopes := []*domain.CoverageDiseaseScope{
		scopeFor("samsung", "grp-samsung"),
		scopeFor("hanwha", "grp-hanwha"),
	}
	if got := NewOverlapDetector().Aggregate(scopes, snap); got != domain.OverlapFullMatch {
		t.Fatalf("expected full_match, got %s", got)
	}
}

func TestAggregateSupersetIsPartial(t *testing.T) {
	snap := overlapSnapshot(t)
	scopes := []*domain.CoverageDiseaseScope{
		scopeFor("samsung", "grp-samsung"),
		scopeFor("kyobo", "grp-kyobo"),
	}
	if got := NewOverlapDetector().Aggregate(scopes, snap); got != domain.OverlapPartial {
		t.Fatalf("expected partial_overlap, got %s", got)
	}
}

func TestAggregateDisjointScopes(t *testing.T) {
	snap := overlapSnapshot(t)
	scopes := []*domain.CoverageDiseaseScope{
		scopeFor("samsung", "grp-samsung"),
		scopeFor("meritz", "grp-breast"),
	}
	if got := NewOverlapDetector().Aggregate(scopes, snap); got != domain.OverlapNone {
		t.Fatalf("expected no_overlap, got %s", got)
	}
}

func TestAggregateDisjointWinsOverIdenticalPair(t *testing.T) {
	snap := overlapSnapshot(t)
	scopes := []*domain.CoverageDiseaseScope{
		scopeFor("samsung", "grp-samsung"),
		scopeFor("hanwha", "grp-hanwha"),
		scopeFor("meritz", "grp-breast"),
	}
	if got := NewOverlapDetector().Aggregate(scopes, snap); got != domain.OverlapNone {
		t.Fatalf("expected no_overlap, got %s", got)
	}
}

func TestAggregateMissingScopeIsUnknown(t *testing.T) {
	snap := overlapSnapshot(t)
	scopes := []*domain.CoverageDiseaseScope{
		scopeFor("samsung", "grp-samsung"),
		nil,
	}
	if got := NewOverlapDetector().Aggregate(scopes, snap); got != domain.OverlapUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
}

func TestAggregateIsOrderInvariant(t *testing.T) {
	snap := overlapSnapshot(t)
	detector := NewOverlapDetector()
	base := []*domain.CoverageDiseaseScope{
		scopeFor("samsung", "grp-samsung"),
		scopeFor("hanwha", "grp-hanwha"),
		scopeFor("kyobo", "grp-kyobo"),
	}
	want := detector.Aggregate(base, snap)

	permutations := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, perm := range permutations {
		ordered := make([]*domain.CoverageDiseaseScope, len(perm))
		for i, idx := range perm {
			ordered[i] = base[idx]
		}
		if got := detector.Aggregate(ordered, snap); got != want {
			t.Fatalf("permutation %v changed verdict: %s vs %s", perm, got, want)
		}
	}
	if want != domain.OverlapPartial {
		t.Fatalf("expected partial_overlap baseline, got %s", want)
	}
}

func TestAggregateEmptyInputIsUnknown(t *testing.T) {
	snap := overlapSnapshot(t)
	if got := NewOverlapDetector().Aggregate(nil, snap); got != domain.OverlapUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
}
