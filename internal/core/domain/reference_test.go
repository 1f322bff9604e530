package domain

import "testing"

func refEvidence() Evidence {
	return Evidence{DocumentID: "policy-1", DocumentKind: DocumentKindPolicy, Page: 12, Span: "유사암이란 갑상선암(C73)..."}
}

func refCoverages() []CanonicalCoverage {
	return []CanonicalCoverage{
		{Code: "CA_DX_GENERAL", DisplayName: "General Cancer Diagnosis", Domain: "cancer"},
		{Code: "CA_DX_MINOR", DisplayName: "Minor Cancer Diagnosis", Domain: "cancer"},
		{Code: "DEATH_ANY", DisplayName: "Death Benefit", Domain: "death"},
	}
}

func refCodes() []DiseaseCode {
	return []DiseaseCode{
		{Code: "C00", Name: "Malignant neoplasm of lip"},
		{Code: "C14", Name: "Other sites"},
		{Code: "C14.9", Name: "Other sites, unspecified"},
		{Code: "C15", Name: "Malignant neoplasm of oesophagus"},
		{Code: "C44", Name: "Other malignant neoplasms of skin"},
		{Code: "C73", Name: "Malignant neoplasm of thyroid gland"},
		{Code: "D09", Name: "Carcinoma in situ"},
	}
}

func TestBuildReferenceSnapshotExpandsRanges(t *testing.T) {
	groups := []DiseaseCodeGroup{{
		ID:          "grp-head-neck",
		InsurerCode: "samsung",
		Name:        "두경부암",
		ConceptKind: ConceptInsurerDefined,
		Evidence:    refEvidence(),
		Members: []GroupMember{
			{Kind: MemberKindRange, RangeFrom: "C00", RangeTo: "C14"},
			{Kind: MemberKindCode, Code: "C73"},
		},
	}}

	snap, err := BuildReferenceSnapshot(refCoverages(), refCodes(), groups, nil)
	if err != nil {
		t.Fatalf("BuildReferenceSnapshot() error = %v", err)
	}

	codes, ok := snap.GroupCodes("grp-head-neck")
	if !ok {
		t.Fatalf("expected expanded group")
	}
	want := []string{"C00", "C14", "C14.9", "C73"}
	if len(codes) != len(want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
	for i, c := range want {
		if codes[i] != c {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}
}

func TestBuildReferenceSnapshotRejectsUnknownMemberCode(t *testing.T) {
	groups := []DiseaseCodeGroup{{
		ID:          "grp-bad",
		InsurerCode: "samsung",
		Name:        "미등록코드그룹",
		ConceptKind: ConceptInsurerDefined,
		Evidence:    refEvidence(),
		Members:     []GroupMember{{Kind: MemberKindCode, Code: "Z99"}},
	}}

	_, err := BuildReferenceSnapshot(refCoverages(), refCodes(), groups, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsKind(err, ErrReferenceDataCorrupt) {
		t.Fatalf("expected reference data corrupt, got %v", err)
	}
}

func TestBuildReferenceSnapshotRejectsGroupWithoutEvidence(t *testing.T) {
	groups := []DiseaseCodeGroup{{
		ID:          "grp-no-evidence",
		InsurerCode: "samsung",
		Name:        "근거없는그룹",
		ConceptKind: ConceptInsurerDefined,
		Members:     []GroupMember{{Kind: MemberKindCode, Code: "C73"}},
	}}

	_, err := BuildReferenceSnapshot(refCoverages(), refCodes(), groups, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsKind(err, ErrReferenceDataCorrupt) || !IsKind(err, ErrEvidenceMissing) {
		t.Fatalf("expected corrupt+evidence error, got %v", err)
	}
}

func TestBuildReferenceSnapshotRejectsScopeWithUnknownGroup(t *testing.T) {
	scopes := []CoverageDiseaseScope{{
		ID:             "scope-1",
		CanonicalCode:  "CA_DX_GENERAL",
		InsurerCode:    "samsung",
		IncludeGroupID: "grp-missing",
		Evidence:       refEvidence(),
	}}

	_, err := BuildReferenceSnapshot(refCoverages(), refCodes(), nil, scopes)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsKind(err, ErrReferenceDataCorrupt) {
		t.Fatalf("expected reference data corrupt, got %v", err)
	}
}

func TestBuildReferenceSnapshotRejectsDuplicateScope(t *testing.T) {
	groups := []DiseaseCodeGroup{{
		ID:          "grp-thyroid",
		InsurerCode: "samsung",
		Name:        "갑상선암",
		ConceptKind: ConceptInsurerDefined,
		Evidence:    refEvidence(),
		Members:     []GroupMember{{Kind: MemberKindCode, Code: "C73"}},
	}}
	scope := CoverageDiseaseScope{
		ID:             "scope-1",
		CanonicalCode:  "CA_DX_GENERAL",
		InsurerCode:    "samsung",
		IncludeGroupID: "grp-thyroid",
		Evidence:       refEvidence(),
	}
	dup := scope
	dup.ID = "scope-2"

	_, err := BuildReferenceSnapshot(refCoverages(), refCodes(), groups, []CoverageDiseaseScope{scope, dup})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsKind(err, ErrReferenceDataCorrupt) {
		t.Fatalf("expected reference data corrupt, got %v", err)
	}
}

func TestGroupMemberValidateMutualExclusion(t *testing.T) {
	m := GroupMember{Kind: MemberKindCode, Code: "C73", RangeFrom: "C00", RangeTo: "C14"}
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error for member carrying both code and range")
	}

	m = GroupMember{Kind: MemberKindRange, RangeFrom: "C14", RangeTo: "C00"}
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestCompareDiseaseCodesOrdering(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"C50.1", "C50.11", -1},
		{"C50.11", "C50.2", -1},
		{"C73", "C73", 0},
		{"D09", "C73", 1},
		{"c73 ", "C73", 0},
	}
	for _, tc := range cases {
		got, err := CompareDiseaseCodes(tc.a, tc.b)
		if err != nil {
			t.Fatalf("CompareDiseaseCodes(%q, %q) error = %v", tc.a, tc.b, err)
		}
		if (got < 0) != (tc.want < 0) || (got == 0) != (tc.want == 0) {
			t.Fatalf("CompareDiseaseCodes(%q, %q) = %d, want sign of %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSnapshotScopeLookupIsPerInsurer(t *testing.T) {
	groups := []DiseaseCodeGroup{{
		ID:          "grp-thyroid",
		InsurerCode: "samsung",
		Name:        "갑상선암",
		ConceptKind: ConceptInsurerDefined,
		Evidence:    refEvidence(),
		Members:     []GroupMember{{Kind: MemberKindCode, Code: "C73"}},
	}}
	scopes := []CoverageDiseaseScope{{
		ID:             "scope-1",
		CanonicalCode:  "CA_DX_MINOR",
		InsurerCode:    "samsung",
		IncludeGroupID: "grp-thyroid",
		Evidence:       refEvidence(),
	}}

	snap, err := BuildReferenceSnapshot(refCoverages(), refCodes(), groups, scopes)
	if err != nil {
		t.Fatalf("BuildReferenceSnapshot() error = %v", err)
	}
	if _, ok := snap.Scope("CA_DX_MINOR", "samsung"); !ok {
		t.Fatalf("expected samsung scope")
	}
	if _, ok := snap.Scope("CA_DX_MINOR", "hanwha"); ok {
		t.Fatalf("expected no hanwha scope")
	}
}

func TestDiseaseScopedDomains(t *testing.T) {
	if !(CanonicalCoverage{Code: "CA_DX_GENERAL", Domain: "cancer"}).DiseaseScoped() {
		t.Fatalf("cancer coverages carry a disease scope")
	}
	if (CanonicalCoverage{Code: "DEATH_ANY", Domain: "death"}).DiseaseScoped() {
		t.Fatalf("death coverages have no disease scope")
	}
}
