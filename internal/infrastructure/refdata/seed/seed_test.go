package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/covlens/covlens/internal/core/domain"
)

const sampleSeed = `
groups:
  - id: grp-alpha-similar-cancer
    insurer_code: alpha
    name: 유사암
    concept_kind: insurer_concept
    evidence:
      document_id: policy-alpha-2026
      document_kind: policy
      page: 14
      span: "유사암이란 갑상선암(C73), 기타피부암(C44) ..."
    members:
      - code: C73
      - code: C44
  - id: grp-kcd-malignant
    name: 악성신생물 C00-C97
    concept_kind: classification_range
    evidence:
      document_id: policy-alpha-2026
      document_kind: policy
      page: 3
      span: "한국표준질병사인분류 C00-C97"
    members:
      - range_from: C00
        range_to: C97
scopes:
  - id: scope-alpha-can001
    canonical_code: CAN-001
    insurer_code: alpha
    include_group: grp-kcd-malignant
    exclude_group: grp-alpha-similar-cancer
    evidence:
      document_id: policy-alpha-2026
      document_kind: policy
      page: 15
      span: "다만 유사암은 제외합니다"
`

func TestLoadParsesGroupsAndScopes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sampleSeed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	groups, scopes, err := NewLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].ConceptKind != domain.ConceptInsurerDefined || len(groups[0].Members) != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if groups[0].Members[0].Kind != domain.MemberKindCode {
		t.Fatalf("expected code member, got %s", groups[0].Members[0].Kind)
	}
	if groups[1].Members[0].Kind != domain.MemberKindRange || groups[1].Members[0].RangeTo != "C97" {
		t.Fatalf("unexpected range member: %+v", groups[1].Members[0])
	}
	if err := groups[0].Validate(); err != nil {
		t.Fatalf("seeded group should validate: %v", err)
	}

	if len(scopes) != 1 {
		t.Fatalf("expected 1 scope, got %d", len(scopes))
	}
	if scopes[0].IncludeGroupID != "grp-kcd-malignant" || scopes[0].ExcludeGroupID != "grp-alpha-similar-cancer" {
		t.Fatalf("unexpected scope: %+v", scopes[0])
	}
	if scopes[0].Evidence.DocumentKind != domain.DocumentKindPolicy {
		t.Fatalf("expected policy evidence, got %s", scopes[0].Evidence.DocumentKind)
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, _, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
}
