package domain

import "testing"

func TestNormalizeCoverageName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"암 진단비", "암진단비"},
		{"  암진단비（유사암 제외） ", "암진단비(유사암제외)"},
		{"뇌출혈\t진단비", "뇌출혈진단비"},
		{"암진단비", "암진단비"},
	}
	for _, tc := range cases {
		if got := NormalizeCoverageName(tc.raw); got != tc.want {
			t.Fatalf("NormalizeCoverageName(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestContentHashStableAcrossPasses(t *testing.T) {
	amount := int64(30_000_000)
	first := ContentHash("doc-1", "samsung", "암진단비", "KRW", &amount, "만원", 3, "암진단비 3,000만원")
	second := ContentHash("doc-1", "samsung", "암진단비", "KRW", &amount, "만원", 3, "암진단비 3,000만원")
	if first != second {
		t.Fatalf("expected identical hashes, got %s and %s", first, second)
	}
}

func TestContentHashSeparatesFields(t *testing.T) {
	amount := int64(30_000_000)
	base := ContentHash("doc-1", "samsung", "암진단비", "KRW", &amount, "만원", 3, "span")
	otherPage := ContentHash("doc-1", "samsung", "암진단비", "KRW", &amount, "만원", 4, "span")
	nilAmount := ContentHash("doc-1", "samsung", "암진단비", "KRW", nil, "만원", 3, "span")
	if base == otherPage {
		t.Fatalf("page must contribute to the hash")
	}
	if base == nilAmount {
		t.Fatalf("nil amount must hash differently from a value")
	}
}

func TestProposalCoverageRecordValidate(t *testing.T) {
	rec := ProposalCoverageRecord{
		ID:             "rec-1",
		DocumentID:     "doc-1",
		InsurerCode:    "samsung",
		RawName:        "암 진단비",
		NormalizedName: "암진단비",
		SourcePage:     3,
		SourceSpan:     "암 진단비 3,000만원",
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	rec.SourcePage = 0
	err := rec.Validate()
	if err == nil {
		t.Fatalf("expected error for missing page")
	}
	if !IsKind(err, ErrEvidenceMissing) {
		t.Fatalf("expected evidence missing, got %v", err)
	}
}
