package parser

import (
	"testing"

	"github.com/covlens/covlens/internal/core/domain"
)

func TestRegistryFallsBackToGeneric(t *testing.T) {
	reg, err := BuiltinRegistry()
	if err != nil {
		t.Fatalf("BuiltinRegistry() error = %v", err)
	}
	if got := reg.Resolve("samsung").Insurer(); got != "samsung" {
		t.Fatalf("expected samsung pack, got %s", got)
	}
	if got := reg.Resolve("meritz").Insurer(); got != "generic" {
		t.Fatalf("expected generic fallback, got %s", got)
	}
}

func TestApplyOverlayReplacesPack(t *testing.T) {
	reg, err := BuiltinRegistry()
	if err != nil {
		t.Fatalf("BuiltinRegistry() error = %v", err)
	}

	overlay := []byte(`
packs:
  - insurer: meritz
    row_patterns:
      - '^\s*>\s*([가-힣][가-힣\s]*?)\s+(\d[\d,]*\s*만\s*원)\s*$'
    amount_patterns:
      - '(\d[\d,]*\s*만\s*원)'
`)
	if err := reg.ApplyOverlay(overlay); err != nil {
		t.Fatalf("ApplyOverlay() error = %v", err)
	}

	p := reg.Resolve("meritz")
	if p.Insurer() != "meritz" {
		t.Fatalf("expected meritz pack, got %s", p.Insurer())
	}
	rows := p.ParseRows([]domain.PageText{{Number: 1, Text: "> 암진단비 3,000만원"}})
	if len(rows) != 1 || rows[0].RawName != "암진단비" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestApplyOverlayRejectsBrokenPattern(t *testing.T) {
	reg, err := BuiltinRegistry()
	if err != nil {
		t.Fatalf("BuiltinRegistry() error = %v", err)
	}
	overlay := []byte(`
packs:
  - insurer: samsung
    row_patterns:
      - '(['
`)
	if err := reg.ApplyOverlay(overlay); err == nil {
		t.Fatalf("expected compile error")
	}
	if reg.Resolve("samsung").Insurer() != "samsung" {
		t.Fatalf("builtin pack must survive a failed overlay")
	}
}
