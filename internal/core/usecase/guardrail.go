package usecase

import (
	"errors"
	"fmt"

	"github.com/covlens/covlens/internal/core/domain"
)

// Guardrail is the cross-cutting invariant checker. It only ever rejects:
// it never adjusts a value, never creates reference data and never lets a
// violating artifact continue downstream.
type Guardrail struct{}

func NewGuardrail() *Guardrail { return &Guardrail{} }

// VerifyMapping enforces the mapping status contract and, when a canonical
// code is present, that the code exists in the snapshot. A mapping table
// pointing at a code the dictionary does not know means the reference data
// and the table disagree, which is batch-fatal.
func (g *Guardrail) VerifyMapping(mapping domain.CanonicalMapping, snap *domain.ReferenceSnapshot) error {
	if err := mapping.Validate(); err != nil {
		return err
	}
	if mapping.Status != domain.MappingStatusMapped {
		return nil
	}
	if _, ok := snap.Coverage(mapping.CanonicalCode); !ok {
		return domain.WrapError(domain.ErrReferenceDataCorrupt, "verify mapping",
			fmt.Errorf("canonical code %s is not in the dictionary", mapping.CanonicalCode))
	}
	return nil
}

// VerifySlots enforces the evidence rule over one slot set.
func (g *Guardrail) VerifySlots(slots domain.CoverageSlots) error {
	return slots.Validate()
}

// VerifyScopeProvenance rejects scope data whose evidence does not come
// from a proposal or policy document.
func (g *Guardrail) VerifyScopeProvenance(scope domain.CoverageDiseaseScope) error {
	return scope.Evidence.ValidateProvenance()
}

// VerifyResult checks an assembled comparison verdict before it leaves the
// engine: every in-universe insurer detail must carry evidence, and the
// state must be one of the declared machine states.
func (g *Guardrail) VerifyResult(result *domain.ComparisonResult) error {
	if result == nil {
		return domain.WrapError(domain.ErrInvalidInput, "verify result", errors.New("nil result"))
	}
	valid := false
	for _, st := range domain.ComparisonStates {
		if result.State == st {
			valid = true
			break
		}
	}
	if !valid {
		return domain.WrapError(domain.ErrInvalidInput, "verify result", fmt.Errorf("unknown comparison state %q", result.State))
	}
	for _, detail := range result.PerInsurer {
		if !detail.InUniverse {
			continue
		}
		if len(detail.Evidence) == 0 {
			return domain.WrapError(domain.ErrEvidenceMissing, "verify result",
				fmt.Errorf("insurer %s detail has no evidence", detail.InsurerCode))
		}
		for _, ev := range detail.Evidence {
			if err := ev.Validate(); err != nil {
				return fmt.Errorf("insurer %s: %w", detail.InsurerCode, err)
			}
		}
	}
	return nil
}
