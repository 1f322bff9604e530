package usecase

import (
	"context"
	"fmt"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
)

// UniverseValidator enforces the universe lock: a coverage participates in
// comparison only if its record exists in the stored proposal universe.
// Absence is a first-class answer here, not an error.
type UniverseValidator struct {
	proposals ports.ProposalRepository
	mappings  ports.MappingRepository
}

func NewUniverseValidator(proposals ports.ProposalRepository, mappings ports.MappingRepository) *UniverseValidator {
	return &UniverseValidator{proposals: proposals, mappings: mappings}
}

// ValidateName checks whether the insurer's proposal universe contains a
// coverage under the given name and, if so, attaches its latest mapping.
func (v *UniverseValidator) ValidateName(ctx context.Context, insurerCode, coverageName string) (domain.UniverseCheck, error) {
	normalized := domain.NormalizeCoverageName(coverageName)
	if normalized == "" {
		return domain.UniverseCheck{}, domain.WrapError(domain.ErrInvalidInput, "validate universe", fmt.Errorf("coverage name is empty"))
	}

	record, err := v.proposals.FindRecordByInsurerAndName(ctx, insurerCode, normalized)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			return domain.UniverseCheck{InUniverse: false}, nil
		}
		return domain.UniverseCheck{}, fmt.Errorf("find coverage record: %w", err)
	}
	return v.attachMapping(ctx, record)
}

// ValidateCode checks whether the insurer's universe contains any record
// mapped to the given canonical code.
func (v *UniverseValidator) ValidateCode(ctx context.Context, insurerCode, canonicalCode string) (domain.UniverseCheck, error) {
	if canonicalCode == "" {
		return domain.UniverseCheck{}, domain.WrapError(domain.ErrInvalidInput, "validate universe", fmt.Errorf("canonical code is empty"))
	}

	record, mapping, err := v.mappings.FindLatestMappedRecord(ctx, insurerCode, canonicalCode)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			return domain.UniverseCheck{InUniverse: false}, nil
		}
		return domain.UniverseCheck{}, fmt.Errorf("find mapped record: %w", err)
	}
	return domain.UniverseCheck{InUniverse: true, Record: record, Mapping: mapping}, nil
}

func (v *UniverseValidator) attachMapping(ctx context.Context, record *domain.ProposalCoverageRecord) (domain.UniverseCheck, error) {
	mapping, err := v.mappings.GetLatestMapping(ctx, record.ID)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			// The record exists but has not been through a mapping pass yet.
			return domain.UniverseCheck{InUniverse: true, Record: record}, nil
		}
		return domain.UniverseCheck{}, fmt.Errorf("load latest mapping: %w", err)
	}
	return domain.UniverseCheck{InUniverse: true, Record: record, Mapping: mapping}, nil
}
