package usecase

import (
	"errors"
	"fmt"

	"github.com/covlens/covlens/internal/core/domain"
)

// CanonicalMapper resolves coverage records against a mapping table
// snapshot by exact normalized-name lookup. It never guesses: zero matches
// stay unmapped and conflicting matches stay ambiguous, both as first-class
// results rather than errors.
type CanonicalMapper struct{}

func NewCanonicalMapper() *CanonicalMapper { return &CanonicalMapper{} }

func (m *CanonicalMapper) Map(record domain.ProposalCoverageRecord, table *domain.MappingTable) (domain.CanonicalMapping, error) {
	if table == nil || table.Len() == 0 {
		return domain.CanonicalMapping{}, domain.WrapError(domain.ErrMappingTableUnavailable, "map coverage", errors.New("no mapping table snapshot"))
	}

	lookupKey := domain.MappingLookupKey(record.InsurerCode, record.NormalizedName)
	mapping := domain.CanonicalMapping{
		RecordID: record.ID,
		Evidence: domain.MappingEvidence{
			LookupKey:   lookupKey,
			SourceTable: table.Source(),
		},
	}

	entries := table.Lookup(record.InsurerCode, record.NormalizedName)
	codes := distinctCodes(entries)
	switch len(codes) {
	case 0:
		mapping.Status = domain.MappingStatusUnmapped
	case 1:
		mapping.Status = domain.MappingStatusMapped
		mapping.CanonicalCode = codes[0]
		mapping.Evidence.MatchedAlias = matchedAlias(entries)
	default:
		mapping.Status = domain.MappingStatusAmbiguous
	}

	if err := mapping.Validate(); err != nil {
		return domain.CanonicalMapping{}, fmt.Errorf("map coverage %s: %w", record.ID, err)
	}
	return mapping, nil
}

func distinctCodes(entries []domain.MappingEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	var codes []string
	for _, e := range entries {
		if _, ok := seen[e.CanonicalCode]; ok {
			continue
		}
		seen[e.CanonicalCode] = struct{}{}
		codes = append(codes, e.CanonicalCode)
	}
	return codes
}

func matchedAlias(entries []domain.MappingEntry) string {
	if len(entries) == 0 {
		return ""
	}
	if entries[0].RawName != "" {
		return entries[0].RawName
	}
	return entries[0].NormalizedName
}
