package domain

import (
	"errors"
	"fmt"
	"sort"
)

type MappingStatus string

const (
	MappingStatusMapped    MappingStatus = "mapped"
	MappingStatusUnmapped  MappingStatus = "unmapped"
	MappingStatusAmbiguous MappingStatus = "ambiguous"
)

// MappingEvidence records how a mapping verdict was reached: the exact
// lookup key used, the alias row that matched (for mapped results) and the
// identity of the table snapshot consulted.
type MappingEvidence struct {
	LookupKey    string `json:"lookup_key"`
	MatchedAlias string `json:"matched_alias,omitempty"`
	SourceTable  string `json:"source_table"`
}

// CanonicalMapping is the mapper's verdict for one coverage record. It is
// written once per extraction pass and never mutated; corrections arrive as
// new rows under a fresh pass id.
type CanonicalMapping struct {
	RecordID      string          `json:"record_id"`
	Status        MappingStatus   `json:"status"`
	CanonicalCode string          `json:"canonical_code,omitempty"`
	Evidence      MappingEvidence `json:"evidence"`
}

// Validate enforces the status contract: a canonical code is present exactly
// when the status is mapped.
func (m CanonicalMapping) Validate() error {
	switch m.Status {
	case MappingStatusMapped:
		if m.CanonicalCode == "" {
			return WrapError(ErrReferenceDataCorrupt, "validate mapping", errors.New("mapped status without canonical code"))
		}
		if m.Evidence.MatchedAlias == "" {
			return WrapError(ErrEvidenceMissing, "validate mapping", errors.New("mapped status without matched alias"))
		}
	case MappingStatusUnmapped, MappingStatusAmbiguous:
		if m.CanonicalCode != "" {
			return WrapError(ErrReferenceDataCorrupt, "validate mapping", fmt.Errorf("status %s carries canonical code %s", m.Status, m.CanonicalCode))
		}
	default:
		return WrapError(ErrReferenceDataCorrupt, "validate mapping", fmt.Errorf("unknown mapping status %q", m.Status))
	}
	if m.Evidence.LookupKey == "" || m.Evidence.SourceTable == "" {
		return WrapError(ErrEvidenceMissing, "validate mapping", errors.New("mapping evidence incomplete"))
	}
	return nil
}

// MappingEntry is one alias row of the coverage mapping table: an insurer's
// raw coverage name variant pointing at a canonical code.
type MappingEntry struct {
	InsurerCode    string
	RawName        string
	NormalizedName string
	CanonicalCode  string
	SourceTable    string
}

const lookupKeySeparator = "\x1f"

// MappingLookupKey builds the composite key the table is indexed by.
func MappingLookupKey(insurerCode, normalizedName string) string {
	return insurerCode + lookupKeySeparator + normalizedName
}

// MappingTable is an in-memory snapshot of the insurer-name to canonical-code
// table. It is taken once at batch start and treated as read-only for the
// whole batch.
type MappingTable struct {
	entries map[string][]MappingEntry
	source  string
	size    int
}

// NewMappingTable indexes alias rows by (insurer, normalized name). An empty
// or structurally unusable row set makes the whole table unavailable; the
// mapper must not run against a partial table.
func NewMappingTable(entries []MappingEntry, source string) (*MappingTable, error) {
	if source == "" {
		return nil, WrapError(ErrMappingTableUnavailable, "build mapping table", errors.New("source identity is empty"))
	}
	if len(entries) == 0 {
		return nil, WrapError(ErrMappingTableUnavailable, "build mapping table", errors.New("no entries"))
	}
	indexed := make(map[string][]MappingEntry, len(entries))
	for i, e := range entries {
		if e.InsurerCode == "" || e.CanonicalCode == "" {
			return nil, WrapError(ErrMappingTableUnavailable, "build mapping table", fmt.Errorf("row %d missing insurer or canonical code", i+1))
		}
		if e.NormalizedName == "" {
			e.NormalizedName = NormalizeCoverageName(e.RawName)
		}
		if e.NormalizedName == "" {
			return nil, WrapError(ErrMappingTableUnavailable, "build mapping table", fmt.Errorf("row %d has no coverage name", i+1))
		}
		if e.SourceTable == "" {
			e.SourceTable = source
		}
		key := MappingLookupKey(e.InsurerCode, e.NormalizedName)
		indexed[key] = append(indexed[key], e)
	}
	return &MappingTable{entries: indexed, source: source, size: len(entries)}, nil
}

// Lookup returns every alias row registered for the key, in deterministic
// canonical-code order.
func (t *MappingTable) Lookup(insurerCode, normalizedName string) []MappingEntry {
	matched := t.entries[MappingLookupKey(insurerCode, normalizedName)]
	if len(matched) == 0 {
		return nil
	}
	out := make([]MappingEntry, len(matched))
	copy(out, matched)
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalCode < out[j].CanonicalCode })
	return out
}

func (t *MappingTable) Source() string { return t.source }
func (t *MappingTable) Len() int       { return t.size }

// MappingPass bundles everything one pipeline pass produced for a document.
// The repository persists a pass atomically: either every mapping and slot
// set lands, or none do.
type MappingPass struct {
	PassID     string
	DocumentID string
	Mappings   []CanonicalMapping
	Slots      []CoverageSlots
}
