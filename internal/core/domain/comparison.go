package domain

import "time"

// OverlapState classifies how the disease scopes of the compared insurers
// relate after full group expansion.
type OverlapState string

const (
	OverlapFullMatch     OverlapState = "full_match"
	OverlapPartial       OverlapState = "partial_overlap"
	OverlapNone          OverlapState = "no_overlap"
	OverlapUnknown       OverlapState = "unknown"
	OverlapNotApplicable OverlapState = "not_applicable"
)

// ComparisonState is the machine verdict for one comparison request.
type ComparisonState string

const (
	StateOutOfUniverse      ComparisonState = "out_of_universe"
	StateUnmapped           ComparisonState = "unmapped"
	StateNonComparable      ComparisonState = "non_comparable"
	StateComparableWithGaps ComparisonState = "comparable_with_gaps"
	StateComparable         ComparisonState = "comparable"
)

// ComparisonStates lists every state in verdict precedence order.
var ComparisonStates = []ComparisonState{
	StateOutOfUniverse,
	StateUnmapped,
	StateNonComparable,
	StateComparableWithGaps,
	StateComparable,
}

// ReasonCode names the first rule that fired when deciding a state.
type ReasonCode string

const (
	ReasonUniverseMissing    ReasonCode = "universe_missing_coverage"
	ReasonMappingUnmapped    ReasonCode = "mapping_unmapped"
	ReasonMappingAmbiguous   ReasonCode = "mapping_ambiguous"
	ReasonCanonicalMismatch  ReasonCode = "canonical_code_mismatch"
	ReasonScopeDisjoint      ReasonCode = "scope_disjoint"
	ReasonSlotsIncomplete    ReasonCode = "slots_incomplete"
	ReasonScopePartial       ReasonCode = "scope_partial_overlap"
	ReasonScopeUnresolved    ReasonCode = "scope_unresolved"
	ReasonScopeFullMatch     ReasonCode = "scope_full_match"
	ReasonScopeNotApplicable ReasonCode = "scope_not_applicable"
)

// CoverageSelection names one insurer's coverage inside a comparison
// request, by the coverage name as it appears in that insurer's proposal.
type CoverageSelection struct {
	InsurerCode  string `json:"insurer_code"`
	CoverageName string `json:"coverage_name"`
}

// UniverseCheck is the outcome of validating a selection against the locked
// proposal universe.
type UniverseCheck struct {
	InUniverse bool
	Record     *ProposalCoverageRecord
	Mapping    *CanonicalMapping
}

// InsurerComparisonDetail is the per-insurer portion of a comparison result:
// the resolved record, its mapping verdict, slots, scope and the evidence
// trail that backs every one of them.
type InsurerComparisonDetail struct {
	InsurerCode   string                `json:"insurer_code"`
	CoverageName  string                `json:"coverage_name"`
	InUniverse    bool                  `json:"in_universe"`
	RecordID      string                `json:"record_id,omitempty"`
	CanonicalCode string                `json:"canonical_code,omitempty"`
	MappingStatus MappingStatus         `json:"mapping_status,omitempty"`
	Mapping       *CanonicalMapping     `json:"mapping,omitempty"`
	Slots         *CoverageSlots        `json:"slots,omitempty"`
	Scope         *CoverageDiseaseScope `json:"scope,omitempty"`
	SlotGaps      []string              `json:"slot_gaps,omitempty"`
	Evidence      []Evidence            `json:"evidence,omitempty"`
}

// ComparisonResult is the full machine-readable comparison verdict.
type ComparisonResult struct {
	State       ComparisonState           `json:"state"`
	ReasonCode  ReasonCode                `json:"reason_code"`
	Overlap     OverlapState              `json:"overlap_state"`
	PerInsurer  []InsurerComparisonDetail `json:"per_insurer"`
	EvaluatedAt time.Time                 `json:"evaluated_at"`
}
