package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CanonicalCoverage is one entry of the canonical coverage dictionary.
type CanonicalCoverage struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Domain      string `json:"domain"`
}

// Domains whose coverages pay regardless of diagnosis. Coverages in these
// domains have no disease scope dimension and skip overlap analysis.
var scopelessDomains = map[string]bool{
	"death":          true,
	"accident_death": true,
	"disability":     true,
	"funeral":        true,
	"savings":        true,
}

// DiseaseScoped reports whether coverages in this domain are bounded by a
// disease code scope.
func (c CanonicalCoverage) DiseaseScoped() bool {
	return !scopelessDomains[c.Domain]
}

// DiseaseCode is one row of the disease classification master.
type DiseaseCode struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
}

// NormalizeDiseaseCode folds a classification code into its canonical form:
// upper case, surrounding whitespace and trailing dots removed.
func NormalizeDiseaseCode(code string) string {
	return strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(code)), ".")
}

type parsedCode struct {
	letter byte
	major  int
	suffix string
}

func parseDiseaseCode(code string) (parsedCode, error) {
	c := NormalizeDiseaseCode(code)
	if len(c) < 3 {
		return parsedCode{}, fmt.Errorf("code %q too short", code)
	}
	letter := c[0]
	if letter < 'A' || letter > 'Z' {
		return parsedCode{}, fmt.Errorf("code %q does not start with a classification letter", code)
	}
	rest := c[1:]
	suffix := ""
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		suffix = rest[i+1:]
		rest = rest[:i]
		if suffix == "" {
			return parsedCode{}, fmt.Errorf("code %q has a dangling dot", code)
		}
	}
	major, err := strconv.Atoi(rest)
	if err != nil || major < 0 || len(rest) != 2 {
		return parsedCode{}, fmt.Errorf("code %q has a malformed major part", code)
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return parsedCode{}, fmt.Errorf("code %q has a non-numeric suffix", code)
		}
	}
	return parsedCode{letter: letter, major: major, suffix: suffix}, nil
}

func (p parsedCode) key() string {
	if p.suffix == "" {
		return fmt.Sprintf("%c%02d", p.letter, p.major)
	}
	return fmt.Sprintf("%c%02d.%s", p.letter, p.major, p.suffix)
}

// CompareDiseaseCodes orders two classification codes. Subdivided codes sort
// after their parent and dotted suffixes compare positionally, so C50.1 <
// C50.11 < C50.2.
func CompareDiseaseCodes(a, b string) (int, error) {
	pa, err := parseDiseaseCode(a)
	if err != nil {
		return 0, err
	}
	pb, err := parseDiseaseCode(b)
	if err != nil {
		return 0, err
	}
	return strings.Compare(pa.key(), pb.key()), nil
}

// codeInRange reports whether code lies inside [from, to]. A bound without a
// suffix spans all of its subdivisions, so C14.9 is inside C00-C14.
func codeInRange(code, from, to string) (bool, error) {
	pc, err := parseDiseaseCode(code)
	if err != nil {
		return false, err
	}
	pf, err := parseDiseaseCode(from)
	if err != nil {
		return false, err
	}
	pt, err := parseDiseaseCode(to)
	if err != nil {
		return false, err
	}
	if strings.Compare(pc.key(), pf.key()) < 0 {
		return false, nil
	}
	if pt.suffix == "" {
		if pc.letter != pt.letter {
			return pc.letter < pt.letter, nil
		}
		return pc.major <= pt.major, nil
	}
	return strings.Compare(pc.key(), pt.key()) <= 0, nil
}

type GroupMemberKind string

const (
	MemberKindCode  GroupMemberKind = "code"
	MemberKindRange GroupMemberKind = "range"
)

// GroupMember is one element of a disease code group: either a single code
// or an inclusive code range, never both.
type GroupMember struct {
	Kind      GroupMemberKind `json:"kind"`
	Code      string          `json:"code,omitempty"`
	RangeFrom string          `json:"range_from,omitempty"`
	RangeTo   string          `json:"range_to,omitempty"`
}

func (m GroupMember) Validate() error {
	switch m.Kind {
	case MemberKindCode:
		if m.Code == "" {
			return WrapError(ErrReferenceDataCorrupt, "validate group member", errors.New("code member without code"))
		}
		if m.RangeFrom != "" || m.RangeTo != "" {
			return WrapError(ErrReferenceDataCorrupt, "validate group member", fmt.Errorf("code member %s also carries range bounds", m.Code))
		}
	case MemberKindRange:
		if m.RangeFrom == "" || m.RangeTo == "" {
			return WrapError(ErrReferenceDataCorrupt, "validate group member", errors.New("range member with missing bound"))
		}
		if m.Code != "" {
			return WrapError(ErrReferenceDataCorrupt, "validate group member", fmt.Errorf("range member %s-%s also carries a code", m.RangeFrom, m.RangeTo))
		}
		cmp, err := CompareDiseaseCodes(m.RangeFrom, m.RangeTo)
		if err != nil {
			return WrapError(ErrReferenceDataCorrupt, "validate group member", err)
		}
		if cmp > 0 {
			return WrapError(ErrReferenceDataCorrupt, "validate group member", fmt.Errorf("range %s-%s is inverted", m.RangeFrom, m.RangeTo))
		}
	default:
		return WrapError(ErrReferenceDataCorrupt, "validate group member", fmt.Errorf("unknown member kind %q", m.Kind))
	}
	return nil
}

type GroupConceptKind string

const (
	// ConceptInsurerDefined marks a group that reproduces an insurer's own
	// contractual concept, such as a "similar cancer" clause.
	ConceptInsurerDefined GroupConceptKind = "insurer_concept"
	// ConceptClassificationRange marks a group lifted straight from the
	// disease classification itself.
	ConceptClassificationRange GroupConceptKind = "classification_range"
)

// DiseaseCodeGroup is a named, evidence-backed set of disease codes.
type DiseaseCodeGroup struct {
	ID          string           `json:"id"`
	InsurerCode string           `json:"insurer_code,omitempty"`
	Name        string           `json:"name"`
	ConceptKind GroupConceptKind `json:"concept_kind"`
	Evidence    Evidence         `json:"evidence"`
	Members     []GroupMember    `json:"members"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (g DiseaseCodeGroup) Validate() error {
	if g.ID == "" {
		return WrapError(ErrReferenceDataCorrupt, "validate group", errors.New("group id is empty"))
	}
	if g.Name == "" {
		return WrapError(ErrReferenceDataCorrupt, "validate group", fmt.Errorf("group %s has no name", g.ID))
	}
	switch g.ConceptKind {
	case ConceptInsurerDefined:
		if g.InsurerCode == "" {
			return WrapError(ErrReferenceDataCorrupt, "validate group", fmt.Errorf("insurer concept group %s has no insurer", g.ID))
		}
	case ConceptClassificationRange:
	default:
		return WrapError(ErrReferenceDataCorrupt, "validate group", fmt.Errorf("group %s has unknown concept kind %q", g.ID, g.ConceptKind))
	}
	if len(g.Members) == 0 {
		return WrapError(ErrReferenceDataCorrupt, "validate group", fmt.Errorf("group %s has no members", g.ID))
	}
	if err := g.Evidence.ValidateProvenance(); err != nil {
		return fmt.Errorf("group %s: %w", g.ID, err)
	}
	for _, m := range g.Members {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("group %s: %w", g.ID, err)
		}
	}
	return nil
}

// CoverageDiseaseScope binds a canonical coverage, for one insurer, to the
// group of disease codes it pays for and optionally a group it excludes.
type CoverageDiseaseScope struct {
	ID             string    `json:"id"`
	CanonicalCode  string    `json:"canonical_code"`
	InsurerCode    string    `json:"insurer_code"`
	IncludeGroupID string    `json:"include_group_id"`
	ExcludeGroupID string    `json:"exclude_group_id,omitempty"`
	Evidence       Evidence  `json:"evidence"`
	CreatedAt      time.Time `json:"created_at"`
}

func (s CoverageDiseaseScope) Validate() error {
	switch {
	case s.ID == "":
		return WrapError(ErrReferenceDataCorrupt, "validate scope", errors.New("scope id is empty"))
	case s.CanonicalCode == "":
		return WrapError(ErrReferenceDataCorrupt, "validate scope", fmt.Errorf("scope %s has no canonical code", s.ID))
	case s.InsurerCode == "":
		return WrapError(ErrReferenceDataCorrupt, "validate scope", fmt.Errorf("scope %s has no insurer", s.ID))
	case s.IncludeGroupID == "":
		return WrapError(ErrReferenceDataCorrupt, "validate scope", fmt.Errorf("scope %s has no include group", s.ID))
	}
	if err := s.Evidence.ValidateProvenance(); err != nil {
		return fmt.Errorf("scope %s: %w", s.ID, err)
	}
	return nil
}

// ScopeLineageHit is one answer row of a lineage reachability query: a
// coverage whose resolved scope includes a given disease code.
type ScopeLineageHit struct {
	CanonicalCode string `json:"canonical_code"`
	InsurerCode   string `json:"insurer_code"`
}

// ScopeView is the read-model shape of one resolved scope: the binding plus
// its fully expanded code sets and group names.
type ScopeView struct {
	Scope        CoverageDiseaseScope `json:"scope"`
	IncludeGroup string               `json:"include_group"`
	ExcludeGroup string               `json:"exclude_group,omitempty"`
	IncludeCodes []string             `json:"include_codes"`
	ExcludeCodes []string             `json:"exclude_codes,omitempty"`
}

type scopeKey struct {
	canonicalCode string
	insurerCode   string
}

// ReferenceSnapshot is an immutable, integrity-checked view of the reference
// store taken at batch start. Group ranges are pre-expanded against the
// disease master so overlap math works on plain code sets.
type ReferenceSnapshot struct {
	coverages map[string]CanonicalCoverage
	codes     map[string]DiseaseCode
	groups    map[string]DiseaseCodeGroup
	scopes    map[scopeKey]CoverageDiseaseScope
	expanded  map[string]map[string]struct{}
	loadedAt  time.Time
}

// BuildReferenceSnapshot assembles and verifies a snapshot. Any referential
// breakage makes the snapshot unusable as a whole: a batch must not run
// against reference data it cannot trust.
func BuildReferenceSnapshot(coverages []CanonicalCoverage, codes []DiseaseCode, groups []DiseaseCodeGroup, scopes []CoverageDiseaseScope) (*ReferenceSnapshot, error) {
	const op = "build reference snapshot"

	snap := &ReferenceSnapshot{
		coverages: make(map[string]CanonicalCoverage, len(coverages)),
		codes:     make(map[string]DiseaseCode, len(codes)),
		groups:    make(map[string]DiseaseCodeGroup, len(groups)),
		scopes:    make(map[scopeKey]CoverageDiseaseScope, len(scopes)),
		expanded:  make(map[string]map[string]struct{}, len(groups)),
		loadedAt:  time.Now().UTC(),
	}

	for _, c := range coverages {
		if c.Code == "" || c.DisplayName == "" || c.Domain == "" {
			return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("canonical coverage %q is incomplete", c.Code))
		}
		if _, dup := snap.coverages[c.Code]; dup {
			return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("duplicate canonical coverage %s", c.Code))
		}
		snap.coverages[c.Code] = c
	}
	if len(snap.coverages) == 0 {
		return nil, WrapError(ErrReferenceDataCorrupt, op, errors.New("canonical coverage dictionary is empty"))
	}

	masterCodes := make([]string, 0, len(codes))
	for _, d := range codes {
		normalized := NormalizeDiseaseCode(d.Code)
		if _, err := parseDiseaseCode(normalized); err != nil {
			return nil, WrapError(ErrReferenceDataCorrupt, op, err)
		}
		if _, dup := snap.codes[normalized]; dup {
			return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("duplicate disease code %s", normalized))
		}
		d.Code = normalized
		snap.codes[normalized] = d
		masterCodes = append(masterCodes, normalized)
	}
	sort.Strings(masterCodes)

	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return nil, WrapError(ErrReferenceDataCorrupt, op, err)
		}
		if _, dup := snap.groups[g.ID]; dup {
			return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("duplicate group %s", g.ID))
		}
		set, err := expandMembers(g, snap.codes, masterCodes)
		if err != nil {
			return nil, err
		}
		snap.groups[g.ID] = g
		snap.expanded[g.ID] = set
	}

	for _, s := range scopes {
		if err := s.Validate(); err != nil {
			return nil, WrapError(ErrReferenceDataCorrupt, op, err)
		}
		if _, ok := snap.coverages[s.CanonicalCode]; !ok {
			return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("scope %s references unknown canonical coverage %s", s.ID, s.CanonicalCode))
		}
		if _, ok := snap.groups[s.IncludeGroupID]; !ok {
			return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("scope %s references unknown include group %s", s.ID, s.IncludeGroupID))
		}
		if s.ExcludeGroupID != "" {
			if _, ok := snap.groups[s.ExcludeGroupID]; !ok {
				return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("scope %s references unknown exclude group %s", s.ID, s.ExcludeGroupID))
			}
		}
		key := scopeKey{canonicalCode: s.CanonicalCode, insurerCode: s.InsurerCode}
		if _, dup := snap.scopes[key]; dup {
			return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("duplicate scope for coverage %s insurer %s", s.CanonicalCode, s.InsurerCode))
		}
		snap.scopes[key] = s
	}

	return snap, nil
}

func expandMembers(g DiseaseCodeGroup, master map[string]DiseaseCode, sortedCodes []string) (map[string]struct{}, error) {
	const op = "expand group members"
	set := make(map[string]struct{})
	for _, m := range g.Members {
		switch m.Kind {
		case MemberKindCode:
			code := NormalizeDiseaseCode(m.Code)
			if _, ok := master[code]; !ok {
				return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("group %s member %s is not in the disease master", g.ID, code))
			}
			set[code] = struct{}{}
		case MemberKindRange:
			matched := 0
			for _, code := range sortedCodes {
				in, err := codeInRange(code, m.RangeFrom, m.RangeTo)
				if err != nil {
					return nil, WrapError(ErrReferenceDataCorrupt, op, err)
				}
				if in {
					set[code] = struct{}{}
					matched++
				}
			}
			if matched == 0 {
				return nil, WrapError(ErrReferenceDataCorrupt, op, fmt.Errorf("group %s range %s-%s matches no known code", g.ID, m.RangeFrom, m.RangeTo))
			}
		}
	}
	return set, nil
}

func (s *ReferenceSnapshot) Coverage(code string) (CanonicalCoverage, bool) {
	c, ok := s.coverages[code]
	return c, ok
}

func (s *ReferenceSnapshot) Coverages() []CanonicalCoverage {
	out := make([]CanonicalCoverage, 0, len(s.coverages))
	for _, c := range s.coverages {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *ReferenceSnapshot) DiseaseCode(code string) (DiseaseCode, bool) {
	d, ok := s.codes[NormalizeDiseaseCode(code)]
	return d, ok
}

func (s *ReferenceSnapshot) Group(id string) (DiseaseCodeGroup, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// GroupCodes returns the fully expanded, sorted code set of a group.
func (s *ReferenceSnapshot) GroupCodes(id string) ([]string, bool) {
	set, ok := s.expanded[id]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, true
}

// MemberSet exposes a group's expanded codes for set arithmetic. Callers
// must treat the returned map as read-only.
func (s *ReferenceSnapshot) MemberSet(id string) (map[string]struct{}, bool) {
	set, ok := s.expanded[id]
	return set, ok
}

func (s *ReferenceSnapshot) Scope(canonicalCode, insurerCode string) (CoverageDiseaseScope, bool) {
	sc, ok := s.scopes[scopeKey{canonicalCode: canonicalCode, insurerCode: insurerCode}]
	return sc, ok
}

func (s *ReferenceSnapshot) ScopesForCoverage(canonicalCode string) []CoverageDiseaseScope {
	var out []CoverageDiseaseScope
	for key, sc := range s.scopes {
		if key.canonicalCode == canonicalCode {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InsurerCode < out[j].InsurerCode })
	return out
}

func (s *ReferenceSnapshot) CoverageCount() int { return len(s.coverages) }
func (s *ReferenceSnapshot) CodeCount() int     { return len(s.codes) }
func (s *ReferenceSnapshot) GroupCount() int    { return len(s.groups) }
func (s *ReferenceSnapshot) ScopeCount() int    { return len(s.scopes) }
func (s *ReferenceSnapshot) LoadedAt() time.Time {
	return s.loadedAt
}
