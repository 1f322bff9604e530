package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/covlens/covlens/internal/core/domain"
)

// RulePack is the declarative rule set for one insurer's proposal layout.
// Packs are YAML-loadable so layout fixes ship without a rebuild.
type RulePack struct {
	Insurer         string         `yaml:"insurer"`
	RowPatterns     []string       `yaml:"row_patterns"`
	SkipPatterns    []string       `yaml:"skip_patterns"`
	AmountPatterns  []string       `yaml:"amount_patterns"`
	WaitingPatterns []string       `yaml:"waiting_patterns"`
	LimitRules      []LimitRule    `yaml:"limit_rules"`
	RenewalRules    []RenewalRule  `yaml:"renewal_rules"`
	EventKeywords   []EventKeyword `yaml:"event_keywords"`
	ScopePatterns   []string       `yaml:"scope_patterns"`
}

type LimitRule struct {
	Pattern string `yaml:"pattern"`
	Kind    string `yaml:"kind"`
}

type RenewalRule struct {
	Pattern string `yaml:"pattern"`
	Kind    string `yaml:"kind"`
}

type EventKeyword struct {
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

type limitMatcher struct {
	re   *regexp.Regexp
	kind string
}

type renewalMatcher struct {
	re   *regexp.Regexp
	kind string
}

// RuleParser is a compiled rule pack.
type RuleParser struct {
	insurer  string
	rows     []*regexp.Regexp
	skips    []*regexp.Regexp
	amounts  []*regexp.Regexp
	waitings []*regexp.Regexp
	limits   []limitMatcher
	renewals []renewalMatcher
	events   []EventKeyword
	scopes   []*regexp.Regexp
}

// Compile validates and compiles a rule pack. A pack with a broken pattern
// is rejected as a whole.
func Compile(pack RulePack) (*RuleParser, error) {
	if pack.Insurer == "" {
		return nil, fmt.Errorf("compile rule pack: insurer is empty")
	}
	if len(pack.RowPatterns) == 0 {
		return nil, fmt.Errorf("compile rule pack %s: no row patterns", pack.Insurer)
	}
	p := &RuleParser{insurer: pack.Insurer, events: pack.EventKeywords}

	var err error
	if p.rows, err = compileAll(pack.Insurer, "row", pack.RowPatterns); err != nil {
		return nil, err
	}
	if p.skips, err = compileAll(pack.Insurer, "skip", pack.SkipPatterns); err != nil {
		return nil, err
	}
	if p.amounts, err = compileAll(pack.Insurer, "amount", pack.AmountPatterns); err != nil {
		return nil, err
	}
	if p.waitings, err = compileAll(pack.Insurer, "waiting", pack.WaitingPatterns); err != nil {
		return nil, err
	}
	if p.scopes, err = compileAll(pack.Insurer, "scope", pack.ScopePatterns); err != nil {
		return nil, err
	}
	for _, rule := range pack.LimitRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule pack %s: limit pattern %q: %w", pack.Insurer, rule.Pattern, err)
		}
		p.limits = append(p.limits, limitMatcher{re: re, kind: rule.Kind})
	}
	for _, rule := range pack.RenewalRules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule pack %s: renewal pattern %q: %w", pack.Insurer, rule.Pattern, err)
		}
		p.renewals = append(p.renewals, renewalMatcher{re: re, kind: rule.Kind})
	}
	return p, nil
}

func compileAll(insurer, group string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile rule pack %s: %s pattern %q: %w", insurer, group, raw, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (p *RuleParser) Insurer() string { return p.insurer }

// ParseRows scans proposal pages line by line and returns every line that
// matches a row pattern as a coverage row. Lines matching a skip pattern,
// typically table headers and rulings, are ignored.
func (p *RuleParser) ParseRows(pages []domain.PageText) []RawCoverageRow {
	var rows []RawCoverageRow
	for _, page := range pages {
		for _, line := range strings.Split(page.Text, "\n") {
			normalized := normalizeLine(line)
			if normalized == "" || p.skipLine(normalized) {
				continue
			}
			name, amount, ok := p.matchRow(normalized)
			if !ok {
				continue
			}
			rows = append(rows, RawCoverageRow{
				RawName:    name,
				AmountText: amount,
				Page:       page.Number,
				Span:       strings.TrimSpace(line),
			})
		}
	}
	return rows
}

func (p *RuleParser) skipLine(line string) bool {
	for _, re := range p.skips {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func (p *RuleParser) matchRow(line string) (name, amount string, ok bool) {
	for _, re := range p.rows {
		m := re.FindStringSubmatch(line)
		if len(m) < 3 {
			continue
		}
		name = strings.TrimSpace(m[1])
		amount = strings.TrimSpace(m[2])
		if name == "" || amount == "" {
			continue
		}
		return name, amount, true
	}
	return "", "", false
}

// Table rulings and cell separators become plain spacing so one row pattern
// set covers both flowed text and grid layouts.
func normalizeLine(line string) string {
	replacer := strings.NewReplacer("│", "  ", "|", "  ", "┃", "  ", "\t", "  ")
	return strings.TrimSpace(replacer.Replace(line))
}

// ExtractSlots runs every slot rule group over a coverage span. Rules are
// tried in pack order and the first match per group wins.
func (p *RuleParser) ExtractSlots(span string) SlotCaptures {
	caps := SlotCaptures{}

	for _, re := range p.amounts {
		m := re.FindStringSubmatch(span)
		if m == nil {
			continue
		}
		token := firstGroup(m)
		value, unit, err := ParseAmount(token)
		if err != nil {
			continue
		}
		caps.Amount = &AmountCapture{Value: value, Unit: unit, Raw: token}
		break
	}

	for _, re := range p.waitings {
		m := re.FindStringSubmatch(span)
		if len(m) < 2 {
			continue
		}
		days, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		caps.WaitingDays = &IntCapture{Value: days, Raw: m[0]}
		break
	}

	for _, lm := range p.limits {
		m := lm.re.FindStringSubmatch(span)
		if m == nil {
			continue
		}
		count := 1
		if len(m) > 1 && m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			count = n
		}
		caps.PayoutLimit = &LimitCapture{Kind: lm.kind, Count: count, Raw: m[0]}
		break
	}

	for _, rm := range p.renewals {
		m := rm.re.FindStringSubmatch(span)
		if m == nil {
			continue
		}
		years := 0
		if len(m) > 1 && m[1] != "" {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			years = n
		}
		caps.Renewal = &RenewalCapture{Kind: rm.kind, TermYears: years, Raw: m[0]}
		break
	}

	for _, kw := range p.events {
		if strings.Contains(span, kw.Keyword) {
			caps.EventType = &TextCapture{Value: kw.Value, Raw: kw.Keyword}
			break
		}
	}

	for _, re := range p.scopes {
		m := re.FindStringSubmatch(span)
		if len(m) < 2 || strings.TrimSpace(m[1]) == "" {
			continue
		}
		caps.Scope = &TextCapture{Value: strings.TrimSpace(m[1]), Raw: m[0]}
		break
	}

	return caps
}

func firstGroup(m []string) string {
	if len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return m[0]
}

var amountTokenRe = regexp.MustCompile(`^\s*(-)?\s*(?:(\d+)\s*억)?\s*(?:(\d+)\s*만)?\s*(\d+)?\s*원?\s*$`)

// ParseAmount evaluates one Korean monetary token into a KRW value plus the
// unit it was written in. Composite tokens such as "1억 5,000만원" resolve
// positionally: 억 is 100,000,000 and 만 is 10,000.
func ParseAmount(token string) (int64, string, error) {
	t := strings.TrimSpace(token)
	unit := "원"
	if rest, found := strings.CutPrefix(t, "KRW"); found {
		unit = "KRW"
		t = strings.TrimSpace(rest)
	}
	t = strings.ReplaceAll(t, ",", "")

	m := amountTokenRe.FindStringSubmatch(t)
	if m == nil {
		return 0, "", fmt.Errorf("parse amount: unrecognized token %q", token)
	}
	negative, eok, man, won := m[1] != "", m[2], m[3], m[4]
	if eok == "" && man == "" && won == "" {
		return 0, "", fmt.Errorf("parse amount: no numeric part in %q", token)
	}

	var value int64
	if eok != "" {
		n, err := strconv.ParseInt(eok, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("parse amount: %w", err)
		}
		value += n * 100_000_000
		unit = "억원"
	}
	if man != "" {
		n, err := strconv.ParseInt(man, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("parse amount: %w", err)
		}
		value += n * 10_000
		if unit == "원" {
			unit = "만원"
		}
	}
	if won != "" {
		n, err := strconv.ParseInt(won, 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("parse amount: %w", err)
		}
		value += n
	}
	if negative {
		value = -value
	}
	return value, unit, nil
}
