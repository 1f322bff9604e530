package parser

import "fmt"

// amountToken matches one monetary token in any of the layouts insurers
// actually print: 억/만 composites, plain 원 figures and KRW-prefixed ones.
const amountToken = `(?:-?\d[\d,]*\s*억(?:\s*\d[\d,]*\s*만)?\s*원?|-?\d[\d,]*\s*만\s*원|-?\d[\d,]*\s*원|KRW\s*-?\d[\d,]*)`

func defaultSkipPatterns() []string {
	return []string{
		`보장명`,
		`담보명`,
		`가입금액`,
		`보험가입금액`,
		`납입보험료`,
		`^페이지`,
		`^Page`,
		`^[-=\s┌┐└┘├┤─]+$`,
	}
}

func defaultAmountPatterns() []string {
	return []string{
		`(-?\d[\d,]*\s*억(?:\s*\d[\d,]*\s*만)?\s*원?)`,
		`(-?\d[\d,]*\s*만\s*원)`,
		`(-?\d[\d,]*\s*원)`,
		`(KRW\s*-?\d[\d,]*)`,
	}
}

func defaultWaitingPatterns() []string {
	return []string{
		`면책\s*기간?\s*(\d+)\s*일`,
		`(\d+)\s*일\s*면책`,
		`대기\s*기간?\s*(\d+)\s*일`,
	}
}

func defaultLimitRules() []LimitRule {
	return []LimitRule{
		{Pattern: `최초\s*1\s*회한`, Kind: "once_total"},
		{Pattern: `연\s*(\d+)\s*회`, Kind: "per_year"},
		{Pattern: `(\d+)\s*회한`, Kind: "total_count"},
	}
}

func defaultRenewalRules() []RenewalRule {
	return []RenewalRule{
		{Pattern: `비\s*갱신형?`, Kind: "non_renewable"},
		{Pattern: `(\d+)\s*년\s*갱신형?`, Kind: "term_renewable"},
		{Pattern: `갱신형`, Kind: "renewable"},
	}
}

func defaultEventKeywords() []EventKeyword {
	return []EventKeyword{
		{Keyword: "진단", Value: "diagnosis"},
		{Keyword: "수술", Value: "surgery"},
		{Keyword: "입원", Value: "hospitalization"},
		{Keyword: "통원", Value: "outpatient"},
		{Keyword: "사망", Value: "death"},
		{Keyword: "후유장해", Value: "disability"},
	}
}

func defaultScopePatterns() []string {
	return []string{
		`\(([^)]*(?:제외|포함|한함|이외)[^)]*)\)`,
		`((?:유사암|소액암|고액암|특정암|재진단암)[가-힣]*)`,
	}
}

// DefaultRulePack is the insurer-agnostic fallback. Its row pattern covers
// the common "name then amount" line shape, with optional list numbering.
func DefaultRulePack() RulePack {
	return RulePack{
		Insurer: "generic",
		RowPatterns: []string{
			fmt.Sprintf(`^\s*(?:\d+[.)]\s*)?([가-힣][가-힣A-Za-z0-9()\[\]·,~%%\s]*?)\s+(%s)(?:\s.*)?$`, amountToken),
		},
		SkipPatterns:    defaultSkipPatterns(),
		AmountPatterns:  defaultAmountPatterns(),
		WaitingPatterns: defaultWaitingPatterns(),
		LimitRules:      defaultLimitRules(),
		RenewalRules:    defaultRenewalRules(),
		EventKeywords:   defaultEventKeywords(),
		ScopePatterns:   defaultScopePatterns(),
	}
}

// Samsung proposals print coverages as ruled tables; after ruling
// normalization the cells arrive space-separated, with the amount in the
// second cell.
func samsungRulePack() RulePack {
	pack := DefaultRulePack()
	pack.Insurer = "samsung"
	pack.RowPatterns = append([]string{
		fmt.Sprintf(`^\s*([가-힣][가-힣A-Za-z0-9()\[\]·,~%%\s]*?)\s{2,}(%s)(?:\s.*)?$`, amountToken),
	}, pack.RowPatterns...)
	return pack
}

// Hanwha proposals use a "name : amount" listing.
func hanwhaRulePack() RulePack {
	pack := DefaultRulePack()
	pack.Insurer = "hanwha"
	pack.RowPatterns = append([]string{
		fmt.Sprintf(`^\s*([가-힣][가-힣A-Za-z0-9()\[\]·,~%%\s]*?)\s*[:：]\s*(%s)(?:\s.*)?$`, amountToken),
	}, pack.RowPatterns...)
	return pack
}

// Kyobo proposals join name and amount with a dash.
func kyoboRulePack() RulePack {
	pack := DefaultRulePack()
	pack.Insurer = "kyobo"
	pack.RowPatterns = append([]string{
		fmt.Sprintf(`^\s*(?:\d+[.)]\s*)?([가-힣][가-힣A-Za-z0-9()\[\]·,~%%\s]*?)\s*[-–]\s*(%s)(?:\s.*)?$`, amountToken),
	}, pack.RowPatterns...)
	return pack
}

// BuiltinRulePacks lists every rule pack compiled into the binary. YAML
// overlays replace packs by insurer code.
func BuiltinRulePacks() []RulePack {
	return []RulePack{
		samsungRulePack(),
		hanwhaRulePack(),
		kyoboRulePack(),
	}
}
