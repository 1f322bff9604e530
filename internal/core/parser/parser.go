// Package parser turns proposal page text into coverage rows and slot
// captures using per-insurer rule packs. Every rule is a plain regular
// expression evaluated in declaration order, so the same input always
// produces the same captures.
package parser

// RawCoverageRow is one coverage line found in a proposal page.
type RawCoverageRow struct {
	RawName    string
	AmountText string
	Page       int
	Span       string
}

// TextCapture is a matched textual slot value with the span it came from.
type TextCapture struct {
	Value string
	Raw   string
}

// AmountCapture is a parsed monetary value in KRW.
type AmountCapture struct {
	Value int64
	Unit  string
	Raw   string
}

type IntCapture struct {
	Value int
	Raw   string
}

type LimitCapture struct {
	Kind  string
	Count int
	Raw   string
}

type RenewalCapture struct {
	Kind      string
	TermYears int
	Raw       string
}

// SlotCaptures carries everything the rules found in one coverage span. A
// nil field means the rules looked and found nothing; the caller decides
// what confidence an absent value gets.
type SlotCaptures struct {
	EventType   *TextCapture
	Scope       *TextCapture
	Amount      *AmountCapture
	WaitingDays *IntCapture
	PayoutLimit *LimitCapture
	Renewal     *RenewalCapture
}
