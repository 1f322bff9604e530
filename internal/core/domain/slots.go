package domain

import (
	"errors"
	"fmt"
)

type SlotStatus string

const (
	SlotResolved   SlotStatus = "resolved"
	SlotUnresolved SlotStatus = "unresolved"
	// SlotNeedsReview marks a value that was extracted but tripped a sanity
	// check. It is never treated as resolved downstream.
	SlotNeedsReview SlotStatus = "needs_review"
)

type TextSlot struct {
	Status     SlotStatus       `json:"status"`
	Value      string           `json:"value,omitempty"`
	Confidence SourceConfidence `json:"confidence"`
	Evidence   *Evidence        `json:"evidence,omitempty"`
}

type AmountSlot struct {
	Status     SlotStatus       `json:"status"`
	Value      int64            `json:"value,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	Confidence SourceConfidence `json:"confidence"`
	Evidence   *Evidence        `json:"evidence,omitempty"`
	Note       string           `json:"note,omitempty"`
}

type IntSlot struct {
	Status     SlotStatus       `json:"status"`
	Value      int              `json:"value,omitempty"`
	Confidence SourceConfidence `json:"confidence"`
	Evidence   *Evidence        `json:"evidence,omitempty"`
}

type LimitKind string

const (
	LimitOnceTotal  LimitKind = "once_total"
	LimitPerYear    LimitKind = "per_year"
	LimitTotalCount LimitKind = "total_count"
)

type LimitSlot struct {
	Status     SlotStatus       `json:"status"`
	Kind       LimitKind        `json:"kind,omitempty"`
	Count      int              `json:"count,omitempty"`
	Confidence SourceConfidence `json:"confidence"`
	Evidence   *Evidence        `json:"evidence,omitempty"`
}

type RenewalKind string

const (
	RenewalNone RenewalKind = "non_renewable"
	RenewalTerm RenewalKind = "term_renewable"
	RenewalOpen RenewalKind = "renewable"
)

type RenewalSlot struct {
	Status     SlotStatus       `json:"status"`
	Kind       RenewalKind      `json:"kind,omitempty"`
	TermYears  int              `json:"term_years,omitempty"`
	Confidence SourceConfidence `json:"confidence"`
	Evidence   *Evidence        `json:"evidence,omitempty"`
}

// ScopeSlot carries the disease scope mention of a coverage row: the raw
// text as written in the proposal plus, once the record is mapped, the id of
// the resolved scope entry in the reference store.
type ScopeSlot struct {
	Status     SlotStatus       `json:"status"`
	RawText    string           `json:"raw_text,omitempty"`
	ScopeRef   string           `json:"scope_ref,omitempty"`
	Confidence SourceConfidence `json:"confidence"`
	Evidence   *Evidence        `json:"evidence,omitempty"`
}

// CoverageSlots is the structured field set extracted from one coverage
// record. Absent fields stay typed as unresolved with a stated confidence;
// nothing is guessed in.
type CoverageSlots struct {
	RecordID     string      `json:"record_id"`
	EventType    TextSlot    `json:"event_type"`
	DiseaseScope ScopeSlot   `json:"disease_scope"`
	Amount       AmountSlot  `json:"amount"`
	WaitingDays  IntSlot     `json:"waiting_days"`
	PayoutLimit  LimitSlot   `json:"payout_limit"`
	Renewal      RenewalSlot `json:"renewal"`
}

// Complete reports whether the comparison gate fields are resolved. Amount
// and event type decide comparability; the remaining slots surface as gap
// annotations only.
func (s CoverageSlots) Complete() bool {
	return s.Amount.Status == SlotResolved && s.EventType.Status == SlotResolved
}

// Gaps lists every slot that is not resolved, in stable order.
func (s CoverageSlots) Gaps() []string {
	var gaps []string
	if s.EventType.Status != SlotResolved {
		gaps = append(gaps, "event_type")
	}
	if s.DiseaseScope.Status != SlotResolved {
		gaps = append(gaps, "disease_scope")
	}
	if s.Amount.Status != SlotResolved {
		gaps = append(gaps, "amount")
	}
	if s.WaitingDays.Status != SlotResolved {
		gaps = append(gaps, "waiting_days")
	}
	if s.PayoutLimit.Status != SlotResolved {
		gaps = append(gaps, "payout_limit")
	}
	if s.Renewal.Status != SlotResolved {
		gaps = append(gaps, "renewal")
	}
	return gaps
}

// Validate enforces the evidence rule: every resolved slot must point at the
// text it was read from.
func (s CoverageSlots) Validate() error {
	if s.RecordID == "" {
		return WrapError(ErrInvalidInput, "validate slots", errors.New("record id is empty"))
	}
	checks := []struct {
		name     string
		status   SlotStatus
		evidence *Evidence
	}{
		{"event_type", s.EventType.Status, s.EventType.Evidence},
		{"disease_scope", s.DiseaseScope.Status, s.DiseaseScope.Evidence},
		{"amount", s.Amount.Status, s.Amount.Evidence},
		{"waiting_days", s.WaitingDays.Status, s.WaitingDays.Evidence},
		{"payout_limit", s.PayoutLimit.Status, s.PayoutLimit.Evidence},
		{"renewal", s.Renewal.Status, s.Renewal.Evidence},
	}
	for _, c := range checks {
		if c.status != SlotResolved {
			continue
		}
		if c.evidence == nil {
			return WrapError(ErrEvidenceMissing, "validate slots", fmt.Errorf("resolved slot %s has no evidence", c.name))
		}
		if err := c.evidence.Validate(); err != nil {
			return fmt.Errorf("slot %s: %w", c.name, err)
		}
	}
	return nil
}

// ExtractionWarning is a per-record, non-fatal extraction finding. It is
// logged and counted but never blocks the rest of the batch.
type ExtractionWarning struct {
	RecordID string
	Field    string
	Reason   string
}
