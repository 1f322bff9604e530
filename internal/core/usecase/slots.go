package usecase

import (
	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/parser"
)

const defaultAmountCeilingKRW = 10_000_000_000

// SlotExtractor turns one coverage record into its typed slot set using the
// insurer's rule parser. Fields the rules cannot find stay unresolved with a
// stated confidence; nothing is inferred or backfilled.
type SlotExtractor struct {
	registry      *parser.Registry
	amountCeiling int64
}

func NewSlotExtractor(registry *parser.Registry, amountCeilingKRW int64) *SlotExtractor {
	if amountCeilingKRW <= 0 {
		amountCeilingKRW = defaultAmountCeilingKRW
	}
	return &SlotExtractor{registry: registry, amountCeiling: amountCeilingKRW}
}

// Extract is deterministic over the record content: the same record always
// yields the same slot set. Sanity findings come back as warnings and are
// never fatal to the batch.
func (e *SlotExtractor) Extract(record domain.ProposalCoverageRecord) (domain.CoverageSlots, []domain.ExtractionWarning) {
	p := e.registry.Resolve(record.InsurerCode)
	caps := p.ExtractSlots(record.SourceSpan)
	evidence := record.Evidence()

	var warnings []domain.ExtractionWarning
	warn := func(field, reason string) {
		warnings = append(warnings, domain.ExtractionWarning{RecordID: record.ID, Field: field, Reason: reason})
	}

	slots := domain.CoverageSlots{RecordID: record.ID}

	slots.Amount = e.amountSlot(record, caps.Amount, evidence, warn)
	slots.EventType = eventSlot(caps.EventType, evidence)
	slots.DiseaseScope = scopeTextSlot(caps.Scope, evidence)
	slots.WaitingDays = waitingSlot(caps.WaitingDays, evidence)
	slots.PayoutLimit = limitSlot(caps.PayoutLimit, evidence, warn)
	slots.Renewal = renewalSlot(caps.Renewal, evidence, warn)

	return slots, warnings
}

func (e *SlotExtractor) amountSlot(record domain.ProposalCoverageRecord, capture *parser.AmountCapture, evidence domain.Evidence, warn func(field, reason string)) domain.AmountSlot {
	value, found := int64(0), false
	switch {
	case capture != nil:
		value, found = capture.Value, true
	case record.AmountValue != nil:
		value, found = *record.AmountValue, true
	}
	if !found {
		return domain.AmountSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidenceUnknown}
	}
	if value < 0 {
		warn("amount", "negative amount rejected")
		return domain.AmountSlot{
			Status:     domain.SlotUnresolved,
			Confidence: domain.ConfidenceUnknown,
			Note:       "negative amount rejected",
		}
	}
	if value > e.amountCeiling {
		warn("amount", "amount exceeds sanity ceiling")
		return domain.AmountSlot{
			Status:     domain.SlotNeedsReview,
			Value:      value,
			Currency:   "KRW",
			Confidence: domain.ConfidenceProposalConfirmed,
			Evidence:   &evidence,
			Note:       "amount exceeds sanity ceiling",
		}
	}
	return domain.AmountSlot{
		Status:     domain.SlotResolved,
		Value:      value,
		Currency:   "KRW",
		Confidence: domain.ConfidenceProposalConfirmed,
		Evidence:   &evidence,
	}
}

func eventSlot(capture *parser.TextCapture, evidence domain.Evidence) domain.TextSlot {
	if capture == nil {
		return domain.TextSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidenceUnknown}
	}
	return domain.TextSlot{
		Status:     domain.SlotResolved,
		Value:      capture.Value,
		Confidence: domain.ConfidenceProposalConfirmed,
		Evidence:   &evidence,
	}
}

// The raw scope mention is captured here; resolution to a registered scope
// entry happens after mapping, once the canonical code is known.
func scopeTextSlot(capture *parser.TextCapture, evidence domain.Evidence) domain.ScopeSlot {
	if capture == nil {
		return domain.ScopeSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidencePolicyRequired}
	}
	return domain.ScopeSlot{
		Status:     domain.SlotUnresolved,
		RawText:    capture.Value,
		Confidence: domain.ConfidencePolicyRequired,
		Evidence:   &evidence,
	}
}

func waitingSlot(capture *parser.IntCapture, evidence domain.Evidence) domain.IntSlot {
	if capture == nil {
		return domain.IntSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidencePolicyRequired}
	}
	return domain.IntSlot{
		Status:     domain.SlotResolved,
		Value:      capture.Value,
		Confidence: domain.ConfidenceProposalConfirmed,
		Evidence:   &evidence,
	}
}

func limitSlot(capture *parser.LimitCapture, evidence domain.Evidence, warn func(field, reason string)) domain.LimitSlot {
	if capture == nil {
		return domain.LimitSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidencePolicyRequired}
	}
	kind := domain.LimitKind(capture.Kind)
	switch kind {
	case domain.LimitOnceTotal, domain.LimitPerYear, domain.LimitTotalCount:
	default:
		warn("payout_limit", "unknown limit kind "+capture.Kind)
		return domain.LimitSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidencePolicyRequired}
	}
	return domain.LimitSlot{
		Status:     domain.SlotResolved,
		Kind:       kind,
		Count:      capture.Count,
		Confidence: domain.ConfidenceProposalConfirmed,
		Evidence:   &evidence,
	}
}

func renewalSlot(capture *parser.RenewalCapture, evidence domain.Evidence, warn func(field, reason string)) domain.RenewalSlot {
	if capture == nil {
		return domain.RenewalSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidencePolicyRequired}
	}
	kind := domain.RenewalKind(capture.Kind)
	switch kind {
	case domain.RenewalNone, domain.RenewalTerm, domain.RenewalOpen:
	default:
		warn("renewal", "unknown renewal kind "+capture.Kind)
		return domain.RenewalSlot{Status: domain.SlotUnresolved, Confidence: domain.ConfidencePolicyRequired}
	}
	return domain.RenewalSlot{
		Status:     domain.SlotResolved,
		Kind:       kind,
		TermYears:  capture.TermYears,
		Confidence: domain.ConfidenceProposalConfirmed,
		Evidence:   &evidence,
	}
}
