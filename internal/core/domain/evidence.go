package domain

import (
	"errors"
	"fmt"
)

// DocumentKind identifies the provenance class of an evidence source.
type DocumentKind string

const (
	DocumentKindProposal DocumentKind = "proposal"
	DocumentKindPolicy   DocumentKind = "policy"
)

// Evidence anchors a stored fact to the exact place it was read from.
// Records, disease groups, scopes and resolved slots all carry one; a fact
// without evidence is rejected at creation time, not patched later.
type Evidence struct {
	DocumentID   string       `json:"document_id"`
	DocumentKind DocumentKind `json:"document_kind"`
	Page         int          `json:"page"`
	Span         string       `json:"span"`
}

func (e Evidence) Validate() error {
	switch {
	case e.DocumentID == "":
		return WrapError(ErrEvidenceMissing, "validate evidence", errors.New("document id is empty"))
	case e.Page <= 0:
		return WrapError(ErrEvidenceMissing, "validate evidence", fmt.Errorf("page %d is not positive", e.Page))
	case e.Span == "":
		return WrapError(ErrEvidenceMissing, "validate evidence", errors.New("span is empty"))
	}
	return nil
}

// ValidateProvenance additionally requires the evidence to come from a real
// proposal or policy document. Synthetic or inferred sources are not
// acceptable provenance for disease scope data.
func (e Evidence) ValidateProvenance() error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.DocumentKind {
	case DocumentKindProposal, DocumentKindPolicy:
		return nil
	default:
		return WrapError(ErrEvidenceMissing, "validate evidence", fmt.Errorf("document kind %q is not an accepted source", e.DocumentKind))
	}
}

// SourceConfidence states how a slot value was established.
type SourceConfidence string

const (
	// ConfidenceProposalConfirmed marks a value read directly from the
	// proposal document.
	ConfidenceProposalConfirmed SourceConfidence = "proposal_confirmed"
	// ConfidencePolicyRequired marks a value the proposal does not state;
	// the policy wording must be consulted before relying on it.
	ConfidencePolicyRequired SourceConfidence = "policy_required"
	// ConfidenceUnknown marks a value whose provenance could not be
	// established at all.
	ConfidenceUnknown SourceConfidence = "unknown"
)
