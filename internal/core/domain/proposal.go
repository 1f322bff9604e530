package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// ProposalDocument is one uploaded insurer proposal file. Its coverage rows
// are extracted into ProposalCoverageRecord entries by the worker pipeline.
type ProposalDocument struct {
	ID          string         `json:"id"`
	InsurerCode string         `json:"insurer_code"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	RowCount    int            `json:"row_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PageText is the plain text of a single document page, as produced by the
// text extractor. Page numbers are 1-based.
type PageText struct {
	Number int
	Text   string
}

// ProposalCoverageRecord is one coverage row lifted out of a proposal
// document. Records are immutable once created; re-running extraction over
// the same document produces the same content hashes and therefore no new
// rows.
type ProposalCoverageRecord struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	InsurerCode    string    `json:"insurer_code"`
	RawName        string    `json:"raw_name"`
	NormalizedName string    `json:"normalized_name"`
	Currency       string    `json:"currency"`
	AmountValue    *int64    `json:"amount_value,omitempty"`
	PayoutUnit     string    `json:"payout_unit,omitempty"`
	SourcePage     int       `json:"source_page"`
	SourceSpan     string    `json:"source_span"`
	ContentHash    string    `json:"content_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

// Evidence returns the record's own provenance triple.
func (r ProposalCoverageRecord) Evidence() Evidence {
	return Evidence{
		DocumentID:   r.DocumentID,
		DocumentKind: DocumentKindProposal,
		Page:         r.SourcePage,
		Span:         r.SourceSpan,
	}
}

func (r ProposalCoverageRecord) Validate() error {
	switch {
	case r.DocumentID == "":
		return WrapError(ErrInvalidInput, "validate record", fmt.Errorf("document id is empty"))
	case r.InsurerCode == "":
		return WrapError(ErrInvalidInput, "validate record", fmt.Errorf("insurer code is empty"))
	case r.RawName == "":
		return WrapError(ErrInvalidInput, "validate record", fmt.Errorf("raw name is empty"))
	case r.NormalizedName == "":
		return WrapError(ErrInvalidInput, "validate record", fmt.Errorf("normalized name is empty"))
	}
	return r.Evidence().Validate()
}

// NormalizeCoverageName produces the canonical lookup form of a coverage
// name: whitespace removed, full-width brackets folded to ASCII. The same
// normalization is applied to mapping table rows so lookups compare equals.
func NormalizeCoverageName(raw string) string {
	s := strings.Join(strings.Fields(raw), "")
	replacer := strings.NewReplacer(
		"（", "(",
		"）", ")",
		"［", "[",
		"］", "]",
		"，", ",",
		"・", "·",
	)
	return replacer.Replace(s)
}

// ContentHash derives the dedup key for a coverage record from every field
// that identifies its content. Surrogate ids and timestamps are excluded so
// repeated extraction passes hash identically.
func ContentHash(documentID, insurerCode, normalizedName, currency string, amount *int64, payoutUnit string, page int, span string) string {
	h := sha256.New()
	amountPart := "nil"
	if amount != nil {
		amountPart = fmt.Sprintf("%d", *amount)
	}
	fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%d\x1f%s",
		documentID, insurerCode, normalizedName, currency, amountPart, payoutUnit, page, span)
	return hex.EncodeToString(h.Sum(nil))
}
