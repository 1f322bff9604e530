package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrRecordNotFound   = errors.New("coverage record not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// Batch-fatal conditions. A pipeline run that hits one of these aborts
	// before any mapping or slot write happens.
	ErrReferenceDataCorrupt    = errors.New("reference data corrupt")
	ErrMappingTableUnavailable = errors.New("mapping table unavailable")

	// Per-record conditions. These are recorded on the affected record's
	// result; processing continues for the rest of the batch.
	ErrOutOfUniverse    = errors.New("coverage out of proposal universe")
	ErrMappingUnmapped  = errors.New("coverage name unmapped")
	ErrMappingAmbiguous = errors.New("coverage name ambiguous")
	ErrEvidenceMissing  = errors.New("evidence missing")
	ErrMalformedAmount  = errors.New("malformed amount")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsFatal reports whether an error must abort the whole batch rather than
// being recorded against a single record.
func IsFatal(err error) bool {
	return errors.Is(err, ErrReferenceDataCorrupt) || errors.Is(err, ErrMappingTableUnavailable)
}
