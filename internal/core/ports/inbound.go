package ports

import (
	"context"
	"io"

	"github.com/covlens/covlens/internal/core/domain"
)

// ProposalIngestor is the inbound contract for proposal upload orchestration.
type ProposalIngestor interface {
	Upload(ctx context.Context, insurerCode, filename, mimeType string, body io.Reader) (*domain.ProposalDocument, error)
}

// ProposalReader is the inbound read model for proposal document state.
type ProposalReader interface {
	GetByID(ctx context.Context, id string) (*domain.ProposalDocument, error)
}

// ProposalProcessor is the inbound contract for asynchronous pipeline runs.
type ProposalProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// CoverageComparator decides comparison verdicts across insurers.
type CoverageComparator interface {
	Compare(ctx context.Context, selections []domain.CoverageSelection) (*domain.ComparisonResult, error)
}

// UniverseChecker validates selections against the locked proposal universe.
type UniverseChecker interface {
	ValidateName(ctx context.Context, insurerCode, coverageName string) (domain.UniverseCheck, error)
	ValidateCode(ctx context.Context, insurerCode, canonicalCode string) (domain.UniverseCheck, error)
}
