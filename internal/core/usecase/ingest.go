package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
)

type IngestProposalUseCase struct {
	repo    ports.ProposalRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestProposalUseCase(
	repo ports.ProposalRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestProposalUseCase {
	return &IngestProposalUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestProposalUseCase) Upload(
	ctx context.Context,
	insurerCode, filename, mimeType string,
	body io.Reader,
) (*domain.ProposalDocument, error) {
	if strings.TrimSpace(insurerCode) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload proposal", fmt.Errorf("insurer code is empty"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.ProposalDocument{
		ID:          id,
		InsurerCode: strings.ToLower(strings.TrimSpace(insurerCode)),
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create proposal metadata: %w", err)
	}

	if err := uc.queue.PublishProposalIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// GetByID reports the document's current processing state.
func (uc *IngestProposalUseCase) GetByID(ctx context.Context, id string) (*domain.ProposalDocument, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get proposal", fmt.Errorf("document id is empty"))
	}
	return uc.repo.GetDocument(ctx, id)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "proposal.bin"
	}
	return base
}
