package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/covlens/covlens/internal/core/domain"
)

type ingestRepoFake struct {
	created *domain.ProposalDocument
	err     error
}

func (f *ingestRepoFake) CreateDocument(_ context.Context, doc *domain.ProposalDocument) error {
	if f.err != nil {
		return f.err
	}
	copyDoc := *doc
	f.created = &copyDoc
	return nil
}

func (f *ingestRepoFake) GetDocument(_ context.Context, id string) (*domain.ProposalDocument, error) {
	if f.created != nil && f.created.ID == id {
		copyDoc := *f.created
		return &copyDoc, nil
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id))
}

func (f *ingestRepoFake) UpdateDocumentStatus(context.Context, string, domain.DocumentStatus, string) error {
	return errors.New("not implemented")
}
func (f *ingestRepoFake) SetDocumentRowCount(context.Context, string, int) error {
	return errors.New("not implemented")
}
func (f *ingestRepoFake) InsertCoverageRecords(context.Context, []domain.ProposalCoverageRecord) (int, error) {
	return 0, errors.New("not implemented")
}
func (f *ingestRepoFake) ListCoverageRecords(context.Context, string) ([]domain.ProposalCoverageRecord, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) FindRecordByInsurerAndName(context.Context, string, string) (*domain.ProposalCoverageRecord, error) {
	return nil, errors.New("not implemented")
}

type ingestStorageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *ingestStorageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type ingestQueueFake struct {
	documentID string
	err        error
}

func (f *ingestQueueFake) PublishProposalIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *ingestQueueFake) SubscribeProposalIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func TestIngestUploadSuccess(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{}
	uc := NewIngestProposalUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "Samsung_Fire", "가입제안서 1.pdf", "application/pdf", bytes.NewBufferString("%PDF"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if doc.InsurerCode != "samsung_fire" {
		t.Fatalf("expected lowercased insurer code, got %s", doc.InsurerCode)
	}
	if repo.created == nil {
		t.Fatalf("expected repo.CreateDocument call")
	}
	if queue.documentID != doc.ID {
		t.Fatalf("expected queued doc id %s, got %s", doc.ID, queue.documentID)
	}
	if storage.savedBody != "%PDF" {
		t.Fatalf("expected saved body, got %s", storage.savedBody)
	}
	if !strings.HasPrefix(storage.savedKey, doc.ID+"_") {
		t.Fatalf("expected id-prefixed storage key, got %s", storage.savedKey)
	}
}

func TestIngestUploadRejectsEmptyInsurerCode(t *testing.T) {
	uc := NewIngestProposalUseCase(&ingestRepoFake{}, &ingestStorageFake{}, &ingestQueueFake{})

	_, err := uc.Upload(context.Background(), "  ", "p.pdf", "application/pdf", bytes.NewBufferString("x"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	repo := &ingestRepoFake{}
	storage := &ingestStorageFake{}
	queue := &ingestQueueFake{err: errors.New("queue down")}
	uc := NewIngestProposalUseCase(repo, storage, queue)

	_, err := uc.Upload(context.Background(), "hyundai", "proposal.pdf", "application/pdf", bytes.NewBufferString("x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestIngestGetByID(t *testing.T) {
	repo := &ingestRepoFake{}
	uc := NewIngestProposalUseCase(repo, &ingestStorageFake{}, &ingestQueueFake{})

	doc, err := uc.Upload(context.Background(), "hyundai", "proposal.pdf", "application/pdf", bytes.NewBufferString("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	got, err := uc.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ID != doc.ID {
		t.Fatalf("expected doc %s, got %s", doc.ID, got.ID)
	}

	if _, err := uc.GetByID(context.Background(), ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty id, got %v", err)
	}
}
