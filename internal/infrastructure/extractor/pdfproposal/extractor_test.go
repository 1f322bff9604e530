package pdfproposal

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/covlens/covlens/internal/core/domain"
)

type storageFake struct {
	data map[string][]byte
}

func (s storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data[key])), nil
}

func TestExtractPagesPlainTextIsSinglePage(t *testing.T) {
	storage := storageFake{data: map[string][]byte{
		"doc-1_proposal.txt": []byte("담보명 가입금액\n암진단비 3,000만원\n"),
	}}
	extractor := NewExtractor(storage)

	pages, err := extractor.ExtractPages(context.Background(), &domain.ProposalDocument{
		ID: "doc-1", StoragePath: "doc-1_proposal.txt", Filename: "proposal.txt",
	})
	if err != nil {
		t.Fatalf("ExtractPages() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 {
		t.Fatalf("expected page number 1, got %d", pages[0].Number)
	}
}

func TestExtractPagesRejectsNonUTF8Binary(t *testing.T) {
	storage := storageFake{data: map[string][]byte{
		"doc-1_blob.bin": {0xff, 0xfe, 0x00, 0x01},
	}}
	extractor := NewExtractor(storage)

	_, err := extractor.ExtractPages(context.Background(), &domain.ProposalDocument{
		ID: "doc-1", StoragePath: "doc-1_blob.bin", Filename: "blob.bin",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractPagesRejectsTruncatedPDF(t *testing.T) {
	storage := storageFake{data: map[string][]byte{
		"doc-1_broken.pdf": []byte("%PDF-1.7 not really a pdf"),
	}}
	extractor := NewExtractor(storage)

	_, err := extractor.ExtractPages(context.Background(), &domain.ProposalDocument{
		ID: "doc-1", StoragePath: "doc-1_broken.pdf", Filename: "broken.pdf",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractPagesEmptyTextReturnsNoPages(t *testing.T) {
	storage := storageFake{data: map[string][]byte{
		"doc-1_empty.txt": []byte("   \n  "),
	}}
	extractor := NewExtractor(storage)

	pages, err := extractor.ExtractPages(context.Background(), &domain.ProposalDocument{
		ID: "doc-1", StoragePath: "doc-1_empty.txt", Filename: "empty.txt",
	})
	if err != nil {
		t.Fatalf("ExtractPages() error = %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected no pages, got %d", len(pages))
	}
}
