// Package pdfproposal extracts page-tagged text from stored proposal
// documents. PDF pages keep their native page numbers so every downstream
// evidence span can cite the exact page it was read from; plain text
// uploads are treated as a single page.
package pdfproposal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) ExtractPages(ctx context.Context, doc *domain.ProposalDocument) ([]domain.PageText, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open proposal document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read proposal document: %w", err)
	}

	if isPDF(raw) {
		return extractPDFPages(raw, doc.Filename)
	}

	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract proposal text",
			fmt.Errorf("unsupported binary format: %s", doc.Filename))
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return []domain.PageText{{Number: 1, Text: text}}, nil
}

func isPDF(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte("%PDF-"))
}

func extractPDFPages(raw []byte, filename string) ([]domain.PageText, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse pdf",
			fmt.Errorf("%s: %w", filename, err))
	}

	pages := make([]domain.PageText, 0, r.NumPage())
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A page that cannot render is skipped; its rows simply never
			// enter the universe, they are not guessed from elsewhere.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.PageText{Number: n, Text: text})
	}
	return pages, nil
}
