// Package excel loads the insurer-coverage-name to canonical-code workbook.
// The workbook is maintained outside this service; the loader treats it as a
// read-only lookup source and turns it into an immutable table snapshot.
package excel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/covlens/covlens/internal/core/domain"
)

const (
	mappingSheet   = "coverage_map"
	canonicalSheet = "canonical"
)

type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Snapshot reads the coverage_map sheet into a mapping table. Structural
// problems fail the whole load: the mapper must never run against a table it
// only partially understood.
func (l *Loader) Snapshot(_ context.Context) (*domain.MappingTable, error) {
	f, err := l.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(mappingSheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMappingTableUnavailable, "read mapping sheet", err)
	}
	if len(rows) < 2 {
		return nil, domain.WrapError(domain.ErrMappingTableUnavailable, "read mapping sheet",
			fmt.Errorf("sheet %s has no data rows", mappingSheet))
	}

	cols, err := mappingColumns(rows[0])
	if err != nil {
		return nil, err
	}

	source := filepath.Base(l.path)
	entries := make([]domain.MappingEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		insurer := cell(row, cols.insurer)
		rawName := cell(row, cols.rawName)
		canonical := cell(row, cols.canonical)
		if insurer == "" && rawName == "" && canonical == "" {
			continue // trailing blank row
		}
		if insurer == "" || canonical == "" {
			return nil, domain.WrapError(domain.ErrMappingTableUnavailable, "read mapping sheet",
				fmt.Errorf("row %d missing insurer or canonical code", i+2))
		}
		entry := domain.MappingEntry{
			InsurerCode:    strings.ToLower(insurer),
			RawName:        rawName,
			NormalizedName: cell(row, cols.normalized),
			CanonicalCode:  canonical,
			SourceTable:    source,
		}
		if tag := cell(row, cols.sourceTable); tag != "" {
			entry.SourceTable = tag
		}
		entries = append(entries, entry)
	}

	return domain.NewMappingTable(entries, source)
}

// CanonicalCoverages reads the canonical sheet (code, display name, domain)
// that seeds the coverage dictionary.
func (l *Loader) CanonicalCoverages(_ context.Context) ([]domain.CanonicalCoverage, error) {
	f, err := l.open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(canonicalSheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "read canonical sheet", err)
	}
	if len(rows) < 2 {
		return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "read canonical sheet",
			fmt.Errorf("sheet %s has no data rows", canonicalSheet))
	}

	out := make([]domain.CanonicalCoverage, 0, len(rows)-1)
	for i, row := range rows[1:] {
		code := cell(row, 0)
		name := cell(row, 1)
		coverageDomain := cell(row, 2)
		if code == "" && name == "" && coverageDomain == "" {
			continue
		}
		if code == "" || name == "" || coverageDomain == "" {
			return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "read canonical sheet",
				fmt.Errorf("row %d is incomplete", i+2))
		}
		out = append(out, domain.CanonicalCoverage{
			Code:        code,
			DisplayName: name,
			Domain:      strings.ToLower(coverageDomain),
		})
	}
	return out, nil
}

func (l *Loader) open() (*excelize.File, error) {
	if l.path == "" {
		return nil, domain.WrapError(domain.ErrMappingTableUnavailable, "open workbook", errors.New("workbook path is empty"))
	}
	f, err := excelize.OpenFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrMappingTableUnavailable, "open workbook", err)
		}
		return nil, domain.WrapError(domain.ErrMappingTableUnavailable, "open workbook", err)
	}
	return f, nil
}

type mappingColumnIndex struct {
	insurer     int
	rawName     int
	normalized  int
	canonical   int
	sourceTable int
}

func mappingColumns(header []string) (mappingColumnIndex, error) {
	idx := mappingColumnIndex{insurer: -1, rawName: -1, normalized: -1, canonical: -1, sourceTable: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "insurer_code", "insurer":
			idx.insurer = i
		case "raw_name", "coverage_name":
			idx.rawName = i
		case "normalized_name":
			idx.normalized = i
		case "canonical_code":
			idx.canonical = i
		case "source_table":
			idx.sourceTable = i
		}
	}
	if idx.insurer < 0 || idx.rawName < 0 || idx.canonical < 0 {
		return idx, domain.WrapError(domain.ErrMappingTableUnavailable, "read mapping sheet",
			fmt.Errorf("header misses a required column: %v", header))
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
