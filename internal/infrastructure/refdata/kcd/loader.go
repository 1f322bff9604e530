// Package kcd loads the official disease classification dictionary. The
// dictionary is report-only reference data: it ships as a CSV snapshot and,
// when configured, refreshes from the official distribution endpoint.
package kcd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/infrastructure/resilience"
)

type Loader struct {
	csvPath    string
	fetchURL   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	CSVPath            string
	FetchURL           string
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewLoader(opts Options) *Loader {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		csvPath:    opts.CSVPath,
		fetchURL:   opts.FetchURL,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.ResilienceExecutor,
	}
}

// Fetch returns the disease code master, preferring the remote distribution
// when a fetch URL is configured and falling back to the local snapshot.
func (l *Loader) Fetch(ctx context.Context) ([]domain.DiseaseCode, error) {
	if l.fetchURL != "" {
		codes, err := l.fetchRemote(ctx)
		if err == nil {
			return codes, nil
		}
		if l.csvPath == "" {
			return nil, err
		}
	}
	if l.csvPath == "" {
		return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "load kcd dictionary",
			errors.New("no csv path and no fetch url configured"))
	}
	return l.loadFile()
}

func (l *Loader) loadFile() ([]domain.DiseaseCode, error) {
	f, err := os.Open(l.csvPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "open kcd csv", err)
	}
	defer f.Close()
	return parseCSV(f, "kcd:"+l.csvPath)
}

func (l *Loader) fetchRemote(ctx context.Context) ([]domain.DiseaseCode, error) {
	var codes []domain.DiseaseCode
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, l.fetchURL, nil)
		if err != nil {
			return fmt.Errorf("create kcd request: %w", err)
		}
		req.Header.Set("Accept", "text/csv")

		resp, err := l.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("kcd fetch request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				return fmt.Errorf("kcd fetch status: %s", resp.Status)
			}
			return fmt.Errorf("kcd fetch status: %s: %s", resp.Status, msg)
		}

		parsed, err := parseCSV(resp.Body, "kcd:"+l.fetchURL)
		if err != nil {
			return err
		}
		codes = parsed
		return nil
	}

	var err error
	if l.executor != nil {
		err = l.executor.Execute(ctx, "kcd.fetch", call, classifyFetchError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// parseCSV reads (code, name[, source]) rows. Header detection is by the
// first cell: official distributions ship one. A row with an unparseable
// code corrupts the whole load; the master list is all-or-nothing.
func parseCSV(r io.Reader, source string) ([]domain.DiseaseCode, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	out := make([]domain.DiseaseCode, 0, 1024)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "parse kcd csv", err)
		}
		line++
		if len(record) < 2 {
			return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "parse kcd csv",
				fmt.Errorf("line %d has %d fields", line, len(record)))
		}

		code := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		if line == 1 && strings.EqualFold(code, "code") {
			continue
		}
		if code == "" || name == "" {
			return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "parse kcd csv",
				fmt.Errorf("line %d missing code or name", line))
		}

		entry := domain.DiseaseCode{
			Code:   domain.NormalizeDiseaseCode(code),
			Name:   name,
			Source: source,
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			entry.Source = strings.TrimSpace(record[2])
		}
		out = append(out, entry)
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrReferenceDataCorrupt, "parse kcd csv", errors.New("no data rows"))
	}
	return out, nil
}

func classifyFetchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrReferenceDataCorrupt) {
		// A malformed payload will not improve on retry.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
