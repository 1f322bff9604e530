package kcd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/covlens/covlens/internal/core/domain"
)

func TestFetchParsesLocalCSVSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcd.csv")
	csv := "code,name,source\nC73,갑상선의 악성 신생물,KCD-8\nc44.0,입술의 기타 악성 신생물,KCD-8\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	codes, err := NewLoader(Options{CSVPath: path}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(codes))
	}
	if codes[0].Code != "C73" || codes[0].Source != "KCD-8" {
		t.Fatalf("unexpected first code: %+v", codes[0])
	}
	if codes[1].Code != "C44.0" {
		t.Fatalf("expected normalized upper-case code, got %s", codes[1].Code)
	}
}

func TestFetchRejectsRowWithMissingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcd.csv")
	if err := os.WriteFile(path, []byte("C73,\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	_, err := NewLoader(Options{CSVPath: path}).Fetch(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrReferenceDataCorrupt) {
		t.Fatalf("expected ErrReferenceDataCorrupt, got %v", err)
	}
}

func TestFetchPrefersRemoteDistribution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("code,name\nC73,Malignant neoplasm of thyroid gland\n"))
	}))
	defer server.Close()

	codes, err := NewLoader(Options{FetchURL: server.URL}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(codes) != 1 || codes[0].Code != "C73" {
		t.Fatalf("unexpected codes: %+v", codes)
	}
	if codes[0].Source != "kcd:"+server.URL {
		t.Fatalf("expected source attribution, got %s", codes[0].Source)
	}
}

func TestFetchFallsBackToSnapshotWhenRemoteFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "kcd.csv")
	if err := os.WriteFile(path, []byte("C73,갑상선의 악성 신생물\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	codes, err := NewLoader(Options{FetchURL: server.URL, CSVPath: path}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(codes) != 1 || codes[0].Code != "C73" {
		t.Fatalf("unexpected codes: %+v", codes)
	}
}

func TestFetchFailsWithoutAnySource(t *testing.T) {
	_, err := NewLoader(Options{}).Fetch(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrReferenceDataCorrupt) {
		t.Fatalf("expected ErrReferenceDataCorrupt, got %v", err)
	}
}
