package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/covlens/covlens/internal/config"
	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
	"github.com/covlens/covlens/internal/core/usecase"
	"github.com/covlens/covlens/internal/observability/metrics"
)

const backpressureWait = 5 * time.Second

type Router struct {
	cfg        config.Config
	ingestor   ports.ProposalIngestor
	documents  ports.ProposalReader
	comparator ports.CoverageComparator
	universe   ports.UniverseChecker
	reference  *usecase.ReferenceAdminUseCase
	metrics    *metrics.HTTPMetrics
}

func NewRouter(
	cfg config.Config,
	ingestor ports.ProposalIngestor,
	documents ports.ProposalReader,
	comparator ports.CoverageComparator,
	universe ports.UniverseChecker,
	reference *usecase.ReferenceAdminUseCase,
	m *metrics.HTTPMetrics,
) *Router {
	return &Router{
		cfg:        cfg,
		ingestor:   ingestor,
		documents:  documents,
		comparator: comparator,
		universe:   universe,
		reference:  reference,
		metrics:    m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/proposals", rt.uploadProposal)
	mux.HandleFunc("/v1/proposals/", rt.getProposalByID)
	mux.HandleFunc("/v1/comparisons", rt.compareCoverages)
	mux.HandleFunc("/v1/universe/check", rt.checkUniverse)
	mux.HandleFunc("/v1/coverages", rt.listCoverages)
	mux.HandleFunc("/v1/coverages/", rt.coverageScopes)
	if rt.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(rt.metrics.Registry, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = metricsMiddleware(handler, rt.metrics)
	if rt.cfg.OpenAPIValidation {
		contract, err := newOpenAPIRouter()
		if err != nil {
			slog.Error("openapi contract unavailable, request validation disabled", "error", err)
		} else {
			handler = openAPIValidationMiddleware(handler, contract, rt.metrics)
		}
	}
	handler = bodyLimitMiddleware(handler, rt.cfg.APIRequestBodyKB)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.metrics)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadProposal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	insurerCode := strings.TrimSpace(r.FormValue("insurer_code"))
	if insurerCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'insurer_code' is required"})
		return
	}

	doc, err := rt.ingestor.Upload(
		r.Context(),
		insurerCode,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.ProposalUploads.WithLabelValues(insurerCode).Inc()
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getProposalByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/proposals/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "proposal document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) compareCoverages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Selections []domain.CoverageSelection `json:"selections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Selections) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least two selections are required"})
		return
	}
	if max := rt.cfg.ComparisonMaxParty; max > 0 && len(req.Selections) > max {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "too many selections in one comparison"})
		return
	}

	result, err := rt.comparator.Compare(r.Context(), req.Selections)
	if err != nil {
		rt.writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.ComparisonsTotal.WithLabelValues(string(result.State)).Inc()
		if result.State != domain.StateComparable {
			rt.metrics.ComparisonSkipped.WithLabelValues(string(result.ReasonCode)).Inc()
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) checkUniverse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		InsurerCode   string `json:"insurer_code"`
		CoverageName  string `json:"coverage_name"`
		CanonicalCode string `json:"canonical_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	var (
		check domain.UniverseCheck
		err   error
	)
	switch {
	case strings.TrimSpace(req.CoverageName) != "":
		check, err = rt.universe.ValidateName(r.Context(), req.InsurerCode, req.CoverageName)
	case strings.TrimSpace(req.CanonicalCode) != "":
		check, err = rt.universe.ValidateCode(r.Context(), req.InsurerCode, req.CanonicalCode)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coverage_name or canonical_code is required"})
		return
	}
	if err != nil {
		rt.writeError(w, err)
		return
	}

	if rt.metrics != nil {
		outcome := "out_of_universe"
		if check.InUniverse {
			outcome = "in_universe"
		}
		rt.metrics.UniverseChecks.WithLabelValues(outcome).Inc()
	}
	writeJSON(w, http.StatusOK, struct {
		InUniverse bool                           `json:"in_universe"`
		Record     *domain.ProposalCoverageRecord `json:"record,omitempty"`
		Mapping    *domain.CanonicalMapping       `json:"mapping,omitempty"`
	}{
		InUniverse: check.InUniverse,
		Record:     check.Record,
		Mapping:    check.Mapping,
	})
}

func (rt *Router) listCoverages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	coverages, err := rt.reference.ListCanonicalCoverages(r.Context())
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coverages": coverages})
}

func (rt *Router) coverageScopes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/coverages/")
	code, ok := strings.CutSuffix(rest, "/scopes")
	if !ok || code == "" || strings.Contains(code, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	views, err := rt.reference.CoverageScopes(r.Context(), code)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"canonical_code": code, "scopes": views})
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func normalizeRoute(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/proposals/"):
		return "/v1/proposals/{id}"
	case strings.HasPrefix(path, "/v1/coverages/") && strings.HasSuffix(path, "/scopes"):
		return "/v1/coverages/{code}/scopes"
	default:
		return path
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
