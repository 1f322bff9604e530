// Package mcpadapter exposes the comparison engine to model-driven clients
// over the Model Context Protocol.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
	"github.com/covlens/covlens/internal/core/usecase"
)

const serverName = "covlens"

// Server bundles the MCP tool surface: comparison, universe validation and
// reference dictionary lookups. Everything is read-only from the client's
// point of view.
type Server struct {
	mcp        *server.MCPServer
	version    string
	comparator ports.CoverageComparator
	universe   ports.UniverseChecker
	reference  *usecase.ReferenceAdminUseCase
	lineage    ports.ScopeLineageProjector
}

// NewServer builds the tool surface. lineage may be nil when the scope
// lineage graph is not configured; its tool is then not registered.
func NewServer(
	version string,
	comparator ports.CoverageComparator,
	universe ports.UniverseChecker,
	reference *usecase.ReferenceAdminUseCase,
	lineage ports.ScopeLineageProjector,
) *Server {
	s := &Server{
		mcp:        server.NewMCPServer(serverName, version, server.WithToolCapabilities(true)),
		version:    version,
		comparator: comparator,
		universe:   universe,
		reference:  reference,
		lineage:    lineage,
	}
	s.registerTools()
	return s
}

// Handler returns the stateless streamable HTTP transport. The caller mounts
// it on its own mux, typically at /mcp.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleHealth)

	s.mcp.AddTool(mcp.NewTool(
		"compare_coverages",
		mcp.WithDescription(
			"Compare one coverage across two or more insurers. Selections name each "+
				"insurer's coverage exactly as it appears in that insurer's proposal. "+
				"The verdict is one of out_of_universe, unmapped, non_comparable, "+
				"comparable_with_gaps or comparable, with per-insurer evidence.",
		),
		mcp.WithArray("selections",
			mcp.Required(),
			mcp.Description("Array of {insurer_code, coverage_name} objects, at least two"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	), s.handleCompareCoverages)

	s.mcp.AddTool(mcp.NewTool(
		"check_universe",
		mcp.WithDescription(
			"Validate that a coverage exists in the locked proposal universe for an "+
				"insurer, by proposal coverage name or by canonical code.",
		),
		mcp.WithString("insurer_code", mcp.Required(), mcp.Description("Insurer identifier")),
		mcp.WithString("coverage_name", mcp.Description("Coverage name as printed in the proposal")),
		mcp.WithString("canonical_code", mcp.Description("Canonical coverage code")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleCheckUniverse)

	s.mcp.AddTool(mcp.NewTool(
		"list_canonical_coverages",
		mcp.WithDescription("List the canonical coverage dictionary with display names and domains"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	), s.handleListCanonicalCoverages)

	s.mcp.AddTool(mcp.NewTool(
		"get_disease_scope",
		mcp.WithDescription(
			"Resolved per-insurer disease scopes for one canonical coverage, with "+
				"include and exclude code sets fully expanded.",
		),
		mcp.WithString("canonical_code", mcp.Required(), mcp.Description("Canonical coverage code")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleGetDiseaseScope)

	if s.lineage != nil {
		s.mcp.AddTool(mcp.NewTool(
			"find_coverages_for_disease_code",
			mcp.WithDescription(
				"List the (canonical coverage, insurer) pairs whose resolved disease "+
					"scope includes a classification code, answered from the scope "+
					"lineage graph.",
			),
			mcp.WithString("disease_code", mcp.Required(), mcp.Description("Disease classification code, e.g. C50")),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
		), s.handleFindCoveragesForDiseaseCode)
	}
}

func (s *Server) handleHealth(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) handleCompareCoverages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Selections []domain.CoverageSelection `json:"selections"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if len(args.Selections) < 2 {
		return mcp.NewToolResultError("at least two selections are required"), nil
	}

	result, err := s.comparator.Compare(ctx, args.Selections)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleCheckUniverse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	insurerCode, err := req.RequireString("insurer_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	coverageName := req.GetString("coverage_name", "")
	canonicalCode := req.GetString("canonical_code", "")

	var check domain.UniverseCheck
	switch {
	case coverageName != "":
		check, err = s.universe.ValidateName(ctx, insurerCode, coverageName)
	case canonicalCode != "":
		check, err = s.universe.ValidateCode(ctx, insurerCode, canonicalCode)
	default:
		return mcp.NewToolResultError("coverage_name or canonical_code is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(struct {
		InUniverse bool                           `json:"in_universe"`
		Record     *domain.ProposalCoverageRecord `json:"record,omitempty"`
		Mapping    *domain.CanonicalMapping       `json:"mapping,omitempty"`
	}{check.InUniverse, check.Record, check.Mapping})
}

func (s *Server) handleListCanonicalCoverages(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coverages, err := s.reference.ListCanonicalCoverages(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		Coverages []domain.CanonicalCoverage `json:"coverages"`
		Count     int                        `json:"count"`
	}{coverages, len(coverages)})
}

func (s *Server) handleGetDiseaseScope(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	canonicalCode, err := req.RequireString("canonical_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	views, err := s.reference.CoverageScopes(ctx, canonicalCode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		CanonicalCode string             `json:"canonical_code"`
		Scopes        []domain.ScopeView `json:"scopes"`
	}{canonicalCode, views})
}

func (s *Server) handleFindCoveragesForDiseaseCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	diseaseCode, err := req.RequireString("disease_code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hits, err := s.lineage.CoveragesIncludingCode(ctx, diseaseCode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		DiseaseCode string                   `json:"disease_code"`
		Coverages   []domain.ScopeLineageHit `json:"coverages"`
		Count       int                      `json:"count"`
	}{domain.NormalizeDiseaseCode(diseaseCode), hits, len(hits)})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
