package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Fatalf("expected default api port 8080, got %s", cfg.APIPort)
	}
	if cfg.NATSSubject != "proposals.ingest" {
		t.Fatalf("expected default subject proposals.ingest, got %s", cfg.NATSSubject)
	}
	if cfg.AmountCeilingKRW != 10_000_000_000 {
		t.Fatalf("unexpected amount ceiling: %d", cfg.AmountCeilingKRW)
	}
	if !cfg.OpenAPIValidation {
		t.Fatalf("expected openapi validation enabled by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("PIPELINE_WORKERS", "4")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("MCP_ENABLED", "false")

	cfg := Load()

	if cfg.APIPort != "9999" {
		t.Fatalf("expected api port 9999, got %s", cfg.APIPort)
	}
	if cfg.PipelineWorkers != 4 {
		t.Fatalf("expected 4 pipeline workers, got %d", cfg.PipelineWorkers)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.MCPEnabled {
		t.Fatalf("expected mcp disabled")
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "not-a-number")
	t.Setenv("OPENAPI_VALIDATION", "not-a-bool")

	cfg := Load()

	if cfg.PipelineWorkers != 0 {
		t.Fatalf("expected fallback workers 0, got %d", cfg.PipelineWorkers)
	}
	if !cfg.OpenAPIValidation {
		t.Fatalf("expected fallback openapi validation true")
	}
}
