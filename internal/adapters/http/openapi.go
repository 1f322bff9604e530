package httpadapter

import (
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/covlens/covlens/internal/observability/metrics"
)

//go:embed openapi.yaml
var openapiSpec []byte

// newOpenAPIRouter loads the embedded contract once at startup. A contract
// that fails to parse is a build defect, not a runtime condition.
func newOpenAPIRouter() (routers.Router, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("parse openapi contract: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}
	return legacy.NewRouter(doc)
}

// openAPIValidationMiddleware rejects requests that do not match the
// embedded contract before a handler runs. Paths the contract does not
// know (metrics, mcp) pass through untouched, and multipart bodies are
// left for the upload handler to stream.
func openAPIValidationMiddleware(next http.Handler, router routers.Router, m *metrics.HTTPMetrics) http.Handler {
	if router == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				ExcludeRequestBody: strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/"),
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			if m != nil {
				m.ValidationFailures.Inc()
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Reason != "" {
		return reqErr.Reason
	}
	return err.Error()
}
