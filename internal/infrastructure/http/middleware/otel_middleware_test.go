package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mrops-br/storefront-api/internal/infrastructure/config"
	"github.com/mrops-br/storefront-api/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestHTTPRouteContext_LogsMatchedPattern(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger(&buf,
		&config.LogConfig{Format: "json", Level: "info"},
		&config.OTLPConfig{ServiceName: "storefront-api"},
	)

	router := chi.NewRouter()
	router.Use(StructuredLogger(logger))
	router.Use(HTTPRouteContext())
	router.Use(ActiveRequestsMiddleware(noop.NewMeterProvider().Meter("test")))
	router.Route("/products", func(r chi.Router) {
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			logger.InfoContext(r.Context(), "Fetching product")
			w.WriteHeader(http.StatusNoContent)
		})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/42", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var records []map[string]any
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.Len(t, records, 2)

	assert.Equal(t, "Fetching product", records[0]["msg"])
	assert.Equal(t, "/products/{id}", records[0]["http.route"])

	assert.Equal(t, "HTTP request completed", records[1]["msg"])
	assert.Equal(t, "/products/{id}", records[1]["http.route"])
	assert.Equal(t, "/products/42", records[1]["url.path"])
}

func TestRoutePattern_FallsBackToPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/unrouted", nil)
	assert.Equal(t, "/unrouted", RoutePattern(r))
}
