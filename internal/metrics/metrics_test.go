package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.POST("/cards/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	e.GET("/cards/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "card not found")
	})

	created := RequestCount.WithLabelValues(http.MethodPost, "/cards/:id", "201")
	missing := RequestCount.WithLabelValues(http.MethodGet, "/cards/:id", "404")
	createdBefore := testutil.ToFloat64(created)
	missingBefore := testutil.ToFloat64(missing)

	for _, tc := range []struct {
		method string
		target string
		status int
	}{
		{http.MethodPost, "/cards/1", http.StatusCreated},
		{http.MethodPost, "/cards/2", http.StatusCreated},
		{http.MethodGet, "/cards/3", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		assert.Equal(t, tc.status, rec.Code)
	}

	assert.Equal(t, createdBefore+2, testutil.ToFloat64(created))
	assert.Equal(t, missingBefore+1, testutil.ToFloat64(missing))
}

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	ledger := prometheus.NewRegistry()
	RegisterLedger(ledger)
	TransactionsCreated.Inc()

	rec := httptest.NewRecorder()
	Handler(ledger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ledger_transactions_created_total")
	assert.NotContains(t, string(body), "engine_decisions_total")

	engine := prometheus.NewRegistry()
	RegisterEngine(engine)
	Decisions.WithLabelValues("SUCCESS").Inc()

	rec = httptest.NewRecorder()
	Handler(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err = io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "engine_decisions_total")
	assert.NotContains(t, string(body), "ledger_transactions_created_total")
}
