package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/patient/:address", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/patient/:address", "200"))
	for _, addr := range []string{"0x01", "0x02"} {
		req := httptest.NewRequest(http.MethodGet, "/patient/"+addr, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/patient/:address", "200"))

	if after-before != 2 {
		t.Errorf("expected 2 requests on one series, got %v", after-before)
	}
}

func TestMiddleware_UsesHTTPErrorCode(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/teapot")

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/teapot", "418"))
	h := Middleware()(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})
	if err := h(c); err == nil {
		t.Fatal("expected error to pass through")
	}
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/teapot", "418"))
	if after-before != 1 {
		t.Errorf("expected one 418 sample, got %v", after-before)
	}
}

func TestMiddleware_PlainErrorCountsAs500(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.POST("/register", func(c echo.Context) error {
		return errors.New("decode request body: unexpected EOF")
	})

	ok := HTTPRequests.WithLabelValues(http.MethodPost, "/register", "200")
	failed := HTTPRequests.WithLabelValues(http.MethodPost, "/register", "500")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("client saw %d, want 500", rec.Code)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 1 {
		t.Errorf("expected one 500 sample, got %v", got)
	}
	if got := testutil.ToFloat64(ok) - okBefore; got != 0 {
		t.Errorf("expected no 200 sample, got %v", got)
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != OutcomeSuccess {
		t.Error("expected success for nil error")
	}
	if Outcome(errors.New("x")) != OutcomeFailure {
		t.Error("expected failure for error")
	}
}
