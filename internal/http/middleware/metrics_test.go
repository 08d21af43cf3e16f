package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndInflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/v1/history/:id", func(c *gin.Context) { c.String(http.StatusOK, "{}") })
	r.DELETE("/api/v1/history/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hist := func() float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, "/api/v1/history/:id", "200"))
	}
	del := func() float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodDelete, "/api/v1/history/:id", "204"))
	}
	miss := func() float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	}
	baseHist, baseDel, baseMiss := hist(), del(), miss()

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/v1/history/1", http.StatusOK},
		{http.MethodGet, "/api/v1/history/2", http.StatusOK},
		{http.MethodDelete, "/api/v1/history/2", http.StatusNoContent},
		{http.MethodGet, "/wp-login.php", http.StatusNotFound},
		{http.MethodGet, "/.env", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}

	if got := hist(); got != baseHist+2 {
		t.Fatalf("history GET counter = %v; want %v (route template label)", got, baseHist+2)
	}
	if got := del(); got != baseDel+1 {
		t.Fatalf("history DELETE counter = %v; want %v", got, baseDel+1)
	}
	if got := miss(); got != baseMiss+2 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+2)
	}
	if n := testutil.ToFloat64(httpInflight); n != 0 {
		t.Fatalf("inflight = %v; want 0", n)
	}
}
