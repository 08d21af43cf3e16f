package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, prep func(*http.Request), path string) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/quota", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"used": 0}) })
	r.GET("/swagger/*any", func(c *gin.Context) { c.String(http.StatusOK, "<html></html>") })
	r.GET("/denied", func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if prep != nil {
		prep(req)
	}
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	for _, path := range []string{"/api/v1/quota", "/denied"} {
		h := serveSecurity(t, SecurityOptions{}, nil, path)
		if h.Get("X-Content-Type-Options") != "nosniff" ||
			h.Get("X-Frame-Options") != "DENY" ||
			h.Get("Referrer-Policy") != "no-referrer" ||
			h.Get("Content-Security-Policy") != apiCSP {
			t.Fatalf("%s: baseline missing: %#v", path, h)
		}
		for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
			if h.Get(k) != "" {
				t.Fatalf("%s: unexpected %s", path, k)
			}
		}
	}
}

func TestSecurityHeaders_DocsCSP(t *testing.T) {
	opt := SecurityOptions{DocsPrefix: "/swagger"}
	if got := serveSecurity(t, opt, nil, "/swagger/index.html").Get("Content-Security-Policy"); got != docsCSP {
		t.Fatalf("docs CSP = %q", got)
	}
	if got := serveSecurity(t, opt, nil, "/api/v1/quota").Get("Content-Security-Policy"); got != apiCSP {
		t.Fatalf("api CSP = %q", got)
	}
	// Without a docs prefix the swagger path is treated like any other.
	if got := serveSecurity(t, SecurityOptions{}, nil, "/swagger/index.html").Get("Content-Security-Policy"); got != apiCSP {
		t.Fatalf("unmounted docs CSP = %q", got)
	}
}

func TestSecurityHeaders_PolicyAndNoStore(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{EnablePolicy: true, NoStore: true}, nil, "/api/v1/quota")
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("no-store headers missing: %#v", h)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	cases := []struct {
		name string
		opt  SecurityOptions
		prep func(*http.Request)
		want string
	}{
		{"disabled", SecurityOptions{}, func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, ""},
		{"plain http", SecurityOptions{EnableHSTS: true}, nil, ""},
		{"tls default age", SecurityOptions{EnableHSTS: true}, func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
			"max-age=15552000; includeSubDomains; preload"},
		{"proxy https custom age", SecurityOptions{EnableHSTS: true, HSTSMaxAge: 365 * 24 * time.Hour},
			func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") },
			"max-age=31536000; includeSubDomains; preload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := serveSecurity(t, tc.opt, tc.prep, "/api/v1/quota").Get("Strict-Transport-Security")
			if got != tc.want {
				t.Fatalf("HSTS = %q; want %q", got, tc.want)
			}
		})
	}
}
