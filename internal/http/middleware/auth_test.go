package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
)

type stubResolver struct {
	id  *auth.Identity
	err error
}

func (s stubResolver) Resolve(context.Context, string, string) (*auth.Identity, error) {
	return s.id, s.err
}

func TestIdentify_RecordsIdentityOrError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		header  string
		res     stubResolver
		wantSub string
		wantErr bool
	}{
		{"no header", "", stubResolver{id: &auth.Identity{Subject: "never"}}, "", false},
		{"verified", "Bearer good", stubResolver{id: &auth.Identity{Subject: "u1", Verified: true}}, "u1", false},
		{"rejected", "Bearer bad", stubResolver{err: fmt.Errorf("%w: expired", auth.ErrUnauthenticated)}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Identify(tc.res))
			r.GET("/x", func(c *gin.Context) {
				id, err := IdentityFrom(c)
				if (err != nil) != tc.wantErr {
					t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
				}
				sub := ""
				if id != nil {
					sub = id.Subject
				}
				if sub != tc.wantSub || userIDFromCtx(c) != tc.wantSub {
					t.Fatalf("sub=%q ctx=%q want %q", sub, userIDFromCtx(c), tc.wantSub)
				}
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("Identify must not reject, got %d", w.Code)
			}
		})
	}
}

func TestRequireIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name     string
		header   string
		res      stubResolver
		wantCode int
	}{
		{"missing", "", stubResolver{}, http.StatusUnauthorized},
		{"invalid", "Bearer bad", stubResolver{err: auth.ErrUnauthenticated}, http.StatusUnauthorized},
		{"no provider", "Bearer tok", stubResolver{err: auth.ErrProviderUnavailable}, http.StatusInternalServerError},
		{"ok", "Bearer good", stubResolver{id: &auth.Identity{Subject: "u1", Verified: true}}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Identify(tc.res), RequireIdentity())
			r.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.wantCode {
				t.Fatalf("code=%d want %d", w.Code, tc.wantCode)
			}
			if tc.wantCode == http.StatusUnauthorized {
				var body map[string]string
				_ = json.Unmarshal(w.Body.Bytes(), &body)
				if body["error"] != MsgSessionExpired {
					t.Fatalf("body=%v", body)
				}
			}
		})
	}
}
