package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSAllowsFrontendOrigin(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:5173", true},
		{"https://app.cognivue.example", true},
		{"https://evil.example", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.origin, func(t *testing.T) {
			t.Parallel()
			r := gin.New()
			r.Use(CORS("http://localhost:5173/", []string{"https://app.cognivue.example"}))
			r.OPTIONS("/api/submit-answer/", func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodOptions, "/api/submit-answer/", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Fatalf("unexpected allow-origin header: got=%q want=%q", got, tc.origin)
			}
			if !tc.allowed && got != "" {
				t.Fatalf("origin %q should be refused, got allow-origin %q", tc.origin, got)
			}
		})
	}
}

func TestAllowedOriginsFallsBackToDevServers(t *testing.T) {
	if got := allowedOrigins("", nil); !reflect.DeepEqual(got, devOrigins) {
		t.Fatalf("got %v want %v", got, devOrigins)
	}
	got := allowedOrigins(" http://a/ ", []string{"http://a", "http://b"})
	if !reflect.DeepEqual(got, []string{"http://a", "http://b"}) {
		t.Fatalf("dedupe failed: %v", got)
	}
}
