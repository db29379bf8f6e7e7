package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oscarmarin21/Admin/internal/auth"
)

func TestLoggingJSONEmitsStructuredEntry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	handler := middleware.RequestID(LoggingJSON(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/log-test", nil)
	req.Header.Set("User-Agent", "middleware-test")
	req.RemoteAddr = "127.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entries := logs.FilterMessage("request_complete").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	for _, key := range []string{"request_id", "method", "path", "status", "duration_ms", "remote_ip", "user_agent"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected key %q in log entry", key)
		}
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("unexpected status: %v", fields["status"])
	}
	if fields["remote_ip"] != "127.0.0.1" || fields["user_agent"] != "middleware-test" {
		t.Fatalf("unexpected client fields: %v", fields)
	}
	if fields["request_id"] == "" {
		t.Fatal("expected request id")
	}
}

func TestCORS(t *testing.T) {
	cases := []struct {
		name        string
		allowOrigin string
		origin      string
		allowed     bool
	}{
		{"configured origin", "https://app.example.com/", "https://app.example.com", true},
		{"other origin", "https://app.example.com", "https://evil.example.com", false},
		{"local default", "", "http://localhost:5173", true},
		{"remote without config", "", "https://app.example.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := CORS(tc.allowOrigin)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			req.Header.Set("Origin", tc.origin)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			got := rr.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Fatalf("expected origin echoed, got %q", got)
			}
			if !tc.allowed && got != "" {
				t.Fatalf("expected no allow-origin, got %q", got)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	handler := CORS("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/sign-in", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("expected short-circuited 204, got %d (called=%v)", rr.Code, called)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), sessionIDHeader) {
		t.Fatalf("session header not allowed: %q", rr.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestLanguageResolver(t *testing.T) {
	cases := map[string]auth.Locale{
		"":                  auth.LocaleEN,
		"es-ES,es;q=0.9":    auth.LocaleES,
		"fr-FR,en;q=0.5":    auth.LocaleEN,
		"de":                auth.LocaleEN,
		"en-US,es;q=0.8":    auth.LocaleEN,
		"garbage;;q=banana": auth.LocaleEN,
	}
	for header, want := range cases {
		var got auth.Locale
		handler := LanguageResolver(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = auth.LocaleFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Accept-Language", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got != want {
			t.Fatalf("Accept-Language %q: got %q, want %q", header, got, want)
		}
		if rr.Header().Get("Content-Language") != string(want) {
			t.Fatalf("Accept-Language %q: unexpected Content-Language %q", header, rr.Header().Get("Content-Language"))
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Fatalf("expected %s header", h)
		}
	}
}

func TestMaxBodyBytesRejectsLargeBodies(t *testing.T) {
	api := New(Options{MaxBodyBytes: 32})
	body := `{"refreshToken":"` + strings.Repeat("a", 64) + `"}`
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(body)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Request body too large.") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("unexpected ip: %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("unexpected forwarded ip: %q", got)
	}
}
