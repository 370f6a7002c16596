package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(allowed string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	called := false
	h := NewCORSMiddleware(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, called
}

func requestFrom(method, origin string) *http.Request {
	req := httptest.NewRequest(method, "/notes", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestCORSMiddleware_AllowedOrigin_ReflectsOrigin(t *testing.T) {
	w, called := serveCORS("http://localhost:3000", requestFrom(http.MethodPost, "http://localhost:3000"))

	if !called || w.Code != http.StatusCreated {
		t.Fatalf("next handler should run, called=%v status=%d", called, w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
}

func TestCORSMiddleware_MultipleOrigins(t *testing.T) {
	allowed := "https://notes.example.com, http://localhost:3000/"

	for _, origin := range []string{"https://notes.example.com", "http://localhost:3000"} {
		w, _ := serveCORS(allowed, requestFrom(http.MethodGet, origin))
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("origin %s: Access-Control-Allow-Origin = %q", origin, got)
		}
	}
}

func TestCORSMiddleware_DisallowedOrigin_OmitsHeaders(t *testing.T) {
	w, called := serveCORS("https://notes.example.com", requestFrom(http.MethodGet, "https://evil.example.com"))

	if !called {
		t.Error("non-preflight request should still reach the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want empty", got)
	}
}

func TestCORSMiddleware_NoOriginHeader(t *testing.T) {
	w, called := serveCORS("https://notes.example.com", requestFrom(http.MethodGet, ""))

	if !called {
		t.Error("request without Origin should reach the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestCORSMiddleware_Preflight_AnsweredWithoutCallingNext(t *testing.T) {
	req := requestFrom(http.MethodOptions, "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	w, called := serveCORS("http://localhost:3000", req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if called {
		t.Error("next handler should not be called for preflight")
	}
	want := map[string]string{
		"Access-Control-Allow-Origin":      "http://localhost:3000",
		"Access-Control-Allow-Methods":     "DELETE",
		"Access-Control-Allow-Headers":     "Authorization",
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Max-Age":           "86400",
	}
	for header, v := range want {
		if got := w.Header().Get(header); got != v {
			t.Errorf("%s = %q, want %q", header, got, v)
		}
	}
}

func TestCORSMiddleware_Preflight_DisallowedMethod(t *testing.T) {
	req := requestFrom(http.MethodOptions, "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)

	w, _ := serveCORS("http://localhost:3000", req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for PUT", got)
	}
}
