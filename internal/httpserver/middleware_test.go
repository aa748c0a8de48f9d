package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/integrum-global/kaizen-studio/internal/auth"
)

func passthrough() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRFGuard_AllowsOutsideProduction(t *testing.T) {
	guard := CSRFGuard(false, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (CSRF guard is inert outside production)", w.Code)
	}
}

func TestCSRFGuard_AllowsSafeMethods(t *testing.T) {
	guard := CSRFGuard(true, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (GET is not state-changing)", w.Code)
	}
}

func TestCSRFGuard_RejectsDisallowedOrigin(t *testing.T) {
	guard := CSRFGuard(true, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestCSRFGuard_AllowsMatchingOrigin(t *testing.T) {
	guard := CSRFGuard(true, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestCSRFGuard_FallsBackToReferer(t *testing.T) {
	guard := CSRFGuard(true, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil)
	r.Header.Set("Referer", "https://app.example.com/dashboard")
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (referer origin matches allow-list)", w.Code)
	}
}

func TestCSRFGuard_RejectsMissingOriginAndReferer(t *testing.T) {
	guard := CSRFGuard(true, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil)
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestCSRFGuard_ExemptsAuthBootstrapPaths(t *testing.T) {
	guard := CSRFGuard(true, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (auth bootstrap paths are CSRF-exempt)", w.Code)
	}
}

func TestCSRFGuard_ExemptsAPIKeyAuthenticatedRequests(t *testing.T) {
	guard := CSRFGuard(true, []string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	r = r.WithContext(auth.NewContext(r.Context(), &auth.Identity{Method: auth.MethodAPIKey}))
	w := httptest.NewRecorder()

	guard(passthrough()).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (API-key callers are exempt from CSRF)", w.Code)
	}
}
