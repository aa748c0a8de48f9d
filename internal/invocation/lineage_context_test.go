package invocation

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractExternalIdentity_ReadsAllHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-External-User-ID", "user-1")
	h.Set("X-External-User-Email", "user@example.com")
	h.Set("X-External-User-Name", "User One")
	h.Set("X-External-System", "crm")
	h.Set("X-External-Session-ID", "sess-1")
	h.Set("X-External-Trace-ID", "trace-1")
	h.Set("X-External-Context", "ctx-1")

	got := ExtractExternalIdentity(h)
	want := ExternalIdentity{
		UserID:    "user-1",
		UserEmail: "user@example.com",
		UserName:  "User One",
		System:    "crm",
		SessionID: "sess-1",
		TraceID:   "trace-1",
		Context:   "ctx-1",
	}
	if got != want {
		t.Fatalf("ExtractExternalIdentity() = %+v, want %+v", got, want)
	}
}

func TestExtractExternalIdentity_MissingHeadersAreEmpty(t *testing.T) {
	got := ExtractExternalIdentity(http.Header{})
	if got != (ExternalIdentity{}) {
		t.Fatalf("expected zero-value identity, got %+v", got)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	identity := ExternalIdentity{UserID: "user-1", System: "crm"}
	ctx := NewContext(t.Context(), identity)
	if got := FromContext(ctx); got != identity {
		t.Fatalf("FromContext() = %+v, want %+v", got, identity)
	}
}

func TestFromContext_NoIdentitySetReturnsZeroValue(t *testing.T) {
	if got := FromContext(t.Context()); got != (ExternalIdentity{}) {
		t.Fatalf("expected zero-value identity when none set, got %+v", got)
	}
}

func TestMiddleware_InjectsIdentityFromHeaders(t *testing.T) {
	var captured ExternalIdentity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/external-agents/invoke", nil)
	req.Header.Set("X-External-User-ID", "user-1")
	req.Header.Set("X-External-System", "crm")

	Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	if captured.UserID != "user-1" || captured.System != "crm" {
		t.Fatalf("middleware did not propagate identity: %+v", captured)
	}
}
