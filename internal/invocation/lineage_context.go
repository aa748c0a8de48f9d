// Package invocation orchestrates the external-agent invocation pipeline
// (spec.md §4.7): authenticate, extract external identity, authorize,
// rate-limit, budget-check, approval-gate, dispatch upstream, and record
// usage/lineage/webhook fan-out around every attempt.
package invocation

import (
	"context"
	"net/http"
)

// ExternalIdentity is Layers 1-2 of the lineage chain, lifted from the
// X-External-* request headers spec.md §6 defines for the invoke endpoint.
type ExternalIdentity struct {
	UserID    string
	UserEmail string
	UserName  string
	System    string
	SessionID string
	TraceID   string
	Context   string
}

// ExtractExternalIdentity reads the X-External-* headers off an inbound
// invoke request. Missing optional headers leave their field empty.
func ExtractExternalIdentity(h http.Header) ExternalIdentity {
	return ExternalIdentity{
		UserID:    h.Get("X-External-User-ID"),
		UserEmail: h.Get("X-External-User-Email"),
		UserName:  h.Get("X-External-User-Name"),
		System:    h.Get("X-External-System"),
		SessionID: h.Get("X-External-Session-ID"),
		TraceID:   h.Get("X-External-Trace-ID"),
		Context:   h.Get("X-External-Context"),
	}
}

type externalIdentityContextKey struct{}

// NewContext returns a copy of ctx carrying identity.
func NewContext(ctx context.Context, identity ExternalIdentity) context.Context {
	return context.WithValue(ctx, externalIdentityContextKey{}, identity)
}

// FromContext extracts the ExternalIdentity set by Middleware, or a zero
// value if the request carried no X-External-* headers.
func FromContext(ctx context.Context) ExternalIdentity {
	if v, ok := ctx.Value(externalIdentityContextKey{}).(ExternalIdentity); ok {
		return v
	}
	return ExternalIdentity{}
}

// Middleware extracts the lineage layer-1/2 identity from every request's
// X-External-* headers into the context, so handlers that call Pipeline.Invoke
// don't need to re-parse headers themselves (spec.md §4 stage 4).
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(r.Context(), ExtractExternalIdentity(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
