package sessions

import (
	"context"
	"net/http"
)

// RequestContext is the per-request identity the gate, interceptor and
// transport pass to each other explicitly.
type RequestContext struct {
	AgentID string      // key of the server-side channel for this browser
	Method  string      // inbound HTTP method
	Path    string      // inbound URL path
	URL     string      // path plus query, used as the post-login return target
	Headers http.Header // inbound request headers
}

// NewRequestContext captures the parts of r the session pipeline needs.
func NewRequestContext(agentID string, r *http.Request) RequestContext {
	return RequestContext{
		AgentID: agentID,
		Method:  r.Method,
		Path:    r.URL.Path,
		URL:     r.URL.RequestURI(),
		Headers: r.Header,
	}
}

type requestContextKey struct{}

// WithRequest stores rc on ctx.
func WithRequest(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestFromContext returns the RequestContext stored by WithRequest.
func RequestFromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(RequestContext)
	return rc, ok
}
