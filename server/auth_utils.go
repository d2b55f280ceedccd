package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-billing-portal/gate"
	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/jrsteele09/go-billing-portal/token/lifecycle"
)

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	fullPath := path + "?error=" + url.QueryEscape(errorMsg)

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return gate.IsHTMX(r.Header)
}

// requestSession returns the session pipeline the gate attached to r. It is
// nil only when the gate failed open before building it.
func requestSession(r *http.Request) (*lifecycle.Manager, sessions.RequestContext) {
	mgr := lifecycle.FromContext(r.Context())
	rc, ok := sessions.RequestFromContext(r.Context())
	if !ok {
		rc = sessions.NewRequestContext("", r)
	}
	return mgr, rc
}

// localTarget accepts only same-site paths as a post-login destination.
func localTarget(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
