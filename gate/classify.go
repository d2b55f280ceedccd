package gate

import (
	"net/http"
	"path"
	"strings"
)

// Classification tags an inbound request for the gate.
type Classification int

const (
	Public Classification = iota
	ProtectedPage
	ProtectedAjax
)

func (c Classification) String() string {
	switch c {
	case Public:
		return "public"
	case ProtectedPage:
		return "protected_page"
	case ProtectedAjax:
		return "protected_ajax"
	default:
		return "unknown"
	}
}

// Paths are the pages the gate redirects to.
type Paths struct {
	Login        string
	Logout       string
	AccessDenied string
}

func DefaultPaths() Paths {
	return Paths{
		Login:        "/pages/auth/login",
		Logout:       "/pages/auth/logout",
		AccessDenied: "/pages/auth/acceso-denegado",
	}
}

// Classifier decides which paths need a session. Matching is by
// case-insensitive prefix against an allow-list.
type Classifier struct {
	public []string
}

// NewClassifier allows the auth pages, the static asset directories and
// any extra prefixes.
func NewClassifier(paths Paths, extra ...string) *Classifier {
	prefixes := []string{
		paths.Login,
		paths.Logout,
		paths.AccessDenied,
		"/css/",
		"/js/",
		"/lib/",
		"/images/",
		"/fonts/",
		"/static/",
		"/favicon.ico",
		"/health",
		"/metrics",
	}
	prefixes = append(prefixes, extra...)

	c := &Classifier{}
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			c.public = append(c.public, p)
		}
	}
	return c
}

// IsPublic reports whether p is on the allow-list.
func (c *Classifier) IsPublic(p string) bool {
	lower := strings.ToLower(p)
	for _, prefix := range c.public {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Classify combines the path allow-list with the request shape.
func (c *Classifier) Classify(p string, headers http.Header) Classification {
	if c.IsPublic(p) {
		return Public
	}
	if IsAjax(headers) {
		return ProtectedAjax
	}
	return ProtectedPage
}

// IsAjax reports a script-initiated request that expects JSON rather than
// a page. HTMX requests are navigation: they follow HX-Redirect.
func IsAjax(headers http.Header) bool {
	if headers == nil {
		return false
	}
	if strings.EqualFold(headers.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.Contains(strings.ToLower(headers.Get("Accept")), "application/json")
}

// IsHTMX reports a request made by htmx.
func IsHTMX(headers http.Header) bool {
	return headers != nil && headers.Get("HX-Request") == "true"
}

var staticExtensions = map[string]bool{
	".css":   true,
	".js":    true,
	".map":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".svg":   true,
	".ico":   true,
	".webp":  true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".eot":   true,
	".otf":   true,
}

// IsStaticAsset reports whether p names a static file by its extension.
// It only decides header injection and is unrelated to the allow-list: a
// script under a protected prefix is still protected.
func IsStaticAsset(p string) bool {
	return staticExtensions[strings.ToLower(path.Ext(p))]
}
