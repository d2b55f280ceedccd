package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/go-billing-portal/users"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	pageLogin        = "login.html"
	pageDashboard    = "dashboard.html"
	pageInvoices     = "facturas.html"
	pageUsers        = "usuarios.html"
	pageAccessDenied = "acceso_denegado.html"

	layoutTemplate  = "layout.html"
	contentTypeHTML = "text/html; charset=utf-8"
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, name)
}

var templateFuncs = template.FuncMap{
	"hasRole": func(p *users.Profile, roles ...string) bool {
		return p != nil && p.HasAnyRole(roles...)
	},
}

func parsePages() (map[string]*template.Template, error) {
	pages := map[string]*template.Template{}
	for _, name := range []string{pageLogin, pageDashboard, pageInvoices, pageUsers, pageAccessDenied} {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, err
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// renderPage executes into a buffer first so a template error never leaves
// a half written page behind.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error().Str("page", name).Msg("unknown page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		s.logger.Err(err).Str("page", name).Msg("Failed to render template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
