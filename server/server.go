package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-billing-portal/apiclient"
	"github.com/jrsteele09/go-billing-portal/gate"
	"github.com/jrsteele09/go-billing-portal/intercept"
	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.Handler
	routes  []string
	config  config.Config
	gate    *gate.Gate
	api     *apiclient.Client
	pages   map[string]*template.Template
	logger  zerolog.Logger
}

// Options are the optional collaborators of New.
type Options struct {
	Policy     *gate.Policy // defaults to the policy file in config, then gate.DefaultPolicy()
	APIOptions []apiclient.Option
	Logger     *zerolog.Logger
}

// New wires the gate, interceptor and API client around sessions kept in store.
func New(cfg config.Config, store sessions.ServerStore, opts Options) (*Server, error) {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	policy := opts.Policy
	if policy == nil && cfg.GetAccessPolicyFile() != "" {
		p, err := gate.LoadPolicy(cfg.GetAccessPolicyFile())
		if err != nil {
			return nil, fmt.Errorf("[Server New] %w", err)
		}
		policy = p
	}

	paths := gate.DefaultPaths()
	interceptor := intercept.New(logger, intercept.Config{LoginPath: paths.Login, LogoutPath: paths.Logout})

	apiOpts := append([]apiclient.Option{apiclient.WithLogger(logger)}, opts.APIOptions...)
	api, err := apiclient.New(cfg, interceptor, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create api client: %w", err)
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		api:    api,
		pages:  pages,
		logger: logger,
	}
	s.gate = gate.New(store, cfg, gate.Options{
		Paths:        paths,
		Policy:       policy,
		Logger:       &logger,
		PassivePaths: []string{RouteSessionStatus},
	})
	s.handler = chimiddleware.RequestID(chimiddleware.RealIP(s.gate.Middleware(s.mux)))

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}
