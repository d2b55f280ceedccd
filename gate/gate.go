// Package gate admits, redirects or rejects every inbound request before a
// handler runs, and decorates the response on its way out.
package gate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-billing-portal/intercept"
	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/jrsteele09/go-billing-portal/internal/metrics"
	"github.com/jrsteele09/go-billing-portal/internal/respond"
	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/jrsteele09/go-billing-portal/token/lifecycle"
	"github.com/jrsteele09/go-billing-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Decision is the terminal state of the gate for one request.
type Decision int

const (
	Admitted Decision = iota
	RejectedAjax
	RejectedRedirect
	RejectedForbidden
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case RejectedAjax:
		return "rejected_ajax"
	case RejectedRedirect:
		return "rejected_redirect"
	case RejectedForbidden:
		return "rejected_forbidden"
	default:
		return "unknown"
	}
}

// Outcome is the gate's verdict. Fault is set when the gate itself failed
// and admitted the request anyway.
type Outcome struct {
	Decision       Decision
	Classification Classification
	Reason         string
	Fault          error
}

// Session is what the gate reads from the request's session.
type Session interface {
	Authenticated(ctx context.Context) (bool, error)
	Profile(ctx context.Context) *users.Profile
	SaveReturnURL(ctx context.Context, url string)
}

const (
	MsgAccessDenied       = "Acceso denegado"
	MsgAccessDeniedDetail = "No tiene permisos para acceder a este recurso"

	agentCookieMaxAge = 365 * 24 * 60 * 60
)

type Options struct {
	Paths      Paths
	Classifier *Classifier // defaults to NewClassifier(Paths)
	Policy     *Policy     // defaults to DefaultPolicy()
	Logger     *zerolog.Logger

	// PassivePaths are checked like any other path but never extend the
	// session, so polling them does not keep an idle user signed in.
	PassivePaths []string
}

type Gate struct {
	paths      Paths
	classifier *Classifier
	policy     *Policy
	passive    []string
	server     sessions.ServerStore
	cfg        config.SessionConfig
	logger     zerolog.Logger
}

// New creates a gate whose sessions live in server.
func New(server sessions.ServerStore, cfg config.SessionConfig, opts Options) *Gate {
	g := &Gate{
		paths:      opts.Paths,
		classifier: opts.Classifier,
		policy:     opts.Policy,
		server:     server,
		cfg:        cfg,
		logger:     log.Logger,
	}
	for _, p := range opts.PassivePaths {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			g.passive = append(g.passive, p)
		}
	}
	if g.paths.Login == "" {
		g.paths = DefaultPaths()
	}
	if g.classifier == nil {
		g.classifier = NewClassifier(g.paths)
	}
	if g.policy == nil {
		g.policy = DefaultPolicy()
	}
	if opts.Logger != nil {
		g.logger = *opts.Logger
	}
	return g
}

func (g *Gate) Paths() Paths {
	return g.paths
}

// Decide runs the gate's state machine. Any error or panic admits the
// request with Fault set.
func (g *Gate) Decide(ctx context.Context, rc sessions.RequestContext, sess Session) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = g.failOpen(rc, out.Classification, fmt.Errorf("gate panic: %v", r))
		}
		metrics.GateDecisionsTotal.WithLabelValues(out.Decision.String()).Inc()
	}()

	out.Classification = g.classifier.Classify(rc.Path, rc.Headers)
	if out.Classification == Public {
		out.Decision = Admitted
		out.Reason = "public path"
		return out
	}

	authenticated, err := sess.Authenticated(ctx)
	if err != nil {
		return g.failOpen(rc, out.Classification, err)
	}

	if !authenticated {
		if out.Classification == ProtectedAjax {
			out.Decision = RejectedAjax
			out.Reason = "no session"
			return out
		}
		if !g.isAuthEndpoint(rc.Path) {
			sess.SaveReturnURL(ctx, rc.URL)
		}
		out.Decision = RejectedRedirect
		out.Reason = "no session"
		return out
	}

	if roles := g.policy.RequiredRoles(rc.Path); len(roles) > 0 {
		if !sess.Profile(ctx).HasAnyRole(roles...) {
			out.Decision = RejectedForbidden
			out.Reason = "requires " + strings.Join(roles, "|")
			return out
		}
	}

	out.Decision = Admitted
	out.Reason = "authenticated"
	return out
}

func (g *Gate) failOpen(rc sessions.RequestContext, class Classification, err error) Outcome {
	metrics.GateFaultsTotal.Inc()
	g.logger.Error().Err(err).Str("path", rc.Path).Str("agent", rc.AgentID).Msg("gate failed, admitting request")
	return Outcome{
		Decision:       Admitted,
		Classification: class,
		Reason:         "gate fault",
		Fault:          err,
	}
}

func (g *Gate) isAuthEndpoint(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, strings.ToLower(g.paths.Login)) ||
		strings.HasPrefix(lower, strings.ToLower(g.paths.Logout))
}

// Middleware attaches the request's session and enforces Decide.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hw := &hookWriter{ResponseWriter: w}

		ctx, mgr, rc, err := g.prepare(hw, r)
		if err != nil {
			g.failOpen(sessions.RequestContext{Path: r.URL.Path}, ProtectedPage, err)
			hw.hook = func() { g.postPhase(r.Context(), hw, r.URL.Path, nil) }
			next.ServeHTTP(hw, r)
			hw.finish()
			return
		}
		hw.hook = func() { g.postPhase(ctx, hw, rc.Path, mgr) }

		out := g.Decide(ctx, rc, mgr)
		switch out.Decision {
		case RejectedAjax:
			respond.JSON(hw, http.StatusUnauthorized, intercept.Outcome{
				Message: intercept.MsgSessionExpired,
				Detail:  intercept.MsgSignInAgain,
			})
		case RejectedRedirect:
			redirect(hw, r, g.paths.Login)
		case RejectedForbidden:
			g.logger.Info().Str("path", rc.Path).Str("reason", out.Reason).Msg("access denied")
			// Navigations go to the access-denied page. AJAX callers get a 403
			// envelope instead, since a redirect would hand them an HTML page.
			if IsAjax(r.Header) {
				respond.JSON(hw, http.StatusForbidden, intercept.Outcome{
					Message: MsgAccessDenied,
					Detail:  MsgAccessDeniedDetail,
				})
			} else {
				redirect(hw, r, g.paths.AccessDenied)
			}
		default:
			next.ServeHTTP(hw, r.WithContext(ctx))
		}
		hw.finish()
	})
}

// prepare builds the per-request session pipeline.
func (g *Gate) prepare(w http.ResponseWriter, r *http.Request) (ctx context.Context, mgr *lifecycle.Manager, rc sessions.RequestContext, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("session setup panic: %v", rec)
		}
	}()

	agentID := g.agentID(w, r)
	client := sessions.NewCookieChannel(w, r, g.cfg.GetTokenCookieName(), g.cfg.GetForceSecureCookies())
	store := sessions.NewStore(agentID, client, g.server, sessions.Options{
		Keys:       g.cfg.GetSessionKeys(),
		DefaultTTL: g.cfg.GetSessionTTL(),
		Logger:     &g.logger,
	})
	mgr = lifecycle.New(store, g.cfg)
	rc = sessions.NewRequestContext(agentID, r)

	ctx = sessions.WithRequest(r.Context(), rc)
	ctx = lifecycle.WithManager(ctx, mgr)
	return ctx, mgr, rc, nil
}

// agentID reads the agent cookie, issuing a new id on first contact.
func (g *Gate) agentID(w http.ResponseWriter, r *http.Request) string {
	name := g.cfg.GetAgentCookieName()
	if c, err := r.Cookie(name); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    id,
		Path:     "/",
		MaxAge:   agentCookieMaxAge,
		Expires:  time.Now().Add(agentCookieMaxAge * time.Second),
		HttpOnly: true,
		Secure:   g.cfg.GetForceSecureCookies() || sessions.IsSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// postPhase runs once, just before the response headers are sent.
func (g *Gate) postPhase(ctx context.Context, w http.ResponseWriter, p string, mgr *lifecycle.Manager) {
	if IsStaticAsset(p) {
		return
	}
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "SAMEORIGIN")
	h.Set("X-XSS-Protection", "1; mode=block")
	if h.Get("Content-Security-Policy") == "" {
		h.Set("Content-Security-Policy", "frame-ancestors 'self'")
	}

	if mgr == nil || g.isPassive(p) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.GateFaultsTotal.Inc()
			g.logger.Error().Str("panic", fmt.Sprint(r)).Str("path", p).Msg("session renewal failed")
		}
	}()
	mgr.VerifyAndMaybeRenew(ctx, 0)
}

func (g *Gate) isPassive(p string) bool {
	lower := strings.ToLower(p)
	for _, prefix := range g.passive {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMX(r.Header) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// hookWriter runs hook once, before the first byte of the response
// leaves, or when the handler returns without writing.
type hookWriter struct {
	http.ResponseWriter
	hook func()
	done bool
}

func (w *hookWriter) fire() {
	if w.done {
		return
	}
	w.done = true
	if w.hook != nil {
		w.hook()
	}
}

func (w *hookWriter) WriteHeader(code int) {
	w.fire()
	w.ResponseWriter.WriteHeader(code)
}

func (w *hookWriter) Write(b []byte) (int, error) {
	w.fire()
	return w.ResponseWriter.Write(b)
}

func (w *hookWriter) Flush() {
	w.fire()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *hookWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *hookWriter) finish() {
	w.fire()
}
