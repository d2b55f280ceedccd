// Package intercept sorts every outbound API result into the failure
// taxonomy, rewrites messages for the user and ends the session when the
// backend says the credential is no good.
package intercept

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-billing-portal/internal/metrics"
	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/jrsteele09/go-billing-portal/users"
	"github.com/rs/zerolog"
)

// Session is the slice of the lifecycle manager the interceptor drives.
type Session interface {
	IsAuthenticated(ctx context.Context) bool
	Renew(ctx context.Context)
	Close(ctx context.Context)
	SaveReturnURL(ctx context.Context, url string)
	Profile(ctx context.Context) *users.Profile
}

// Call identifies the outbound request an outcome belongs to.
type Call struct {
	Method   string
	Endpoint string
}

const anonymousUser = "anonimo"

type Config struct {
	LoginPath  string // where authentication failures send the user
	LogoutPath string
}

type Interceptor struct {
	logger zerolog.Logger
	cfg    Config
}

func New(logger zerolog.Logger, cfg Config) *Interceptor {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/pages/auth/login"
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = "/pages/auth/logout"
	}
	return &Interceptor{logger: logger, cfg: cfg}
}

func (i *Interceptor) LoginPath() string {
	return i.cfg.LoginPath
}

// Process rewrites out for the user and applies the session side effects
// of the call. It never panics; an internal fault yields a critical error
// outcome. sess may be nil for calls made outside a session.
func (i *Interceptor) Process(ctx context.Context, sess Session, rc sessions.RequestContext, call Call, out *Outcome) {
	if out == nil {
		return
	}
	user := i.actingUser(ctx, sess, out)

	defer func() {
		if r := recover(); r != nil {
			status := out.HTTPStatus
			*out = Failed(KindInternal, MsgCritical, "")
			out.HTTPStatus = status
			i.logger.Error().
				Str("method", call.Method).
				Str("endpoint", call.Endpoint).
				Str("panic", fmt.Sprint(r)).
				Msg("interceptor fault")
		}
		i.record(call, out, user)
	}()

	logout := IsLogoutEndpoint(call.Endpoint)
	if logout {
		// Signing out is always effective locally, whatever the body said
		if !out.Succeeded && out.Kind != KindTransport && (out.HTTPStatus == 0 || out.HTTPStatus < 300) {
			out.Succeeded = true
			out.Kind = KindNone
		}
		if sess != nil {
			sess.Close(ctx)
		}
		return
	}

	if out.Succeeded {
		out.Kind = KindNone
		if sess != nil {
			sess.Renew(ctx)
		}
		return
	}

	c := Classify(out.Message, out.Detail)
	out.Message = c.Message
	out.Detail = c.Detail
	if c.AuthFailure {
		i.endSession(ctx, sess, rc, out)
		return
	}
	if out.Kind == KindNone {
		out.Kind = c.Kind
	}
	if out.Kind == KindNone {
		out.Kind = KindInternal
	}
}

// ForceAuthFailure ends the session as if the backend had reported an
// authentication failure. The transport calls it on 401 and 403.
func (i *Interceptor) ForceAuthFailure(ctx context.Context, sess Session, rc sessions.RequestContext, out *Outcome) {
	if out == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error().Str("panic", fmt.Sprint(r)).Msg("interceptor fault while ending session")
		}
	}()
	// Process runs after the session is gone; it logs the user captured here
	out.actor = i.actingUser(ctx, sess, out)
	i.endSession(ctx, sess, rc, out)
}

func (i *Interceptor) endSession(ctx context.Context, sess Session, rc sessions.RequestContext, out *Outcome) {
	out.Succeeded = false
	out.Kind = KindAuthentication
	out.Message = MsgSessionExpired
	out.Detail = MsgSignInAgain
	out.RedirectTo = i.cfg.LoginPath

	if sess == nil {
		return
	}
	sess.Close(ctx)
	if rc.URL != "" && !i.isAuthPath(rc.Path) {
		sess.SaveReturnURL(ctx, rc.URL)
	}
}

func (i *Interceptor) isAuthPath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, strings.ToLower(i.cfg.LoginPath)) ||
		strings.HasPrefix(p, strings.ToLower(i.cfg.LogoutPath))
}

// actingUser names the signed-in user for the call log. It must run
// before any side effect closes the session.
func (i *Interceptor) actingUser(ctx context.Context, sess Session, out *Outcome) (user string) {
	if out.actor != "" {
		return out.actor
	}
	user = anonymousUser
	defer func() { _ = recover() }()
	if sess != nil {
		if p := sess.Profile(ctx); p != nil && p.Username != "" {
			user = p.Username
		}
	}
	return user
}

func (i *Interceptor) record(call Call, out *Outcome, user string) {
	label := out.label()
	metrics.APICallsTotal.WithLabelValues(label).Inc()

	ev := i.logger.Info()
	if !out.Succeeded {
		ev = i.logger.Warn()
	}
	ev.Str("method", call.Method).
		Str("endpoint", call.Endpoint).
		Str("outcome", label).
		Str("user", user).
		Int("status", out.HTTPStatus).
		Msg("api call")
}
