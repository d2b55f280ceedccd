package gate_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-billing-portal/gate"
	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/jrsteele09/go-billing-portal/internal/metrics"
	"github.com/jrsteele09/go-billing-portal/sessions"
	"github.com/jrsteele09/go-billing-portal/sessions/channelfake"
	"github.com/jrsteele09/go-billing-portal/sessions/memstore"
	"github.com/jrsteele09/go-billing-portal/token/lifecycle"
	"github.com/jrsteele09/go-billing-portal/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	agentID      = "0b0f6f0e-4a3c-4d7e-9d43-7c5b8f1e2a10"
	agentCookie  = "portal_agent"
	tokenCookie  = "portal_token"
	sessionToken = "tok-abc"
)

type fixture struct {
	server  *memstore.Store
	gate    *gate.Gate
	handler http.Handler
	served  int
	seenMgr *lifecycle.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	f := &fixture{server: memstore.New()}
	f.gate = gate.New(f.server, config.Session{}, gate.Options{Logger: &logger})
	f.handler = f.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.served++
		f.seenMgr = lifecycle.FromContext(r.Context())
		_, _ = w.Write([]byte("ok"))
	}))
	return f
}

// signIn writes a session for agentID straight into the server store.
func (f *fixture) signIn(t *testing.T, role string, ttlMinutes int) {
	t.Helper()
	store := sessions.NewStore(agentID, channelfake.NewFakeClientChannel(), f.server, sessions.Options{})
	store.Establish(context.Background(), sessionToken, users.Profile{ID: 7, Username: "jperez", Role: role}, ttlMinutes)
}

func (f *fixture) returnURL() string {
	store := sessions.NewStore(agentID, channelfake.NewFakeClientChannel(), f.server, sessions.Options{})
	return store.ReturnURL(context.Background())
}

func request(method, target string, withSession bool) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.AddCookie(&http.Cookie{Name: agentCookie, Value: agentID})
	if withSession {
		r.AddCookie(&http.Cookie{Name: tokenCookie, Value: sessionToken})
	}
	return r
}

func (f *fixture) serve(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AjaxWithoutSession(t *testing.T) {
	f := newFixture(t)

	r := request(http.MethodPost, "/factura/crear", false)
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	w := f.serve(r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, `{"Exito":false,"Mensaje":"Sesión expirada","Detalle":"Debe iniciar sesión nuevamente"}`, w.Body.String())
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
	require.Equal(t, 0, f.served)
	require.Empty(t, f.returnURL())
}

func TestMiddleware_NavigationWithoutSession(t *testing.T) {
	f := newFixture(t)

	w := f.serve(request(http.MethodGet, "/pages/facturas/listar?page=2", false))
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/pages/auth/login", w.Header().Get("Location"))
	require.Equal(t, 0, f.served)
	require.Equal(t, "/pages/facturas/listar?page=2", f.returnURL())

	// The login page itself is public and must not replace the target
	w = f.serve(request(http.MethodGet, "/pages/auth/login", false))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, f.served)
	require.Equal(t, "/pages/facturas/listar?page=2", f.returnURL())
}

func TestMiddleware_HTMXRedirect(t *testing.T) {
	f := newFixture(t)

	r := request(http.MethodGet, "/pages/facturas/listar", false)
	r.Header.Set("HX-Request", "true")
	w := f.serve(r)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "/pages/auth/login", w.Header().Get("HX-Redirect"))
}

func TestMiddleware_Authenticated(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, users.RoleVendedor, 60)

	w := f.serve(request(http.MethodGet, "/pages/facturas/listar", true))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
	require.NotNil(t, f.seenMgr)
	require.Equal(t, "jperez", f.seenMgr.Profile(context.Background()).Username)
}

func TestMiddleware_Roles(t *testing.T) {
	t.Run("wrong role", func(t *testing.T) {
		f := newFixture(t)
		f.signIn(t, users.RoleVendedor, 60)

		w := f.serve(request(http.MethodGet, "/pages/usuarios", true))
		require.Equal(t, http.StatusSeeOther, w.Code)
		require.Equal(t, "/pages/auth/acceso-denegado", w.Header().Get("Location"))
		require.Equal(t, 0, f.served)
	})

	t.Run("wrong role ajax", func(t *testing.T) {
		f := newFixture(t)
		f.signIn(t, users.RoleVendedor, 60)

		r := request(http.MethodPost, "/usuario/crear", true)
		r.Header.Set("Accept", "application/json")
		w := f.serve(r)
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Contains(t, w.Body.String(), gate.MsgAccessDenied)
	})

	t.Run("role matches ignoring case", func(t *testing.T) {
		f := newFixture(t)
		f.signIn(t, "administrador", 60)

		w := f.serve(request(http.MethodGet, "/pages/usuarios", true))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, 1, f.served)
	})
}

func TestMiddleware_SecurityHeaders(t *testing.T) {
	f := newFixture(t)

	w := f.serve(request(http.MethodGet, "/pages/auth/login", false))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))
	require.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	require.Equal(t, "frame-ancestors 'self'", w.Header().Get("Content-Security-Policy"))

	// Rejections carry them too
	w = f.serve(request(http.MethodGet, "/pages/facturas/listar", false))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	t.Run("static assets are exempt", func(t *testing.T) {
		w := f.serve(request(http.MethodGet, "/css/site.css", false))
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("exemption does not bypass auth", func(t *testing.T) {
		served := f.served
		w := f.serve(request(http.MethodGet, "/pages/reportes/grafica.js", false))
		require.Equal(t, http.StatusSeeOther, w.Code)
		require.Empty(t, w.Header().Get("X-Content-Type-Options"))
		require.Equal(t, served, f.served)
	})
}

func TestMiddleware_RenewsNearExpiry(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	prevSessions, prevMem := sessions.NowTimeFunc, memstore.NowTimeFunc
	sessions.NowTimeFunc = func() time.Time { return now }
	memstore.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() {
		sessions.NowTimeFunc = prevSessions
		memstore.NowTimeFunc = prevMem
	})

	f := newFixture(t)
	f.signIn(t, users.RoleVendedor, 60)
	now = now.Add(55 * time.Minute)

	w := f.serve(request(http.MethodGet, "/pages/facturas/listar", true))
	require.Equal(t, http.StatusOK, w.Code)

	var renewed *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == tokenCookie {
			renewed = c
		}
	}
	require.NotNil(t, renewed)
	require.Equal(t, sessionToken, renewed.Value)
	require.True(t, renewed.HttpOnly)
	require.Equal(t, 60, f.seenMgr.RemainingMinutes(context.Background()))
}

func TestMiddleware_PassivePathsDoNotRenew(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	prevSessions, prevMem := sessions.NowTimeFunc, memstore.NowTimeFunc
	sessions.NowTimeFunc = func() time.Time { return now }
	memstore.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() {
		sessions.NowTimeFunc = prevSessions
		memstore.NowTimeFunc = prevMem
	})

	logger := zerolog.New(io.Discard)
	f := &fixture{server: memstore.New()}
	f.gate = gate.New(f.server, config.Session{}, gate.Options{Logger: &logger, PassivePaths: []string{"/api/sesion/estado"}})
	f.handler = f.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.served++
		f.seenMgr = lifecycle.FromContext(r.Context())
		_, _ = w.Write([]byte("ok"))
	}))
	f.signIn(t, users.RoleVendedor, 60)
	now = now.Add(55 * time.Minute)

	r := request(http.MethodGet, "/api/sesion/estado", true)
	r.Header.Set("Accept", "application/json")
	w := f.serve(r)
	require.Equal(t, http.StatusOK, w.Code)
	for _, c := range w.Result().Cookies() {
		require.NotEqual(t, tokenCookie, c.Name)
	}
	require.Equal(t, 5, f.seenMgr.RemainingMinutes(context.Background()))
}

func TestMiddleware_IssuesAgentCookie(t *testing.T) {
	f := newFixture(t)

	w := f.serve(httptest.NewRequest(http.MethodGet, "/pages/auth/login", nil))
	var agent *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == agentCookie {
			agent = c
		}
	}
	require.NotNil(t, agent)
	require.True(t, agent.HttpOnly)
	require.Len(t, agent.Value, 36)

	// A known agent is not reissued
	w = f.serve(request(http.MethodGet, "/pages/auth/login", false))
	for _, c := range w.Result().Cookies() {
		require.NotEqual(t, agentCookie, c.Name)
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, map[string]string, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Delete(context.Context, string, ...string) error { return errors.New("store down") }

func TestMiddleware_FailsOpen(t *testing.T) {
	logger := zerolog.New(io.Discard)
	g := gate.New(failingStore{}, config.Session{}, gate.Options{Logger: &logger})
	served := 0
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
	}))

	before := testutil.ToFloat64(metrics.GateFaultsTotal)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, request(http.MethodGet, "/pages/facturas/listar", true))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, served)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.GateFaultsTotal))
}

type panickySession struct{}

func (panickySession) Authenticated(context.Context) (bool, error) { panic("boom") }
func (panickySession) Profile(context.Context) *users.Profile     { return nil }
func (panickySession) SaveReturnURL(context.Context, string)       {}

func TestDecide(t *testing.T) {
	logger := zerolog.New(io.Discard)
	g := gate.New(memstore.New(), config.Session{}, gate.Options{Logger: &logger})
	rc := func(target string) sessions.RequestContext {
		return sessions.NewRequestContext(agentID, httptest.NewRequest(http.MethodGet, target, nil))
	}

	t.Run("public skips the session", func(t *testing.T) {
		out := g.Decide(context.Background(), rc("/css/site.css"), panickySession{})
		require.Equal(t, gate.Admitted, out.Decision)
		require.Equal(t, gate.Public, out.Classification)
		require.NoError(t, out.Fault)
	})

	t.Run("panic admits with fault", func(t *testing.T) {
		out := g.Decide(context.Background(), rc("/pages/facturas/listar"), panickySession{})
		require.Equal(t, gate.Admitted, out.Decision)
		require.Equal(t, gate.ProtectedPage, out.Classification)
		require.Error(t, out.Fault)
	})

	t.Run("decision names", func(t *testing.T) {
		require.Equal(t, "rejected_ajax", gate.RejectedAjax.String())
		require.Equal(t, "protected_page", gate.ProtectedPage.String())
	})
}
