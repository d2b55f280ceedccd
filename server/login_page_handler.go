package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-billing-portal/apiclient"
	"github.com/jrsteele09/go-billing-portal/intercept"
	"github.com/jrsteele09/go-billing-portal/users"
)

const (
	MsgMissingCredentials = "Ingrese usuario y contraseña"
	MsgBadCredentials     = "Usuario o contraseña incorrectos"
	MsgSignedOut          = "Sesión cerrada correctamente"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName  string
	Profile  *users.Profile // always nil, the layout hides the menu
	Username string         // Preserve username on error
	Error    string
	Notice   string
}

// loginRequest is the credential payload the backend expects
type loginRequest struct {
	Usuario    string `json:"Usuario"`
	Contrasena string `json:"Contrasena"`
}

// loginResult is the Resultado of a successful backend login
type loginResult struct {
	Token             string        `json:"Token"`
	Usuario           users.Profile `json:"Usuario"`
	MinutosExpiracion int           `json:"MinutosExpiracion"`
}

// LoginPageHandler displays the login page (GET /pages/auth/login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, _ := requestSession(r)
		if mgr != nil && mgr.IsAuthenticated(r.Context()) {
			redirectSuccess(w, r, RouteDashboard)
			return
		}

		data := LoginPageData{
			AppName:  s.config.GetAppName(),
			Username: r.URL.Query().Get("usuario"),
			Error:    r.URL.Query().Get("error"),
		}
		if r.URL.Query().Has("salida") {
			data.Notice = MsgSignedOut
		}
		s.renderPage(w, http.StatusOK, pageLogin, data)
	}
}

// LoginSubmissionHandler posts the credentials to the backend and opens the
// session from its answer (POST /pages/auth/login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, rc := requestSession(r)
		if mgr == nil {
			redirectWithError(w, r, RouteLogin, intercept.MsgCritical)
			return
		}

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteLogin, MsgMissingCredentials)
			return
		}
		username := strings.TrimSpace(r.PostFormValue("usuario"))
		password := r.PostFormValue("contrasena")
		if username == "" || password == "" {
			redirectWithError(w, r, RouteLogin, MsgMissingCredentials)
			return
		}

		// Anonymous call: a rejected password must not touch the current session
		res := apiclient.Post[loginResult](r.Context(), s.api, nil, rc, EndpointLogin, loginRequest{
			Usuario:    username,
			Contrasena: password,
		})
		if !res.Succeeded || res.Payload == nil || res.Payload.Token == "" {
			msg := res.Message
			if res.Kind == intercept.KindAuthentication || msg == "" {
				msg = MsgBadCredentials
			}
			s.logger.Info().Str("user", username).Str("outcome", string(res.Kind)).Msg("login rejected")
			redirectWithError(w, r, RouteLogin, msg)
			return
		}

		store := mgr.Store()
		store.Establish(r.Context(), res.Payload.Token, res.Payload.Usuario, res.Payload.MinutosExpiracion)
		s.logger.Info().Str("user", res.Payload.Usuario.Username).Msg("session established")

		redirectSuccess(w, r, localTarget(store.TakeReturnURL(r.Context()), RouteDashboard))
	}
}

// LogoutHandler tells the backend and always ends the local session
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, rc := requestSession(r)
		if mgr != nil {
			if mgr.IsAuthenticated(r.Context()) {
				apiclient.Post[struct{}](r.Context(), s.api, mgr, rc, EndpointLogout, nil)
			}
			// The interceptor closes on logout endpoints; this covers the anonymous case
			mgr.Close(r.Context())
		}
		redirectSuccess(w, r, RouteLogin+"?salida=1")
	}
}
