package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jrsteele09/go-billing-portal/apiclient"
	"github.com/jrsteele09/go-billing-portal/intercept"
	"github.com/jrsteele09/go-billing-portal/internal/respond"
)

const maxFormBytes = 1 << 20

// SessionStatus is the Resultado of GET /api/sesion/estado
type SessionStatus struct {
	MinutosRestantes int    `json:"MinutosRestantes"`
	PorExpirar       bool   `json:"PorExpirar"`
	Usuario          string `json:"Usuario"`
}

// InvoiceCreateHandler forwards an invoice form to the backend as is
// (POST /factura/crear)
func (s *Server) InvoiceCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, rc := requestSession(r)
		if mgr == nil {
			respond.JSON(w, http.StatusInternalServerError, intercept.Failed(intercept.KindInternal, intercept.MsgCritical, ""))
			return
		}

		var form map[string]any
		body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
		if err == nil {
			err = json.Unmarshal(body, &form)
		}
		if err != nil || form == nil {
			respond.JSON(w, http.StatusBadRequest, intercept.Failed(intercept.KindValidation, intercept.MsgValidation, ""))
			return
		}

		res := apiclient.Post[Invoice](r.Context(), s.api, mgr, rc, EndpointInvoices, form)
		respond.JSON(w, statusFor(res.Outcome), res)
	}
}

// SessionStatusHandler reports how long the session has left
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, _ := requestSession(r)
		if mgr == nil {
			respond.JSON(w, http.StatusInternalServerError, intercept.Failed(intercept.KindInternal, intercept.MsgCritical, ""))
			return
		}

		status := SessionStatus{
			MinutosRestantes: mgr.RemainingMinutes(r.Context()),
			PorExpirar:       mgr.IsNearExpiry(r.Context(), mgr.RenewThreshold()),
		}
		if p := mgr.Profile(r.Context()); p != nil {
			status.Usuario = p.Username
		}
		respond.JSON(w, http.StatusOK, intercept.Result[SessionStatus]{
			Outcome: intercept.Outcome{Succeeded: true},
			Payload: &status,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// statusFor maps an intercepted outcome to the status of the AJAX reply.
func statusFor(o intercept.Outcome) int {
	if o.Succeeded {
		return http.StatusOK
	}
	switch o.Kind {
	case intercept.KindAuthentication:
		return http.StatusUnauthorized
	case intercept.KindAuthorization:
		return http.StatusForbidden
	case intercept.KindValidation:
		return http.StatusBadRequest
	case intercept.KindConflict:
		return http.StatusConflict
	case intercept.KindNotFound:
		return http.StatusNotFound
	case intercept.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
