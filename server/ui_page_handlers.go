package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-billing-portal/apiclient"
	"github.com/jrsteele09/go-billing-portal/intercept"
	"github.com/jrsteele09/go-billing-portal/users"
)

// PageData is shared by every signed-in page
type PageData struct {
	AppName          string
	Profile          *users.Profile
	RemainingMinutes int
	Error            string
}

// Invoice is the list row the backend returns. Amounts are shown as sent.
type Invoice struct {
	ID      int64       `json:"Id"`
	Folio   string      `json:"Folio"`
	Cliente string      `json:"Cliente"`
	Fecha   string      `json:"Fecha"`
	Total   json.Number `json:"Total"`
	Estado  string      `json:"Estado"`
}

type InvoiceListData struct {
	PageData
	Invoices []Invoice
	Page     int
}

type UserListData struct {
	PageData
	Users []users.Profile
}

func (s *Server) pageData(r *http.Request) PageData {
	data := PageData{AppName: s.config.GetAppName()}
	if mgr, _ := requestSession(r); mgr != nil {
		data.Profile = mgr.Profile(r.Context())
		data.RemainingMinutes = mgr.RemainingMinutes(r.Context())
	}
	return data
}

// DashboardHandler renders the landing page after sign in
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, http.StatusOK, pageDashboard, s.pageData(r))
	}
}

// InvoiceListHandler renders one page of invoices fetched from the backend
func (s *Server) InvoiceListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, rc := requestSession(r)
		if mgr == nil {
			s.renderPage(w, http.StatusInternalServerError, pageInvoices, InvoiceListData{PageData: PageData{AppName: s.config.GetAppName(), Error: intercept.MsgCritical}})
			return
		}

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}

		res := apiclient.Get[[]Invoice](r.Context(), s.api, mgr, rc, EndpointInvoices+"?pagina="+strconv.Itoa(page))
		if res.NeedsLogin() {
			redirectSuccess(w, r, res.RedirectTo)
			return
		}

		data := InvoiceListData{PageData: s.pageData(r), Page: page}
		if !res.Succeeded {
			data.Error = res.Message
		} else if res.Payload != nil {
			data.Invoices = *res.Payload
		}
		s.renderPage(w, http.StatusOK, pageInvoices, data)
	}
}

// UserAdminListHandler lists portal users; the gate restricts it to administrators
func (s *Server) UserAdminListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mgr, rc := requestSession(r)
		if mgr == nil {
			s.renderPage(w, http.StatusInternalServerError, pageUsers, UserListData{PageData: PageData{AppName: s.config.GetAppName(), Error: intercept.MsgCritical}})
			return
		}

		res := apiclient.Get[[]users.Profile](r.Context(), s.api, mgr, rc, EndpointUsers)
		if res.NeedsLogin() {
			redirectSuccess(w, r, res.RedirectTo)
			return
		}

		data := UserListData{PageData: s.pageData(r)}
		if !res.Succeeded {
			data.Error = res.Message
		} else if res.Payload != nil {
			data.Users = *res.Payload
		}
		s.renderPage(w, http.StatusOK, pageUsers, data)
	}
}

// AccessDeniedHandler is where the gate sends signed-in users lacking a role
func (s *Server) AccessDeniedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, http.StatusForbidden, pageAccessDenied, s.pageData(r))
	}
}
