package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth pages, public
	RouteLogin        = "/pages/auth/login"
	RouteLogout       = "/pages/auth/logout"
	RouteAccessDenied = "/pages/auth/acceso-denegado"

	// Pages
	RouteDashboard     = "/pages/dashboard"
	RouteInvoiceList   = "/pages/facturas/listar"
	RouteUserAdminList = "/pages/usuarios"

	// AJAX endpoints
	RouteInvoiceCreate = "/factura/crear"
	RouteSessionStatus = "/api/sesion/estado"

	// Operations
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)

// Backend endpoints, relative to the API base URL
const (
	EndpointLogin    = "auth/login"
	EndpointLogout   = "auth/logout"
	EndpointInvoices = "facturas"
	EndpointUsers    = "usuarios"
)
