package gate_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-billing-portal/gate"
	"github.com/stretchr/testify/require"
)

func TestClassifier(t *testing.T) {
	c := gate.NewClassifier(gate.DefaultPaths(), "/api/publico/")

	tests := []struct {
		name    string
		path    string
		headers http.Header
		want    gate.Classification
	}{
		{name: "login page", path: "/pages/auth/login", want: gate.Public},
		{name: "login case insensitive", path: "/Pages/Auth/LOGIN", want: gate.Public},
		{name: "logout", path: "/pages/auth/logout", want: gate.Public},
		{name: "access denied", path: "/pages/auth/acceso-denegado", want: gate.Public},
		{name: "css dir", path: "/css/site.css", want: gate.Public},
		{name: "lib dir", path: "/lib/htmx/htmx.min.js", want: gate.Public},
		{name: "favicon", path: "/favicon.ico", want: gate.Public},
		{name: "extra prefix", path: "/api/publico/estado", want: gate.Public},
		{name: "page", path: "/pages/facturas/listar", want: gate.ProtectedPage},
		{name: "root", path: "/", want: gate.ProtectedPage},
		{name: "script outside public dirs", path: "/pages/reportes/grafica.js", want: gate.ProtectedPage},
		{
			name:    "xhr",
			path:    "/factura/crear",
			headers: http.Header{"X-Requested-With": []string{"XMLHttpRequest"}},
			want:    gate.ProtectedAjax,
		},
		{
			name:    "accepts json",
			path:    "/api/sesion/estado",
			headers: http.Header{"Accept": []string{"application/json, text/plain, */*"}},
			want:    gate.ProtectedAjax,
		},
		{
			name:    "htmx is navigation",
			path:    "/pages/facturas/listar",
			headers: http.Header{"Hx-Request": []string{"true"}},
			want:    gate.ProtectedPage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.Classify(tt.path, tt.headers))
			// Same input, same answer
			require.Equal(t, tt.want, c.Classify(tt.path, tt.headers))
		})
	}
}

func TestIsStaticAsset(t *testing.T) {
	require.True(t, gate.IsStaticAsset("/css/site.css"))
	require.True(t, gate.IsStaticAsset("/pages/reportes/GRAFICA.JS"))
	require.True(t, gate.IsStaticAsset("/fonts/x.woff2"))
	require.False(t, gate.IsStaticAsset("/pages/facturas/listar"))
	require.False(t, gate.IsStaticAsset("/css/"))
	require.False(t, gate.IsStaticAsset("/health"))
}

func TestIsAjax(t *testing.T) {
	require.False(t, gate.IsAjax(nil))
	require.False(t, gate.IsAjax(http.Header{"Accept": []string{"text/html"}}))
	require.True(t, gate.IsAjax(http.Header{"X-Requested-With": []string{"xmlhttprequest"}}))
}

func TestPolicy(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		p := gate.DefaultPolicy()
		require.Equal(t, []string{"Administrador"}, p.RequiredRoles("/pages/usuarios/editar/3"))
		require.Equal(t, []string{"Administrador"}, p.RequiredRoles("/PAGES/USUARIOS"))
		require.Nil(t, p.RequiredRoles("/pages/facturas/listar"))
	})

	t.Run("longest prefix wins", func(t *testing.T) {
		p := gate.NewPolicy([]gate.Rule{
			{Prefix: "/pages/reportes", Roles: []string{"Contador", "Administrador"}},
			{Prefix: "/pages/reportes/ventas", Roles: []string{"Vendedor"}},
			{Prefix: " ", Roles: []string{"ignored"}},
		})
		require.Equal(t, []string{"Vendedor"}, p.RequiredRoles("/pages/reportes/ventas/mes"))
		require.Equal(t, []string{"Contador", "Administrador"}, p.RequiredRoles("/pages/reportes/iva"))
		require.Len(t, p.Rules, 2)
	})

	t.Run("yaml file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`
rules:
  - prefix: /pages/usuarios
    roles: [Administrador]
  - prefix: /pages/reportes
    roles:
      - Contador
      - Administrador
`), 0o600))

		p, err := gate.LoadPolicy(file)
		require.NoError(t, err)
		require.Equal(t, []string{"Contador", "Administrador"}, p.RequiredRoles("/pages/reportes/iva"))
	})

	t.Run("bad yaml", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(file, []byte("rules: [prefix"), 0o600))
		_, err := gate.LoadPolicy(file)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := gate.LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("nil policy", func(t *testing.T) {
		var p *gate.Policy
		require.Nil(t, p.RequiredRoles("/x"))
	})
}
