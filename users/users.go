package users

import (
	"strings"
)

// RoleType names a portal role as the backend spells it.
type RoleType = string

const (
	RoleAdministrador RoleType = "Administrador"
	RoleVendedor      RoleType = "Vendedor"
	RoleContador      RoleType = "Contador"
)

// Profile is the signed-in user as returned by the backend on login. The
// portal never edits it; a new login replaces it wholesale.
type Profile struct {
	ID         int64     `json:"Id"`               // Backend user id, sent as the actor header
	Username   string    `json:"Usuario"`          // Login name
	FullName   string    `json:"NombreCompleto"`   // Display name
	Role       string    `json:"Rol"`              // Single role name
	Email      string    `json:"Correo,omitempty"` // Contact address
	LastAccess Timestamp `json:"UltimoAcceso"`     // Previous successful login
}

// HasAnyRole reports whether the profile's role matches one of roles,
// ignoring case. An empty list means no role is required.
func (p *Profile) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	if p == nil {
		return false
	}
	role := strings.TrimSpace(p.Role)
	for _, r := range roles {
		if strings.EqualFold(role, strings.TrimSpace(r)) {
			return true
		}
	}
	return false
}

// DisplayName prefers the full name and falls back to the login name.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}
