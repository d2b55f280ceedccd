package intercept

import (
	"strings"
)

const (
	MsgValidation     = "Los datos enviados no son válidos"
	MsgDuplicate      = "El registro ya existe"
	MsgNotFound       = "La información no fue encontrada"
	MsgSessionExpired = "Sesión expirada"
	MsgSignInAgain    = "Debe iniciar sesión nuevamente"
	MsgCritical       = "Error crítico del sistema"
)

type rewriteRule struct {
	keywords []string
	message  string
	kind     FailureKind
}

// Evaluated in order; the first rule with a matching keyword wins.
var rewriteRules = []rewriteRule{
	{keywords: []string{"validation", "validación"}, message: MsgValidation, kind: KindValidation},
	{keywords: []string{"already exists", "duplicate", "ya existe", "duplicado"}, message: MsgDuplicate, kind: KindConflict},
	{keywords: []string{"not found", "no encontrado"}, message: MsgNotFound, kind: KindNotFound},
}

var authKeywords = []string{"unauthorized", "session", "token"}

type friendlyPhrase struct {
	phrase  string
	message string
	kind    FailureKind
}

var friendlyPhrases = []friendlyPhrase{
	{phrase: "Bad Request", message: "La solicitud no es válida", kind: KindValidation},
	{phrase: "Unauthorized", message: "No autorizado", kind: KindAuthentication},
	{phrase: "Forbidden", message: "No tiene permisos para realizar esta acción", kind: KindAuthorization},
	{phrase: "Not Found", message: "El recurso solicitado no existe", kind: KindNotFound},
	{phrase: "Request Timeout", message: "La solicitud excedió el tiempo de espera", kind: KindTransport},
	{phrase: "Conflict", message: "La operación entra en conflicto con el estado actual", kind: KindConflict},
	{phrase: "Internal Server Error", message: "Error interno del servidor", kind: KindInternal},
	{phrase: "Bad Gateway", message: "Error de comunicación con el servidor", kind: KindTransport},
	{phrase: "Service Unavailable", message: "El servicio no está disponible en este momento", kind: KindTransport},
	{phrase: "Gateway Timeout", message: "El servidor tardó demasiado en responder", kind: KindTransport},
}

// Classification is the verdict on one failure's message and detail.
type Classification struct {
	Message     string
	Detail      string
	Kind        FailureKind // KindNone when nothing matched
	AuthFailure bool
}

// Classify applies, in this order: keyword rewrites to message and detail
// independently, auth detection on the raw message, then the exact
// phrase table if the message is still untouched. It has no side effects.
func Classify(message, detail string) Classification {
	c := Classification{Message: message, Detail: detail}

	msgRule, msgMatched := matchRewrite(message)
	if msgMatched {
		c.Message = msgRule.message
		c.Kind = msgRule.kind
	}
	if detailRule, ok := matchRewrite(detail); ok {
		c.Detail = detailRule.message
		if c.Kind == KindNone {
			c.Kind = detailRule.kind
		}
	}

	if containsAny(message, authKeywords) {
		c.AuthFailure = true
		c.Kind = KindAuthentication
		c.Message = MsgSessionExpired
		c.Detail = MsgSignInAgain
		return c
	}

	if msgMatched {
		return c
	}

	trimmed := strings.TrimSpace(message)
	for _, f := range friendlyPhrases {
		if strings.EqualFold(trimmed, f.phrase) {
			c.Message = f.message
			if c.Kind == KindNone {
				c.Kind = f.kind
			}
			break
		}
	}
	return c
}

func matchRewrite(text string) (rewriteRule, bool) {
	for _, rule := range rewriteRules {
		if containsAny(text, rule.keywords) {
			return rule, true
		}
	}
	return rewriteRule{}, false
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsLogoutEndpoint reports whether an endpoint path names a logout action.
func IsLogoutEndpoint(endpoint string) bool {
	path := endpoint
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, segment := range strings.Split(strings.ToLower(path), "/") {
		switch segment {
		case "logout", "cerrar-sesion", "signout":
			return true
		}
	}
	return false
}
