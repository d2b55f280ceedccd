package intercept

// FailureKind is the failure taxonomy every API outcome is sorted into.
type FailureKind string

const (
	KindNone           FailureKind = ""
	KindAuthentication FailureKind = "authentication" // absent, expired or rejected credential
	KindAuthorization  FailureKind = "authorization"  // signed in with the wrong role
	KindValidation     FailureKind = "validation"
	KindConflict       FailureKind = "conflict"
	KindNotFound       FailureKind = "not_found"
	KindTransport      FailureKind = "transport" // network or timeout
	KindInternal       FailureKind = "internal"
)

// Outcome is what one API call amounted to, after interception. The
// interceptor rewrites it in place.
type Outcome struct {
	Succeeded  bool        `json:"Exito"`
	Message    string      `json:"Mensaje"`
	Detail     string      `json:"Detalle"`
	Kind       FailureKind `json:"-"`
	RedirectTo string      `json:"-"` // set when the caller must send the user elsewhere
	HTTPStatus int         `json:"-"` // zero when no response was received

	actor string // user captured before the session was ended
}

// Result is an Outcome carrying the decoded payload, if any.
type Result[T any] struct {
	Outcome
	Payload *T `json:"Resultado,omitempty"`
}

// Failed builds a failure outcome. Transport errors use it before the
// interceptor sees them.
func Failed(kind FailureKind, message, detail string) Outcome {
	return Outcome{Kind: kind, Message: message, Detail: detail}
}

// NeedsLogin reports whether the outcome ended the session.
func (o Outcome) NeedsLogin() bool {
	return o.Kind == KindAuthentication && o.RedirectTo != ""
}

func (o Outcome) label() string {
	if o.Succeeded {
		return "success"
	}
	if o.Kind == KindNone {
		return string(KindInternal)
	}
	return string(o.Kind)
}
