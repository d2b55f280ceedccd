// Package apiclient calls the billing backend on behalf of the signed-in
// user and hands every result to the response interceptor.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-billing-portal/intercept"
	"github.com/jrsteele09/go-billing-portal/internal/config"
	"github.com/jrsteele09/go-billing-portal/internal/errors"
	"github.com/jrsteele09/go-billing-portal/internal/telemetry"
	"github.com/jrsteele09/go-billing-portal/sessions"
	perrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HeaderSiteID  = "X-Site-Id"
	HeaderSiteKey = "X-Site-Key"
	HeaderActorID = "X-Actor-Id"

	MsgTimeout         = "La solicitud excedió el tiempo de espera"
	MsgUnreachable     = "No se pudo conectar con el servidor"
	MsgInvalidResponse = "La respuesta del servidor no es válida"
	MsgInvalidRequest  = "No se pudo preparar la solicitud"

	maxBodyBytes = 10 << 20
)

// Session is what the client needs from the caller's session to decide
// which credentials to send.
type Session interface {
	intercept.Session
	Token(ctx context.Context) string
}

// Envelope is the backend's uniform response shape.
type Envelope[T any] struct {
	Exito     bool   `json:"Exito"`
	Mensaje   string `json:"Mensaje"`
	Detalle   string `json:"Detalle"`
	Resultado *T     `json:"Resultado"`
}

type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	siteID      string
	siteKey     string
	interceptor *intercept.Interceptor
	logger      zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its Timeout is left as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New builds a client for cfg's base URL.
func New(cfg config.APIConfig, interceptor *intercept.Interceptor, opts ...Option) (*Client, error) {
	base := cfg.GetAPIBaseURL()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, perrors.Wrapf(err, "[New] invalid api base url %q", base)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, perrors.Errorf("[New] api base url %q must be absolute", base)
	}

	timeout := cfg.GetAPITimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		siteID:      cfg.GetSiteID(),
		siteKey:     cfg.GetSiteKey(),
		interceptor: interceptor,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call sends one request and returns the intercepted result. It never
// returns nil. sess may be nil for anonymous calls.
func Call[T any](ctx context.Context, c *Client, sess Session, rc sessions.RequestContext, method, endpoint string, body any) *intercept.Result[T] {
	ctx, span := telemetry.StartAPICallSpan(ctx, method, endpoint)

	res := &intercept.Result[T]{}
	status, raw, failure := c.send(ctx, sess, method, endpoint, body)
	if failure != nil {
		res.Outcome = *failure
	} else {
		decode(raw, status, res)
	}
	res.HTTPStatus = status

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.interceptor.ForceAuthFailure(ctx, sess, rc, &res.Outcome)
	}
	c.interceptor.Process(ctx, sess, rc, intercept.Call{Method: method, Endpoint: endpoint}, &res.Outcome)
	if !res.Succeeded {
		res.Payload = nil
	}

	telemetry.EndAPICallSpan(span, status, outcomeLabel(res.Outcome), res.Succeeded)
	return res
}

// Get is Call with GET and no body.
func Get[T any](ctx context.Context, c *Client, sess Session, rc sessions.RequestContext, endpoint string) *intercept.Result[T] {
	return Call[T](ctx, c, sess, rc, http.MethodGet, endpoint, nil)
}

// Post is Call with POST.
func Post[T any](ctx context.Context, c *Client, sess Session, rc sessions.RequestContext, endpoint string, body any) *intercept.Result[T] {
	return Call[T](ctx, c, sess, rc, http.MethodPost, endpoint, body)
}

// send performs the HTTP exchange. A non-nil failure means no usable
// response was received.
func (c *Client) send(ctx context.Context, sess Session, method, endpoint string, body any) (int, []byte, *intercept.Outcome) {
	req, err := c.newRequest(ctx, sess, method, endpoint, body)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("api request could not be built")
		failure := intercept.Failed(intercept.KindInternal, MsgInvalidRequest, "")
		return 0, nil, &failure
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind, msg := intercept.KindTransport, MsgUnreachable
		wrapped := errors.Wrapf(errors.ErrUnreachable, "%s %s: %v", method, endpoint, err)
		if isTimeout(err) {
			msg = MsgTimeout
			wrapped = errors.Wrapf(errors.ErrTimeout, "%s %s: %v", method, endpoint, err)
		}
		c.logger.Warn().Err(wrapped).Msg("api call failed")
		failure := intercept.Failed(kind, msg, "")
		return 0, nil, &failure
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		kind, msg := intercept.KindTransport, MsgUnreachable
		if isTimeout(err) {
			msg = MsgTimeout
		}
		c.logger.Warn().Err(perrors.Wrap(err, "[send] reading response body")).Str("endpoint", endpoint).Msg("api call failed")
		failure := intercept.Failed(kind, msg, "")
		return resp.StatusCode, nil, &failure
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) newRequest(ctx context.Context, sess Session, method, endpoint string, body any) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return nil, perrors.Wrapf(err, "[newRequest] invalid endpoint %q", endpoint)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, perrors.Wrap(err, "[newRequest] encoding body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), reader)
	if err != nil {
		return nil, perrors.Wrap(err, "[newRequest]")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderSiteID, c.siteID)
	req.Header.Set(HeaderSiteKey, c.siteKey)
	c.applyCredentials(ctx, req, sess)
	return req, nil
}

// applyCredentials replaces any auth headers with the session's. Anonymous
// calls carry none.
func (c *Client) applyCredentials(ctx context.Context, req *http.Request, sess Session) {
	req.Header.Del("Authorization")
	req.Header.Del(HeaderActorID)

	if sess == nil || !sess.IsAuthenticated(ctx) {
		return
	}
	if tok := sess.Token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if p := sess.Profile(ctx); p != nil {
		req.Header.Set(HeaderActorID, strconv.FormatInt(p.ID, 10))
	}
}

func decode[T any](raw []byte, status int, res *intercept.Result[T]) {
	ok2xx := status >= 200 && status < 300

	if len(bytes.TrimSpace(raw)) == 0 {
		if ok2xx {
			res.Succeeded = true
			return
		}
		res.Outcome = intercept.Outcome{Message: http.StatusText(status)}
		return
	}

	var env Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Debug().Err(perrors.Wrap(errors.ErrInvalidResponse, err.Error())).Int("status", status).Msg("undecodable api response")
		if ok2xx {
			res.Outcome = intercept.Failed(intercept.KindInternal, MsgInvalidResponse, "")
			return
		}
		res.Outcome = intercept.Outcome{Message: http.StatusText(status)}
		return
	}

	res.Succeeded = env.Exito && status < 400
	res.Message = env.Mensaje
	res.Detail = env.Detalle
	res.Payload = env.Resultado
	if !res.Succeeded && res.Message == "" {
		res.Message = http.StatusText(status)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeLabel(o intercept.Outcome) string {
	if o.Succeeded {
		return "success"
	}
	if o.Kind == intercept.KindNone {
		return string(intercept.KindInternal)
	}
	return string(o.Kind)
}
