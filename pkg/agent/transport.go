package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/uidriver/pkg/logger"
)

// Default retry policy values. Backoff is a fixed interval between attempts;
// MaxRetries counts retries after the first attempt, so MaxRetries=3 means
// up to four exchanges on the wire.
const (
	DefaultMaxRetries     = 3
	DefaultRetryInterval  = 1 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// RetryPolicy configures how the transport retries transient failures.
type RetryPolicy struct {
	MaxRetries     int           // Retries after the first attempt
	RetryInterval  time.Duration // Fixed wait between attempts
	RequestTimeout time.Duration // Per-request socket timeout
}

// DefaultRetryPolicy returns the documented default policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     DefaultMaxRetries,
		RetryInterval:  DefaultRetryInterval,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Request names a single HTTP exchange with the agent.
type Request struct {
	Method string
	Path   string
	Body   interface{} // JSON-encoded when non-nil
}

// Response is the agent's reply to a successful exchange.
type Response struct {
	StatusCode int
	Body       []byte
}

// Value unmarshals the response body into v.
func (r *Response) Value(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, string(r.Body))
	}
	return nil
}

// Transport exchanges HTTP requests with one agent endpoint, retrying
// transient connection failures per its RetryPolicy. Application-level error
// responses from the agent are passed through verbatim and never retried.
//
// A Transport owns its connections exclusively and is driven by a single
// logical caller; concurrent callers must serialize externally.
type Transport struct {
	endpoint Endpoint
	policy   RetryPolicy
	http     *http.Client
}

// NewTransport creates a Transport for the given endpoint.
func NewTransport(endpoint Endpoint, policy RetryPolicy) *Transport {
	if policy.RetryInterval <= 0 {
		policy.RetryInterval = DefaultRetryInterval
	}
	if policy.RequestTimeout <= 0 {
		policy.RequestTimeout = DefaultRequestTimeout
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Transport{
		endpoint: endpoint,
		policy:   policy,
		http:     &http.Client{Timeout: policy.RequestTimeout},
	}
}

// Endpoint returns the endpoint this transport talks to.
func (t *Transport) Endpoint() Endpoint { return t.endpoint }

// Policy returns the transport's retry policy.
func (t *Transport) Policy() RetryPolicy { return t.policy }

// WithPolicy returns a transport sharing this transport's connections but
// applying a different retry policy. Used by the readiness prober, which
// must not stack retries inside its own poll loop.
func (t *Transport) WithPolicy(policy RetryPolicy) *Transport {
	if policy.RetryInterval <= 0 {
		policy.RetryInterval = DefaultRetryInterval
	}
	return &Transport{endpoint: t.endpoint, policy: policy, http: t.http}
}

// Execute performs one request against the agent, retrying transient
// connection failures up to the policy limit. On exhaustion it returns an
// *ExhaustedError wrapping the last transient failure; agent error responses
// come back as *AppError without any retry.
func (t *Transport) Execute(ctx context.Context, req Request) (*Response, error) {
	var data []byte
	if req.Body != nil {
		var err error
		data, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	var resp *Response
	attempts := 0
	op := func() error {
		attempts++
		r, err := t.attempt(ctx, req, data)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if isTransient(err) {
				terr := &TransientError{Op: req.Method + " " + req.Path, Err: err}
				logger.Warn("%s %s attempt %d failed: %v", req.Method, req.Path, attempts, err)
				return terr
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(t.policy.RetryInterval), uint64(t.policy.MaxRetries)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		var terr *TransientError
		if errors.As(err, &terr) {
			return nil, &ExhaustedError{Attempts: attempts, Err: terr}
		}
		return nil, err
	}
	return resp, nil
}

// attempt performs a single exchange.
func (t *Transport) attempt(ctx context.Context, req Request, data []byte) (*Response, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.endpoint.URL(req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := t.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		logger.Debug("%s %s [%v] ERR:%d", req.Method, req.Path, elapsed, httpResp.StatusCode)
		return nil, newAppError(httpResp.StatusCode, respBody)
	}

	logger.Debug("%s %s [%v] OK", req.Method, req.Path, elapsed)
	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

// newAppError builds an AppError, extracting the agent's error envelope when
// the body carries one ({"value": {"error": ..., "message": ...}}).
func newAppError(status int, body []byte) *AppError {
	appErr := &AppError{StatusCode: status, Body: body}

	var envelope struct {
		Value struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		} `json:"value"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		appErr.Kind = envelope.Value.Error
		appErr.Message = envelope.Value.Message
	}
	return appErr
}

// isTransient reports whether err is a connection-level failure worth
// retrying: refused or reset connections and socket timeouts. Everything
// else, including agent error responses, is final.
func isTransient(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// A connection dropped before the response arrives surfaces as EOF.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
