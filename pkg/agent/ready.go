package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Masterminds/semver"

	"github.com/devicelab-dev/uidriver/pkg/logger"
)

// Readiness defaults.
const (
	DefaultReadyTimeout  = 30 * time.Second
	DefaultProbeInterval = 500 * time.Millisecond
)

// Status is the agent's reply to a status probe.
type Status struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// Prober polls an agent until it responds to a status probe.
type Prober struct {
	transport *Transport
	path      string
	interval  time.Duration
}

// NewProber creates a Prober over the given transport. Probes go to /status
// and carry no per-probe retries; the poll loop itself is the retry.
func NewProber(transport *Transport) *Prober {
	return &Prober{
		transport: transport.WithPolicy(RetryPolicy{
			MaxRetries:     0,
			RetryInterval:  DefaultRetryInterval,
			RequestTimeout: transport.Policy().RequestTimeout,
		}),
		path:     "/status",
		interval: DefaultProbeInterval,
	}
}

// SetInterval overrides the wait between probes (default 500ms).
func (p *Prober) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// Status performs a single probe.
func (p *Prober) Status(ctx context.Context) (*Status, error) {
	resp, err := p.transport.Execute(ctx, Request{Method: http.MethodGet, Path: p.path})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Value Status `json:"value"`
	}
	if err := resp.Value(&envelope); err != nil {
		return nil, err
	}
	return &envelope.Value, nil
}

// WaitUntilReady blocks until one probe reports the agent ready or the
// wall-clock deadline passes. On expiry it returns a *ReadyTimeoutError;
// a probe still in flight at the deadline can never report success. A
// timeout <= 0 selects DefaultReadyTimeout.
func (p *Prober) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	deadline := time.Now().Add(timeout)

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var lastErr error
	for {
		if !time.Now().Before(deadline) {
			return &ReadyTimeoutError{Timeout: timeout, LastErr: lastErr}
		}

		status, err := p.Status(ctx)

		// A probe that finishes after the deadline is stale regardless of
		// its outcome.
		if !time.Now().Before(deadline) {
			if err != nil {
				lastErr = err
			}
			return &ReadyTimeoutError{Timeout: timeout, LastErr: lastErr}
		}

		if err == nil && status.Ready {
			logger.Info("agent ready: %s", status.Message)
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("agent not ready: %s", status.Message)
		}

		select {
		case <-ctx.Done():
			return &ReadyTimeoutError{Timeout: timeout, LastErr: lastErr}
		case <-time.After(p.interval):
		}
	}
}

// CheckVersion probes the agent and verifies its reported version is at
// least min (a semver string). Agents that report no version pass.
func (p *Prober) CheckVersion(ctx context.Context, min string) error {
	status, err := p.Status(ctx)
	if err != nil {
		return err
	}
	if status.Version == "" {
		return nil
	}

	have, err := semver.NewVersion(status.Version)
	if err != nil {
		return fmt.Errorf("agent reported unparseable version %q: %w", status.Version, err)
	}
	want, err := semver.NewVersion(min)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", min, err)
	}
	if have.LessThan(want) {
		return fmt.Errorf("agent version %s is older than required %s", have, want)
	}
	return nil
}
