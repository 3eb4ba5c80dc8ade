// Package agent provides the HTTP communication core for talking to an
// on-device automation agent: endpoint addressing, a retriable transport,
// and a readiness prober that waits for the agent to come up.
package agent

import (
	"fmt"
	"strings"
)

// Endpoint identifies the network location of an on-device agent.
// It is immutable once constructed; a Device owns exactly one.
type Endpoint struct {
	host   string
	port   int
	prefix string
}

// NewEndpoint creates an Endpoint for host:port with an optional path prefix.
// The prefix is normalized to start with "/" and carry no trailing slash.
func NewEndpoint(host string, port int, prefix string) (Endpoint, error) {
	if host == "" {
		return Endpoint{}, &ValidationError{Code: "bad_endpoint", Message: "endpoint host must not be empty"}
	}
	if port <= 0 || port > 65535 {
		return Endpoint{}, &ValidationError{Code: "bad_endpoint", Message: fmt.Sprintf("endpoint port out of range: %d", port)}
	}
	return Endpoint{host: host, port: port, prefix: normalizePrefix(prefix)}, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// Host returns the agent host or identifier.
func (e Endpoint) Host() string { return e.host }

// Port returns the agent port.
func (e Endpoint) Port() int { return e.port }

// PathPrefix returns the normalized path prefix ("" if none).
func (e Endpoint) PathPrefix() string { return e.prefix }

// BaseURL returns the root URL of the agent, prefix included.
func (e Endpoint) BaseURL() string {
	return fmt.Sprintf("http://%s:%d%s", e.host, e.port, e.prefix)
}

// URL returns the full URL for an operation path under this endpoint.
func (e Endpoint) URL(path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return e.BaseURL() + path
}

// String implements fmt.Stringer.
func (e Endpoint) String() string { return e.BaseURL() }
