package device

import (
	"context"

	"github.com/devicelab-dev/uidriver/pkg/agent"
)

// Ref identifies a device across the coordinator boundary. Only structural
// data crosses the wire: no live transports or platform handles.
type Ref struct {
	ID         string `json:"id"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	PathPrefix string `json:"pathPrefix,omitempty"`
}

// NewRef builds a Ref from a device identifier and endpoint.
func NewRef(id string, ep agent.Endpoint) Ref {
	return Ref{ID: id, Host: ep.Host(), Port: ep.Port(), PathPrefix: ep.PathPrefix()}
}

// Coordinator executes device operations on behalf of the caller when
// managed execution is active. The coordinator is an external service; the
// core only depends on this dispatch contract.
type Coordinator interface {
	Perform(ctx context.Context, operation string, args map[string]interface{}, ref Ref) (interface{}, error)
}
