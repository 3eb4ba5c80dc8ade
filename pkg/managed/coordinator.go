// Package managed implements the remote-coordinator client used when
// managed execution is active: every device operation is shipped as
// structural data to one coordination endpoint instead of running against
// the local agent.
package managed

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/devicelab-dev/uidriver/pkg/agent"
	"github.com/devicelab-dev/uidriver/pkg/device"
	"github.com/devicelab-dev/uidriver/pkg/logger"
)

// performRequest is the wire payload for one routed operation. Only
// structural data crosses this boundary.
type performRequest struct {
	RequestID string                 `json:"requestId"`
	Operation string                 `json:"operation"`
	Args      map[string]interface{} `json:"args"`
	Device    device.Ref             `json:"device"`
}

type performResponse struct {
	Value interface{} `json:"value"`
}

// Coordinator routes device operations to a remote coordination service
// over HTTP. It implements device.Coordinator.
type Coordinator struct {
	transport *agent.Transport
}

// New creates a Coordinator talking to the given endpoint. The coordinator
// gets its own transport; it never shares connections with a device's agent
// transport.
func New(endpoint agent.Endpoint, policy agent.RetryPolicy) *Coordinator {
	return &Coordinator{transport: agent.NewTransport(endpoint, policy)}
}

// Perform ships one operation to the coordinator and returns its result
// verbatim. Coordinator-side failures come back as the transport's error
// kinds: *agent.AppError for well-formed rejections, *agent.ExhaustedError
// when the coordinator is unreachable.
func (c *Coordinator) Perform(ctx context.Context, operation string, args map[string]interface{}, ref device.Ref) (interface{}, error) {
	req := performRequest{
		RequestID: uuid.NewString(),
		Operation: operation,
		Args:      args,
		Device:    ref,
	}

	logger.Debug("routing %s for device %s (request %s)", operation, ref.ID, req.RequestID)

	resp, err := c.transport.Execute(ctx, agent.Request{
		Method: http.MethodPost,
		Path:   "/perform",
		Body:   req,
	})
	if err != nil {
		return nil, err
	}

	var result performResponse
	if err := resp.Value(&result); err != nil {
		return nil, err
	}
	return result.Value, nil
}
