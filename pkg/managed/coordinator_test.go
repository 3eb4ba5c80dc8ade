package managed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/devicelab-dev/uidriver/pkg/agent"
	"github.com/devicelab-dev/uidriver/pkg/device"
)

func endpointFor(t *testing.T, serverURL string) agent.Endpoint {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	ep, err := agent.NewEndpoint(u.Hostname(), port, "")
	if err != nil {
		t.Fatalf("build endpoint: %v", err)
	}
	return ep
}

func TestPerformSendsStructuralPayload(t *testing.T) {
	var got performRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/perform" {
			t.Errorf("path = %s, want /perform", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"value": "done"})
	}))
	defer server.Close()

	coord := New(endpointFor(t, server.URL), agent.DefaultRetryPolicy())
	ref := device.Ref{ID: "emulator-5554", Host: "127.0.0.1", Port: 6790}

	result, err := coord.Perform(context.Background(), "tap", map[string]interface{}{
		"query":    "button",
		"duration": 0.5,
	}, ref)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if result != "done" {
		t.Errorf("result = %v, want done", result)
	}

	if got.Operation != "tap" {
		t.Errorf("operation = %q", got.Operation)
	}
	if got.RequestID == "" {
		t.Error("requestId must be set")
	}
	if got.Device.ID != "emulator-5554" {
		t.Errorf("device ref = %+v", got.Device)
	}
	if got.Args["duration"] != 0.5 {
		t.Errorf("args = %v", got.Args)
	}
}

func TestPerformPassesThroughCoordinatorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": map[string]interface{}{
				"error":   "device busy",
				"message": "device is attached to another run",
			},
		})
	}))
	defer server.Close()

	coord := New(endpointFor(t, server.URL), agent.DefaultRetryPolicy())
	_, err := coord.Perform(context.Background(), "tap", nil, device.Ref{ID: "d"})

	var appErr *agent.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %T, want *agent.AppError", err)
	}
	if appErr.Kind != "device busy" {
		t.Errorf("Kind = %q", appErr.Kind)
	}
}

func TestPerformUnreachableCoordinator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ep := endpointFor(t, server.URL)
	server.Close()

	coord := New(ep, agent.RetryPolicy{MaxRetries: 1, RetryInterval: 5 * time.Millisecond})
	_, err := coord.Perform(context.Background(), "tap", nil, device.Ref{ID: "d"})

	var exhausted *agent.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %T (%v), want *agent.ExhaustedError", err, err)
	}
}

func TestCoordinatorImplementsDeviceCoordinator(t *testing.T) {
	var _ device.Coordinator = (*Coordinator)(nil)
}
