package ios

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/devicelab-dev/uidriver/pkg/agent"
	"github.com/devicelab-dev/uidriver/pkg/device"
)

func newTestPlatform(t *testing.T, handler http.HandlerFunc) (*Platform, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	ep, err := agent.NewEndpoint(u.Hostname(), port, "")
	if err != nil {
		t.Fatalf("build endpoint: %v", err)
	}
	p, err := New("ABCD-1234", agent.NewTransport(ep, agent.DefaultRetryPolicy()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, server
}

func TestNewRequiresUDIDAndTransport(t *testing.T) {
	ep, _ := agent.NewEndpoint("localhost", 8100, "")
	tr := agent.NewTransport(ep, agent.DefaultRetryPolicy())

	if _, err := New("", tr); err == nil {
		t.Error("empty UDID must fail")
	}
	if _, err := New("ABCD", nil); err == nil {
		t.Error("nil transport must fail")
	}
}

func TestStartAppLaunchesThroughAgent(t *testing.T) {
	var got map[string]interface{}
	p, server := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wda/apps/launch" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
	})
	defer server.Close()

	app := &device.App{ID: "com.example.app"}
	if err := p.StartApp(context.Background(), app); err != nil {
		t.Fatalf("StartApp: %v", err)
	}
	if got["bundleId"] != "com.example.app" {
		t.Errorf("bundleId = %v", got["bundleId"])
	}
}

func TestLongPressPath(t *testing.T) {
	var gotPath string
	var got map[string]interface{}
	p, server := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{"value": nil})
	})
	defer server.Close()

	opts := device.GestureOptions{Duration: device.DefaultGestureDuration}
	if err := p.LongPress(context.Background(), "button", opts); err != nil {
		t.Fatalf("LongPress: %v", err)
	}
	if gotPath != "/wda/touchAndHold" {
		t.Errorf("path = %s, want /wda/touchAndHold", gotPath)
	}
	if got["duration"] != 0.5 {
		t.Errorf("duration = %v, want 0.5", got["duration"])
	}
}

func TestPortForwardIsNoOp(t *testing.T) {
	p, server := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("port forward must not hit the agent")
	})
	defer server.Close()

	if err := p.PortForward(context.Background(), 8100, 8100); err != nil {
		t.Fatalf("PortForward: %v", err)
	}
}

func TestClearAppDataRequiresBundlePath(t *testing.T) {
	p, server := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {})
	defer server.Close()

	app := &device.App{ID: "com.example.app"}
	if err := p.ClearAppData(context.Background(), app); err == nil {
		t.Error("clear without a bundle path must fail")
	}
}

func TestPlatformImplementsDevicePlatform(t *testing.T) {
	var _ device.Platform = (*Platform)(nil)
}
