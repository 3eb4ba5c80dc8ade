// Package ios implements the iOS platform backend: app lifecycle through
// simctl, gestures and screenshots through a WebDriverAgent-style on-device
// agent.
package ios

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	"github.com/devicelab-dev/uidriver/pkg/agent"
	"github.com/devicelab-dev/uidriver/pkg/device"
	"github.com/devicelab-dev/uidriver/pkg/logger"
)

// Platform is the iOS simulator backend. It implements device.Platform.
type Platform struct {
	udid      string
	transport *agent.Transport
}

// New creates an iOS Platform for the simulator with the given UDID.
func New(udid string, transport *agent.Transport) (*Platform, error) {
	if udid == "" {
		return nil, fmt.Errorf("ios platform requires a simulator UDID")
	}
	if transport == nil {
		return nil, fmt.Errorf("ios platform requires an agent transport")
	}
	return &Platform{udid: udid, transport: transport}, nil
}

// UDID returns the simulator identifier.
func (p *Platform) UDID() string { return p.udid }

// simctl runs an xcrun simctl subcommand against this simulator.
func (p *Platform) simctl(args ...string) (string, error) {
	cmdArgs := append([]string{"simctl"}, args...)
	cmd := exec.Command("xcrun", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("simctl %s: %w: %s", strings.Join(args, " "), err, errMsg)
	}
	return stdout.String(), nil
}

// StartApp launches the app through the agent so the session sees it.
func (p *Platform) StartApp(ctx context.Context, app *device.App) error {
	_, err := p.transport.Execute(ctx, agent.Request{
		Method: http.MethodPost,
		Path:   "/wda/apps/launch",
		Body:   map[string]interface{}{"bundleId": app.ID},
	})
	return err
}

// StopApp terminates the app through the agent.
func (p *Platform) StopApp(ctx context.Context, app *device.App) error {
	_, err := p.transport.Execute(ctx, agent.Request{
		Method: http.MethodPost,
		Path:   "/wda/apps/terminate",
		Body:   map[string]interface{}{"bundleId": app.ID},
	})
	return err
}

// InstallApp installs the app bundle via simctl.
func (p *Platform) InstallApp(_ context.Context, app *device.App) error {
	if app.Path == "" {
		return fmt.Errorf("install %s: no bundle path in application reference", app.ID)
	}
	_, err := p.simctl("install", p.udid, app.Path)
	return err
}

// EnsureAppInstalled installs the app only when it is missing.
func (p *Platform) EnsureAppInstalled(ctx context.Context, app *device.App) error {
	if p.isInstalled(app.ID) {
		return nil
	}
	return p.InstallApp(ctx, app)
}

// isInstalled checks the simulator's app container for the bundle.
func (p *Platform) isInstalled(bundleID string) bool {
	_, err := p.simctl("get_app_container", p.udid, bundleID)
	return err == nil
}

// UninstallApp removes the app via simctl.
func (p *Platform) UninstallApp(_ context.Context, app *device.App) error {
	_, err := p.simctl("uninstall", p.udid, app.ID)
	return err
}

// ClearAppData resets the app by reinstalling its bundle. simctl has no
// data-reset subcommand, so a reference without a bundle path cannot be
// cleared.
func (p *Platform) ClearAppData(ctx context.Context, app *device.App) error {
	if app.Path == "" {
		return fmt.Errorf("clear data for %s: reference has no bundle path to reinstall from", app.ID)
	}
	if err := p.UninstallApp(ctx, app); err != nil {
		return err
	}
	return p.InstallApp(ctx, app)
}

// PortForward is a no-op on simulators: they share the host loopback, so
// device ports are reachable directly.
func (p *Platform) PortForward(_ context.Context, localPort, devicePort int) error {
	logger.Debug("ios: port forward %d -> %d not needed on simulator", localPort, devicePort)
	return nil
}

// Screenshot captures the screen through the agent.
func (p *Platform) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := p.transport.Execute(ctx, agent.Request{Method: http.MethodGet, Path: "/screenshot"})
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Value string `json:"value"`
	}
	if err := resp.Value(&envelope); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(envelope.Value)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return data, nil
}

func (p *Platform) gesture(ctx context.Context, path string, body map[string]interface{}) error {
	_, err := p.transport.Execute(ctx, agent.Request{Method: http.MethodPost, Path: path, Body: body})
	return err
}

func gestureBody(query device.Query, opts device.GestureOptions) map[string]interface{} {
	body := map[string]interface{}{
		"query":    string(query),
		"duration": opts.DurationSeconds(),
	}
	if opts.OffsetX != 0 || opts.OffsetY != 0 {
		body["offsetX"] = opts.OffsetX
		body["offsetY"] = opts.OffsetY
	}
	return body
}

// Tap taps the matched element.
func (p *Platform) Tap(ctx context.Context, query device.Query, opts device.GestureOptions) error {
	return p.gesture(ctx, "/wda/tap", gestureBody(query, opts))
}

// DoubleTap double-taps the matched element.
func (p *Platform) DoubleTap(ctx context.Context, query device.Query, opts device.GestureOptions) error {
	return p.gesture(ctx, "/wda/doubleTap", gestureBody(query, opts))
}

// LongPress presses and holds on the matched element.
func (p *Platform) LongPress(ctx context.Context, query device.Query, opts device.GestureOptions) error {
	return p.gesture(ctx, "/wda/touchAndHold", gestureBody(query, opts))
}

// Pan drags within the matched element.
func (p *Platform) Pan(ctx context.Context, query device.Query, dir device.Direction, opts device.GestureOptions) error {
	body := gestureBody(query, opts)
	body["direction"] = string(dir)
	return p.gesture(ctx, "/wda/pan", body)
}

// PanBetween drags from one matched element to another.
func (p *Platform) PanBetween(ctx context.Context, from, to device.Query, opts device.GestureOptions) error {
	return p.gesture(ctx, "/wda/dragFromTo", map[string]interface{}{
		"from":     string(from),
		"to":       string(to),
		"duration": opts.DurationSeconds(),
	})
}

// Flick performs a fast swipe within the matched element.
func (p *Platform) Flick(ctx context.Context, query device.Query, dir device.Direction, opts device.GestureOptions) error {
	body := gestureBody(query, opts)
	body["direction"] = string(dir)
	return p.gesture(ctx, "/wda/flick", body)
}
