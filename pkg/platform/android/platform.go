package android

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/devicelab-dev/uidriver/pkg/agent"
	"github.com/devicelab-dev/uidriver/pkg/device"
)

// Platform is the Android backend: adb drives the app lifecycle, the
// on-device agent (reached through the forwarded endpoint) drives gestures
// and screenshots. It implements device.Platform.
type Platform struct {
	adb       *ADB
	transport *agent.Transport
}

// New creates an Android Platform over an adb handle and an agent transport.
func New(adb *ADB, transport *agent.Transport) (*Platform, error) {
	if adb == nil {
		return nil, fmt.Errorf("android platform requires an adb handle")
	}
	if transport == nil {
		return nil, fmt.Errorf("android platform requires an agent transport")
	}
	return &Platform{adb: adb, transport: transport}, nil
}

// StartApp launches the app's main activity.
func (p *Platform) StartApp(_ context.Context, app *device.App) error {
	_, err := p.adb.Shell(fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", app.ID))
	if err != nil {
		return fmt.Errorf("start %s: %w", app.ID, err)
	}
	return nil
}

// StopApp force-stops the app.
func (p *Platform) StopApp(_ context.Context, app *device.App) error {
	_, err := p.adb.Shell("am force-stop " + app.ID)
	return err
}

// InstallApp installs the app binary.
func (p *Platform) InstallApp(_ context.Context, app *device.App) error {
	if app.Path == "" {
		return fmt.Errorf("install %s: no binary path in application reference", app.ID)
	}
	return p.adb.Install(app.Path)
}

// EnsureAppInstalled installs the app only when it is missing.
func (p *Platform) EnsureAppInstalled(ctx context.Context, app *device.App) error {
	if p.adb.IsInstalled(app.ID) {
		return nil
	}
	return p.InstallApp(ctx, app)
}

// UninstallApp removes the app.
func (p *Platform) UninstallApp(_ context.Context, app *device.App) error {
	return p.adb.Uninstall(app.ID)
}

// ClearAppData resets the app's stored data.
func (p *Platform) ClearAppData(_ context.Context, app *device.App) error {
	return p.adb.ClearData(app.ID)
}

// PortForward forwards a host port to a device port via adb.
func (p *Platform) PortForward(_ context.Context, localPort, devicePort int) error {
	return p.adb.Forward(localPort, devicePort)
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
	return decodeBase64(envelope.Value)
}

// Gestures go to the agent's gesture endpoints with the selector query and
// normalized options.

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
	return p.gesture(ctx, "/gesture/tap", gestureBody(query, opts))
}

// DoubleTap double-taps the matched element.
func (p *Platform) DoubleTap(ctx context.Context, query device.Query, opts device.GestureOptions) error {
	return p.gesture(ctx, "/gesture/doubleTap", gestureBody(query, opts))
}

// LongPress presses and holds on the matched element.
func (p *Platform) LongPress(ctx context.Context, query device.Query, opts device.GestureOptions) error {
	return p.gesture(ctx, "/gesture/longPress", gestureBody(query, opts))
}

// Pan drags within the matched element.
func (p *Platform) Pan(ctx context.Context, query device.Query, dir device.Direction, opts device.GestureOptions) error {
	body := gestureBody(query, opts)
	body["direction"] = string(dir)
	return p.gesture(ctx, "/gesture/pan", body)
}

// PanBetween drags from one matched element to another.
func (p *Platform) PanBetween(ctx context.Context, from, to device.Query, opts device.GestureOptions) error {
	return p.gesture(ctx, "/gesture/panBetween", map[string]interface{}{
		"from":     string(from),
		"to":       string(to),
		"duration": opts.DurationSeconds(),
	})
}

// Flick performs a fast swipe within the matched element.
func (p *Platform) Flick(ctx context.Context, query device.Query, dir device.Direction, opts device.GestureOptions) error {
	body := gestureBody(query, opts)
	body["direction"] = string(dir)
	return p.gesture(ctx, "/gesture/flick", body)
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return data, nil
}
