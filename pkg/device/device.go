package device

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/devicelab-dev/uidriver/pkg/agent"
)

// Operation names used across the coordinator boundary.
const (
	OpStartApp           = "start_app"
	OpStopApp            = "stop_app"
	OpScreenshot         = "screenshot"
	OpInstallApp         = "install_app"
	OpEnsureAppInstalled = "ensure_app_installed"
	OpUninstallApp       = "uninstall_app"
	OpClearAppData       = "clear_app_data"
	OpPortForward        = "port_forward"
	OpTap                = "tap"
	OpDoubleTap          = "double_tap"
	OpLongPress          = "long_press"
	OpPan                = "pan"
	OpPanBetween         = "pan_between"
	OpFlick              = "flick"
)

// Config configures a Device.
type Config struct {
	ID       string
	Endpoint agent.Endpoint
	Policy   agent.RetryPolicy // Zero value selects DefaultRetryPolicy
	Platform Platform
	Exec     *ExecContext // Nil selects a private local-only context
}

// Device drives one on-device agent. It owns its endpoint and transport
// exclusively; the endpoint is immutable for the device's lifetime. A single
// logical caller drives a Device synchronously; concurrent callers must
// serialize externally.
type Device struct {
	id        string
	endpoint  agent.Endpoint
	transport *agent.Transport
	platform  Platform
	exec      *ExecContext
}

// New creates a Device. The platform backend is checked here, never at call
// time: a nil backend is a construction error.
func New(cfg Config) (*Device, error) {
	if cfg.Platform == nil {
		return nil, agent.NewArgumentError("device %q has no platform backend", cfg.ID)
	}
	if cfg.ID == "" {
		return nil, agent.NewArgumentError("device identifier must not be empty")
	}
	if cfg.Endpoint == (agent.Endpoint{}) {
		return nil, agent.NewArgumentError("device %q has no agent endpoint", cfg.ID)
	}
	policy := cfg.Policy
	if policy == (agent.RetryPolicy{}) {
		policy = agent.DefaultRetryPolicy()
	}
	exec := cfg.Exec
	if exec == nil {
		exec = NewExecContext(nil)
	}
	return &Device{
		id:        cfg.ID,
		endpoint:  cfg.Endpoint,
		transport: agent.NewTransport(cfg.Endpoint, policy),
		platform:  cfg.Platform,
		exec:      exec,
	}, nil
}

// ID returns the device identifier.
func (d *Device) ID() string { return d.id }

// Endpoint returns the agent endpoint.
func (d *Device) Endpoint() agent.Endpoint { return d.endpoint }

// Transport returns the device's transport, for collaborators that issue
// their own exchanges (platform backends, the readiness prober).
func (d *Device) Transport() *agent.Transport { return d.transport }

// Ref returns the structural reference for the coordinator boundary.
func (d *Device) Ref() Ref { return NewRef(d.id, d.endpoint) }

// WaitUntilReady blocks until the agent answers a status probe or the
// deadline passes.
func (d *Device) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	return agent.NewProber(d.transport).WaitUntilReady(ctx, timeout)
}

// App lifecycle operations. Each resolves the application reference, then
// routes through the execution context.

// StartApp launches the app. The reference may be a path string, an
// identifier string, or a pre-built *App.
func (d *Device) StartApp(ctx context.Context, ref interface{}) error {
	return d.appOp(ctx, OpStartApp, ref, d.platform.StartApp)
}

// StopApp terminates the app.
func (d *Device) StopApp(ctx context.Context, ref interface{}) error {
	return d.appOp(ctx, OpStopApp, ref, d.platform.StopApp)
}

// InstallApp installs the app binary.
func (d *Device) InstallApp(ctx context.Context, ref interface{}) error {
	return d.appOp(ctx, OpInstallApp, ref, d.platform.InstallApp)
}

// EnsureAppInstalled installs the app only when it is missing.
func (d *Device) EnsureAppInstalled(ctx context.Context, ref interface{}) error {
	return d.appOp(ctx, OpEnsureAppInstalled, ref, d.platform.EnsureAppInstalled)
}

// UninstallApp removes the app.
func (d *Device) UninstallApp(ctx context.Context, ref interface{}) error {
	return d.appOp(ctx, OpUninstallApp, ref, d.platform.UninstallApp)
}

// ClearAppData resets the app's stored data.
func (d *Device) ClearAppData(ctx context.Context, ref interface{}) error {
	return d.appOp(ctx, OpClearAppData, ref, d.platform.ClearAppData)
}

func (d *Device) appOp(ctx context.Context, op string, ref interface{}, local func(context.Context, *App) error) error {
	app, err := ResolveApp(ref)
	if err != nil {
		return err
	}
	if coord, managed := d.exec.route(); managed {
		_, err := d.perform(ctx, coord, op, map[string]interface{}{
			"app": map[string]interface{}{"path": app.Path, "id": app.ID},
		})
		return err
	}
	return local(ctx, app)
}

// Screenshot captures the screen as PNG.
func (d *Device) Screenshot(ctx context.Context) ([]byte, error) {
	if coord, managed := d.exec.route(); managed {
		res, err := d.perform(ctx, coord, OpScreenshot, map[string]interface{}{})
		if err != nil {
			return nil, err
		}
		return decodeImage(res)
	}
	return d.platform.Screenshot(ctx)
}

// PortForward forwards a host port to a device port.
func (d *Device) PortForward(ctx context.Context, localPort, devicePort int) error {
	if localPort <= 0 || localPort > 65535 || devicePort <= 0 || devicePort > 65535 {
		return agent.NewArgumentError("port forward %d -> %d out of range", localPort, devicePort)
	}
	if coord, managed := d.exec.route(); managed {
		_, err := d.perform(ctx, coord, OpPortForward, map[string]interface{}{
			"localPort":  localPort,
			"devicePort": devicePort,
		})
		return err
	}
	return d.platform.PortForward(ctx, localPort, devicePort)
}

// Gesture operations. Each validates the query, normalizes the options, and
// routes. Validation runs before routing so local and managed calls fail
// identically on bad input.

// Tap taps the element matched by query.
func (d *Device) Tap(ctx context.Context, query Query, opts *GestureOptions) error {
	return d.gestureOp(ctx, OpTap, query, opts, d.platform.Tap)
}

// DoubleTap double-taps the element matched by query.
func (d *Device) DoubleTap(ctx context.Context, query Query, opts *GestureOptions) error {
	return d.gestureOp(ctx, OpDoubleTap, query, opts, d.platform.DoubleTap)
}

// LongPress presses and holds on the element matched by query.
func (d *Device) LongPress(ctx context.Context, query Query, opts *GestureOptions) error {
	return d.gestureOp(ctx, OpLongPress, query, opts, d.platform.LongPress)
}

func (d *Device) gestureOp(ctx context.Context, op string, query Query, opts *GestureOptions, local func(context.Context, Query, GestureOptions) error) error {
	if err := ValidateQuery(query); err != nil {
		return err
	}
	o := normalizeGesture(opts)
	if coord, managed := d.exec.route(); managed {
		_, err := d.perform(ctx, coord, op, gestureArgs(query, o))
		return err
	}
	return local(ctx, query, o)
}

// Pan drags within the element matched by query in the given direction.
func (d *Device) Pan(ctx context.Context, query Query, dir Direction, opts *GestureOptions) error {
	if err := ValidateQuery(query); err != nil {
		return err
	}
	if !dir.Valid() {
		return agent.NewArgumentError("unknown pan direction %q", dir)
	}
	o := normalizeGesture(opts)
	if coord, managed := d.exec.route(); managed {
		args := gestureArgs(query, o)
		args["direction"] = string(dir)
		_, err := d.perform(ctx, coord, OpPan, args)
		return err
	}
	return d.platform.Pan(ctx, query, dir, o)
}

// PanBetween drags from the element matched by from to the element matched
// by to.
func (d *Device) PanBetween(ctx context.Context, from, to Query, opts *GestureOptions) error {
	if err := ValidateQuery(from); err != nil {
		return err
	}
	if err := ValidateQuery(to); err != nil {
		return err
	}
	o := normalizeGesture(opts)
	if coord, managed := d.exec.route(); managed {
		_, err := d.perform(ctx, coord, OpPanBetween, map[string]interface{}{
			"from":     string(from),
			"to":       string(to),
			"duration": o.DurationSeconds(),
		})
		return err
	}
	return d.platform.PanBetween(ctx, from, to, o)
}

// Flick performs a fast swipe within the element matched by query.
func (d *Device) Flick(ctx context.Context, query Query, dir Direction, opts *GestureOptions) error {
	if err := ValidateQuery(query); err != nil {
		return err
	}
	if !dir.Valid() {
		return agent.NewArgumentError("unknown flick direction %q", dir)
	}
	o := normalizeGesture(opts)
	if coord, managed := d.exec.route(); managed {
		args := gestureArgs(query, o)
		args["direction"] = string(dir)
		_, err := d.perform(ctx, coord, OpFlick, args)
		return err
	}
	return d.platform.Flick(ctx, query, dir, o)
}

func (d *Device) perform(ctx context.Context, coord Coordinator, op string, args map[string]interface{}) (interface{}, error) {
	if coord == nil {
		return nil, fmt.Errorf("managed execution enabled but no coordinator configured")
	}
	return coord.Perform(ctx, op, args, d.Ref())
}

func gestureArgs(query Query, o GestureOptions) map[string]interface{} {
	args := map[string]interface{}{
		"query":    string(query),
		"duration": o.DurationSeconds(),
	}
	if o.OffsetX != 0 || o.OffsetY != 0 {
		args["offsetX"] = o.OffsetX
		args["offsetY"] = o.OffsetY
	}
	return args
}

// decodeImage turns a coordinator screenshot result into PNG bytes. The
// coordinator returns either raw bytes or a base64 string.
func decodeImage(res interface{}) ([]byte, error) {
	switch v := res.(type) {
	case []byte:
		return v, nil
	case string:
		data, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decode screenshot: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unexpected screenshot result type %T", res)
	}
}
