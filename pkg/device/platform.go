// Package device provides the abstract device core: the fourteen lifecycle
// and gesture operations, argument validation and normalization, and the
// routing between local platform backends and a remote coordinator.
package device

import (
	"context"
)

// Direction of a pan or flick gesture within an element.
type Direction string

// Gesture directions.
const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	}
	return false
}

// Platform is the capability set a backend must provide to be a valid
// device target. Implementations: android (adb + agent), ios (WDA agent).
//
// Satisfying the interface is the capability check: a backend missing any
// operation does not compile, and Device construction rejects a nil backend,
// so an incomplete platform can never fail at call time.
type Platform interface {
	// App lifecycle
	StartApp(ctx context.Context, app *App) error
	StopApp(ctx context.Context, app *App) error
	InstallApp(ctx context.Context, app *App) error
	EnsureAppInstalled(ctx context.Context, app *App) error
	UninstallApp(ctx context.Context, app *App) error
	ClearAppData(ctx context.Context, app *App) error

	// Device plumbing
	Screenshot(ctx context.Context) ([]byte, error)
	PortForward(ctx context.Context, localPort, devicePort int) error

	// Gestures. Queries arrive validated and options normalized.
	Tap(ctx context.Context, query Query, opts GestureOptions) error
	DoubleTap(ctx context.Context, query Query, opts GestureOptions) error
	LongPress(ctx context.Context, query Query, opts GestureOptions) error
	Pan(ctx context.Context, query Query, dir Direction, opts GestureOptions) error
	PanBetween(ctx context.Context, from, to Query, opts GestureOptions) error
	Flick(ctx context.Context, query Query, dir Direction, opts GestureOptions) error
}
