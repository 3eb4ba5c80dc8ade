package device

import (
	"sync"
)

// ExecContext selects between local and managed execution and holds the
// single overridable default-device slot. It is the only shared-mutation
// point in the core: every Device operation consults it at call time, so
// toggling managed mode changes routing for the next call without touching
// a call already in flight.
type ExecContext struct {
	mu            sync.RWMutex
	managed       bool
	coordinator   Coordinator
	defaultDevice *Device
}

// NewExecContext creates a context with managed execution off. The
// coordinator may be nil until SetCoordinator is called.
func NewExecContext(coordinator Coordinator) *ExecContext {
	return &ExecContext{coordinator: coordinator}
}

// SetManaged switches between local and managed execution.
func (c *ExecContext) SetManaged(managed bool) {
	c.mu.Lock()
	c.managed = managed
	c.mu.Unlock()
}

// Managed reports whether managed execution is active.
func (c *ExecContext) Managed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.managed
}

// SetCoordinator replaces the remote coordinator.
func (c *ExecContext) SetCoordinator(coordinator Coordinator) {
	c.mu.Lock()
	c.coordinator = coordinator
	c.mu.Unlock()
}

// SetDefault registers the default device. Last writer wins; the slot holds
// one device, never a collection.
func (c *ExecContext) SetDefault(d *Device) {
	c.mu.Lock()
	c.defaultDevice = d
	c.mu.Unlock()
}

// Default returns the registered default device, or nil.
func (c *ExecContext) Default() *Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultDevice
}

// route resolves the execution strategy for one call: the coordinator and
// whether managed execution is active. A managed call with no coordinator is
// an error at dispatch, never a silent fallback to the local backend.
// Resolved once per operation, never cached on the device.
func (c *ExecContext) route() (Coordinator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coordinator, c.managed
}
