package device

import (
	"time"
)

// DefaultGestureDuration is applied when the caller supplies no duration.
const DefaultGestureDuration = 500 * time.Millisecond

// GestureOptions are the optional parameters of a gesture operation.
// Zero values mean "use the documented default".
type GestureOptions struct {
	// Duration of the gesture. Defaults to 500ms. Serialized as seconds on
	// the wire, matching the agent convention.
	Duration time.Duration
	// Offset from the element center, in points.
	OffsetX int
	OffsetY int
}

// normalizeGesture merges caller-supplied options over the defaults.
// A nil opts selects all defaults.
func normalizeGesture(opts *GestureOptions) GestureOptions {
	var o GestureOptions
	if opts != nil {
		o = *opts
	}
	if o.Duration <= 0 {
		o.Duration = DefaultGestureDuration
	}
	return o
}

// DurationSeconds returns the duration in seconds for wire payloads.
func (o GestureOptions) DurationSeconds() float64 {
	return o.Duration.Seconds()
}
