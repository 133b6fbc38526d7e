package inventory

import "github.com/google/uuid"

// WatchSpec is a user-registered intent to be notified when a port's
// active/inactive status changes. It is independent of any particular
// scan's records.
type WatchSpec struct {
	ID            string `json:"id"`
	Port          int    `json:"port"`
	NotifyOnStart bool   `json:"notify_on_start"`
	NotifyOnStop  bool   `json:"notify_on_stop"`
}

// NewWatchSpec creates a spec with a stable opaque identifier.
func NewWatchSpec(portNum int, onStart, onStop bool) WatchSpec {
	return WatchSpec{
		ID:            uuid.NewString(),
		Port:          portNum,
		NotifyOnStart: onStart,
		NotifyOnStop:  onStop,
	}
}

// Transition is emitted when a watched port changes between active and
// inactive across scan cycles. The first cycle a watched port is observed
// never produces a transition; only genuine changes do.
type Transition struct {
	Port   int
	Active bool // the status transitioned to
}
