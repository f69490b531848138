package engine

// NotificationKind distinguishes view output notifications.
type NotificationKind int

const (
	// NotifyShift reports Delta entries inserted (+) or removed (-) at Index.
	NotifyShift NotificationKind = iota + 1
	// NotifyUpdated reports that the entry at Index changed in place.
	NotifyUpdated
	// NotifyReset reports that the whole output changed; consumers discard cached state.
	NotifyReset
	// NotifyWindowChange reports new window bounds set by SetWindow.
	NotifyWindowChange
)

// String returns the snake_case name used in traces and metrics.
func (k NotificationKind) String() string {
	switch k {
	case NotifyShift:
		return "shift"
	case NotifyUpdated:
		return "updated"
	case NotifyReset:
		return "reset"
	case NotifyWindowChange:
		return "window_change"
	default:
		return "unknown"
	}
}

// Location places a Shift relative to the view's window.
type Location int

const (
	// LocationIn means the shift index falls inside [start, end).
	LocationIn Location = iota
	// LocationBefore means the shift index is below the window start.
	LocationBefore
	// LocationAfter means the shift index is at or above the window end.
	LocationAfter
)

// String returns "in", "before", or "after".
func (l Location) String() string {
	switch l {
	case LocationBefore:
		return "before"
	case LocationAfter:
		return "after"
	default:
		return "in"
	}
}

// Notification is delivered to view listeners after each output change.
//
// Index values are display positions: when the view is reversed they are
// already mapped through the reversal, so they share the window's
// coordinate space.
type Notification struct {
	Kind NotificationKind
	View string

	// Index and Delta are set for NotifyShift; Index alone for NotifyUpdated.
	Index int
	Delta int

	// NewCount is the output length after the change (NotifyShift, NotifyReset).
	NewCount int

	// Location is set for NotifyShift.
	Location Location

	// Start and End are the new window bounds (NotifyWindowChange).
	Start int
	End   int
}

// Listener receives view notifications synchronously.
type Listener func(Notification)

type listenerSlot struct {
	id int
	fn Listener
}
