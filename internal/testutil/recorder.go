package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/liveview/internal/engine"
)

// Recorder captures view notifications in delivery order.
//
// Not safe for concurrent use; views deliver synchronously.
type Recorder struct {
	events []engine.Notification
}

// Listener returns the function to pass to View.AddListener.
func (r *Recorder) Listener() engine.Listener {
	return func(n engine.Notification) {
		r.events = append(r.events, n)
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []engine.Notification {
	return append([]engine.Notification(nil), r.events...)
}

// Kinds returns the kind of each recorded notification.
func (r *Recorder) Kinds() []engine.NotificationKind {
	out := make([]engine.NotificationKind, len(r.events))
	for i, n := range r.events {
		out[i] = n.Kind
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.events = nil
}

// Lines renders each notification with Format.
func (r *Recorder) Lines() []string {
	out := make([]string, len(r.events))
	for i, n := range r.events {
		out[i] = Format(n)
	}
	return out
}

// String renders the recording one notification per line.
func (r *Recorder) String() string {
	return strings.Join(r.Lines(), "\n")
}

// Format renders a notification compactly, e.g. "shift(0,-1) n=4 in".
func Format(n engine.Notification) string {
	switch n.Kind {
	case engine.NotifyShift:
		return fmt.Sprintf("shift(%d,%+d) n=%d %s", n.Index, n.Delta, n.NewCount, n.Location)
	case engine.NotifyUpdated:
		return fmt.Sprintf("updated(%d)", n.Index)
	case engine.NotifyReset:
		return fmt.Sprintf("reset(%d)", n.NewCount)
	case engine.NotifyWindowChange:
		return fmt.Sprintf("window(%d,%d)", n.Start, n.End)
	default:
		return n.Kind.String()
	}
}
