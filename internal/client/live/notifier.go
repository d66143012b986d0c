package live

import (
	"chitchat/internal/pkg/logx"
)

// Level is the presentation of a Notification.
type Level int

const (
	LevelLoading Level = iota
	LevelError
)

// Notification is a connection status message for the user. Notifications with the
// same ID replace each other.
type Notification struct {
	ID    State
	Level Level
	Title string
	// Detail explains a terminal failure; empty otherwise.
	Detail string
	// Persistent notifications stay until ClearAll and cannot be dismissed.
	Persistent bool
}

// Notifier presents connection status. It is driven only by state transitions and never
// touches channel data.
type Notifier interface {
	Notify(n Notification)
	ClearAll()
}

// notificationFor maps a state to what the user should see; ok is false for OPEN,
// which clears everything instead.
func notificationFor(s State, err error) (Notification, bool) {
	n := Notification{ID: s, Title: s.Label()}

	switch s {
	case StateConnecting, StateClosing:
		n.Level = LevelLoading
	case StateClosed:
		n.Level = LevelError
		n.Persistent = true
		if err != nil {
			n.Detail = err.Error()
		}
	default:
		return Notification{}, false
	}

	return n, true
}

// LogNotifier writes notifications to the global logger.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Level == LevelError {
		logx.Warn("Connection status", "status", n.Title, "detail", n.Detail)
		return
	}
	logx.Info("Connection status", "status", n.Title)
}

func (LogNotifier) ClearAll() {
	logx.Debug("Connection status cleared")
}
