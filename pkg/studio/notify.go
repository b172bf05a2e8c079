package studio

import (
	"sync"

	"github.com/architech-studio/architech/pkg/logging"
)

// Notification is a user-facing toast
type Notification struct {
	Title       string
	Description string
	Destructive bool
}

// Notifier shows notifications to the user
type Notifier interface {
	Notify(Notification)
}

// LogNotifier writes notifications to the log
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Destructive {
		logging.Warn(n.Title, "description", n.Description)
		return
	}
	logging.Info(n.Title, "description", n.Description)
}

// RecordingNotifier keeps every notification, for tests and headless runs
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *RecordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// Notifications returns a copy of what was recorded
func (r *RecordingNotifier) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}
