// Package notify raises desktop alerts when tracked jobs reach a terminal
// state. Alerts are permission-gated (the user opts in exactly once) and
// suppressed while the user is already watching the job list; per-job
// de-duplication is owned by the tracker's notified set.
package notify

import (
	"github.com/gen2brain/beeep"

	"github.com/parlatext/parlatext/internal/logger"
	"github.com/parlatext/parlatext/internal/store"
)

// Notification titles, one per purpose so a later alert of the same purpose
// replaces the earlier one in notification centers that group by title.
const (
	completeTitle = "Transcription complete"
	failedTitle   = "Transcription failed"
)

// Manager gates and delivers completion/failure alerts
type Manager struct {
	store *store.Store

	// focused reports whether the user is already looking at live job
	// output; alerts are redundant then. Nil means never focused.
	focused func() bool

	// send delivers one desktop notification; swappable in tests
	send func(title, message string) error
}

// NewManager creates a Manager. focused may be nil.
func NewManager(st *store.Store, focused func() bool) *Manager {
	return &Manager{
		store:   st,
		focused: focused,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// RequestPermission enables notifications. It must only be called from an
// explicit user action. The prompted flag is persisted so the user is never
// asked twice; calling again after that is a no-op.
func (m *Manager) RequestPermission() error {
	prompted, err := m.store.WasPrompted()
	if err != nil {
		return err
	}
	if prompted {
		return nil
	}
	return m.store.MarkPrompted()
}

// Enabled reports whether the user has opted in to notifications
func (m *Manager) Enabled() bool {
	prompted, err := m.store.WasPrompted()
	if err != nil {
		logger.Errorf("cannot read notification permission: %v", err)
		return false
	}
	return prompted
}

// NotifyComplete raises a completion alert for the named file. No-op unless
// enabled, and no-op while the user is already watching.
func (m *Manager) NotifyComplete(name string) {
	m.deliver(completeTitle, name+" has finished processing")
}

// NotifyFailed raises a failure alert for the named file
func (m *Manager) NotifyFailed(name string) {
	m.deliver(failedTitle, name+" could not be processed")
}

func (m *Manager) deliver(title, message string) {
	if !m.Enabled() {
		return
	}
	if m.focused != nil && m.focused() {
		return
	}
	if err := m.send(title, message); err != nil {
		// A missed desktop alert is not worth failing anything over
		logger.Warnf("could not deliver notification: %v", err)
	}
}
