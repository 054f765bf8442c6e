package mongoevent

import (
	"sync"

	"github.com/prestonvasquez/servermon/description"
	"github.com/prestonvasquez/servermon/notifier"
)

// ServerMonitor is a notifier.Listener that records server description
// changes.
type ServerMonitor struct {
	mu     sync.RWMutex
	events []notifier.ChangeEvent
}

var _ notifier.Listener = (*ServerMonitor)(nil)

// NewServerMonitor creates a new ServerMonitor.
func NewServerMonitor() *ServerMonitor {
	return &ServerMonitor{}
}

// ServerDescriptionChanged records evt.
func (sm *ServerMonitor) ServerDescriptionChanged(evt *notifier.ChangeEvent) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.events = append(sm.events, *evt)
}

// Events returns a copy of all recorded change events in order.
func (sm *ServerMonitor) Events() []notifier.ChangeEvent {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return append([]notifier.ChangeEvent(nil), sm.events...)
}

// LatestDescription returns the description carried by the most recent
// change event, and false if no change has been recorded.
func (sm *ServerMonitor) LatestDescription() (description.Server, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if len(sm.events) == 0 {
		return description.Server{}, false
	}

	return sm.events[len(sm.events)-1].Current, true
}
