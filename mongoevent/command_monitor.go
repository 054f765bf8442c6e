package mongoevent

import (
	"context"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/event"
)

// statusCommands are the command names the status command is sent as.
var statusCommands = []string{"hello", "ismaster"}

// CommandMonitor records failed status commands.
type CommandMonitor struct {
	mu           sync.Mutex
	failedErrors []error
}

// NewCommandMonitor creates a new CommandMonitor instance.
func NewCommandMonitor() *CommandMonitor {
	return &CommandMonitor{}
}

// NewCommandEventMonitor creates a MongoDB event.CommandMonitor that records
// the errors of failed status commands.
func NewCommandEventMonitor(monitor *CommandMonitor) *event.CommandMonitor {
	return &event.CommandMonitor{
		Failed: func(_ context.Context, evt *event.CommandFailedEvent) {
			if !isStatusCommand(evt.CommandName) {
				return
			}

			monitor.mu.Lock()
			monitor.failedErrors = append(monitor.failedErrors, evt.Failure)
			monitor.mu.Unlock()
		},
	}
}

// FailedErrors returns the recorded failures in order.
func (cm *CommandMonitor) FailedErrors() []error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	return append([]error(nil), cm.failedErrors...)
}

func isStatusCommand(name string) bool {
	for _, cmd := range statusCommands {
		if strings.EqualFold(name, cmd) {
			return true
		}
	}

	return false
}
