package mongoevent

import (
	"sync"

	"go.mongodb.org/mongo-driver/v2/event"
)

// PoolMonitor tracks the connections a client opens and closes per server.
type PoolMonitor struct {
	mu             sync.RWMutex
	connsPerServer map[string]int
	closedByServer map[string]int
	poolsClosed    map[string]int
}

// NewPoolMonitor creates a new PoolMonitor.
func NewPoolMonitor() *PoolMonitor {
	return &PoolMonitor{
		connsPerServer: make(map[string]int),
		closedByServer: make(map[string]int),
		poolsClosed:    make(map[string]int),
	}
}

// NewPoolEventMonitor creates an event.PoolMonitor that routes events to
// local PoolMonitor callbacks.
func NewPoolEventMonitor(monitor *PoolMonitor) *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			monitor.mu.Lock()
			defer monitor.mu.Unlock()

			switch evt.Type {
			case event.ConnectionReady:
				monitor.connsPerServer[evt.Address]++
			case event.ConnectionClosed:
				monitor.connsPerServer[evt.Address]--
				monitor.closedByServer[evt.Address]++
			case event.ConnectionPoolClosed:
				monitor.poolsClosed[evt.Address]++
			}
		},
	}
}

// ConnsReady returns the number of ready connections for the given server
// address.
func (pm *PoolMonitor) ConnsReady(serverAddr string) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return pm.connsPerServer[serverAddr]
}

// ConnsClosed returns how many connections to the server have been closed.
func (pm *PoolMonitor) ConnsClosed(serverAddr string) int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return pm.closedByServer[serverAddr]
}

// PoolClosed reports whether the pool for the server has been closed, which
// happens when its client disconnects.
func (pm *PoolMonitor) PoolClosed(serverAddr string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return pm.poolsClosed[serverAddr] > 0
}
