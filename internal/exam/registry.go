package exam

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type registryEntry struct {
	ctrl     *Controller
	ready    chan struct{} // closed once Restore has run
	lastSeen time.Time
}

// Registry maps client tokens to their controllers.
type Registry struct {
	deps Deps
	now  func() time.Time

	mu      sync.Mutex
	clients map[string]*registryEntry
}

// NewRegistry creates an empty registry sharing deps across controllers.
func NewRegistry(deps Deps) *Registry {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{deps: deps, now: now, clients: make(map[string]*registryEntry)}
}

// Get returns the controller for clientID, creating and restoring it on
// first use. Concurrent first requests for one client share a single Restore.
func (r *Registry) Get(ctx context.Context, clientID string) *Controller {
	r.mu.Lock()
	if e, ok := r.clients[clientID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		<-e.ready
		return e.ctrl
	}
	e := &registryEntry{
		ctrl:     NewController(r.deps, clientID),
		ready:    make(chan struct{}),
		lastSeen: r.now(),
	}
	r.clients[clientID] = e
	r.mu.Unlock()

	if err := e.ctrl.Restore(ctx); err != nil {
		slog.Warn("failed to restore client state", "error", err)
	}
	close(e.ready)
	return e.ctrl
}

// Forget drops the controller of clientID. Its persisted state is untouched;
// the next Get restores from it.
func (r *Registry) Forget(clientID string) {
	r.mu.Lock()
	e, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()
	if ok {
		<-e.ready
		e.ctrl.Close()
	}
}

// Sweep drops controllers not requested for longer than idle. Controllers
// with a running countdown are kept so their auto-submit still fires.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	var evicted []*Controller
	for id, e := range r.clients {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.lastSeen.After(cutoff) || e.ctrl.CountdownRunning() {
			continue
		}
		delete(r.clients, id)
		evicted = append(evicted, e.ctrl)
	}
	r.mu.Unlock()

	for _, c := range evicted {
		c.Close()
		c.Wait()
	}
	return len(evicted)
}

// Len returns the number of known clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close stops every timer and waits for pending record writes.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := make([]*registryEntry, 0, len(r.clients))
	for _, e := range r.clients {
		entries = append(entries, e)
	}
	r.mu.Unlock()
	for _, e := range entries {
		<-e.ready
		e.ctrl.Close()
		e.ctrl.Wait()
	}
}
