// Package watch fans out change signals per collection. Subscribers get a
// bare "something changed" ping and re-read through their own manager, so
// every delivery passes the same authorization and visibility checks as a
// direct read.
package watch

import "sync"

type Kind string

const (
	KindProjects      Kind = "projects"
	KindTasks         Kind = "tasks"
	KindUsers         Kind = "users"
	KindPriorities    Kind = "priorities"
	KindNotifications Kind = "notifications"
)

type Hub struct {
	mu   sync.Mutex
	next int
	subs map[Kind]map[int]func()
}

func NewHub() *Hub {
	return &Hub{subs: map[Kind]map[int]func(){}}
}

// Subscribe registers fn for change pings on kind. The returned cancel
// revokes the subscription; it is safe to call more than once.
func (h *Hub) Subscribe(kind Kind, fn func()) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	if h.subs[kind] == nil {
		h.subs[kind] = map[int]func(){}
	}
	h.subs[kind][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[kind], id)
	}
}

// Notify pings every live subscriber of kind. Callbacks run outside the
// hub lock so a subscriber may cancel itself from inside its callback.
func (h *Hub) Notify(kind Kind) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.subs[kind]))
	for _, fn := range h.subs[kind] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
