package hub

import (
	"github.com/DoyleJ11/auction-backend/pkg/types"
)

// Hub is the observer registry of the auction. It is owned by the lobby loop
// and is not safe for concurrent use.
type Hub struct {
	clients map[string]chan types.ServerMessage
}

func New() *Hub {
	return &Hub{clients: make(map[string]chan types.ServerMessage)}
}

func (h *Hub) Join(id string, outbox chan types.ServerMessage) {
	if old, ok := h.clients[id]; ok && old != outbox {
		close(old)
	}
	h.clients[id] = outbox
}

// Leave unregisters id and closes its outbox. Reports whether id was known.
func (h *Hub) Leave(id string) bool {
	ch, ok := h.clients[id]
	if !ok {
		return false
	}
	close(ch)
	delete(h.clients, id)
	return true
}

func (h *Hub) Len() int { return len(h.clients) }

func (h *Hub) Has(id string) bool {
	_, ok := h.clients[id]
	return ok
}

// Broadcast delivers p to every observer. Observers whose outbox is full are
// dropped and their ids returned.
func (h *Hub) Broadcast(p types.Payload) []string {
	msg := types.Envelope(p)
	var dropped []string
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(h.clients, id)
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// Send delivers p to a single observer. A full outbox drops that observer.
func (h *Hub) Send(id string, p types.Payload) (delivered bool) {
	ch, ok := h.clients[id]
	if !ok {
		return false
	}
	select {
	case ch <- types.Envelope(p):
		return true
	default:
		close(ch)
		delete(h.clients, id)
		return false
	}
}

// CloseAll closes every outbox, telling writers no more messages follow.
func (h *Hub) CloseAll() {
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}
