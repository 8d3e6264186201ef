// Package web is the HTTP + websocket dashboard facade: a JSON API over
// the service layer and a broadcaster that forwards primary-store events
// to connected board clients.
package web

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/HendryAvila/cwa/internal/store"
)

// Message is what the websocket pushes. BoardRefresh carries only the
// sequence number — clients re-fetch /api/board; TaskUpdated names the
// task so clients can patch in place. Clients detect gaps in seq and
// reconcile with a board re-fetch.
type Message struct {
	Type    string            `json:"type"`
	Seq     uint64            `json:"seq"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Broadcaster owns the subscriber set behind a reader-writer lock:
// subscribe/unsubscribe are rare, broadcasts are frequent.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan Message
	seq     uint64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[*websocket.Conn]chan Message)}
}

// Subscribe registers a connection and returns its outbound queue.
func (b *Broadcaster) Subscribe(conn *websocket.Conn) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Message, 32)
	b.clients[conn] = ch
	return ch
}

// Unsubscribe drops a connection and closes its queue.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		close(ch)
	}
}

// ClientCount reports connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast stamps the next sequence number and fans the message out.
// Slow clients drop messages rather than blocking the broadcast; the seq
// gap tells them to re-fetch.
func (b *Broadcaster) Broadcast(msg Message) Message {
	b.mu.Lock()
	b.seq++
	msg.Seq = b.seq
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
	return msg
}

// Run consumes the project's event bus and forwards board-relevant
// events until the context is canceled. Task moves and updates forward
// as TaskUpdated; everything else that touches the board becomes a
// BoardRefresh. Errors are never forwarded to clients.
func (b *Broadcaster) Run(ctx context.Context, s *store.Store, project string) error {
	sub, err := s.Subscribe(ctx, project)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if msg, relevant := translate(ev); relevant {
				b.Broadcast(msg)
			}
		}
	}
}

// translate maps a bus event to a websocket message.
func translate(ev store.Event) (Message, bool) {
	switch ev.Type {
	case store.EventTaskMoved, store.EventTaskUpdated:
		payload := map[string]string{"task_id": ev.EntityID}
		for k, v := range ev.Payload {
			payload[k] = v
		}
		return Message{Type: "TaskUpdated", Payload: payload}, true
	case store.EventTaskCreated, store.EventBoardRefresh, store.EventSpecUpdated:
		return Message{Type: "BoardRefresh"}, true
	default:
		return Message{}, false
	}
}

// logClose logs close errors at debug-noise level.
func logClose(conn *websocket.Conn) {
	if err := conn.Close(); err != nil {
		log.Printf("websocket close: %v", err)
	}
}
