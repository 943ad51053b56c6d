package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quizarena/backend/internal/session"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// SnapshotSource supplies the live session records for periodic full
// snapshots. The recorder implements it.
type SnapshotSource interface {
	Snapshot() []*session.Record
}

// Broadcaster fans session deltas and engine events out to connected
// clients. Deltas are coalesced under a throttle window; a periodic full
// snapshot corrects any drift. Records pass through the privacy filter on
// the way out.
type Broadcaster struct {
	mu             sync.RWMutex
	clients        map[*client]bool
	source         SnapshotSource
	filter         *session.PrivacyFilter
	throttle       time.Duration
	snapshotTicker *time.Ticker
	pendingUpdates []*session.Record
	flushTimer     *time.Timer
	flushMu        sync.Mutex
}

func NewBroadcaster(source SnapshotSource, filter *session.PrivacyFilter, throttle, snapshotInterval time.Duration) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		source:   source,
		filter:   filter,
		throttle: throttle,
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	snapshot := WSMessage{
		Type: MsgSnapshot,
		Payload: SnapshotPayload{
			Sessions: b.filtered(b.source.Snapshot()),
		},
	}
	data, _ := json.Marshal(snapshot)

	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// QueueUpdate schedules session records for the next delta flush.
func (b *Broadcaster) QueueUpdate(records ...*session.Record) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingUpdates = append(b.pendingUpdates, records...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// Publish sends an event message to every client immediately, outside the
// delta throttle. Used for XP awards, level ups, match events, and unlocks.
func (b *Broadcaster) Publish(typ MessageType, payload interface{}) {
	b.broadcast(WSMessage{Type: typ, Payload: payload})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	updates := b.pendingUpdates
	b.pendingUpdates = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(updates) == 0 {
		return
	}

	msg := WSMessage{
		Type:    MsgDelta,
		Payload: DeltaPayload{Updates: b.filtered(updates)},
	}
	b.broadcast(msg)
}

func (b *Broadcaster) snapshotLoop() {
	for range b.snapshotTicker.C {
		msg := WSMessage{
			Type: MsgSnapshot,
			Payload: SnapshotPayload{
				Sessions: b.filtered(b.source.Snapshot()),
			},
		}
		b.broadcast(msg)
	}
}

func (b *Broadcaster) filtered(records []*session.Record) []*session.Record {
	if b.filter == nil || b.filter.IsNoop() {
		return records
	}
	return b.filter.FilterSlice(records)
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close stops the snapshot ticker and disconnects every client.
func (b *Broadcaster) Close() {
	b.snapshotTicker.Stop()
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}
