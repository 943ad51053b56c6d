package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quizarena/backend/internal/session"
)

type stubSource struct {
	records []*session.Record
}

func (s *stubSource) Snapshot() []*session.Record { return s.records }

func record(userID string, typ session.Type) *session.Record {
	return &session.Record{
		UserID:    userID,
		Type:      typ,
		Status:    session.StatusActive,
		StartTime: time.Now(),
	}
}

// wireMsg mirrors WSMessage with the payload left raw so tests can decode
// it per message type.
type wireMsg struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// dialBroadcaster connects a real websocket client to the broadcaster
// through a throwaway HTTP server.
func dialBroadcaster(t *testing.T, b *Broadcaster) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		b.AddClient(conn)
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) wireMsg {
	t.Helper()
	var msg wireMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading message: %v", err)
	}
	return msg
}

func TestBroadcasterSendsSnapshotOnConnect(t *testing.T) {
	source := &stubSource{records: []*session.Record{record("u1", session.TypeChat)}}
	b := NewBroadcaster(source, nil, 10*time.Millisecond, time.Hour)
	defer b.Close()

	conn := dialBroadcaster(t, b)

	msg := readMsg(t, conn)
	if msg.Type != MsgSnapshot {
		t.Fatalf("first message type = %q, want %q", msg.Type, MsgSnapshot)
	}
	var payload SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Sessions) != 1 || payload.Sessions[0].UserID != "u1" {
		t.Errorf("snapshot sessions = %+v", payload.Sessions)
	}
}

func TestBroadcasterCoalescesDeltas(t *testing.T) {
	b := NewBroadcaster(&stubSource{}, nil, 50*time.Millisecond, time.Hour)
	defer b.Close()

	conn := dialBroadcaster(t, b)
	readMsg(t, conn) // initial snapshot

	b.QueueUpdate(record("u1", session.TypeChat))
	b.QueueUpdate(record("u1", session.TypePractice), record("u1", session.TypeArena))

	msg := readMsg(t, conn)
	if msg.Type != MsgDelta {
		t.Fatalf("message type = %q, want %q", msg.Type, MsgDelta)
	}
	var payload DeltaPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Updates) != 3 {
		t.Errorf("delta carried %d updates, want all 3 in one flush", len(payload.Updates))
	}
}

func TestBroadcasterFlushWithNothingPendingSendsNothing(t *testing.T) {
	b := NewBroadcaster(&stubSource{}, nil, time.Hour, time.Hour)
	defer b.Close()

	conn := dialBroadcaster(t, b)
	readMsg(t, conn) // initial snapshot

	b.flush()
	b.Publish(MsgXPAwarded, XPAwardedPayload{Amount: 10})

	// The publish must be the next message, with no empty delta before it.
	msg := readMsg(t, conn)
	if msg.Type != MsgXPAwarded {
		t.Errorf("message type = %q, want %q", msg.Type, MsgXPAwarded)
	}
}

func TestBroadcasterAppliesPrivacyFilter(t *testing.T) {
	source := &stubSource{records: []*session.Record{record("alice", session.TypeChat)}}
	filter := &session.PrivacyFilter{MaskUserIDs: true}
	b := NewBroadcaster(source, filter, 10*time.Millisecond, time.Hour)
	defer b.Close()

	conn := dialBroadcaster(t, b)

	msg := readMsg(t, conn)
	var payload SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	got := payload.Sessions[0].UserID
	if got == "alice" || got == "" {
		t.Errorf("UserID = %q, want masked", got)
	}
	// The source's own record must stay untouched.
	if source.records[0].UserID != "alice" {
		t.Error("filter modified the original record")
	}
}

func TestBroadcasterDisconnectsSlowClient(t *testing.T) {
	b := NewBroadcaster(&stubSource{}, nil, time.Hour, time.Hour)
	defer b.Close()

	// A client whose send buffer is already full and has no write pump
	// draining it.
	slow := &client{send: make(chan []byte)}
	b.mu.Lock()
	b.clients[slow] = true
	b.mu.Unlock()

	if b.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d", b.ClientCount())
	}

	b.Publish(MsgLevelUp, LevelUpPayload{Level: 2})

	if b.ClientCount() != 0 {
		t.Errorf("slow client still connected, ClientCount = %d", b.ClientCount())
	}
}

func TestBroadcasterRemoveClientIsIdempotent(t *testing.T) {
	b := NewBroadcaster(&stubSource{}, nil, time.Hour, time.Hour)
	defer b.Close()

	conn := dialBroadcaster(t, b)
	readMsg(t, conn)

	b.mu.RLock()
	var c *client
	for cl := range b.clients {
		c = cl
	}
	b.mu.RUnlock()

	b.RemoveClient(c)
	b.RemoveClient(c) // closing twice must not panic
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", b.ClientCount())
	}
}
