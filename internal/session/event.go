package session

// EventType classifies session lifecycle events.
type EventType int

const (
	EventStarted   EventType = iota // session opened on first unit of work
	EventHeartbeat                  // periodic flush while active
	EventPaused                     // visibility lost
	EventResumed                    // visibility restored
	EventCompleted                  // session reached terminal state
)

// Event carries a session record snapshot to observers. Record is a clone
// and safe to retain.
type Event struct {
	Type     EventType
	Record   *Record
	XPEarned int // XP granted by the transition, 0 if none
}
