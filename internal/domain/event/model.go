package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event type constants for the realtime channel. Types are free-form at the
// transport level; these are the ones the server routes.
const (
	TypeChatMessage  = "chat_message"
	TypeJoinRequest  = "join_request"
	TypeMemberJoined = "member_joined"
	TypeLobbyClosed  = "lobby_closed"
)

// Domain errors
var (
	ErrEmptyType = errors.New("event type cannot be empty")
)

// Event is one delivery on the realtime channel. ID identifies the logical
// event, not the delivery: clients resend until acknowledged, so the same ID
// can arrive more than once and handlers deduplicate on it.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	LobbyID    string          `json:"lobby_id,omitempty"`
	SenderID   string          `json:"sender_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"-"`
}

// Validate checks if the Event has valid data.
// PRE: Event struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Event) Validate() error {
	if e.Type == "" {
		return ErrEmptyType
	}
	return nil
}

// EnsureID fills in a synthetic identifier when the sender omitted one:
// type + timestamp + random component. A synthetic ID is unique per delivery,
// so such events are never deduplicated — the call still succeeds, the caller
// just gets no at-most-once guarantee.
// PRE: Type is non-empty
// POST: ID is non-empty
func (e *Event) EnsureID(now time.Time) {
	if e.ID != "" {
		return
	}
	e.ID = fmt.Sprintf("%s-%d-%s", e.Type, now.UnixNano(), uuid.New().String()[:8])
}
