package roster

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType names a roster change
type EventType string

const (
	EventInvitationCreated  EventType = "invitation.created"
	EventInvitationResent   EventType = "invitation.resent"
	EventInvitationAccepted EventType = "invitation.accepted"
	EventInvitationExpired  EventType = "invitation.expired"
	EventMemberRemoved      EventType = "member.removed"
)

// Event describes a single roster change. ArtistID is zero for sweeps that span artists.
type Event struct {
	Type         EventType `json:"type"`
	ArtistID     int64     `json:"artist_id,omitempty"`
	InvitationID string    `json:"invitation_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	UserID       int64     `json:"user_id,omitempty"`
	Count        int64     `json:"count,omitempty"`
	At           time.Time `json:"at"`
}

// Subscriber receives published events. It runs on the publisher's goroutine and must
// not block.
type Subscriber func(Event)

// Events fans roster events out to a fixed, explicit list of subscribers
type Events struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewEvents creates an event bus with the given subscribers
func NewEvents(subscribers ...Subscriber) *Events {
	return &Events{subscribers: subscribers}
}

// Subscribe adds a subscriber
func (e *Events) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, s)
}

// Publish delivers ev to every subscriber. A panicking subscriber is logged and skipped.
func (e *Events) Publish(ev Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	subs := make([]Subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.RUnlock()

	for _, s := range subs {
		deliver(s, ev)
	}
}

func deliver(s Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("panic in roster event subscriber", "event", ev.Type, "panic", r)
		}
	}()
	s(ev)
}

// LogSubscriber writes every event to the structured log
func LogSubscriber(ev Event) {
	zap.S().Infow("roster event",
		"type", ev.Type,
		"artistId", ev.ArtistID,
		"invitationId", ev.InvitationID,
		"userId", ev.UserID,
		"count", ev.Count,
	)
}
