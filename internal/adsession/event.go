package adsession

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type names as sent by the ad server in the event-type header.
const (
	TypeSessionStarted = "session.started"
	TypeAdStarted      = "ad.started"
	TypeAdCompleted    = "ad.completed"
	TypeSessionStopped = "session.stopped"
	TypeSessionIdle    = "session.idle"
)

// Event is the closed set of ad-server events a room snapshot reacts to.
// Unrecognized event types decode to UnknownEvent so new upstream types
// pass through without failing delivery.
type Event interface {
	EventType() string
	isEvent()
}

// SessionStarted binds an ad-serving session to the room.
type SessionStarted struct {
	SessionID string     `json:"sessionId"`
	StartedAt *time.Time `json:"startedAt"`
}

// AdStarted announces an ad airing in the room. ImageKey optionally names
// an object in the creatives bucket when the ad server does not send a
// full image URL.
type AdStarted struct {
	ReservationID string     `json:"reservationId"`
	AdID          string     `json:"adId"`
	Title         string     `json:"title"`
	ImageURL      string     `json:"imageUrl"`
	ImageKey      string     `json:"imageKey,omitempty"`
	DurationSec   int        `json:"durationSec"`
	StartedAt     *time.Time `json:"startedAt"`
	SessionID     string     `json:"sessionId"`
}

// AdCompleted closes the airing identified by ReservationID.
type AdCompleted struct {
	ReservationID string `json:"reservationId"`
	AdID          string `json:"adId"`
}

// SessionStopped ends ad serving for the room.
type SessionStopped struct{}

// SessionIdle reports that the ad server has no inventory for the room.
// The ingestion path additionally asks the ad backend to stop serving.
type SessionIdle struct {
	Reason string `json:"reason,omitempty"`
}

// UnknownEvent carries an event type this service does not model.
type UnknownEvent struct {
	Type string
}

func (SessionStarted) EventType() string { return TypeSessionStarted }
func (AdStarted) EventType() string      { return TypeAdStarted }
func (AdCompleted) EventType() string    { return TypeAdCompleted }
func (SessionStopped) EventType() string { return TypeSessionStopped }
func (SessionIdle) EventType() string    { return TypeSessionIdle }
func (e UnknownEvent) EventType() string { return e.Type }

func (SessionStarted) isEvent() {}
func (AdStarted) isEvent()      {}
func (AdCompleted) isEvent()    {}
func (SessionStopped) isEvent() {}
func (SessionIdle) isEvent()    {}
func (UnknownEvent) isEvent()   {}

// DecodeEvent maps an event type and raw JSON body to its variant.
// An unmodeled type yields UnknownEvent with no error.
func DecodeEvent(eventType string, body []byte) (Event, error) {
	switch eventType {
	case TypeSessionStarted:
		var ev SessionStarted
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return ev, nil
	case TypeAdStarted:
		var ev AdStarted
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return ev, nil
	case TypeAdCompleted:
		var ev AdCompleted
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return ev, nil
	case TypeSessionStopped:
		return SessionStopped{}, nil
	case TypeSessionIdle:
		var ev SessionIdle
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return ev, nil
	default:
		return UnknownEvent{Type: eventType}, nil
	}
}
