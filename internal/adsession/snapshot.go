// Package adsession holds the per-room ad session model and the pure
// transition function that advances it on ad-server events.
package adsession

import "time"

// State is the room-level ad serving state.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// maxShownAds bounds the per-room shown-ad history carried in the snapshot.
const maxShownAds = 64

// CurrentAd describes the ad airing in a room right now.
type CurrentAd struct {
	ReservationID string     `json:"reservationId"`
	AdID          string     `json:"adId"`
	Title         string     `json:"title,omitempty"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	DurationSec   int        `json:"durationSec,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	SessionID     string     `json:"sessionId,omitempty"`
}

// RoomAdSnapshot is the unit of truth for one room's ad session. It is
// persisted in the shared store and published verbatim to stream viewers.
// ShownAdIDs rides inside the snapshot so every server instance sees the
// same dedup history.
type RoomAdSnapshot struct {
	State            State      `json:"state"`
	Current          *CurrentAd `json:"current,omitempty"`
	SessionID        string     `json:"sessionId,omitempty"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	ShownAdIDs       []string   `json:"shownAdIds,omitempty"`
}

// NewSnapshot returns the default snapshot for a room that has no
// recorded ad activity.
func NewSnapshot() RoomAdSnapshot {
	return RoomAdSnapshot{State: StateStopped}
}

// HasShown reports whether adID was already aired in this room.
func (s RoomAdSnapshot) HasShown(adID string) bool {
	for _, id := range s.ShownAdIDs {
		if id == adID {
			return true
		}
	}
	return false
}

// withShown returns a copy of the shown list including adID, dropping the
// oldest entries beyond the history cap.
func (s RoomAdSnapshot) withShown(adID string) []string {
	if s.HasShown(adID) {
		return s.ShownAdIDs
	}
	shown := make([]string, len(s.ShownAdIDs), len(s.ShownAdIDs)+1)
	copy(shown, s.ShownAdIDs)
	shown = append(shown, adID)
	if len(shown) > maxShownAds {
		shown = shown[len(shown)-maxShownAds:]
	}
	return shown
}
