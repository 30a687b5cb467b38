package adsession

// Apply advances a room snapshot with one ad-server event. It is a pure
// function: no locks, no I/O, no clock. Concurrency safety lives in the
// store's atomic write and the upstream per-room ordering guarantee.
func Apply(snap RoomAdSnapshot, ev Event) RoomAdSnapshot {
	switch e := ev.(type) {
	case SessionStarted:
		snap.SessionID = e.SessionID
		snap.SessionStartedAt = e.StartedAt
		snap.State = StateRunning
		return snap

	case AdStarted:
		// An ad already aired in this room does not air again.
		if snap.HasShown(e.AdID) {
			return snap
		}
		snap.Current = &CurrentAd{
			ReservationID: e.ReservationID,
			AdID:          e.AdID,
			Title:         e.Title,
			ImageURL:      e.ImageURL,
			DurationSec:   e.DurationSec,
			StartedAt:     e.StartedAt,
			SessionID:     e.SessionID,
		}
		snap.State = StateRunning
		return snap

	case AdCompleted:
		snap.ShownAdIDs = snap.withShown(e.AdID)
		// Only the reservation that started the airing may clear it;
		// stale or duplicate completions leave the current ad alone.
		if snap.Current != nil && snap.Current.ReservationID == e.ReservationID {
			snap.Current = nil
		}
		return snap

	case SessionStopped:
		snap.State = StateStopped
		snap.Current = nil
		return snap

	case SessionIdle:
		snap.State = StateStopped
		snap.Current = nil
		return snap

	case UnknownEvent:
		return snap
	}
	return snap
}
