package proctor

import "time"

// Event is a persisted suspicion event or audit snapshot.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Modality  Modality  `json:"modality"`
	Type      EventType `json:"type"`
	Verdict   Verdict   `json:"verdict,omitempty"`
	Artifact  string    `json:"artifact,omitempty"`
	Count     int       `json:"count"`
	At        time.Time `json:"at"`
}
