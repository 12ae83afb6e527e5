// Package proctor holds the per-sample decision logic of the proctoring
// monitors: face movement and multi-face classification for video frames,
// and baseline calibration plus loudness classification for audio.
//
// Everything here is pure and single-threaded; the loops in pkg/monitor
// own one classifier each.
package proctor

// Modality identifies a sensor kind.
type Modality string

const (
	ModalityVisual Modality = "visual"
	ModalityAudio  Modality = "audio"
)

// Modalities lists every monitored modality.
func Modalities() []Modality {
	return []Modality{ModalityVisual, ModalityAudio}
}

// ParseModality validates a modality name.
func ParseModality(s string) (Modality, bool) {
	switch Modality(s) {
	case ModalityVisual, ModalityAudio:
		return Modality(s), true
	}
	return "", false
}

// Verdict is the classification of one sample.
type Verdict string

const (
	VerdictNormal       Verdict = "normal"
	VerdictMovement     Verdict = "movement"
	VerdictMultiSubject Verdict = "multi_subject"
	VerdictNoSubject    Verdict = "no_subject"
	VerdictLoud         Verdict = "loud"
	VerdictQuiet        Verdict = "quiet"
)

// Flagged reports whether the verdict produces a suspicion event.
func (v Verdict) Flagged() bool {
	switch v {
	case VerdictMovement, VerdictMultiSubject, VerdictLoud:
		return true
	}
	return false
}

// EventType returns the event emitted for a flagged verdict, or "".
func (v Verdict) EventType() EventType {
	switch v {
	case VerdictMovement:
		return EventMovement
	case VerdictMultiSubject:
		return EventMultiface
	case VerdictLoud:
		return EventSound
	}
	return ""
}

// EventType names an emitted event. It is also the artifact file prefix.
type EventType string

const (
	EventMultiface EventType = "multiface"
	EventMovement  EventType = "movement"
	EventSound     EventType = "sound"

	// EventPhoto is a periodic audit snapshot. It is never counted.
	EventPhoto EventType = "photo"
)

// Modality returns the sensor that produces the event.
func (e EventType) Modality() Modality {
	if e == EventSound {
		return ModalityAudio
	}
	return ModalityVisual
}

// Ext returns the artifact file extension.
func (e EventType) Ext() string {
	if e == EventSound {
		return "wav"
	}
	return "jpg"
}

// Counted reports whether the event increments the suspicion counter.
func (e EventType) Counted() bool {
	return e != EventPhoto
}
