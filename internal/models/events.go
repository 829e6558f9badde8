package models

// Event types for published segment events.
const (
	EventSegmentPartial = "session.segment.partial"
	EventSegmentFinal   = "session.segment.final"
)

// SegmentEvent is the envelope published to the event bus for every
// emitted segment.
type SegmentEvent struct {
	EventType string  `json:"eventType"`
	SessionID string  `json:"sessionId"`
	Timestamp int64   `json:"timestamp"`
	Segment   Segment `json:"segment"`
}
