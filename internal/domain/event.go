package domain

import (
	"errors"
	"net/http"
	"time"
)

// ErrListNotSupported is returned by event stores that are write-only.
var ErrListNotSupported = errors.New("event listing not supported")

// EventLevel is the severity attached to a recorded event.
type EventLevel string

const (
	EventLevelInfo     EventLevel = "info"
	EventLevelWarning  EventLevel = "warning"
	EventLevelError    EventLevel = "error"
	EventLevelCritical EventLevel = "critical"
)

// Event is an append-only outcome record.
type Event struct {
	ID        string         `json:"id"                 bson:"_id"`
	Level     EventLevel     `json:"level"              bson:"level"`
	Timestamp time.Time      `json:"timestamp"          bson:"timestamp"`
	Outcome   string         `json:"outcome"            bson:"outcome"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// EventLevelForStatus derives the event level from an HTTP status code.
func EventLevelForStatus(code int) EventLevel {
	switch {
	case code >= http.StatusInternalServerError:
		return EventLevelCritical
	case code >= http.StatusBadRequest:
		return EventLevelError
	case code >= http.StatusMultipleChoices:
		return EventLevelWarning
	default:
		return EventLevelInfo
	}
}
