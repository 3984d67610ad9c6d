package sabre

import "fmt"

type (
	// EventOrderError is returned when the events of a track are not sorted
	// by time. It is a structural error: the rest of the pipeline assumes
	// ordered events, so the conversion cannot continue.
	EventOrderError struct {
		Track      string
		TrackIndex int
		EventIndex int
		TimeStamp  int
		Previous   int
	}

	// ValidationError is returned by Song.Validate.
	ValidationError struct {
		Track      string
		TrackIndex int
		Reason     string
	}

	// UnsupportedEventError is returned when an event has a type value
	// outside of the EventType enumeration. It means the producer of the
	// song is broken.
	UnsupportedEventError struct {
		Track      string
		EventIndex int
		Type       EventType
	}

	// RangeError is returned when a value cannot be represented in the
	// field it is written to, e.g. a negative or too large var-uint32.
	RangeError struct {
		Field string
		Value int64
	}
)

func (e *EventOrderError) Error() string {
	return fmt.Sprintf("track %q: event %v at %v samples is before the previous event at %v samples; events must be sorted by time", e.Track, e.EventIndex, e.TimeStamp, e.Previous)
}

func (e *ValidationError) Error() string {
	if e.TrackIndex < 0 {
		return "invalid song: " + e.Reason
	}
	return fmt.Sprintf("invalid song: track %q (#%v): %v", e.Track, e.TrackIndex, e.Reason)
}

func (e *UnsupportedEventError) Error() string {
	return fmt.Sprintf("track %q: event %v has unsupported type %v", e.Track, e.EventIndex, e.Type)
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: value %v does not fit", e.Field, e.Value)
}
