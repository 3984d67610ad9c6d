package sabre

import "fmt"

type (
	// Track is a single mixer channel of the song: a chain of devices fed by
	// the track's own note events and by the receives from other tracks.
	Track struct {
		Name     string
		Volume   float32
		Receives []Receive `yaml:",omitempty" json:",omitempty"`

		// Devices is the effect chain of the track. Order is significant:
		// the devices are run in this order.
		Devices []Device `yaml:",omitempty" json:",omitempty"`

		// Events are the raw MIDI events of the track, with absolute
		// timestamps. Producers must deliver them sorted by TimeStamp.
		Events []Event `yaml:",flow,omitempty" json:",omitempty"`

		// Automations are the parameter automation envelopes of the track's
		// devices.
		Automations []Automation `yaml:",omitempty" json:",omitempty"`
	}

	// EventType is the type of a raw MIDI event.
	EventType int

	// Event is a raw MIDI event with an absolute timestamp in samples. For
	// CC events, Note is the controller number and Velocity the value; for
	// PitchBend events they are the LSB and MSB of the bend amount.
	Event struct {
		TimeStamp int
		Type      EventType
		Note      byte
		Velocity  byte
	}

	// Automation is the envelope of a single parameter of one of the
	// track's devices.
	Automation struct {
		// DeviceIndex indexes the Devices of the track that owns the
		// automation, not the global device list.
		DeviceIndex int
		ParamID     int
		Points      []Point `yaml:",flow"`
	}

	// Point is an automation point with an absolute timestamp in samples and
	// a normalized value in 0 .. 1.
	Point struct {
		TimeStamp int
		Value     float32
	}
)

const (
	NoteOff EventType = iota
	NoteOn
	CC
	PitchBend
)

func (t EventType) String() string {
	switch t {
	case NoteOff:
		return "NoteOff"
	case NoteOn:
		return "NoteOn"
	case CC:
		return "CC"
	case PitchBend:
		return "PitchBend"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Valid reports if t is one of the four event types the format knows about.
func (t EventType) Valid() bool {
	return t >= NoteOff && t <= PitchBend
}

// Copy makes a deep copy of a Track.
func (t *Track) Copy() Track {
	receives := make([]Receive, len(t.Receives))
	copy(receives, t.Receives)
	devices := make([]Device, len(t.Devices))
	for i, d := range t.Devices {
		devices[i] = d.Copy()
	}
	events := make([]Event, len(t.Events))
	copy(events, t.Events)
	automations := make([]Automation, len(t.Automations))
	for i, a := range t.Automations {
		points := make([]Point, len(a.Points))
		copy(points, a.Points)
		automations[i] = Automation{DeviceIndex: a.DeviceIndex, ParamID: a.ParamID, Points: points}
	}
	return Track{
		Name:        t.Name,
		Volume:      t.Volume,
		Receives:    receives,
		Devices:     devices,
		Events:      events,
		Automations: automations,
	}
}

func (t Track) String() string {
	return t.Name
}
