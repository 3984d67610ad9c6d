package sabre

type (
	// DeltaCodedEvent is a note of a MIDI lane: a NoteOn whose NoteOff has
	// been resolved into a duration, timed relative to the previous note of
	// the lane. This is the only form of note data ever serialized.
	DeltaCodedEvent struct {
		TimeFromLastEvent int // in samples
		DurationSamples   int
		Note              byte
		Velocity          byte
	}

	// DeltaCodedPoint is an automation point timed relative to the previous
	// point, with the value quantized to a byte.
	DeltaCodedPoint struct {
		TimeFromLastPoint int // in samples
		Value             byte
	}

	// MidiLane is a sequence of notes shared by all the tracks whose notes
	// are identical. Lanes exist only to deduplicate note data.
	MidiLane struct {
		Events []DeltaCodedEvent
	}

	// Arrangement is the song restructured into the shape of the binary
	// format: one global device list, one global list of MIDI lanes and the
	// tracks referring to them by index. Every index in Tracks is valid for
	// Devices and MidiLanes.
	Arrangement struct {
		Song      *Song
		Devices   []Device
		MidiLanes []MidiLane
		Tracks    []ArrangedTrack
	}

	// ArrangedTrack is a Track that refers to the global device and lane
	// lists of the Arrangement instead of owning its devices and events.
	ArrangedTrack struct {
		Name          string
		Volume        float32
		Receives      []Receive
		DeviceIndices []int
		MidiLaneID    int
		Automations   []ArrangedAutomation
	}

	// ArrangedAutomation is an Automation with delta coded, deduplicated
	// points. DeviceIndex still indexes the device chain of the track.
	ArrangedAutomation struct {
		DeviceIndex int
		ParamID     int
		Points      []DeltaCodedPoint
	}
)

// Equal reports if the two lanes have identical notes: same length and every
// note equal in all four fields.
func (l MidiLane) Equal(other MidiLane) bool {
	if len(l.Events) != len(other.Events) {
		return false
	}
	for i, e := range l.Events {
		if e != other.Events[i] {
			return false
		}
	}
	return true
}

// LaneTracks returns the indices of the tracks playing the given lane.
func (a *Arrangement) LaneTracks(lane int) []int {
	var ret []int
	for i, t := range a.Tracks {
		if t.MidiLaneID == lane {
			ret = append(ret, i)
		}
	}
	return ret
}

// Valid checks the index invariants of the arrangement.
func (a *Arrangement) Valid() bool {
	for _, t := range a.Tracks {
		if t.MidiLaneID < 0 || t.MidiLaneID >= len(a.MidiLanes) {
			return false
		}
		for _, d := range t.DeviceIndices {
			if d < 0 || d >= len(a.Devices) {
				return false
			}
		}
	}
	return true
}
