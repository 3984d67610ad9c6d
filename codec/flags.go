package codec

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/wavesabre/sabre"
)

// LaneFlags tell which columns of a MIDI lane are left out of the stream.
type LaneFlags byte

const (
	// FixedVelocity means that every note of the lane has ImplicitVelocity
	// and no velocities are written.
	FixedVelocity LaneFlags = 1 << iota
	// FixedNote means that every note of the lane is ImplicitNote and no
	// notes are written.
	FixedNote
)

const (
	FixedVelocityMarker = "#fixedvelocity"
	FixedNoteMarker     = "#fixednote"

	// ImplicitVelocity is the velocity the player gives to notes of a
	// FixedVelocity lane.
	ImplicitVelocity = 100
	// ImplicitNote is the note assumed for FixedNote lanes. The player does
	// not define one; middle C is a convention of this converter, so
	// instruments on such lanes should ignore the pitch.
	ImplicitNote = 60
)

func (f LaneFlags) String() string {
	var parts []string
	if f&FixedVelocity != 0 {
		parts = append(parts, "fixed velocity")
	}
	if f&FixedNote != 0 {
		parts = append(parts, "fixed note")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// TrackFlags returns the flags requested by markers in a track name. The
// markers are matched ignoring case.
func TrackFlags(name string) LaneFlags {
	fold := cases.Fold()
	folded := fold.String(name)
	var ret LaneFlags
	if strings.Contains(folded, fold.String(FixedVelocityMarker)) {
		ret |= FixedVelocity
	}
	if strings.Contains(folded, fold.String(FixedNoteMarker)) {
		ret |= FixedNote
	}
	return ret
}

// ComputeLaneFlags returns the flags of every lane of the arrangement: a lane
// gets a flag if any of the tracks playing it asks for it.
func ComputeLaneFlags(a *sabre.Arrangement) []LaneFlags {
	ret := make([]LaneFlags, len(a.MidiLanes))
	for _, t := range a.Tracks {
		if t.MidiLaneID >= 0 && t.MidiLaneID < len(ret) {
			ret[t.MidiLaneID] |= TrackFlags(t.Name)
		}
	}
	return ret
}
