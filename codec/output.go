package codec

import (
	"fmt"

	"github.com/wavesabre/sabre"
)

// Output is the serialized song. Song is the canonical stream; the other
// fields are copies of parts of it, for size accounting. They are never
// read back and do not affect Song.
type Output struct {
	Song []byte

	// Tracks holds what was written for each track, keyed by TrackKey.
	// TrackKeys lists the keys in track order.
	Tracks    map[string][]byte
	TrackKeys []string

	// DeviceTypes holds what was written for all the devices of each type.
	DeviceTypes map[sabre.DeviceID][]byte

	// MidiLanes holds what was written for each lane, by lane index.
	MidiLanes map[int][]byte
}

// TrackKey is the key of a track in Output.Tracks. The index keeps tracks
// with the same name apart.
func TrackKey(name string, index int) string {
	return fmt.Sprintf("%v #%v", name, index)
}

func newOutput() *Output {
	return &Output{
		Tracks:      map[string][]byte{},
		DeviceTypes: map[sabre.DeviceID][]byte{},
		MidiLanes:   map[int][]byte{},
	}
}
