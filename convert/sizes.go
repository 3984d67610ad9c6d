package convert

import (
	"fmt"
	"sort"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/plugin"
)

// Size is the size of one part of the song stream.
type Size struct {
	Name       string
	Raw        int
	Compressed int
}

// Sizes reports the raw and estimated compressed size of the whole stream
// and of its parts: each device type, each midi lane and each track. The
// parts are compressed on their own, so they do not add up to the total.
// A nil oracle means plugin.LZCost.
func (r *Result) Sizes(oracle sabre.CompressionOracle) ([]Size, error) {
	if oracle == nil {
		oracle = plugin.LZCost{}
	}
	var ret []Size
	add := func(name string, data []byte) error {
		c, err := oracle.CompressedSize(data)
		if err != nil {
			return fmt.Errorf("estimating size of %v: %w", name, err)
		}
		ret = append(ret, Size{Name: name, Raw: len(data), Compressed: c})
		return nil
	}
	out := r.Output
	if err := add("song", out.Song); err != nil {
		return nil, err
	}
	for id := sabre.DeviceID(0); int(id) < sabre.NumDeviceIDs; id++ {
		if data, ok := out.DeviceTypes[id]; ok {
			if err := add("devices: "+id.String(), data); err != nil {
				return nil, err
			}
		}
	}
	lanes := make([]int, 0, len(out.MidiLanes))
	for i := range out.MidiLanes {
		lanes = append(lanes, i)
	}
	sort.Ints(lanes)
	for _, i := range lanes {
		if err := add(fmt.Sprintf("midi lane %v", i), out.MidiLanes[i]); err != nil {
			return nil, err
		}
	}
	for _, key := range out.TrackKeys {
		if err := add("track: "+key, out.Tracks[key]); err != nil {
			return nil, err
		}
	}
	return ret, nil
}
