package optimizer

import (
	"fmt"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/timeline"
)

type (
	// Options are the collaborators of Restructure.
	Options struct {
		// Minifier turns plugin chunks into runtime chunks. If nil, the
		// chunks are used as they are.
		Minifier sabre.ChunkMinifier

		// Oracle ranks device orderings by compressed size. If nil, the
		// uncompressed size is used, which makes every ordering equal and
		// the first start win.
		Oracle sabre.CompressionOracle

		// Workers is the number of device orderings evaluated concurrently.
		// Values above 1 require an Oracle that is safe for concurrent use.
		Workers int
	}

	slot struct {
		track, index int
	}

	lengthOracle struct{}
)

func (lengthOracle) CompressedSize(data []byte) (int, error) {
	return len(data), nil
}

// Restructure flattens the devices of all tracks into one list, ordered for
// compression, and shares identical note sequences between tracks as MIDI
// lanes. Redundant automation points are dropped. The song and the timeline
// are not modified.
func Restructure(tl *timeline.Timeline, opts Options, log sabre.Logger) (*sabre.Arrangement, error) {
	song := tl.Song
	if len(tl.Tracks) != len(song.Tracks) {
		return nil, fmt.Errorf("timeline has %v tracks, song has %v", len(tl.Tracks), len(song.Tracks))
	}
	oracle := opts.Oracle
	if oracle == nil {
		oracle = lengthOracle{}
	}
	var buckets [sabre.NumDeviceIDs][]slot
	chunks := map[slot][]byte{}
	for i, t := range song.Tracks {
		for j, d := range t.Devices {
			if !d.ID.Valid() {
				return nil, fmt.Errorf("track %q: device %v has unknown type %v", t.Name, j, int(d.ID))
			}
			s := slot{track: i, index: j}
			buckets[d.ID] = append(buckets[d.ID], s)
			chunks[s] = minify(opts.Minifier, t.Name, d, log)
		}
	}
	ret := &sabre.Arrangement{Song: song}
	global := map[slot]int{}
	for id, bucket := range buckets {
		bucketChunks := make([][]byte, len(bucket))
		for i, s := range bucket {
			bucketChunks[i] = chunks[s]
		}
		for _, i := range OrderDevices(bucketChunks, oracle, opts.Workers, log) {
			global[bucket[i]] = len(ret.Devices)
			ret.Devices = append(ret.Devices, sabre.Device{ID: sabre.DeviceID(id), Chunk: bucketChunks[i]})
		}
	}
	laneDupes, pointsRemoved := 0, 0
	for i, t := range song.Tracks {
		at := sabre.ArrangedTrack{
			Name:          t.Name,
			Volume:        t.Volume,
			Receives:      append([]sabre.Receive(nil), t.Receives...),
			DeviceIndices: make([]int, len(t.Devices)),
		}
		for j := range t.Devices {
			at.DeviceIndices[j] = global[slot{track: i, index: j}]
		}
		lane := sabre.MidiLane{Events: tl.Tracks[i].Events}
		var duplicate bool
		ret.MidiLanes, at.MidiLaneID, duplicate = AddMidiLane(ret.MidiLanes, lane)
		if duplicate && len(lane.Events) > 0 {
			laneDupes++
		}
		for j, a := range t.Automations {
			points, removed := DedupePoints(tl.Tracks[i].Automations[j])
			pointsRemoved += removed
			at.Automations = append(at.Automations, sabre.ArrangedAutomation{DeviceIndex: a.DeviceIndex, ParamID: a.ParamID, Points: points})
		}
		ret.Tracks = append(ret.Tracks, at)
	}
	if laneDupes > 0 {
		log.Infof("found %v duplicate midi lane(s)", laneDupes)
	}
	if pointsRemoved > 0 {
		log.Infof("removed %v automation point(s)", pointsRemoved)
	}
	return ret, nil
}

func minify(m sabre.ChunkMinifier, track string, d sabre.Device, log sabre.Logger) []byte {
	if m == nil {
		return d.Chunk
	}
	ret, err := m.Minify(d.ID, d.Chunk)
	if err != nil {
		log.Warnf("track %q: could not minify %v chunk, using the original: %v", track, d.ID, err)
		return d.Chunk
	}
	if len(ret) == 0 && len(d.Chunk) > 0 {
		log.Warnf("track %q: minifying %v chunk gave nothing, using the original", track, d.ID)
		return d.Chunk
	}
	return ret
}
