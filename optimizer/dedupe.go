package optimizer

import "github.com/wavesabre/sabre"

// AddMidiLane looks for a lane in lanes with exactly the same notes as lane;
// if found, its index is returned with duplicate = true. Otherwise lane is
// appended. The input slice is never modified: the returned slice is a new
// one whenever something was appended.
func AddMidiLane(lanes []sabre.MidiLane, lane sabre.MidiLane) ([]sabre.MidiLane, int, bool) {
	for i, l := range lanes {
		if l.Equal(lane) {
			return lanes, i, true
		}
	}
	updated := make([]sabre.MidiLane, len(lanes), len(lanes)+1)
	copy(updated, lanes) // avoid appending into the caller's backing array
	return append(updated, lane), len(lanes), false
}

// DedupePoints removes redundant automation points. Whenever three
// consecutive points share the same value, the delta of the third is folded
// into the middle one and the third removed, which leaves the envelope
// exactly as if the middle point had been dropped. This repeats until no such
// triple remains, as removing a point can bring a new triple together.
// Returns the new points and the number of points removed.
func DedupePoints(points []sabre.DeltaCodedPoint) ([]sabre.DeltaCodedPoint, int) {
	ret := make([]sabre.DeltaCodedPoint, len(points))
	copy(ret, points)
	removed := 0
	for {
		i := firstRun(ret)
		if i < 0 {
			return ret, removed
		}
		ret[i].TimeFromLastPoint += ret[i+1].TimeFromLastPoint
		ret = append(ret[:i+1], ret[i+2:]...)
		removed++
	}
}

// firstRun returns the index of the middle point of the first triple of equal
// values, or -1.
func firstRun(points []sabre.DeltaCodedPoint) int {
	for i := 1; i < len(points)-1; i++ {
		if points[i].Value == points[i-1].Value && points[i].Value == points[i+1].Value {
			return i
		}
	}
	return -1
}
