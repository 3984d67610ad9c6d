package optimizer_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/optimizer"
	"github.com/wavesabre/sabre/timeline"
)

type failingMinifier struct{}

func (failingMinifier) Minify(id sabre.DeviceID, chunk []byte) ([]byte, error) {
	if id == sabre.Echo {
		return nil, errors.New("no minifier for echo")
	}
	return chunk[:1], nil
}

type failingOracle struct{}

func (failingOracle) CompressedSize(data []byte) (int, error) {
	return 0, errors.New("oracle not available")
}

// sumOracle scores by the byte sum of the second half, so that the order
// matters and the scores differ between starts.
type sumOracle struct{}

func (sumOracle) CompressedSize(data []byte) (int, error) {
	ret := 0
	for i, b := range data[len(data)/2:] {
		ret += int(b) * (i + 1)
	}
	return ret, nil
}

func points(values ...byte) []sabre.DeltaCodedPoint {
	ret := make([]sabre.DeltaCodedPoint, len(values))
	for i, v := range values {
		ret[i] = sabre.DeltaCodedPoint{TimeFromLastPoint: 10 * (i + 1), Value: v}
	}
	return ret
}

func TestDedupeTriple(t *testing.T) {
	deduped, removed := optimizer.DedupePoints(points(5, 5, 5, 9))
	expected := []sabre.DeltaCodedPoint{{TimeFromLastPoint: 10, Value: 5}, {TimeFromLastPoint: 50, Value: 5}, {TimeFromLastPoint: 40, Value: 9}}
	if !reflect.DeepEqual(deduped, expected) || removed != 1 {
		t.Fatalf("got %v (removed %v), expected %v", deduped, removed, expected)
	}
}

func TestDedupeChained(t *testing.T) {
	in := points(5, 5, 5, 5, 5)
	deduped, removed := optimizer.DedupePoints(in)
	expected := []sabre.DeltaCodedPoint{{TimeFromLastPoint: 10, Value: 5}, {TimeFromLastPoint: 140, Value: 5}}
	if !reflect.DeepEqual(deduped, expected) || removed != 3 {
		t.Fatalf("got %v (removed %v), expected %v", deduped, removed, expected)
	}
	if in[1].TimeFromLastPoint != 20 || len(in) != 5 {
		t.Fatalf("input was modified: %v", in)
	}
}

func TestDedupeKeepsEndTimes(t *testing.T) {
	in := points(1, 2, 2, 2, 2, 3, 3, 3, 4)
	deduped, _ := optimizer.DedupePoints(in)
	sum := func(p []sabre.DeltaCodedPoint) (ret int) {
		for _, x := range p {
			ret += x.TimeFromLastPoint
		}
		return
	}
	if sum(in) != sum(deduped) {
		t.Fatalf("resummed end time changed from %v to %v", sum(in), sum(deduped))
	}
	values := []byte{}
	for _, p := range deduped {
		values = append(values, p.Value)
	}
	if !reflect.DeepEqual(values, []byte{1, 2, 2, 3, 3, 4}) {
		t.Fatalf("wrong values %v", values)
	}
}

func TestAddMidiLane(t *testing.T) {
	a := sabre.MidiLane{Events: []sabre.DeltaCodedEvent{{TimeFromLastEvent: 0, DurationSamples: 10, Note: 60, Velocity: 100}}}
	b := sabre.MidiLane{Events: []sabre.DeltaCodedEvent{{TimeFromLastEvent: 0, DurationSamples: 10, Note: 60, Velocity: 100}}}
	c := sabre.MidiLane{Events: []sabre.DeltaCodedEvent{{TimeFromLastEvent: 0, DurationSamples: 11, Note: 60, Velocity: 100}}}
	lanes, ia, dup := optimizer.AddMidiLane(nil, a)
	if ia != 0 || dup {
		t.Fatalf("first lane got index %v, duplicate %v", ia, dup)
	}
	lanes, ib, dup := optimizer.AddMidiLane(lanes, b)
	if ib != ia || !dup {
		t.Fatalf("identical lane got index %v, expected %v", ib, ia)
	}
	lanes, ic, dup := optimizer.AddMidiLane(lanes, c)
	if ic == ia || dup {
		t.Fatalf("lane differing in duration shared index %v", ic)
	}
	if len(lanes) != 2 {
		t.Fatalf("expected 2 lanes, got %v", len(lanes))
	}
}

func TestNearestNeighbourPrefersCloseChunk(t *testing.T) {
	a := make([]byte, 16)
	b := make([]byte, 16)
	c := make([]byte, 16)
	b[3] = 1
	c[0], c[1] = 100, 100
	chunks := [][]byte{a, c, b}
	if d := optimizer.ChunkDistance(a, b); d != 1 {
		t.Fatalf("distance a-b is %v", d)
	}
	if d := optimizer.ChunkDistance(a, c); d != 200 {
		t.Fatalf("distance a-c is %v", d)
	}
	for start := range chunks {
		order := optimizer.GreedyOrder(chunks, start)
		pos := map[int]int{}
		for p, i := range order {
			pos[i] = p
		}
		if pos[0]-pos[2] != 1 && pos[2]-pos[0] != 1 {
			t.Fatalf("start %v: A and B are not adjacent in %v", start, order)
		}
	}
	order := optimizer.OrderDevices(chunks, sumOracle{}, 1, sabre.Discard)
	if len(order) != 3 {
		t.Fatalf("wrong order %v", order)
	}
}

func TestChunkDistancePadsWithZeros(t *testing.T) {
	if d := optimizer.ChunkDistance([]byte{1, 2, 3}, []byte{1}); d != 5 {
		t.Fatalf("expected 5, got %v", d)
	}
	if d := optimizer.ChunkDistance(nil, nil); d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}

func TestOrderDevicesWorkersAgree(t *testing.T) {
	chunks := [][]byte{{9, 9, 9}, {1, 2, 3}, {200, 0, 1}, {1, 2, 4}, {8, 9, 9}, {50, 50, 50}}
	serial := optimizer.OrderDevices(chunks, sumOracle{}, 1, sabre.Discard)
	parallel := optimizer.OrderDevices(chunks, sumOracle{}, 4, sabre.Discard)
	if !reflect.DeepEqual(serial, parallel) {
		t.Fatalf("serial %v and parallel %v orders differ", serial, parallel)
	}
}

func TestOracleFailureWarnsOnce(t *testing.T) {
	log := &sabre.DiagnosticLog{}
	order := optimizer.OrderDevices([][]byte{{1}, {2}, {3}}, failingOracle{}, 1, log)
	if !reflect.DeepEqual(order, []int{0, 1, 2}) {
		t.Fatalf("expected the first start to win, got %v", order)
	}
	if w := log.Warnings(); len(w) != 1 {
		t.Fatalf("expected one warning, got %v", w)
	}
}

func restructure(t *testing.T, song *sabre.Song, opts optimizer.Options, log sabre.Logger) *sabre.Arrangement {
	tl, err := timeline.Encode(song, sabre.Discard)
	if err != nil {
		t.Fatalf("timeline.Encode failed: %v", err)
	}
	a, err := optimizer.Restructure(tl, opts, log)
	if err != nil {
		t.Fatalf("Restructure failed: %v", err)
	}
	if !a.Valid() {
		t.Fatalf("arrangement has invalid indices")
	}
	return a
}

func note(at, length int, n byte) []sabre.Event {
	return []sabre.Event{{TimeStamp: at, Type: sabre.NoteOn, Note: n, Velocity: 100}, {TimeStamp: at + length, Type: sabre.NoteOff, Note: n}}
}

func TestRestructure(t *testing.T) {
	song := sabre.Song{Tempo: 120, SampleRate: 44100, Tracks: []sabre.Track{
		{Name: "a", Devices: []sabre.Device{{ID: sabre.Echo, Chunk: []byte{1, 2}}, {ID: sabre.Crusher, Chunk: []byte{3}}}, Events: note(0, 10, 60)},
		{Name: "b", Devices: []sabre.Device{{ID: sabre.Crusher, Chunk: []byte{4}}}, Events: note(0, 10, 60)},
		{Name: "c", Events: note(0, 11, 60)},
		{Name: "master"},
	}}
	log := &sabre.DiagnosticLog{}
	a := restructure(t, &song, optimizer.Options{Minifier: failingMinifier{}}, log)
	ids := []sabre.DeviceID{}
	for _, d := range a.Devices {
		ids = append(ids, d.ID)
	}
	if !reflect.DeepEqual(ids, []sabre.DeviceID{sabre.Crusher, sabre.Crusher, sabre.Echo}) {
		t.Fatalf("devices are not in enumeration order: %v", ids)
	}
	if !reflect.DeepEqual(a.Devices[2].Chunk, []byte{1, 2}) {
		t.Fatalf("failed minification should keep the chunk, got %v", a.Devices[2].Chunk)
	}
	if len(log.Warnings()) != 1 {
		t.Fatalf("expected one minifier warning, got %v", log.Warnings())
	}
	for i, at := range a.Tracks {
		for j, di := range at.DeviceIndices {
			if a.Devices[di].ID != song.Tracks[i].Devices[j].ID {
				t.Fatalf("track %v device %v points to a %v", i, j, a.Devices[di].ID)
			}
		}
	}
	if a.Tracks[0].MidiLaneID != a.Tracks[1].MidiLaneID {
		t.Fatalf("identical tracks do not share a lane")
	}
	if a.Tracks[2].MidiLaneID == a.Tracks[0].MidiLaneID {
		t.Fatalf("tracks with different durations share a lane")
	}
	if len(a.MidiLanes) != 3 || len(a.MidiLanes[a.Tracks[3].MidiLaneID].Events) != 0 {
		t.Fatalf("expected two note lanes and one empty lane, got %v", a.MidiLanes)
	}
	if len(song.Tracks[0].Devices[1].Chunk) != 1 || song.Tracks[0].Devices[0].Chunk[1] != 2 {
		t.Fatalf("song was modified")
	}
}

func TestRestructureIsDeterministic(t *testing.T) {
	song := sabre.Song{Tempo: 120, SampleRate: 44100}
	for i := 0; i < 5; i++ {
		song.Tracks = append(song.Tracks, sabre.Track{
			Devices: []sabre.Device{{ID: sabre.Maj7, Chunk: []byte{byte(i * 37), byte(i * 11), 5}}},
			Events:  note(i, 3, byte(60+i%2)),
		})
	}
	first := restructure(t, &song, optimizer.Options{Oracle: sumOracle{}, Workers: 3}, sabre.Discard)
	second := restructure(t, &song, optimizer.Options{Oracle: sumOracle{}}, sabre.Discard)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("restructuring twice gave different results")
	}
}
