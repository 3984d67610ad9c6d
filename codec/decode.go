package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wavesabre/sabre"
)

type (
	// Decoded is a song stream parsed back. Times and durations are as
	// stored, i.e. still shifted by the scale exponents.
	Decoded struct {
		Tempo                 int
		Length                float64
		TimestampScaleLog2    int
		NoteDurationScaleLog2 int
		Devices               []sabre.Device
		MidiLanes             []DecodedLane
		Tracks                []sabre.ArrangedTrack
	}

	// DecodedLane is a MIDI lane with its flags. Notes and velocities of
	// fixed lanes are filled in with the implicit values.
	DecodedLane struct {
		Flags  LaneFlags
		Events []sabre.DeltaCodedEvent
	}

	decoder struct {
		data []byte
		pos  int
		err  error
	}
)

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = fmt.Errorf("unexpected end of data reading %v at offset %v", what, d.pos)
	}
}

func (d *decoder) take(n int, what string) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.pos < n {
		d.fail(what)
		return nil
	}
	ret := d.data[d.pos : d.pos+n]
	d.pos += n
	return ret
}

func (d *decoder) u8(what string) byte {
	b := d.take(1, what)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) i32(what string) int {
	b := d.take(4, what)
	if b == nil {
		return 0
	}
	return int(int32(binary.LittleEndian.Uint32(b)))
}

func (d *decoder) f32(what string) float32 {
	b := d.take(4, what)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (d *decoder) f64(what string) float64 {
	b := d.take(8, what)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (d *decoder) varint(what string) int {
	if d.err != nil {
		return 0
	}
	v, n, err := ReadVarUint32(d.data[d.pos:])
	if err != nil {
		d.err = fmt.Errorf("%v at offset %v: %w", what, d.pos, err)
		return 0
	}
	d.pos += n
	return int(v)
}

// count reads a count and checks that at least min bytes per item are left,
// so that corrupt data cannot make the decoder allocate huge slices.
func (d *decoder) count(v int, min int, what string) int {
	if d.err != nil {
		return 0
	}
	if v < 0 || v*min > len(d.data)-d.pos {
		d.err = fmt.Errorf("%v %v at offset %v is larger than the remaining data", what, v, d.pos)
		return 0
	}
	return v
}

// Decode parses a stream written by Encode.
func Decode(data []byte) (*Decoded, error) {
	d := &decoder{data: data}
	ret := &Decoded{}
	ret.Tempo = d.i32("tempo")
	ret.Length = d.f64("length")
	ret.TimestampScaleLog2 = int(d.u8("timestamp scale"))
	ret.NoteDurationScaleLog2 = int(d.u8("note duration scale"))

	numDevices := d.count(d.i32("device count"), 2, "device count")
	for i := 0; i < numDevices && d.err == nil; i++ {
		id := sabre.DeviceID(d.u8("device id"))
		if d.err == nil && !id.Valid() {
			return nil, fmt.Errorf("device %v has unknown type %v", i, int(id))
		}
		chunk := d.take(d.varint("chunk length"), "chunk")
		ret.Devices = append(ret.Devices, sabre.Device{ID: id, Chunk: append([]byte{}, chunk...)})
	}

	numLanes := d.count(d.i32("midi lane count"), 2, "midi lane count")
	for i := 0; i < numLanes && d.err == nil; i++ {
		ret.MidiLanes = append(ret.MidiLanes, d.lane())
	}

	numTracks := d.count(d.i32("track count"), 4, "track count")
	for i := 0; i < numTracks && d.err == nil; i++ {
		ret.Tracks = append(ret.Tracks, d.track())
	}
	if d.err != nil {
		return nil, d.err
	}
	if d.pos != len(data) {
		return nil, fmt.Errorf("%v bytes of trailing data", len(data)-d.pos)
	}
	return ret, nil
}

func (d *decoder) lane() DecodedLane {
	ret := DecodedLane{Flags: LaneFlags(d.u8("lane flags"))}
	n := d.count(d.i32("event count"), 2, "event count")
	ret.Events = make([]sabre.DeltaCodedEvent, n)
	for i := range ret.Events {
		ret.Events[i].TimeFromLastEvent = d.varint("time delta")
	}
	for i := range ret.Events {
		if ret.Flags&FixedNote != 0 {
			ret.Events[i].Note = ImplicitNote
		} else {
			ret.Events[i].Note = d.u8("note")
		}
	}
	for i := range ret.Events {
		if ret.Flags&FixedVelocity != 0 {
			ret.Events[i].Velocity = ImplicitVelocity
		} else {
			ret.Events[i].Velocity = d.u8("velocity")
		}
	}
	for i := range ret.Events {
		ret.Events[i].DurationSamples = d.varint("duration")
	}
	return ret
}

func (d *decoder) track() sabre.ArrangedTrack {
	ret := sabre.ArrangedTrack{Volume: d.f32("volume")}
	numReceives := d.count(d.varint("receive count"), 6, "receive count")
	for i := 0; i < numReceives && d.err == nil; i++ {
		ret.Receives = append(ret.Receives, sabre.Receive{
			SendingTrackIndex:     d.varint("sending track index"),
			ReceivingChannelIndex: d.varint("receiving channel index"),
			Volume:                d.f32("receive volume"),
		})
	}
	numDevices := d.count(d.varint("device count"), 1, "device count")
	for i := 0; i < numDevices && d.err == nil; i++ {
		ret.DeviceIndices = append(ret.DeviceIndices, d.varint("device index"))
	}
	ret.MidiLaneID = d.varint("midi lane id")
	numAutomations := d.count(d.varint("automation count"), 3, "automation count")
	for i := 0; i < numAutomations && d.err == nil; i++ {
		a := sabre.ArrangedAutomation{
			DeviceIndex: d.varint("automation device index"),
			ParamID:     d.varint("automation param id"),
		}
		n := d.count(d.varint("point count"), 2, "point count")
		a.Points = make([]sabre.DeltaCodedPoint, n)
		for j := range a.Points {
			a.Points[j].TimeFromLastPoint = d.varint("point time delta")
		}
		for j := range a.Points {
			a.Points[j].Value = d.u8("point value")
		}
		ret.Automations = append(ret.Automations, a)
	}
	return ret
}
