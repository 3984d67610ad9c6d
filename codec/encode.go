package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wavesabre/sabre"
)

// encoder appends to the canonical stream and mirrors every write into the
// side buffer currently selected, if any. The first error sticks; later
// writes are no-ops.
type encoder struct {
	out  *Output
	side *[]byte
	err  error
}

func (e *encoder) raw(b ...byte) {
	if e.err != nil {
		return
	}
	e.out.Song = append(e.out.Song, b...)
	if e.side != nil {
		*e.side = append(*e.side, b...)
	}
}

func (e *encoder) u8(v byte) {
	e.raw(v)
}

func (e *encoder) i32(v int) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		e.fail(&sabre.RangeError{Field: "int32", Value: int64(v)})
		return
	}
	e.raw(binary.LittleEndian.AppendUint32(nil, uint32(int32(v)))...)
}

func (e *encoder) f32(v float32) {
	e.raw(binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))...)
}

func (e *encoder) f64(v float64) {
	e.raw(binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))...)
}

func (e *encoder) varint(field string, v int) {
	u, err := toUint32(field, v)
	if err != nil {
		e.fail(err)
		return
	}
	e.raw(AppendVarUint32(nil, u)...)
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Encode serializes the arrangement into the stream read by the player:
//
//	header:  tempo int32, length float64, timestamp scale u8, duration scale u8
//	devices: count int32, per device: id u8, chunk length var, chunk
//	lanes:   count int32, per lane: flags u8, event count var, time deltas
//	         var, notes u8, velocities u8, durations var
//	tracks:  count int32, per track: volume float32, receives, device
//	         indices, lane id, automations
//
// All multi-byte fixed width fields are little endian; var fields are
// var-uint32s. Lane columns are written one after another; the note column
// is left out of FixedNote lanes and the velocity column out of
// FixedVelocity lanes.
func Encode(a *sabre.Arrangement, log sabre.Logger) (*Output, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("arrangement has out of range device or lane indices")
	}
	song := a.Song
	for _, s := range []int{song.TimestampScaleLog2, song.NoteDurationScaleLog2} {
		if s < 0 || s > sabre.MaxScaleLog2 {
			return nil, &sabre.RangeError{Field: "scale exponent", Value: int64(s)}
		}
	}
	e := &encoder{out: newOutput()}
	e.i32(song.Tempo)
	e.f64(song.Length)
	e.u8(byte(song.TimestampScaleLog2))
	e.u8(byte(song.NoteDurationScaleLog2))

	e.i32(len(a.Devices))
	for _, d := range a.Devices {
		buf := e.out.DeviceTypes[d.ID]
		e.side = &buf
		e.u8(byte(d.ID))
		e.varint("chunk length", len(d.Chunk))
		e.raw(d.Chunk...)
		e.out.DeviceTypes[d.ID] = buf
		e.side = nil
	}

	flags := ComputeLaneFlags(a)
	e.i32(len(a.MidiLanes))
	for i, lane := range a.MidiLanes {
		var buf []byte
		e.side = &buf
		e.lane(i, lane, flags[i], song, log)
		e.out.MidiLanes[i] = buf
		e.side = nil
	}

	e.i32(len(a.Tracks))
	for i, t := range a.Tracks {
		var buf []byte
		e.side = &buf
		e.track(t)
		key := TrackKey(t.Name, i)
		e.out.Tracks[key] = buf
		e.out.TrackKeys = append(e.out.TrackKeys, key)
		e.side = nil
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.out, nil
}

func (e *encoder) lane(index int, lane sabre.MidiLane, flags LaneFlags, song *sabre.Song, log sabre.Logger) {
	e.u8(byte(flags))
	e.i32(len(lane.Events))
	for _, ev := range lane.Events {
		e.varint("time delta", ev.TimeFromLastEvent>>song.TimestampScaleLog2)
	}
	if flags&FixedNote == 0 {
		for _, ev := range lane.Events {
			e.u8(ev.Note)
		}
	} else if n := countNot(lane, func(ev sabre.DeltaCodedEvent) bool { return ev.Note == ImplicitNote }); n > 0 {
		log.Warnf("midi lane %v: %v notes are not %v but the lane has a fixed note", index, n, ImplicitNote)
	}
	if flags&FixedVelocity == 0 {
		for _, ev := range lane.Events {
			e.u8(ev.Velocity)
		}
	} else if n := countNot(lane, func(ev sabre.DeltaCodedEvent) bool { return ev.Velocity == ImplicitVelocity }); n > 0 {
		log.Warnf("midi lane %v: %v velocities are not %v but the lane has a fixed velocity", index, n, ImplicitVelocity)
	}
	for j, ev := range lane.Events {
		d := ev.DurationSamples >> song.NoteDurationScaleLog2
		if d == 0 && ev.DurationSamples >= 0 {
			log.Warnf("midi lane %v: note %v lasts %v samples, which quantizes to zero; making it one tick long", index, j, ev.DurationSamples)
			d = 1
		}
		e.varint("duration", d)
	}
}

func (e *encoder) track(t sabre.ArrangedTrack) {
	e.f32(t.Volume)
	e.varint("receive count", len(t.Receives))
	for _, r := range t.Receives {
		e.varint("sending track index", r.SendingTrackIndex)
		e.varint("receiving channel index", r.ReceivingChannelIndex)
		e.f32(r.Volume)
	}
	e.varint("device count", len(t.DeviceIndices))
	for _, d := range t.DeviceIndices {
		e.varint("device index", d)
	}
	e.varint("midi lane id", t.MidiLaneID)
	e.varint("automation count", len(t.Automations))
	for _, a := range t.Automations {
		e.varint("automation device index", a.DeviceIndex)
		e.varint("automation param id", a.ParamID)
		e.varint("point count", len(a.Points))
		for _, p := range a.Points {
			e.varint("point time delta", p.TimeFromLastPoint)
		}
		for _, p := range a.Points {
			e.u8(p.Value)
		}
	}
}

func countNot(lane sabre.MidiLane, ok func(sabre.DeltaCodedEvent) bool) int {
	ret := 0
	for _, ev := range lane.Events {
		if !ok(ev) {
			ret++
		}
	}
	return ret
}
