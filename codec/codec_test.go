package codec_test

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/codec"
)

func TestVarUint32RoundTrip(t *testing.T) {
	values := []uint32{0, 127, 128, 16383, 16384, 2097151, 2097152, 268435455, 268435456, 4294967295}
	lengths := []int{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}
	for i, v := range values {
		b := codec.AppendVarUint32(nil, v)
		if len(b) != lengths[i] {
			t.Fatalf("%v encoded into %v bytes, expected %v", v, len(b), lengths[i])
		}
		got, n, err := codec.ReadVarUint32(b)
		if err != nil {
			t.Fatalf("could not read back %v: %v", v, err)
		}
		if got != v || n != len(b) {
			t.Fatalf("read back %v (%v bytes), expected %v (%v bytes)", got, n, v, len(b))
		}
	}
}

func TestVarUint32Errors(t *testing.T) {
	if _, _, err := codec.ReadVarUint32([]byte{0x80, 0x80}); err == nil {
		t.Fatalf("expected truncated data to fail")
	}
	if _, _, err := codec.ReadVarUint32([]byte{0xff, 0xff, 0xff, 0xff, 0x1f}); err == nil {
		t.Fatalf("expected a value over 32 bits to fail")
	}
}

func smallArrangement() *sabre.Arrangement {
	song := &sabre.Song{Tempo: 120, SampleRate: 44100, Length: 1.5, TimestampScaleLog2: 1, NoteDurationScaleLog2: 2}
	return &sabre.Arrangement{
		Song:      song,
		Devices:   []sabre.Device{{ID: sabre.Maj7, Chunk: []byte{0xaa}}},
		MidiLanes: []sabre.MidiLane{{Events: []sabre.DeltaCodedEvent{{TimeFromLastEvent: 200, DurationSamples: 3, Note: 60, Velocity: 127}}}},
		Tracks: []sabre.ArrangedTrack{{
			Name:          "t",
			Volume:        1,
			DeviceIndices: []int{0},
			MidiLaneID:    0,
			Automations:   []sabre.ArrangedAutomation{{DeviceIndex: 0, ParamID: 5, Points: []sabre.DeltaCodedPoint{{TimeFromLastPoint: 300, Value: 7}}}},
		}},
	}
}

func TestEncodeLayout(t *testing.T) {
	log := &sabre.DiagnosticLog{}
	out, err := codec.Encode(smallArrangement(), log)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	device := []byte{0x06, 0x01, 0xaa}
	lane := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x64, 0x3c, 0x7f, 0x01}
	track := []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x05, 0x01, 0xac, 0x02, 0x07}
	var expected []byte
	expected = append(expected, 0x78, 0x00, 0x00, 0x00)
	expected = append(expected, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf8, 0x3f)
	expected = append(expected, 0x01, 0x02)
	expected = append(expected, 0x01, 0x00, 0x00, 0x00)
	expected = append(expected, device...)
	expected = append(expected, 0x01, 0x00, 0x00, 0x00)
	expected = append(expected, lane...)
	expected = append(expected, 0x01, 0x00, 0x00, 0x00)
	expected = append(expected, track...)
	if !bytes.Equal(out.Song, expected) {
		t.Fatalf("wrong stream.\ngot:      % x\nexpected: % x", out.Song, expected)
	}
	if !bytes.Equal(out.DeviceTypes[sabre.Maj7], device) {
		t.Fatalf("wrong device side output % x", out.DeviceTypes[sabre.Maj7])
	}
	if !bytes.Equal(out.MidiLanes[0], lane) {
		t.Fatalf("wrong lane side output % x", out.MidiLanes[0])
	}
	if !reflect.DeepEqual(out.TrackKeys, []string{"t #0"}) || !bytes.Equal(out.Tracks["t #0"], track) {
		t.Fatalf("wrong track side output %v % x", out.TrackKeys, out.Tracks["t #0"])
	}
	// the duration of 3 samples shifted by 2 is zero and gets forced to 1
	if w := log.Warnings(); len(w) != 1 {
		t.Fatalf("expected one warning about the zero duration, got %v", w)
	}
}

func TestDeviceTypeBytes(t *testing.T) {
	a := &sabre.Arrangement{
		Song:    &sabre.Song{Tempo: 100, SampleRate: 44100},
		Devices: []sabre.Device{{ID: sabre.Maj7, Chunk: []byte{1}}, {ID: sabre.Leveller, Chunk: []byte{2}}},
	}
	out, err := codec.Encode(a, sabre.Discard)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// header is 14 bytes, device count 4, then id, length and chunk per device
	if out.Song[18] != 6 || out.Song[21] != 0 {
		t.Fatalf("wrong device type bytes %v and %v", out.Song[18], out.Song[21])
	}
}

func TestLaneHeader(t *testing.T) {
	events := make([]sabre.DeltaCodedEvent, 300)
	for i := range events {
		events[i] = sabre.DeltaCodedEvent{TimeFromLastEvent: 1, DurationSamples: 1, Note: 60, Velocity: 100}
	}
	a := &sabre.Arrangement{
		Song:      &sabre.Song{Tempo: 100, SampleRate: 44100},
		MidiLanes: []sabre.MidiLane{{Events: events}},
		Tracks:    []sabre.ArrangedTrack{{Name: "hats #fixedvelocity"}},
	}
	out, err := codec.Encode(a, sabre.Discard)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// flags byte, then the event count as a little-endian int32
	if header := out.MidiLanes[0][:5]; !bytes.Equal(header, []byte{0x01, 0x2c, 0x01, 0x00, 0x00}) {
		t.Fatalf("wrong lane header % x", header)
	}
	if len(out.MidiLanes[0]) != 5+3*len(events) {
		t.Fatalf("wrong lane length %v", len(out.MidiLanes[0]))
	}
}

func TestFixedVelocityLane(t *testing.T) {
	events := []sabre.DeltaCodedEvent{
		{TimeFromLastEvent: 0, DurationSamples: 100, Note: 60, Velocity: 100},
		{TimeFromLastEvent: 200, DurationSamples: 100, Note: 64, Velocity: 100},
		{TimeFromLastEvent: 200, DurationSamples: 100, Note: 67, Velocity: 100},
	}
	arrangement := func(name string) *sabre.Arrangement {
		return &sabre.Arrangement{
			Song:      &sabre.Song{Tempo: 100, SampleRate: 44100, Length: 3},
			MidiLanes: []sabre.MidiLane{{Events: events}},
			Tracks:    []sabre.ArrangedTrack{{Name: name, Volume: 0.5}},
		}
	}
	plain, err := codec.Encode(arrangement("chords"), sabre.Discard)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	log := &sabre.DiagnosticLog{}
	fixed, err := codec.Encode(arrangement("Chords #FixedVelocity"), log)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(plain.Song)-len(fixed.Song) != len(events) {
		t.Fatalf("fixed velocity lane should save one byte per note: %v vs %v bytes", len(plain.Song), len(fixed.Song))
	}
	if len(log.Warnings()) != 0 {
		t.Fatalf("unexpected warnings %v", log.Warnings())
	}
	decoded, err := codec.Decode(fixed.Song)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.MidiLanes[0].Flags != codec.FixedVelocity {
		t.Fatalf("wrong lane flags %v", decoded.MidiLanes[0].Flags)
	}
	if !reflect.DeepEqual(decoded.MidiLanes[0].Events, events) {
		t.Fatalf("decoded events %v, expected %v", decoded.MidiLanes[0].Events, events)
	}
}

func TestFixedNoteWarnsOnDeviation(t *testing.T) {
	a := &sabre.Arrangement{
		Song:      &sabre.Song{Tempo: 100, SampleRate: 44100},
		MidiLanes: []sabre.MidiLane{{Events: []sabre.DeltaCodedEvent{{DurationSamples: 10, Note: 36, Velocity: 100}}}},
		Tracks:    []sabre.ArrangedTrack{{Name: "kick #FIXEDNOTE #fixedvelocity"}},
	}
	log := &sabre.DiagnosticLog{}
	out, err := codec.Encode(a, log)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if w := log.Warnings(); len(w) != 1 {
		t.Fatalf("expected one warning about the note, got %v", w)
	}
	if !bytes.Equal(out.MidiLanes[0], []byte{0x03, 0x01, 0x00, 0x00, 0x00, 0x00, 0x0a}) {
		t.Fatalf("wrong lane bytes % x", out.MidiLanes[0])
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	a := smallArrangement()
	a.Song.TimestampScaleLog2 = 0
	a.Song.NoteDurationScaleLog2 = 0
	a.Tracks[0].Receives = []sabre.Receive{{SendingTrackIndex: 0, ReceivingChannelIndex: 1, Volume: 0.25}}
	out, err := codec.Encode(a, sabre.Discard)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	d, err := codec.Decode(out.Song)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.Tempo != 120 || d.Length != 1.5 {
		t.Fatalf("wrong header %v %v", d.Tempo, d.Length)
	}
	if !reflect.DeepEqual(d.Devices, a.Devices) {
		t.Fatalf("devices %v, expected %v", d.Devices, a.Devices)
	}
	if !reflect.DeepEqual(d.MidiLanes[0].Events, a.MidiLanes[0].Events) {
		t.Fatalf("events %v, expected %v", d.MidiLanes[0].Events, a.MidiLanes[0].Events)
	}
	expected := a.Tracks[0]
	expected.Name = ""
	if !reflect.DeepEqual(d.Tracks[0], expected) {
		t.Fatalf("track %+v, expected %+v", d.Tracks[0], expected)
	}
	if _, err := codec.Decode(out.Song[:len(out.Song)-1]); err == nil {
		t.Fatalf("expected truncated stream to fail")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	first, err := codec.Encode(smallArrangement(), sabre.Discard)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	second, err := codec.Encode(smallArrangement(), sabre.Discard)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(first.Song, second.Song) {
		t.Fatalf("encoding twice gave different streams")
	}
}

func TestEncodeRangeError(t *testing.T) {
	a := smallArrangement()
	a.Tracks[0].Automations[0].Points[0].TimeFromLastPoint = -1
	_, err := codec.Encode(a, sabre.Discard)
	var rangeErr *sabre.RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected a RangeError, got %v", err)
	}
}

func TestTrackFlags(t *testing.T) {
	cases := map[string]codec.LaneFlags{
		"lead":                      0,
		"Lead #FixedVelocity":       codec.FixedVelocity,
		"hat #fixednote":            codec.FixedNote,
		"#FIXEDNOTE #FIXEDVELOCITY": codec.FixedNote | codec.FixedVelocity,
		"fixedvelocity":             0,
	}
	for name, expected := range cases {
		if got := codec.TrackFlags(name); got != expected {
			t.Fatalf("TrackFlags(%q) = %v, expected %v", name, got, expected)
		}
	}
}
