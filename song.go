package sabre

import (
	"fmt"
)

type (
	// Song is the format-agnostic project model handed over by one of the DAW
	// project parsers. It is authored once and not mutated by the conversion
	// stages; every stage derives its own records from it (see Timeline in
	// package timeline and Arrangement).
	Song struct {
		// Tempo is the tempo of the song in beats per minute. The runtime only
		// supports integer tempos.
		Tempo int

		// SampleRate is the sample rate, in Hz, that all TimeStamps in the
		// song are expressed in.
		SampleRate int

		// Length is the length of the song in seconds.
		Length float64

		// TimestampScaleLog2 is the right-shift applied to every note time
		// delta before it is written. Working in 2^n sample chunks quantizes
		// the timestamps and removes entropy, which can save hundreds of bytes
		// after compression.
		TimestampScaleLog2 int `yaml:",omitempty" json:",omitempty"`

		// NoteDurationScaleLog2 is the right-shift applied to every note
		// duration before it is written.
		NoteDurationScaleLog2 int `yaml:",omitempty" json:",omitempty"`

		// Tracks is the list of tracks in the song. By convention of the
		// runtime, the last track is the master track.
		Tracks []Track
	}

	// Receive routes the output of another track into this track. A
	// ReceivingChannelIndex of 0 is the primary input; anything greater is a
	// side-chain input.
	Receive struct {
		SendingTrackIndex     int
		ReceivingChannelIndex int
		Volume                float32
	}
)

// MaxScaleLog2 is the largest right-shift that still leaves something of a
// 32-bit sample count.
const MaxScaleLog2 = 31

// Copy makes a deep copy of a Song.
func (s *Song) Copy() Song {
	tracks := make([]Track, len(s.Tracks))
	for i, t := range s.Tracks {
		tracks[i] = t.Copy()
	}
	ret := *s
	ret.Tracks = tracks
	return ret
}

// NumDevices returns the total number of devices over all the tracks.
func (s *Song) NumDevices() int {
	ret := 0
	for _, t := range s.Tracks {
		ret += len(t.Devices)
	}
	return ret
}

// DeviceTypesUsed returns the device types that appear in any track, in the
// order of the DeviceID enumeration.
func (s *Song) DeviceTypesUsed() []DeviceID {
	var used [NumDeviceIDs]bool
	for _, t := range s.Tracks {
		for _, d := range t.Devices {
			if d.ID.Valid() {
				used[d.ID] = true
			}
		}
	}
	var ret []DeviceID
	for id, u := range used {
		if u {
			ret = append(ret, DeviceID(id))
		}
	}
	return ret
}

// Validate checks that the Song is structurally sound enough to be
// converted: positive tempo and sample rate, scale exponents in range,
// receives pointing to existing tracks, automations pointing to existing
// devices of their track, no events or automation points before zero and
// automation points sorted by time. Note event ordering is checked by the
// temporal encoder, which has to walk the events anyway.
func (s *Song) Validate() error {
	if s.Tempo < 1 {
		return &ValidationError{TrackIndex: -1, Reason: fmt.Sprintf("tempo should be > 0 (was %v)", s.Tempo)}
	}
	if s.SampleRate < 1 {
		return &ValidationError{TrackIndex: -1, Reason: fmt.Sprintf("sample rate should be > 0 (was %v)", s.SampleRate)}
	}
	if s.TimestampScaleLog2 < 0 || s.TimestampScaleLog2 > MaxScaleLog2 {
		return &ValidationError{TrackIndex: -1, Reason: fmt.Sprintf("timestamp scale should be 0 .. %v (was %v)", MaxScaleLog2, s.TimestampScaleLog2)}
	}
	if s.NoteDurationScaleLog2 < 0 || s.NoteDurationScaleLog2 > MaxScaleLog2 {
		return &ValidationError{TrackIndex: -1, Reason: fmt.Sprintf("note duration scale should be 0 .. %v (was %v)", MaxScaleLog2, s.NoteDurationScaleLog2)}
	}
	for i, t := range s.Tracks {
		for _, r := range t.Receives {
			if r.SendingTrackIndex < 0 || r.SendingTrackIndex >= len(s.Tracks) {
				return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("receive from nonexistent track %v", r.SendingTrackIndex)}
			}
			if r.ReceivingChannelIndex < 0 {
				return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("negative receiving channel %v", r.ReceivingChannelIndex)}
			}
		}
		for j, e := range t.Events {
			if e.TimeStamp < 0 {
				return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("event %v at %v samples is before zero", j, e.TimeStamp)}
			}
		}
		for j, d := range t.Devices {
			if !d.ID.Valid() {
				return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("device %v has unknown type %v", j, int(d.ID))}
			}
		}
		for j, a := range t.Automations {
			if a.DeviceIndex < 0 || a.DeviceIndex >= len(t.Devices) {
				return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("automation %v targets nonexistent device %v", j, a.DeviceIndex)}
			}
			if a.ParamID < 0 {
				return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("automation %v has negative parameter id", j)}
			}
			for k := 1; k < len(a.Points); k++ {
				if a.Points[k].TimeStamp < a.Points[k-1].TimeStamp {
					return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("automation %v point %v is out of order", j, k)}
				}
			}
			if len(a.Points) > 0 && a.Points[0].TimeStamp < 0 {
				return &ValidationError{Track: t.Name, TrackIndex: i, Reason: fmt.Sprintf("automation %v starts before zero", j)}
			}
		}
	}
	return nil
}

// SamplesToSeconds converts a time in samples to seconds, using the sample
// rate of the song.
func (s *Song) SamplesToSeconds(samples int) float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(samples) / float64(s.SampleRate)
}
