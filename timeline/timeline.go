package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wavesabre/sabre"
)

type (
	// Timeline holds the delta coded form of every track of a song. Tracks
	// is parallel to Song.Tracks.
	Timeline struct {
		Song   *sabre.Song
		Tracks []EncodedTrack
	}

	// EncodedTrack is the output of the temporal encoder for a single track.
	EncodedTrack struct {
		// Events are the paired NoteOns of the track, timed relative to the
		// previous paired NoteOn.
		Events []sabre.DeltaCodedEvent

		// Durations is parallel to the raw events of the track. It holds the
		// duration of each paired NoteOn and NoDuration for everything else.
		Durations []int

		// Automations is parallel to the automations of the track.
		Automations [][]sabre.DeltaCodedPoint
	}

	// shortNote is a candidate for the shortest durations report.
	shortNote struct {
		duration  int
		track     string
		event     int
		timeStamp int
	}
)

// NoDuration marks a raw event that did not get a duration: a NoteOn with no
// matching NoteOff, or any other event type.
const NoDuration = -1

// NumShortestDurations is the default number of shortest notes reported by
// Encode.
const NumShortestDurations = 10

// QuantizeValue maps a normalized automation value to a byte: 0 .. 1 maps to
// 0 .. 255, rounding down, with everything outside clamped.
func QuantizeValue(v float32) byte {
	f := math.Floor(float64(v) * 255)
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 255 {
		return 255
	}
	return byte(f)
}

// EncodePoints delta codes the points of an automation. The first point is
// timed relative to zero.
func EncodePoints(points []sabre.Point) []sabre.DeltaCodedPoint {
	ret := make([]sabre.DeltaCodedPoint, len(points))
	last := 0
	for i, p := range points {
		ret[i] = sabre.DeltaCodedPoint{TimeFromLastPoint: p.TimeStamp - last, Value: QuantizeValue(p.Value)}
		last = p.TimeStamp
	}
	return ret
}

// PairNotes resolves the duration of every NoteOn by finding its NoteOff.
//
// For a NoteOn, the events after it are scanned for the first NoteOff of the
// same note that no earlier NoteOn has claimed yet. Other NoteOns of the same
// note found during the scan do not stop it: for On, On, Off, Off the first
// NoteOn always gets the first NoteOff, which is also what plain MIDI files
// round-trip to. NoteOns that never find a NoteOff keep NoDuration.
//
// The events must be sorted by time; if not, an *sabre.EventOrderError is
// returned (with Track left empty). An event with a type outside the
// enumeration gives an *sabre.UnsupportedEventError.
func PairNotes(events []sabre.Event) ([]int, error) {
	durations := make([]int, len(events))
	claimed := make([]bool, len(events))
	for i, e := range events {
		durations[i] = NoDuration
		if !e.Type.Valid() {
			return nil, &sabre.UnsupportedEventError{EventIndex: i, Type: e.Type}
		}
		if i > 0 && e.TimeStamp < events[i-1].TimeStamp {
			return nil, &sabre.EventOrderError{EventIndex: i, TimeStamp: e.TimeStamp, Previous: events[i-1].TimeStamp}
		}
	}
	for i, e := range events {
		if e.Type != sabre.NoteOn {
			continue
		}
		for j := i + 1; j < len(events); j++ {
			off := events[j]
			if off.Type != sabre.NoteOff || off.Note != e.Note || claimed[j] {
				continue
			}
			claimed[j] = true
			durations[i] = off.TimeStamp - e.TimeStamp
			break
		}
	}
	return durations, nil
}

// EncodeTrack pairs the notes of the track and delta codes its notes and
// automations. Every NoteOn without a NoteOff is left out of the events and
// reported with one warning. CC and pitch bend events are dropped; their
// count is reported once per track.
func EncodeTrack(track *sabre.Track, log sabre.Logger) (EncodedTrack, error) {
	durations, err := PairNotes(track.Events)
	if err != nil {
		var orderErr *sabre.EventOrderError
		if errors.As(err, &orderErr) {
			orderErr.Track = track.Name
		}
		var typeErr *sabre.UnsupportedEventError
		if errors.As(err, &typeErr) {
			typeErr.Track = track.Name
		}
		return EncodedTrack{}, err
	}
	ret := EncodedTrack{Durations: durations}
	last := 0
	ccs, bends := 0, 0
	for i, e := range track.Events {
		switch e.Type {
		case sabre.CC:
			ccs++
			continue
		case sabre.PitchBend:
			bends++
			continue
		case sabre.NoteOff:
			continue
		}
		if durations[i] == NoDuration {
			log.Warnf("track %q: note %v at %v samples has no matching note off, skipping it", track.Name, e.Note, e.TimeStamp)
			continue
		}
		ret.Events = append(ret.Events, sabre.DeltaCodedEvent{
			TimeFromLastEvent: e.TimeStamp - last,
			DurationSamples:   durations[i],
			Note:              e.Note,
			Velocity:          e.Velocity,
		})
		last = e.TimeStamp
	}
	if ccs > 0 || bends > 0 {
		log.Warnf("track %q: %v CC and %v pitch bend events are not supported, ignoring them", track.Name, ccs, bends)
	}
	ret.Automations = make([][]sabre.DeltaCodedPoint, len(track.Automations))
	for i, a := range track.Automations {
		ret.Automations[i] = EncodePoints(a.Points)
	}
	return ret, nil
}

// Encode runs EncodeTrack for every track of the song and reports the
// NumShortestDurations shortest notes, which helps picking a
// NoteDurationScaleLog2 that does not kill short notes. An out of order track
// aborts the whole song.
func Encode(song *sabre.Song, log sabre.Logger) (*Timeline, error) {
	return EncodeReporting(song, NumShortestDurations, log)
}

// EncodeReporting is Encode with a configurable number of shortest notes to
// report; 0 disables the report.
func EncodeReporting(song *sabre.Song, shortest int, log sabre.Logger) (*Timeline, error) {
	tl := &Timeline{Song: song, Tracks: make([]EncodedTrack, len(song.Tracks))}
	var notes []shortNote
	for i := range song.Tracks {
		t := &song.Tracks[i]
		et, err := EncodeTrack(t, log)
		if err != nil {
			var orderErr *sabre.EventOrderError
			if errors.As(err, &orderErr) {
				orderErr.TrackIndex = i
			}
			return nil, fmt.Errorf("track %v: %w", i, err)
		}
		tl.Tracks[i] = et
		for j, d := range et.Durations {
			if d != NoDuration {
				notes = append(notes, shortNote{duration: d, track: t.Name, event: j, timeStamp: t.Events[j].TimeStamp})
			}
		}
	}
	sort.SliceStable(notes, func(a, b int) bool { return notes[a].duration < notes[b].duration })
	if shortest < len(notes) {
		notes = notes[:shortest]
	}
	for _, n := range notes {
		log.Infof("short note: %v samples in track %q, event %v at %v samples (%.3f s)", n.duration, n.track, n.event, n.timeStamp, song.SamplesToSeconds(n.timeStamp))
	}
	return tl, nil
}

// NumEvents returns the total number of delta coded notes.
func (tl *Timeline) NumEvents() int {
	ret := 0
	for _, t := range tl.Tracks {
		ret += len(t.Events)
	}
	return ret
}
