// Package midifile imports Standard MIDI Files as songs, so that note data
// can be converted without a DAW project. The song gets no devices; it is
// meant for testing the note pipeline and for sizing note data.
package midifile

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/wavesabre/sabre"
)

type (
	// Options control the import.
	Options struct {
		// SampleRate the timestamps are converted to. 0 means 44100.
		SampleRate int
		// Tempo overrides the tempo of the song; 0 takes the first tempo
		// of the file, or 120 if there is none.
		Tempo int
	}

	tempoChange struct {
		tick uint64
		bpm  float64
	}

	// tempoMap converts ticks to samples, integrating over tempo changes.
	tempoMap struct {
		changes    []tempoChange
		ticks      float64
		sampleRate float64
	}

	channelKey struct {
		track   int
		channel uint8
	}
)

const (
	DefaultSampleRate = 44100
	DefaultTempo      = 120
)

func newTempoMap(changes []tempoChange, ticks smf.MetricTicks, sampleRate int) *tempoMap {
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	if len(changes) == 0 || changes[0].tick > 0 {
		changes = append([]tempoChange{{tick: 0, bpm: DefaultTempo}}, changes...)
	}
	return &tempoMap{changes: changes, ticks: float64(ticks), sampleRate: float64(sampleRate)}
}

// samples returns the time of an absolute tick, in samples, rounded down.
func (m *tempoMap) samples(tick uint64) int {
	seconds := 0.0
	for i, c := range m.changes {
		if c.tick >= tick {
			break
		}
		end := tick
		if i+1 < len(m.changes) && m.changes[i+1].tick < tick {
			end = m.changes[i+1].tick
		}
		seconds += float64(end-c.tick) * 60 / (c.bpm * m.ticks)
	}
	return int(math.Floor(seconds*m.sampleRate + 1e-6))
}

// ReadFile reads a Standard MIDI File into a song.
func ReadFile(path string, opts Options) (*sabre.Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, opts)
}

// Read reads a Standard MIDI File into a song. Every channel of every SMF
// track that has notes, controllers or pitch bends becomes a track; a master
// track receiving all of them is appended last.
func Read(r io.Reader, opts Options) (*sabre.Song, error) {
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("could not parse MIDI file: %w", err)
	}
	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported MIDI time format %v, only metric ticks are supported", file.TimeFormat)
	}
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	var changes []tempoChange
	for _, track := range file.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				changes = append(changes, tempoChange{tick: tick, bpm: bpm})
			}
		}
	}
	tempos := newTempoMap(changes, ticks, sampleRate)
	song := &sabre.Song{Tempo: opts.Tempo, SampleRate: sampleRate}
	if song.Tempo <= 0 {
		song.Tempo = int(math.Round(tempos.changes[0].bpm))
	}
	tracks := map[channelKey]*sabre.Track{}
	var order []channelKey
	lastSample := 0
	for i, track := range file.Tracks {
		name := fmt.Sprintf("Track %v", i+1)
		var tick uint64
		var channels []uint8
		for _, ev := range track {
			tick += uint64(ev.Delta)
			var text string
			if ev.Message.GetMetaTrackName(&text) && text != "" {
				name = text
				continue
			}
			e, channel, ok := convertMessage(ev.Message)
			if !ok {
				continue
			}
			e.TimeStamp = tempos.samples(tick)
			if e.TimeStamp > lastSample {
				lastSample = e.TimeStamp
			}
			key := channelKey{track: i, channel: channel}
			t, ok := tracks[key]
			if !ok {
				t = &sabre.Track{Volume: 1}
				tracks[key] = t
				order = append(order, key)
				channels = append(channels, channel)
			}
			t.Events = append(t.Events, e)
		}
		for _, c := range channels {
			t := tracks[channelKey{track: i, channel: c}]
			t.Name = name
			if len(channels) > 1 {
				t.Name = fmt.Sprintf("%v ch%v", name, c+1)
			}
		}
	}
	master := sabre.Track{Name: "Master", Volume: 1}
	for i, key := range order {
		song.Tracks = append(song.Tracks, *tracks[key])
		master.Receives = append(master.Receives, sabre.Receive{SendingTrackIndex: i, Volume: 1})
	}
	song.Tracks = append(song.Tracks, master)
	song.Length = song.SamplesToSeconds(lastSample)
	return song, nil
}

func convertMessage(msg smf.Message) (sabre.Event, uint8, bool) {
	var channel, key, velocity, controller, value uint8
	var relative int16
	var absolute uint16
	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		return sabre.Event{Type: sabre.NoteOn, Note: key, Velocity: velocity}, channel, true
	case msg.GetNoteEnd(&channel, &key):
		return sabre.Event{Type: sabre.NoteOff, Note: key}, channel, true
	case msg.GetControlChange(&channel, &controller, &value):
		return sabre.Event{Type: sabre.CC, Note: controller, Velocity: value}, channel, true
	case msg.GetPitchBend(&channel, &relative, &absolute):
		return sabre.Event{Type: sabre.PitchBend, Note: byte(absolute & 0x7f), Velocity: byte(absolute >> 7)}, channel, true
	}
	return sabre.Event{}, 0, false
}
