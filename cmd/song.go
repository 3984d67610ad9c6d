package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/midifile"
)

// SongExtensions are the file extensions ReadSong understands.
var SongExtensions = []string{".yml", ".yaml", ".json", ".mid", ".midi"}

// ReadSong reads a song from a file. Standard MIDI files are converted with
// the given options; anything else is tried as .json and then as .yml.
func ReadSong(path string, midiOpts midifile.Options) (*sabre.Song, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return midifile.ReadFile(path, midiOpts)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file %v: %w", path, err)
	}
	return UnmarshalSong(b)
}

// UnmarshalSong parses a song in .json or .yml format.
func UnmarshalSong(b []byte) (*sabre.Song, error) {
	var song sabre.Song
	if errJSON := json.Unmarshal(b, &song); errJSON != nil {
		song = sabre.Song{}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if errYaml := dec.Decode(&song); errYaml != nil {
			return nil, fmt.Errorf("song could not be unmarshaled as a .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if song.SampleRate == 0 {
		song.SampleRate = midifile.DefaultSampleRate
	}
	return &song, nil
}

// IsSongFile reports if the file has one of the SongExtensions.
func IsSongFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SongExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
