package convert_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Southclaws/fault/ftag"
	"gopkg.in/yaml.v3"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/codec"
	"github.com/wavesabre/sabre/convert"
)

func testdata(name string) string {
	_, myname, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(myname), "testdata", name)
}

func loadSong(t *testing.T) *sabre.Song {
	b, err := os.ReadFile(testdata("song.yml"))
	if err != nil {
		t.Fatalf("cannot read song: %v", err)
	}
	var song sabre.Song
	if err := yaml.Unmarshal(b, &song); err != nil {
		t.Fatalf("cannot parse song: %v", err)
	}
	return &song
}

func TestConvert(t *testing.T) {
	song := loadSong(t)
	log := &sabre.DiagnosticLog{}
	res, err := convert.Convert(song, convert.Options{Source: true}, log)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	a := res.Arrangement
	if len(a.Devices) != 6 {
		t.Fatalf("expected 6 devices, got %v", len(a.Devices))
	}
	if a.Tracks[1].MidiLaneID != a.Tracks[2].MidiLaneID {
		t.Fatalf("bass tracks should share a lane")
	}
	if a.Tracks[0].MidiLaneID == a.Tracks[1].MidiLaneID {
		t.Fatalf("kick and bass should not share a lane")
	}
	if n := len(a.Tracks[1].Automations[0].Points); n != 3 {
		t.Fatalf("expected the automation to dedupe to 3 points, got %v", n)
	}
	warnings := log.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "Bass") {
		t.Fatalf("expected a single warning about the bass CC, got %v", warnings)
	}
	decoded, err := codec.Decode(res.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Tempo != 128 || decoded.TimestampScaleLog2 != 4 || decoded.NoteDurationScaleLog2 != 6 {
		t.Fatalf("wrong header: %+v", decoded)
	}
	kick := decoded.MidiLanes[a.Tracks[0].MidiLaneID]
	if kick.Flags != codec.FixedNote|codec.FixedVelocity {
		t.Fatalf("kick lane flags are %v", kick.Flags)
	}
	if !strings.Contains(res.Sources[".cpp"], "case SongRenderer::DeviceId::Maj7Comp") {
		t.Fatalf("source does not create the compressor:\n%v", res.Sources[".cpp"])
	}
	sizes, err := res.Sizes(nil)
	if err != nil {
		t.Fatalf("Sizes failed: %v", err)
	}
	if sizes[0].Name != "song" || sizes[0].Raw != len(res.Bytes()) {
		t.Fatalf("first size should be the whole song, got %+v", sizes[0])
	}
	if sizes[len(sizes)-1].Name != "track: Master #3" {
		t.Fatalf("last size should be the master track, got %+v", sizes[len(sizes)-1])
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	song := loadSong(t)
	opts := convert.Options{Oracle: convert.OracleLZMA, Workers: 4}
	first, err := convert.Convert(song, opts, sabre.Discard)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	second, err := convert.Convert(song, opts, sabre.Discard)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("converting twice gave different streams")
	}
}

func TestScaleOverride(t *testing.T) {
	song := loadSong(t)
	zero := 0
	res, err := convert.Convert(song, convert.Options{TimestampScaleLog2: &zero}, sabre.Discard)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.Arrangement.Song.TimestampScaleLog2 != 0 || song.TimestampScaleLog2 != 4 {
		t.Fatalf("override was not applied to a copy of the song")
	}
}

func TestErrorTags(t *testing.T) {
	song := loadSong(t)
	song.Tracks[1].Events[2].TimeStamp = 5
	_, err := convert.Convert(song, convert.Options{}, sabre.Discard)
	var orderErr *sabre.EventOrderError
	if !errors.As(err, &orderErr) || ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("expected an invalid argument ordering error, got %v", err)
	}

	song = loadSong(t)
	song.Tracks[0].Events[0].TimeStamp = -1
	_, err = convert.Convert(song, convert.Options{}, sabre.Discard)
	var valErr *sabre.ValidationError
	if !errors.As(err, &valErr) || ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("expected an invalid argument validation error, got %v", err)
	}

	song = loadSong(t)
	song.Tempo = 0
	_, err = convert.Convert(song, convert.Options{}, sabre.Discard)
	if err == nil || ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("expected an invalid argument error, got %v", err)
	}

	song = loadSong(t)
	_, err = convert.Convert(song, convert.Options{Oracle: convert.OracleNative}, sabre.Discard)
	if err == nil || ftag.Get(err) != ftag.InvalidArgument {
		t.Fatalf("expected an invalid argument error, got %v", err)
	}

	_, err = convert.LoadOptionsFile(testdata("missing.yml"))
	if err == nil || ftag.Get(err) != ftag.NotFound {
		t.Fatalf("expected a not found error, got %v", err)
	}
}

func TestMissingPluginsKeepChunks(t *testing.T) {
	song := loadSong(t)
	log := &sabre.DiagnosticLog{}
	res, err := convert.Convert(song, convert.Options{PluginDir: t.TempDir()}, log)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(log.Warnings()) != 1+song.NumDevices() {
		t.Fatalf("expected a warning for every device and the CC, got %v", log.Warnings())
	}
	for _, d := range res.Arrangement.Devices {
		if len(d.Chunk) == 0 {
			t.Fatalf("chunk of %v was lost", d.ID)
		}
	}
}

func TestLoadOptions(t *testing.T) {
	opts, err := convert.LoadOptions(testdata("options.yml"))
	if err != nil {
		t.Fatalf("LoadOptions failed: %v", err)
	}
	if opts.Oracle != convert.OracleLZMA || opts.Workers != 2 || opts.NoteDurationScaleLog2 == nil || *opts.NoteDurationScaleLog2 != 5 {
		t.Fatalf("wrong options %+v", opts)
	}
}
