package compiler

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig"
	"github.com/wavesabre/sabre"
)

// Compiler renders a song blob as C++ source that links against the player
// library.
type Compiler struct {
	Template *template.Template

	// Name of the song, used in the header guard and comments. Defaults to
	// "song".
	Name string
}

// songData is what the templates see.
type songData struct {
	Name         string
	DeviceTypes  []string
	Blob         []byte
	BlobLines    [][]string
	NumDevices   int
	NumMidiLanes int
	NumTracks    int
}

// BytesPerLine is the number of blob bytes per line of the SongBlob literal.
const BytesPerLine = 10

//go:embed templates/*
var templateFS embed.FS

var templates = []string{"song.cpp", "song.h"}

// New returns a new compiler using the default templates
func New() (*Compiler, error) {
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/*.*")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %v`, err)
	}
	return &Compiler{Template: tmpl, Name: "song"}, nil
}

// NewFromTemplates returns a compiler using the song.cpp and song.h templates
// from templateDirectory instead of the built-in ones.
func NewFromTemplates(templateDirectory string) (*Compiler, error) {
	globPtrn := filepath.Join(templateDirectory, "*.*")
	tmpl, err := template.New("base").Funcs(sprig.TxtFuncMap()).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %v`, templateDirectory, err)
	}
	return &Compiler{Template: tmpl, Name: "song"}, nil
}

// Song renders the blob of the arrangement. The returned map is keyed by file
// extension (".cpp" and ".h"). The song factory only has cases for the
// device types the arrangement uses, in the order of the DeviceID
// enumeration.
func (com *Compiler) Song(a *sabre.Arrangement, blob []byte) (map[string]string, error) {
	data := songData{
		Name:         identifier(com.Name),
		Blob:         blob,
		BlobLines:    hexLines(blob),
		NumDevices:   len(a.Devices),
		NumMidiLanes: len(a.MidiLanes),
		NumTracks:    len(a.Tracks),
	}
	var used [sabre.NumDeviceIDs]bool
	for _, d := range a.Devices {
		if d.ID.Valid() {
			used[d.ID] = true
		}
	}
	for id, u := range used {
		if u {
			data.DeviceTypes = append(data.DeviceTypes, sabre.DeviceID(id).String())
		}
	}
	retmap := map[string]string{}
	for _, templateName := range templates {
		populatedTemplate, extension, err := com.compile(templateName, &data)
		if err != nil {
			return nil, fmt.Errorf(`could not execute template "%v": %v`, templateName, err)
		}
		retmap[extension] = populatedTemplate
	}
	return retmap, nil
}

func (com *Compiler) compile(templateName string, data interface{}) (string, string, error) {
	result := bytes.NewBufferString("")
	err := com.Template.ExecuteTemplate(result, templateName, data)
	extension := filepath.Ext(templateName)
	return result.String(), extension, err
}

func hexLines(blob []byte) [][]string {
	var ret [][]string
	for i := 0; i < len(blob); i += BytesPerLine {
		j := i + BytesPerLine
		if j > len(blob) {
			j = len(blob)
		}
		line := make([]string, 0, j-i)
		for _, b := range blob[i:j] {
			line = append(line, fmt.Sprintf("0x%02x", b))
		}
		ret = append(ret, line)
	}
	return ret
}

// identifier makes name usable as a part of a C preprocessor symbol.
func identifier(name string) string {
	if name == "" {
		return "song"
	}
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, name)
}
