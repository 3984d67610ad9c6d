package convert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/plugin"
)

// Options configure a conversion. The zero value converts with the scale
// exponents of the song, no minification and LZ cost ranking.
type Options struct {
	// TimestampScaleLog2 and NoteDurationScaleLog2 override the values in
	// the song, if set.
	TimestampScaleLog2    *int `yaml:"timestampscalelog2,omitempty"`
	NoteDurationScaleLog2 *int `yaml:"notedurationscalelog2,omitempty"`

	// PluginDir is the directory searched for the native plugin modules.
	// Empty means chunks are kept as they are.
	PluginDir string `yaml:"plugindir,omitempty"`

	// Oracle is the compression oracle used to order devices: "native"
	// (needs PluginDir), "lzma", "lzcost" (default) or "none".
	Oracle string `yaml:"oracle,omitempty"`

	// Workers is the number of device orderings evaluated concurrently.
	// Ignored for the native oracle, which is serialized anyway.
	Workers int `yaml:"workers,omitempty"`

	// ShortestDurations is how many of the shortest notes are reported; nil
	// means 10.
	ShortestDurations *int `yaml:"shortestdurations,omitempty"`

	// Source also renders the song as C++ source, named SourceName. The
	// templates in Templates are used instead of the built-in ones, if set.
	Source     bool   `yaml:"source,omitempty"`
	SourceName string `yaml:"sourcename,omitempty"`
	Templates  string `yaml:"templates,omitempty"`
}

const (
	OracleNative = "native"
	OracleLZMA   = "lzma"
	OracleLZCost = "lzcost"
	OracleNone   = "none"
)

// LoadOptions reads Options from a YAML file.
func LoadOptions(path string) (Options, error) {
	var ret Options
	b, err := os.ReadFile(path)
	if err != nil {
		return ret, fmt.Errorf("could not read options: %w", err)
	}
	if err := yaml.UnmarshalStrict(b, &ret); err != nil {
		return ret, fmt.Errorf("could not parse options %v: %w", path, err)
	}
	return ret, nil
}

// oracle returns the compression oracle chosen by the options. lib may be
// nil if no plugin directory was given.
func (o *Options) oracle(lib *plugin.Library) (sabre.CompressionOracle, error) {
	switch o.Oracle {
	case "", OracleLZCost:
		return plugin.LZCost{}, nil
	case OracleLZMA:
		return plugin.LZMA{}, nil
	case OracleNone:
		return plugin.Uncompressed{}, nil
	case OracleNative:
		if lib == nil {
			return nil, fmt.Errorf("the native oracle needs a plugin directory")
		}
		return lib, nil
	}
	return nil, fmt.Errorf("unknown compression oracle %q", o.Oracle)
}
