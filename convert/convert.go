// Package convert runs the whole conversion of a song: validation,
// diagnostics, temporal encoding, restructuring and serialization.
//
// Errors returned by Convert are tagged with ftag: InvalidArgument when the
// song itself is broken, NotFound when a configured file is missing and
// Internal for everything that points to a bug.
package convert

import (
	"errors"
	"io/fs"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/wavesabre/sabre"
	"github.com/wavesabre/sabre/codec"
	"github.com/wavesabre/sabre/compiler"
	"github.com/wavesabre/sabre/optimizer"
	"github.com/wavesabre/sabre/plugin"
	"github.com/wavesabre/sabre/timeline"
)

// Result is everything a conversion produces.
type Result struct {
	Arrangement *sabre.Arrangement
	Output      *codec.Output

	// Sources is the C++ source form by file extension, if requested.
	Sources map[string]string
}

// Bytes returns the canonical song stream.
func (r *Result) Bytes() []byte {
	return r.Output.Song
}

// Convert converts a song. The song is not modified. If a plugin directory is
// configured, the plugin modules are loaded once for the conversion and
// unloaded before Convert returns, also on failure.
func Convert(song *sabre.Song, opts Options, log sabre.Logger) (*Result, error) {
	s := *song
	if opts.TimestampScaleLog2 != nil {
		s.TimestampScaleLog2 = *opts.TimestampScaleLog2
	}
	if opts.NoteDurationScaleLog2 != nil {
		s.NoteDurationScaleLog2 = *opts.NoteDurationScaleLog2
	}
	if err := s.Validate(); err != nil {
		return nil, fault.Wrap(err, fmsg.With("invalid song"), ftag.With(ftag.InvalidArgument))
	}
	sabre.DetectWarnings(&s, log)

	var lib *plugin.Library
	var minifier sabre.ChunkMinifier
	if opts.PluginDir != "" {
		lib = plugin.Open(opts.PluginDir)
		defer func() {
			if err := lib.Close(); err != nil {
				log.Warnf("could not unload plugin modules: %v", err)
			}
		}()
		minifier = lib
	}
	oracle, err := opts.oracle(lib)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}

	shortest := timeline.NumShortestDurations
	if opts.ShortestDurations != nil {
		shortest = *opts.ShortestDurations
	}
	tl, err := timeline.EncodeReporting(&s, shortest, log)
	if err != nil {
		var orderErr *sabre.EventOrderError
		if errors.As(err, &orderErr) {
			return nil, fault.Wrap(err, fmsg.With("could not encode notes"), ftag.With(ftag.InvalidArgument))
		}
		return nil, fault.Wrap(err, fmsg.With("could not encode notes"), ftag.With(ftag.Internal))
	}

	workers := opts.Workers
	if opts.Oracle == OracleNative {
		workers = 1
	}
	arrangement, err := optimizer.Restructure(tl, optimizer.Options{Minifier: minifier, Oracle: oracle, Workers: workers}, log)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("could not restructure song"), ftag.With(ftag.Internal))
	}

	out, err := codec.Encode(arrangement, log)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("could not serialize song"), ftag.With(ftag.Internal))
	}
	ret := &Result{Arrangement: arrangement, Output: out}
	if opts.Source {
		var com *compiler.Compiler
		if opts.Templates != "" {
			com, err = compiler.NewFromTemplates(opts.Templates)
		} else {
			com, err = compiler.New()
		}
		if err != nil {
			return nil, fault.Wrap(err, ftag.With(ftag.Internal))
		}
		if opts.SourceName != "" {
			com.Name = opts.SourceName
		}
		if ret.Sources, err = com.Song(arrangement, out.Song); err != nil {
			return nil, fault.Wrap(err, fmsg.With("could not render source"), ftag.With(ftag.Internal))
		}
	}
	return ret, nil
}

// tagFileError tags a file access error as NotFound if the file was missing.
func tagFileError(err error, msg string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fault.Wrap(err, fmsg.With(msg), ftag.With(ftag.NotFound))
	}
	return fault.Wrap(err, fmsg.With(msg), ftag.With(ftag.Internal))
}

// LoadOptionsFile is LoadOptions with the error tagged.
func LoadOptionsFile(path string) (Options, error) {
	opts, err := LoadOptions(path)
	if err != nil {
		return opts, tagFileError(err, "could not load options")
	}
	return opts, nil
}
