// Package plugin provides the chunk minifiers and compression oracles used by
// the optimizer: the native WaveSabre plugin modules, which know how to turn
// VST chunks into player chunks and how the final executable compressor
// behaves, and in-process fallbacks for when the modules are not around.
package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/wavesabre/sabre"
)

type (
	// Library is a handle to the native plugin modules found under a
	// directory. Modules are loaded when first needed and stay loaded until
	// Close. A Library is safe for concurrent use.
	Library struct {
		dir string

		mu      sync.Mutex
		modules map[sabre.DeviceID]module
		failed  map[sabre.DeviceID]error
		closed  bool
	}

	// module is a loaded native plugin module.
	module interface {
		minify(name string, chunk []byte) ([]byte, error)
		testCompression(data []byte) (int, error)
		close() error
	}

	// Identity is a ChunkMinifier that keeps every chunk as it is.
	Identity struct{}

	// Uncompressed is a CompressionOracle that ranks by plain size.
	Uncompressed struct{}
)

// OracleDevice is the device whose module exports the compression test.
const OracleDevice = sabre.Maj7

var (
	ErrNotFound    = errors.New("plugin module not found")
	ErrUnsupported = errors.New("native plugin modules are not supported on " + runtime.GOOS)
	ErrClosed      = errors.New("plugin library is closed")
)

func (Identity) Minify(id sabre.DeviceID, chunk []byte) ([]byte, error) {
	return chunk, nil
}

func (Uncompressed) CompressedSize(data []byte) (int, error) {
	return len(data), nil
}

// Open returns a Library for the modules under dir. The directory is not
// searched until a module is needed, so Open does not fail for a missing
// directory.
func Open(dir string) *Library {
	return &Library{dir: dir, modules: map[sabre.DeviceID]module{}, failed: map[sabre.DeviceID]error{}}
}

// ModuleNames returns the file names the module of a device may have on the
// current OS, in the order they are preferred.
func ModuleNames(id sabre.DeviceID) []string {
	name := id.String()
	switch runtime.GOOS {
	case "windows":
		return []string{name + ".dll"}
	case "darwin":
		return []string{"lib" + name + ".dylib", name + ".dylib"}
	default:
		return []string{"lib" + name + ".so", name + ".so"}
	}
}

// FindModule searches dir and its subdirectories for the module of a device.
// Names are compared ignoring case; directories are walked in lexical order
// and the first match wins.
func FindModule(dir string, id sabre.DeviceID) (string, error) {
	names := ModuleNames(id)
	found := ""
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, n := range names {
			if strings.EqualFold(d.Name(), n) {
				found = path
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching %v for %v: %w", dir, names[0], err)
	}
	if found == "" {
		return "", fmt.Errorf("%v in %v: %w", names[0], dir, ErrNotFound)
	}
	return found, nil
}

func (l *Library) module(id sabre.DeviceID) (module, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if m, ok := l.modules[id]; ok {
		return m, nil
	}
	if err, ok := l.failed[id]; ok {
		return nil, err
	}
	path, err := FindModule(l.dir, id)
	if err == nil {
		var m module
		if m, err = loadModule(path); err == nil {
			l.modules[id] = m
			return m, nil
		}
		err = fmt.Errorf("loading %v: %w", path, err)
	}
	l.failed[id] = err
	return nil, err
}

// Minify converts a VST chunk into the chunk of the player, using the module
// of the device.
func (l *Library) Minify(id sabre.DeviceID, chunk []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := l.module(id)
	if err != nil {
		return nil, err
	}
	return m.minify(id.String(), chunk)
}

// CompressedSize asks the module of OracleDevice how well data compresses.
func (l *Library) CompressedSize(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m, err := l.module(OracleDevice)
	if err != nil {
		return 0, err
	}
	return m.testCompression(data)
}

// Close unloads every loaded module. The Library cannot be used afterwards.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	var errs []error
	for id := sabre.DeviceID(0); int(id) < sabre.NumDeviceIDs; id++ {
		if m, ok := l.modules[id]; ok {
			if err := m.close(); err != nil {
				errs = append(errs, fmt.Errorf("unloading %v: %w", id, err))
			}
		}
	}
	l.modules = nil
	return errors.Join(errs...)
}
