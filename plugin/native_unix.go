//go:build darwin || linux || freebsd

package plugin

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

type nativeModule struct {
	handle uintptr

	deviceChunkToMinified func(name string, inSize int32, in unsafe.Pointer, outSize *int32, out *unsafe.Pointer) int32
	freeChunk             func(p unsafe.Pointer) int32
	testCompressionFn     func(size int32, data unsafe.Pointer) int32
}

func loadModule(path string) (module, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	m := &nativeModule{handle: handle}
	if sym, err := purego.Dlsym(handle, "WaveSabreDeviceVSTChunkToMinifiedChunk"); err == nil {
		purego.RegisterFunc(&m.deviceChunkToMinified, sym)
	}
	if sym, err := purego.Dlsym(handle, "WaveSabreFreeChunk"); err == nil {
		purego.RegisterFunc(&m.freeChunk, sym)
	}
	if sym, err := purego.Dlsym(handle, "WaveSabreTestCompression"); err == nil {
		purego.RegisterFunc(&m.testCompressionFn, sym)
	}
	return m, nil
}

func (m *nativeModule) minify(name string, chunk []byte) ([]byte, error) {
	if m.deviceChunkToMinified == nil || m.freeChunk == nil {
		return nil, fmt.Errorf("module does not export WaveSabreDeviceVSTChunkToMinifiedChunk and WaveSabreFreeChunk")
	}
	var in unsafe.Pointer
	if len(chunk) > 0 {
		in = unsafe.Pointer(&chunk[0])
	}
	var outSize int32
	var out unsafe.Pointer
	result := m.deviceChunkToMinified(name, int32(len(chunk)), in, &outSize, &out)
	if result <= 0 || out == nil {
		return nil, fmt.Errorf("WaveSabreDeviceVSTChunkToMinifiedChunk returned %v", result)
	}
	defer m.freeChunk(out)
	if outSize < 0 {
		return nil, fmt.Errorf("WaveSabreDeviceVSTChunkToMinifiedChunk gave a negative size %v", outSize)
	}
	ret := make([]byte, outSize)
	copy(ret, unsafe.Slice((*byte)(out), outSize))
	return ret, nil
}

func (m *nativeModule) testCompression(data []byte) (int, error) {
	if m.testCompressionFn == nil {
		return 0, fmt.Errorf("module does not export WaveSabreTestCompression")
	}
	size := m.testCompressionFn(int32(len(data)), unsafe.Pointer(&data[0]))
	if size < 0 {
		return 0, fmt.Errorf("WaveSabreTestCompression returned %v", size)
	}
	return int(size), nil
}

func (m *nativeModule) close() error {
	return purego.Dlclose(m.handle)
}
