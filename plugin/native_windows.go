//go:build windows

package plugin

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

type nativeModule struct {
	dll *windows.DLL

	deviceChunkToMinified *windows.Proc
	freeChunk             *windows.Proc
	testCompressionFn     *windows.Proc
}

func loadModule(path string) (module, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, err
	}
	m := &nativeModule{dll: dll}
	m.deviceChunkToMinified, _ = dll.FindProc("WaveSabreDeviceVSTChunkToMinifiedChunk")
	m.freeChunk, _ = dll.FindProc("WaveSabreFreeChunk")
	m.testCompressionFn, _ = dll.FindProc("WaveSabreTestCompression")
	return m, nil
}

func (m *nativeModule) minify(name string, chunk []byte) ([]byte, error) {
	if m.deviceChunkToMinified == nil || m.freeChunk == nil {
		return nil, fmt.Errorf("module does not export WaveSabreDeviceVSTChunkToMinifiedChunk and WaveSabreFreeChunk")
	}
	cname, err := windows.BytePtrFromString(name)
	if err != nil {
		return nil, err
	}
	var in unsafe.Pointer
	if len(chunk) > 0 {
		in = unsafe.Pointer(&chunk[0])
	}
	var outSize int32
	var out uintptr
	r, _, _ := m.deviceChunkToMinified.Call(
		uintptr(unsafe.Pointer(cname)),
		uintptr(len(chunk)),
		uintptr(in),
		uintptr(unsafe.Pointer(&outSize)),
		uintptr(unsafe.Pointer(&out)),
	)
	if result := int32(r); result <= 0 || out == 0 {
		return nil, fmt.Errorf("WaveSabreDeviceVSTChunkToMinifiedChunk returned %v", result)
	}
	defer m.freeChunk.Call(out)
	if outSize < 0 {
		return nil, fmt.Errorf("WaveSabreDeviceVSTChunkToMinifiedChunk gave a negative size %v", outSize)
	}
	ret := make([]byte, outSize)
	copy(ret, unsafe.Slice((*byte)(unsafe.Pointer(out)), outSize))
	return ret, nil
}

func (m *nativeModule) testCompression(data []byte) (int, error) {
	if m.testCompressionFn == nil {
		return 0, fmt.Errorf("module does not export WaveSabreTestCompression")
	}
	r, _, _ := m.testCompressionFn.Call(uintptr(len(data)), uintptr(unsafe.Pointer(&data[0])))
	if size := int32(r); size >= 0 {
		return int(size), nil
	}
	return 0, fmt.Errorf("WaveSabreTestCompression returned %v", int32(r))
}

func (m *nativeModule) close() error {
	return m.dll.Release()
}
