package sabre

import (
	"fmt"
	"strings"
)

type (
	// DeviceID identifies the type of a device. The numeric value is written
	// to the song blob and must stay in sync with the DeviceId enumeration of
	// the player runtime.
	DeviceID int

	// Device is an instance of an instrument or an effect. Chunk is the
	// opaque state of the plugin; the converter never looks inside it.
	Device struct {
		ID    DeviceID
		Chunk []byte `yaml:",flow"`
	}

	// ChunkMinifier turns the state chunk saved by the VST plugin into the
	// smaller chunk understood by the player runtime. Implementations may
	// fail for any device type, in which case the original chunk is used.
	ChunkMinifier interface {
		Minify(id DeviceID, chunk []byte) ([]byte, error)
	}

	// CompressionOracle estimates the size of data after the final
	// executable compressor has seen it. It is used only to rank
	// alternatives; it must return 0 for empty input and must not modify
	// data.
	CompressionOracle interface {
		CompressedSize(data []byte) (int, error)
	}
)

const (
	Leveller DeviceID = iota
	Crusher
	Echo
	Chamber
	Twister
	Cathedral
	Maj7
	Maj7Width
	Maj7Comp
	Maj7Sat
	Maj7MBC

	NumDeviceIDs int = iota
)

func (id DeviceID) String() string {
	switch id {
	case Leveller:
		return "Leveller"
	case Crusher:
		return "Crusher"
	case Echo:
		return "Echo"
	case Chamber:
		return "Chamber"
	case Twister:
		return "Twister"
	case Cathedral:
		return "Cathedral"
	case Maj7:
		return "Maj7"
	case Maj7Width:
		return "Maj7Width"
	case Maj7Comp:
		return "Maj7Comp"
	case Maj7Sat:
		return "Maj7Sat"
	case Maj7MBC:
		return "Maj7MBC"
	}
	return fmt.Sprintf("DeviceID(%d)", int(id))
}

// Valid reports if id is a member of the enumeration.
func (id DeviceID) Valid() bool {
	return id >= 0 && int(id) < NumDeviceIDs
}

// ParseDeviceID parses the name of a device type, ignoring case.
func ParseDeviceID(name string) (DeviceID, error) {
	for i := 0; i < NumDeviceIDs; i++ {
		if strings.EqualFold(DeviceID(i).String(), name) {
			return DeviceID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown device type %q", name)
}

func (id DeviceID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown device type %d", int(id))
	}
	return []byte(id.String()), nil
}

func (id *DeviceID) UnmarshalText(text []byte) error {
	v, err := ParseDeviceID(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Copy makes a deep copy of a Device.
func (d *Device) Copy() Device {
	chunk := make([]byte, len(d.Chunk))
	copy(chunk, d.Chunk)
	return Device{ID: d.ID, Chunk: chunk}
}
