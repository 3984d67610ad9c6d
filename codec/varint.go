package codec

import (
	"errors"
	"math"

	"github.com/wavesabre/sabre"
)

// MaxVarUint32Len is the longest encoding of a 32-bit value.
const MaxVarUint32Len = 5

var (
	errTruncated = errors.New("truncated var-uint32")
	errOverlong  = errors.New("var-uint32 does not fit in 32 bits")
)

// AppendVarUint32 appends v to b, 7 bits per byte starting from the least
// significant group. Every byte except the last has the high bit set.
func AppendVarUint32(b []byte, v uint32) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// ReadVarUint32 decodes a value written by AppendVarUint32 from the start of
// data and returns it with the number of bytes consumed.
func ReadVarUint32(data []byte) (uint32, int, error) {
	var ret uint32
	for i := 0; i < MaxVarUint32Len; i++ {
		if i >= len(data) {
			return 0, 0, errTruncated
		}
		b := data[i]
		if i == MaxVarUint32Len-1 && b > 0x0f {
			return 0, 0, errOverlong
		}
		ret |= uint32(b&0x7f) << (7 * i)
		if b < 0x80 {
			return ret, i + 1, nil
		}
	}
	return 0, 0, errOverlong
}

// toUint32 checks that an int can be written as a var-uint32.
func toUint32(field string, v int) (uint32, error) {
	if v < 0 || int64(v) > math.MaxUint32 {
		return 0, &sabre.RangeError{Field: field, Value: int64(v)}
	}
	return uint32(v), nil
}
