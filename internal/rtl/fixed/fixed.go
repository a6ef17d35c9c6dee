// Package fixed provides the saturating and wrapping fixed-width
// arithmetic primitives shared by the SenseEdge engine models.
//
// Every numeric register in the RTL has an explicit width; these helpers
// keep that width visible at each call site instead of relying on Go's
// native integer wraparound.
package fixed

// SatU8 clamps v into the unsigned 8-bit range [0, 255].
func SatU8(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 0xFF {
		return 0xFF
	}
	return uint8(v)
}

// SatU16 clamps v into the unsigned 16-bit range [0, 65535].
func SatU16(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// WrapS16 truncates v to a 16-bit signed register, wrapping on overflow.
func WrapS16(v int32) int16 {
	return int16(v)
}

// WrapS24 truncates v to a 24-bit signed register, wrapping on overflow.
func WrapS24(v int32) int32 {
	v &= 0xFFFFFF
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// SatCount increments a counter of the given bit width, holding at the
// maximum representable value instead of wrapping.
func SatCount(v uint8, bits uint) uint8 {
	max := uint8(1<<bits - 1)
	if v >= max {
		return max
	}
	return v + 1
}

// ShiftSatU8 right-shifts an accumulator by 8 into byte range, clamping
// to 255 when any bit above the extracted byte is set.
func ShiftSatU8(v uint32) uint8 {
	if v > 0xFFFF {
		return 0xFF
	}
	return uint8(v >> 8)
}
