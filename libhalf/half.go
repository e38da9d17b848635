// Package libhalf converts between IEEE 754 single-precision and
// half-precision (binary16) floats. Narrowing uses round-to-nearest-even,
// out-of-range values saturate to infinity.
package libhalf

import "math"

const (
	// bit patterns for the special half values
	PositiveZero     = uint16(0x0000)
	NegativeZero     = uint16(0x8000)
	PositiveInfinity = uint16(0x7C00)
	NegativeInfinity = uint16(0xFC00)
	NaN              = uint16(0x7E00)

	One = uint16(0x3C00)
)

type floatClass int

const (
	classFinite = floatClass(iota)
	classZero
	classInfinite
	classNaN
)

func classify(bits uint32) floatClass {
	exp := bits & 0x7F800000
	mant := bits & 0x007FFFFF
	switch {
	case exp == 0x7F800000 && mant != 0:
		return classNaN
	case exp == 0x7F800000:
		return classInfinite
	case exp == 0 && mant == 0:
		return classZero
	}
	return classFinite
}

// ToHalf narrows f to a 16 bit half float.
func ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000

	switch classify(bits) {
	case classNaN:
		return NaN
	case classInfinite:
		return sign | PositiveInfinity
	case classZero:
		return sign
	}

	exp := int32((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x007FFFFF

	if exp >= 31 {
		// overflows half range
		return sign | PositiveInfinity
	}

	if exp <= 0 {
		if exp < -10 {
			// too small for a denormal, flush to signed zero
			return sign
		}
		// denormal, shift out the implicit leading bit
		mant |= 0x00800000
		shift := uint32(14 - exp)
		return sign | roundShift(mant, shift)
	}

	h := uint16(exp)<<10 | uint16(mant>>13)
	h += roundBit(mant, 13, h)
	// a mantissa rollover carries into the exponent; reaching exponent 31
	// yields exactly the infinity pattern
	return sign | h
}

// roundShift shifts mant right and rounds to nearest, ties to even.
func roundShift(mant uint32, shift uint32) uint16 {
	h := uint16(mant >> shift)
	return h + roundBit(mant, shift, h)
}

func roundBit(mant uint32, shift uint32, h uint16) uint16 {
	rem := mant & (1<<shift - 1)
	half := uint32(1) << (shift - 1)
	if rem > half || (rem == half && h&1 == 1) {
		return 1
	}
	return 0
}

// FromHalf widens a 16 bit half float to single precision.
func FromHalf(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := int32(h>>10) & 0x1F
	mant := uint32(h & 0x03FF)

	switch exp {
	case 0:
		// zero or denormal: mant/1024 * 2^-14
		return math.Float32frombits(sign) + float32(mant)*denormScale(sign)
	case 31:
		if mant != 0 {
			return float32(math.NaN())
		}
		if sign != 0 {
			return float32(math.Inf(-1))
		}
		return float32(math.Inf(1))
	}

	bits := sign | uint32(exp-15+127)<<23 | mant<<13
	return math.Float32frombits(bits)
}

func denormScale(sign uint32) float32 {
	const scale = float32(1.0 / (1 << 24)) // 2^-24
	if sign != 0 {
		return -scale
	}
	return scale
}

// ToHalfSlice converts src element-wise into dst and returns the number of
// values written. dst must be at least len(src) long.
func ToHalfSlice(dst []uint16, src []float32) int {
	if len(src) == 0 {
		return 0
	}
	_ = dst[len(src)-1]
	for i, f := range src {
		dst[i] = ToHalf(f)
	}
	return len(src)
}

// FromHalfSlice converts src element-wise into dst and returns the number of
// values written. dst must be at least len(src) long.
func FromHalfSlice(dst []float32, src []uint16) int {
	if len(src) == 0 {
		return 0
	}
	_ = dst[len(src)-1]
	for i, h := range src {
		dst[i] = FromHalf(h)
	}
	return len(src)
}
