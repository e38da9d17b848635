package libhalf_test

import (
	"math"
	"math/rand"
	"testing"

	"envlight/libhalf"
)

func TestToHalfExact(t *testing.T) {
	cases := []struct {
		in   float32
		want uint16
	}{
		{0.0, libhalf.PositiveZero},
		{float32(math.Copysign(0, -1)), libhalf.NegativeZero},
		{1.0, libhalf.One},
		{-1.0, 0xBC00},
		{2.0, 0x4000},
		{0.5, 0x3800},
		{65504.0, 0x7BFF},
		{float32(math.Inf(1)), libhalf.PositiveInfinity},
		{float32(math.Inf(-1)), libhalf.NegativeInfinity},
		{float32(math.NaN()), libhalf.NaN},
	}

	for _, c := range cases {
		if got := libhalf.ToHalf(c.in); got != c.want {
			t.Errorf("ToHalf(%g) should be 0x%04x but is 0x%04x", c.in, c.want, got)
		}
	}
}

func TestToHalfSaturates(t *testing.T) {
	cases := []float32{65520.0, 1e5, 3.4e38}
	for _, f := range cases {
		if got := libhalf.ToHalf(f); got != libhalf.PositiveInfinity {
			t.Errorf("ToHalf(%g) should saturate to infinity but is 0x%04x", f, got)
		}
		if got := libhalf.ToHalf(-f); got != libhalf.NegativeInfinity {
			t.Errorf("ToHalf(%g) should saturate to negative infinity but is 0x%04x", -f, got)
		}
	}
}

func TestToHalfDenormals(t *testing.T) {
	// smallest half denormal is 2^-24
	if got := libhalf.ToHalf(1.0 / (1 << 24)); got != 0x0001 {
		t.Errorf("ToHalf(2^-24) should be 0x0001 but is 0x%04x", got)
	}
	// half of that ties to even, which is zero
	if got := libhalf.ToHalf(1.0 / (1 << 25)); got != libhalf.PositiveZero {
		t.Errorf("ToHalf(2^-25) should flush to zero but is 0x%04x", got)
	}
	if got := libhalf.ToHalf(-1.0 / (1 << 25)); got != libhalf.NegativeZero {
		t.Errorf("ToHalf(-2^-25) should flush to negative zero but is 0x%04x", got)
	}
	// largest denormal, 1023 * 2^-24
	if got := libhalf.ToHalf(1023.0 / (1 << 24)); got != 0x03FF {
		t.Errorf("ToHalf(largest denormal) should be 0x03ff but is 0x%04x", got)
	}
}

func TestToHalfRoundsToEven(t *testing.T) {
	// 1 + 2^-11 lies exactly between 0x3c00 and 0x3c01
	if got := libhalf.ToHalf(1.0 + 1.0/2048); got != 0x3C00 {
		t.Errorf("tie should round to even 0x3c00 but is 0x%04x", got)
	}
	// 1 + 3*2^-11 lies exactly between 0x3c01 and 0x3c02
	if got := libhalf.ToHalf(1.0 + 3.0/2048); got != 0x3C02 {
		t.Errorf("tie should round to even 0x3c02 but is 0x%04x", got)
	}
}

func TestFromHalfSpecials(t *testing.T) {
	if got := libhalf.FromHalf(libhalf.One); got != 1.0 {
		t.Errorf("FromHalf(0x3c00) should be 1 but is %g", got)
	}
	if got := libhalf.FromHalf(libhalf.PositiveInfinity); !math.IsInf(float64(got), 1) {
		t.Errorf("FromHalf(0x7c00) should be +inf but is %g", got)
	}
	if got := libhalf.FromHalf(libhalf.NegativeInfinity); !math.IsInf(float64(got), -1) {
		t.Errorf("FromHalf(0xfc00) should be -inf but is %g", got)
	}
	if got := libhalf.FromHalf(libhalf.NaN); got == got {
		t.Errorf("FromHalf(0x7e00) should be nan but is %g", got)
	}
	if got := libhalf.FromHalf(0x0001); got != 1.0/(1<<24) {
		t.Errorf("FromHalf(0x0001) should be 2^-24 but is %g", got)
	}
	if got := libhalf.FromHalf(libhalf.NegativeZero); got != 0 || !math.Signbit(float64(got)) {
		t.Errorf("FromHalf(0x8000) should be negative zero but is %g", got)
	}
}

func TestRoundTripAllFinite(t *testing.T) {
	// every finite half value widens exactly, so narrowing it again must
	// reproduce the same bits
	for h := 0; h <= 0xFFFF; h++ {
		if (h>>10)&0x1F == 31 {
			continue
		}
		got := libhalf.ToHalf(libhalf.FromHalf(uint16(h)))
		if got != uint16(h) {
			t.Fatalf("round trip of 0x%04x should be identical but is 0x%04x", h, got)
		}
	}
}

func TestRoundTripError(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		// normal half range only
		f := float32(rng.Float64()*999 + 1)
		if rng.Intn(2) == 0 {
			f = -f
		}
		got := libhalf.FromHalf(libhalf.ToHalf(f))
		rel := math.Abs(float64(got-f)) / math.Abs(float64(f))
		if rel > 1.0/2048 {
			t.Fatalf("round trip of %g has relative error %g", f, rel)
		}
	}
}

func TestSliceConversions(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, 65504}
	half := make([]uint16, len(src))
	if n := libhalf.ToHalfSlice(half, src); n != len(src) {
		t.Errorf("ToHalfSlice should convert %d values but converted %d", len(src), n)
	}

	back := make([]float32, len(half))
	if n := libhalf.FromHalfSlice(back, half); n != len(half) {
		t.Errorf("FromHalfSlice should convert %d values but converted %d", len(half), n)
	}

	for i := range src {
		if back[i] != src[i] {
			t.Errorf("value %d should be %g but is %g", i, src[i], back[i])
		}
	}
}

func TestSliceConversionsEmpty(t *testing.T) {
	if n := libhalf.ToHalfSlice(nil, nil); n != 0 {
		t.Errorf("ToHalfSlice of an empty source should convert nothing but converted %d", n)
	}
	if n := libhalf.FromHalfSlice(nil, nil); n != 0 {
		t.Errorf("FromHalfSlice of an empty source should convert nothing but converted %d", n)
	}
}
