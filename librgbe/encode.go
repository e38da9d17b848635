package librgbe

import (
	"fmt"
	"io"

	"github.com/chewxy/math32"
)

// chunk sizes chosen so one float chunk encodes into one 16 KiB byte chunk
const (
	encodeBufBytes  = 16384
	encodeBufRGB    = 12288
	encodeBufRGBA   = 16384
	smallestEncoded = 1e-32
)

// Encode writes the raw RGBE encoding of data to w. Pixels are groups of
// 3 floats, or 4 when hasAlpha is set; the alpha channel is dropped.
func Encode(w io.Writer, data []float32, hasAlpha bool) error {
	components := 3
	rsize := encodeBufRGB
	if hasAlpha {
		components = 4
		rsize = encodeBufRGBA
	}

	if len(data)%components != 0 {
		return fmt.Errorf("source not a multiple of %d floats", components)
	}

	buf := make([]byte, encodeBufBytes)
	for i := 0; i < len(data); i += rsize {
		j := i + rsize
		if j > len(data) {
			j = len(data)
		}
		n := EncodeChunk(components, data[i:j], buf)
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeBytes encodes data into a freshly allocated buffer.
func EncodeBytes(data []float32, hasAlpha bool) ([]byte, error) {
	components := 3
	if hasAlpha {
		components = 4
	}
	if len(data)%components != 0 {
		return nil, fmt.Errorf("source not a multiple of %d floats", components)
	}
	buf := make([]byte, len(data)/components*4)
	n := EncodeChunk(components, data, buf)
	return buf[:n], nil
}

// EncodeChunk packs pixels of `components` floats into 4 byte RGBE tuples
// and returns the number of bytes written. buf must hold
// len(data)/components*4 bytes.
func EncodeChunk(components int, data []float32, buf []byte) int {
	count := len(data) / components
	for i := 0; i < count; i++ {
		var (
			r = data[i*components+0]
			g = data[i*components+1]
			b = data[i*components+2]
		)
		j := i * 4

		max := r
		if g > max {
			max = g
		}
		if b > max {
			max = b
		}

		if max < smallestEncoded {
			buf[j+0] = 0
			buf[j+1] = 0
			buf[j+2] = 0
			buf[j+3] = 0
			continue
		}

		frac, exp := math32.Frexp(max)
		f := frac * 256.0 / max
		buf[j+0] = byte(r * f)
		buf[j+1] = byte(g * f)
		buf[j+2] = byte(b * f)
		buf[j+3] = byte(exp + 128)
	}
	return count * 4
}

// DecodeChunk is the inverse of EncodeChunk: it expands 4 byte RGBE tuples
// into pixels of `components` floats (alpha, if present, set to 1) and
// returns the number of floats written.
func DecodeChunk(components int, data []byte, buf []float32) int {
	count := len(data) / 4
	for i := 0; i < count; i++ {
		var (
			r = data[i*4+0]
			g = data[i*4+1]
			b = data[i*4+2]
			e = data[i*4+3]
		)
		j := i * components

		if e == 0 {
			buf[j+0] = 0
			buf[j+1] = 0
			buf[j+2] = 0
		} else {
			scale := math32.Ldexp(1, int(e)-exponentBias)
			buf[j+0] = float32(r) * scale
			buf[j+1] = float32(g) * scale
			buf[j+2] = float32(b) * scale
		}
		if components == 4 {
			buf[j+3] = 1
		}
	}
	return count * components
}
