// Package librgbe decodes Radiance .hdr images (RGBE shared-exponent
// encoding) into linear RGBA float buffers, and encodes float pixels back
// into raw RGBE bytes.
package librgbe

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// MaxDimension is the largest accepted width or height in pixels.
const MaxDimension = 16384

// exponent bias of the shared exponent byte, including the 8 bit
// mantissa shift: channel * 2^(E-136)
const exponentBias = 136

// FormatError reports a malformed .hdr buffer. Offset is the byte position
// at which decoding failed.
type FormatError struct {
	Offset int
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s; byte 0x%08x: %v", e.Msg, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s; byte 0x%08x", e.Msg, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Image is a decoded Radiance picture. Pix holds linear RGBA floats of
// length Width*Height*4, alpha always 1. Exposure is the cumulative
// EXPOSURE header multiplier, Gamma the GAMMA header value; neither has
// been applied to Pix.
type Image struct {
	Width, Height int
	Pix           []float32
	Exposure      float32
	Gamma         float32
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) failf(format string, args ...any) error {
	return &FormatError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

// readLine consumes bytes up to and including the next '\n' and returns the
// line without the terminator. A trailing '\r' is tolerated and stripped.
func (d *decoder) readLine() (string, error) {
	start := d.pos
	for d.pos < len(d.data) {
		if d.data[d.pos] == '\n' {
			line := string(d.data[start:d.pos])
			d.pos++
			return strings.TrimSuffix(line, "\r"), nil
		}
		d.pos++
	}
	return "", d.failf("unexpected end of header")
}

// the two row encodings; there is deliberately no third variant
type rowKind int

const (
	rowFlat = rowKind(iota)
	rowRLE
)

// Decode parses a complete Radiance .hdr buffer.
func Decode(data []byte) (*Image, error) {
	d := &decoder{data: data}

	img := &Image{Exposure: 1.0, Gamma: 1.0}

	if err := d.header(img); err != nil {
		return nil, err
	}
	if err := d.resolution(img); err != nil {
		return nil, err
	}

	img.Pix = make([]float32, img.Width*img.Height*4)
	row := make([]byte, img.Width*4)

	for y := 0; y < img.Height; y++ {
		if err := d.readRow(img.Width, row); err != nil {
			return nil, err
		}
		convertRow(row, img.Pix[y*img.Width*4:(y+1)*img.Width*4])
	}

	return img, nil
}

// DecodeReader reads r to the end and decodes it.
func DecodeReader(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (d *decoder) header(img *Image) error {
	magic := ""
	for magic == "" {
		line, err := d.readLine()
		if err != nil {
			return err
		}
		magic = strings.TrimSpace(line)
	}
	if magic != "#?RADIANCE" && magic != "#?RGBE" {
		return d.failf("invalid magic number %q", magic)
	}

	for {
		line, err := d.readLine()
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			// blank line ends the header
			return nil
		case strings.HasPrefix(line, "#"):
			// comment
		case strings.HasPrefix(line, "FORMAT="):
			format := strings.TrimPrefix(line, "FORMAT=")
			if format != "32-bit_rle_rgbe" && format != "32-bit_rle_xyze" {
				return d.failf("unsupported format %q", format)
			}
		case strings.HasPrefix(line, "EXPOSURE="):
			// successive EXPOSURE lines multiply
			v, err := strconv.ParseFloat(strings.TrimPrefix(line, "EXPOSURE="), 32)
			if err != nil {
				return d.failf("invalid exposure %q", line)
			}
			img.Exposure *= float32(v)
		case strings.HasPrefix(line, "GAMMA="):
			v, err := strconv.ParseFloat(strings.TrimPrefix(line, "GAMMA="), 32)
			if err != nil {
				return d.failf("invalid gamma %q", line)
			}
			img.Gamma = float32(v)
		}
	}
}

// resolution parses the single "[+-][XY] N [+-][XY] N" line; the axis
// letters decide which number is the width and which the height.
func (d *decoder) resolution(img *Image) error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	fields := strings.Fields(line)
	if len(fields) != 4 {
		return d.failf("invalid resolution line %q", line)
	}

	for i := 0; i < 4; i += 2 {
		axis := fields[i]
		if len(axis) != 2 || (axis[0] != '+' && axis[0] != '-') {
			return d.failf("invalid resolution axis %q", axis)
		}
		n, err := strconv.Atoi(fields[i+1])
		if err != nil || n <= 0 {
			return d.failf("invalid resolution size %q", fields[i+1])
		}
		if n > MaxDimension {
			return d.failf("dimension %d exceeds maximum %d", n, MaxDimension)
		}
		switch axis[1] {
		case 'X':
			img.Width = n
		case 'Y':
			img.Height = n
		default:
			return d.failf("invalid resolution axis %q", axis)
		}
	}

	if img.Width == 0 || img.Height == 0 {
		return d.failf("resolution line %q names the same axis twice", line)
	}
	return nil
}

// readRow fills row (width*4 bytes, grouped per pixel) with one decoded
// scanline. The encoding is chosen per row by peeking the 4 byte header.
func (d *decoder) readRow(width int, row []byte) error {
	if len(d.data)-d.pos < 4 {
		return d.failf("truncated pixel data")
	}

	kind := rowFlat
	h := d.data[d.pos : d.pos+4]
	if h[0] == 2 && h[1] == 2 && int(h[2])<<8|int(h[3]) == width {
		kind = rowRLE
	}

	switch kind {
	case rowRLE:
		d.pos += 4
		return d.readRowRLE(width, row)
	default:
		return d.readRowFlat(width, row)
	}
}

func (d *decoder) readRowFlat(width int, row []byte) error {
	n := width * 4
	if len(d.data)-d.pos < n {
		return d.failf("truncated pixel data, expected %d bytes", n)
	}
	copy(row, d.data[d.pos:d.pos+n])
	d.pos += n
	return nil
}

// readRowRLE decodes a new-style run-length encoded row: each of the four
// channels is packed independently across the full scanline.
func (d *decoder) readRowRLE(width int, row []byte) error {
	for ch := 0; ch < 4; ch++ {
		x := 0
		for x < width {
			if d.pos >= len(d.data) {
				return d.failf("unexpected end of rle data")
			}
			code := int(d.data[d.pos])
			if code == 0 {
				return d.failf("zero length rle code")
			}
			d.pos++

			if code > 128 {
				// run of the next byte
				count := code - 128
				if count > width-x {
					return d.failf("rle run of %d exceeds remaining row width %d", count, width-x)
				}
				if d.pos >= len(d.data) {
					return d.failf("unexpected end of rle data")
				}
				v := d.data[d.pos]
				d.pos++
				for i := 0; i < count; i++ {
					row[(x+i)*4+ch] = v
				}
				x += count
			} else {
				count := code
				if count > width-x {
					return d.failf("rle literal of %d exceeds remaining row width %d", count, width-x)
				}
				if len(d.data)-d.pos < count {
					return d.failf("unexpected end of rle data")
				}
				for i := 0; i < count; i++ {
					row[(x+i)*4+ch] = d.data[d.pos+i]
				}
				d.pos += count
				x += count
			}
		}
	}
	return nil
}

// convertRow expands one RGBE scanline into linear RGBA floats.
func convertRow(row []byte, dst []float32) {
	for i := 0; i < len(row); i += 4 {
		e := row[i+3]
		if e == 0 {
			dst[i+0] = 0
			dst[i+1] = 0
			dst[i+2] = 0
		} else {
			scale := math32.Ldexp(1, int(e)-exponentBias)
			dst[i+0] = float32(row[i+0]) * scale
			dst[i+1] = float32(row[i+1]) * scale
			dst[i+2] = float32(row[i+2]) * scale
		}
		dst[i+3] = 1
	}
}
