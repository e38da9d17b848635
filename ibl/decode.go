package ibl

import (
	"encoding/binary"
	"fmt"
	"io"

	"envlight/libgpu"
	"envlight/libio"
	"envlight/librgbe"

	"github.com/pierrec/lz4/v4"
)

// DecodeEnvMap reads a serialized environment from r.
func DecodeEnvMap(r io.Reader) (env *EnvMap, err error) {
	br := &libio.BinaryReader{
		Src:   r,
		Order: binary.LittleEndian,
	}

	defer func() {
		if br.Err != nil {
			if err == nil {
				err = br.Err
			} else {
				err = fmt.Errorf("%v: %w", err, br.Err)
			}
		}
	}()

	header := EnvHeader{}
	if !br.ReadRef(&header) {
		return nil, fmt.Errorf("expected environment header; byte 0x%08x", br.LastIndex)
	}

	if header.Check != MagicNumberEnv {
		return nil, fmt.Errorf("environment header is corrupt; byte 0x%08x", br.LastIndex)
	}
	if header.Version != EnvVersion1_000_000 {
		return nil, fmt.Errorf("environment version %d unsupported; byte 0x%08x", header.Version, br.LastIndex)
	}
	if header.Size == 0 || header.Levels == 0 {
		return nil, fmt.Errorf("environment dimensions %dx%d are invalid; byte 0x%08x", header.Size, header.Levels, br.LastIndex)
	}
	if header.Size > librgbe.MaxDimension {
		return nil, fmt.Errorf("environment face size %d exceeds maximum %d; byte 0x%08x", header.Size, librgbe.MaxDimension, br.LastIndex)
	}
	if max := libgpu.MipLevels(int(header.Size), int(header.Size)); int(header.Levels) > max {
		return nil, fmt.Errorf("environment level count %d exceeds the %d level chain of size %d; byte 0x%08x", header.Levels, max, header.Size, br.LastIndex)
	}

	pixr := br.Src
	switch header.Compression {
	case EnvCompressionNone:
	case EnvCompressionLZ4, EnvCompressionLZ4Fast:
		pixr = lz4.NewReader(br.Src)
	default:
		return nil, fmt.Errorf("environment compression id %d unsupported; byte 0x%08x", header.Compression, br.LastIndex)
	}

	pixels := EnvPixels(int(header.Size), int(header.Levels))
	data := make([]byte, pixels*4)
	if _, err := io.ReadFull(pixr, data); err != nil {
		return nil, fmt.Errorf("expected %d encoded pixels: %w", pixels, err)
	}

	colors := make([]float32, pixels*3)
	librgbe.DecodeChunk(3, data, colors)

	return NewEnvMap(colors, int(header.Size), int(header.Levels)), nil
}
