package ibl

import (
	"encoding/binary"
	"fmt"
	"io"

	"envlight/libio"
	"envlight/librgbe"

	"github.com/pierrec/lz4/v4"
)

// container magic, "ENVL"
const MagicNumberEnv = 0x454e564c

type EnvVersion uint32

const EnvVersion1_000_000 = EnvVersion(1_000_000)

type EnvCompression uint32

const (
	EnvCompressionNone = EnvCompression(iota)
	EnvCompressionLZ4Fast
	EnvCompressionLZ4
)

// EnvHeader leads a serialized environment: magic, version, compression id,
// base face size and prefiltered level count. Pixels follow RGBE-packed,
// optionally lz4-framed.
type EnvHeader struct {
	Check       uint32
	Version     EnvVersion
	Compression EnvCompression
	Size        uint32
	Levels      uint32
}

type EncodeContext struct {
	Compression EnvCompression
	Writer      io.Writer
}

type EncodeOption func(ctx *EncodeContext) error

// OptCompress enables lz4 compression; level 0 is the fast encoder, 1-9
// map to increasing compression levels. Negative levels disable the option.
func OptCompress(level int) EncodeOption {
	levels := []lz4.CompressionLevel{
		lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
		lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
	}
	if level < 0 {
		return nil
	}
	if level >= len(levels) {
		level = len(levels) - 1
	}

	return func(ctx *EncodeContext) error {
		if ctx.Compression != EnvCompressionNone {
			return fmt.Errorf("compression already configured")
		}
		lzw := lz4.NewWriter(ctx.Writer)
		lzw.Apply(lz4.CompressionLevelOption(levels[level]))
		if level == 0 {
			ctx.Compression = EnvCompressionLZ4Fast
		} else {
			ctx.Compression = EnvCompressionLZ4
		}
		ctx.Writer = lzw
		return nil
	}
}

// EncodeEnvMap serializes env to w.
func EncodeEnvMap(w io.Writer, env *EnvMap, options ...EncodeOption) (err error) {
	bw := &libio.BinaryWriter{
		Dst:   w,
		Order: binary.LittleEndian,
	}

	defer func() {
		if bw.Err != nil {
			if err == nil {
				err = bw.Err
			} else {
				err = fmt.Errorf("%v: %w", err, bw.Err)
			}
		}
	}()

	ctx := EncodeContext{Writer: bw.Dst}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if err := opt(&ctx); err != nil {
			return err
		}
	}

	header := EnvHeader{
		Check:       MagicNumberEnv,
		Version:     EnvVersion1_000_000,
		Compression: ctx.Compression,
		Size:        uint32(env.BaseSize),
		Levels:      uint32(env.Levels),
	}
	if !bw.WriteRef(&header) {
		return fmt.Errorf("could not write environment header: %w", bw.Err)
	}

	if err := librgbe.Encode(ctx.Writer, env.Concat(), false); err != nil {
		return fmt.Errorf("could not write environment pixels: %w", err)
	}

	if closer, ok := ctx.Writer.(io.WriteCloser); ok {
		return closer.Close()
	}
	return nil
}
