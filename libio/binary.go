// Package libio holds small binary serialization helpers shared by the
// container codecs and the texture upload paths.
package libio

import (
	"encoding/binary"
	"io"
	"math"
)

// BinaryReader wraps an io.Reader with a byte order and sticky error state.
// After a failed read every further call is a no-op and Err holds the cause;
// LastIndex is the offset of the read that failed.
type BinaryReader struct {
	Order     binary.ByteOrder
	Src       io.Reader
	Index     int
	LastIndex int
	Err       error
	buf       []byte
}

func (br *BinaryReader) ReadBytes(n int) bool {
	if br.Err != nil {
		return false
	}

	if cap(br.buf) < n {
		br.buf = make([]byte, n)
	} else {
		br.buf = br.buf[:n]
	}

	nread, err := io.ReadFull(br.Src, br.buf)
	br.Err = err
	br.LastIndex = br.Index
	br.Index += nread

	return br.Err == nil
}

func (br *BinaryReader) Read(p []byte) (int, error) {
	return br.Src.Read(p)
}

func (br *BinaryReader) ReadUInt32(i *int) bool {
	if !br.ReadBytes(4) {
		return false
	}
	*i = int(br.Order.Uint32(br.buf))
	return true
}

func (br *BinaryReader) ReadRef(data any) bool {
	if br.Err != nil {
		return false
	}
	err := binary.Read(br.Src, br.Order, data)
	br.Err = err
	br.LastIndex = br.Index
	if err == nil {
		br.Index += binary.Size(data)
	}
	return err == nil
}

// BinaryWriter is the writing counterpart of BinaryReader.
type BinaryWriter struct {
	Order binary.ByteOrder
	Dst   io.Writer
	Err   error
}

func (bw *BinaryWriter) WriteBytes(p []byte) bool {
	if bw.Err != nil {
		return false
	}
	_, err := bw.Dst.Write(p)
	bw.Err = err
	return err == nil
}

func (bw *BinaryWriter) Write(p []byte) (int, error) {
	return bw.Dst.Write(p)
}

func (bw *BinaryWriter) WriteUInt32(i uint32) bool {
	buf := make([]byte, 4)
	bw.Order.PutUint32(buf, i)
	return bw.WriteBytes(buf)
}

func (bw *BinaryWriter) WriteFloat32(f float32) bool {
	return bw.WriteUInt32(math.Float32bits(f))
}

func (bw *BinaryWriter) WriteRef(data any) bool {
	if bw.Err != nil {
		return false
	}
	err := binary.Write(bw.Dst, bw.Order, data)
	bw.Err = err
	return err == nil
}

// PutUint16Slice packs src into dst, which must hold 2*len(src) bytes.
func PutUint16Slice(order binary.ByteOrder, dst []byte, src []uint16) {
	for i, v := range src {
		order.PutUint16(dst[i*2:], v)
	}
}

// PutFloat32Slice packs src into dst, which must hold 4*len(src) bytes.
func PutFloat32Slice(order binary.ByteOrder, dst []byte, src []float32) {
	for i, v := range src {
		order.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
