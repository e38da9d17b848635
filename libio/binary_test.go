package libio_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"envlight/libio"
)

func TestBinaryWriterReader(t *testing.T) {
	type header struct {
		Check uint32
		Size  uint32
	}

	buf := new(bytes.Buffer)
	bw := &libio.BinaryWriter{Dst: buf, Order: binary.LittleEndian}

	in := header{Check: 0xCAFEBABE, Size: 64}
	if !bw.WriteRef(&in) {
		t.Fatal(bw.Err)
	}
	if !bw.WriteUInt32(7) || !bw.WriteFloat32(1.5) {
		t.Fatal(bw.Err)
	}

	br := &libio.BinaryReader{Src: buf, Order: binary.LittleEndian}

	out := header{}
	if !br.ReadRef(&out) {
		t.Fatal(br.Err)
	}
	if out != in {
		t.Errorf("header should be %+v but is %+v", in, out)
	}

	var n int
	if !br.ReadUInt32(&n) || n != 7 {
		t.Errorf("uint32 should be 7 but is %d", n)
	}

	var f float32
	if !br.ReadRef(&f) || f != 1.5 {
		t.Errorf("float should be 1.5 but is %g", f)
	}
}

func TestBinaryReaderStickyError(t *testing.T) {
	br := &libio.BinaryReader{
		Src:   bytes.NewReader([]byte{1, 2, 3, 4, 5}),
		Order: binary.LittleEndian,
	}

	var n int
	if !br.ReadUInt32(&n) {
		t.Fatal(br.Err)
	}
	if br.ReadUInt32(&n) {
		t.Fatal("short read should fail")
	}
	if br.Err == nil {
		t.Fatal("error should stick")
	}
	if br.LastIndex != 4 {
		t.Errorf("failed read should report offset 4 but reports %d", br.LastIndex)
	}
	// every further read is a no-op
	if br.ReadBytes(1) {
		t.Error("reads after a failure should keep failing")
	}
}

func TestPutUint16Slice(t *testing.T) {
	src := []uint16{0x0102, 0xFFEE}
	dst := make([]byte, 4)
	libio.PutUint16Slice(binary.LittleEndian, dst, src)

	want := []byte{0x02, 0x01, 0xEE, 0xFF}
	if !bytes.Equal(dst, want) {
		t.Errorf("packed bytes should be %v but are %v", want, dst)
	}
}

func TestPutFloat32Slice(t *testing.T) {
	src := []float32{1.0, -2.5}
	dst := make([]byte, 8)
	libio.PutFloat32Slice(binary.LittleEndian, dst, src)

	for i, f := range src {
		bits := binary.LittleEndian.Uint32(dst[i*4:])
		if math.Float32frombits(bits) != f {
			t.Errorf("float %d should round trip as %g but is %g", i, f, math.Float32frombits(bits))
		}
	}
}
