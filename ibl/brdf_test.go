package ibl_test

import (
	"testing"

	"envlight/ibl"
	"envlight/libgpu"
	"envlight/libgpu/gputest"
)

func TestBakeBRDF(t *testing.T) {
	size := 16
	pix := ibl.BakeBRDF(size, 128)

	if len(pix) != size*size*4 {
		t.Fatalf("table should hold %d floats but holds %d", size*size*4, len(pix))
	}

	for i := 0; i < len(pix); i += 4 {
		scale, bias := pix[i], pix[i+1]
		if scale < 0 || scale > 1.01 || bias < 0 || bias > 1.01 {
			t.Fatalf("pixel %d out of range: scale %g bias %g", i/4, scale, bias)
		}
		// the split-sum terms together never exceed full reflectance
		if scale+bias > 1.05 {
			t.Fatalf("pixel %d sums to %g", i/4, scale+bias)
		}
	}

	headOn := pix[(size-1)*4]
	if headOn <= 0 {
		t.Errorf("head-on scale should be positive but is %g", headOn)
	}
}

func TestBRDFLUTSharedPerDevice(t *testing.T) {
	dev := gputest.NewDevice("gpu")

	a, err := ibl.BRDFLUT(dev)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ibl.BRDFLUT(dev)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("repeated lookups should share one table")
	}
	if len(dev.Textures) != 1 {
		t.Errorf("only one table should be created but found %d textures", len(dev.Textures))
	}

	desc := a.Desc()
	if desc.Width != 512 || desc.Height != 512 {
		t.Errorf("table should be 512x512 but is %dx%d", desc.Width, desc.Height)
	}
	if desc.Format != libgpu.FormatRGBA16Float {
		t.Errorf("table should be half-float but is %s", desc.Format)
	}

	upload := dev.Textures[0].Writes[0]
	if want := 512 * 512 * 8; len(upload.Data) != want {
		t.Errorf("upload should be %d bytes but is %d", want, len(upload.Data))
	}

	ibl.ClearBRDFCache()
	if !dev.Textures[0].Destroyed {
		t.Error("clearing the cache should destroy the table")
	}
}

func TestBRDFLUTCleanupOnUploadFailure(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	dev.FailTexture = errTest

	if _, err := ibl.BRDFLUT(dev); err == nil {
		t.Fatal("creation failure should propagate")
	}

	// the failure must not be cached
	dev.FailTexture = nil
	tex, err := ibl.BRDFLUT(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer ibl.ClearBRDFCache()
	if tex == nil {
		t.Fatal("retry should build the table")
	}
}
