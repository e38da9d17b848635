package ibl

import (
	"encoding/binary"

	"envlight/libgpu"
	"envlight/libhalf"
	"envlight/libio"

	"github.com/chewxy/math32"
)

const (
	brdfLutSize    = 512
	brdfLutSamples = 1024
)

var brdfRegistry = libgpu.NewRegistry[libgpu.Texture]()

// BRDFLUT returns the split-sum BRDF lookup table for dev. The table is
// integrated once on the CPU, uploaded as a half-float texture and shared
// between every environment generated on the device. Callers must not
// destroy it; use ClearBRDFCache when tearing the device down.
func BRDFLUT(dev libgpu.Device) (libgpu.Texture, error) {
	return brdfRegistry.Get(dev, func(dev libgpu.Device) (libgpu.Texture, error) {
		tex, err := dev.CreateTexture(&libgpu.TextureDesc{
			Label:         "brdf lut",
			Width:         brdfLutSize,
			Height:        brdfLutSize,
			Faces:         1,
			MipLevelCount: 1,
			Format:        libgpu.FormatRGBA16Float,
		})
		if err != nil {
			return nil, &libgpu.ResourceError{Op: "create brdf lut", Err: err}
		}
		if err := tex.Write(0, 0, integrateBRDFTable(brdfLutSize)); err != nil {
			tex.Destroy()
			return nil, &libgpu.ResourceError{Op: "upload brdf lut", Err: err}
		}
		return tex, nil
	})
}

// ClearBRDFCache destroys every cached lookup table.
func ClearBRDFCache() {
	brdfRegistry.Clear(func(tex libgpu.Texture) { tex.Destroy() })
}

// BakeBRDF integrates the split-sum approximation over (n dot v,
// roughness) into tightly packed RGBA floats, scale in red and bias in
// green. Row 0 is roughness 0.
func BakeBRDF(size, samples int) []float32 {
	pix := make([]float32, size*size*4)
	for y := 0; y < size; y++ {
		roughness := (float32(y) + 0.5) / float32(size)
		for x := 0; x < size; x++ {
			ndotv := (float32(x) + 0.5) / float32(size)
			scale, bias := integrateBRDF(ndotv, roughness, samples)

			i := (y*size + x) * 4
			pix[i+0] = scale
			pix[i+1] = bias
			pix[i+3] = 1
		}
	}
	return pix
}

// integrateBRDFTable packs the baked table into half-float pixel bytes.
func integrateBRDFTable(size int) []byte {
	pix := BakeBRDF(size, brdfLutSamples)
	half := make([]uint16, len(pix))
	libhalf.ToHalfSlice(half, pix)
	buf := make([]byte, len(half)*2)
	libio.PutUint16Slice(binary.LittleEndian, buf, half)
	return buf
}

func integrateBRDF(ndotv, roughness float32, samples int) (scale, bias float32) {
	vx := math32.Sqrt(1.0 - ndotv*ndotv)
	vy := float32(0.0)
	vz := ndotv

	for i := uint32(0); i < uint32(samples); i++ {
		hu, hv := hammersley(i, uint32(samples))
		hx, hy, hz := importanceSampleGGX(hu, hv, roughness)
		vdoth := vx*hx + vy*hy + vz*hz
		// only the z component of L matters, n is (0,0,1)
		lz := 2*vdoth*hz - vz

		ndotl := math32.Max(lz, 0.0)
		ndoth := math32.Max(hz, 0.0)
		vdoth = math32.Max(vdoth, 0.0)

		if ndotl > 0 {
			g := geometrySmith(ndotv, ndotl, roughness)
			gvis := (g * vdoth) / (ndoth * ndotv)
			fc := math32.Pow(1.0-vdoth, 5.0)

			scale += (1.0 - fc) * gvis
			bias += fc * gvis
		}
	}
	return scale / float32(samples), bias / float32(samples)
}

func geometrySmith(ndotv, ndotl, roughness float32) float32 {
	// k remapped for IBL
	k := (roughness * roughness) / 2.0
	ggx1 := ndotl / (ndotl*(1.0-k) + k)
	ggx2 := ndotv / (ndotv*(1.0-k) + k)
	return ggx1 * ggx2
}
