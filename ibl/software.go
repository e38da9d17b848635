package ibl

import (
	"fmt"

	"envlight/librgbe"

	"github.com/chewxy/math32"
)

// Converter projects an equirectangular panorama onto cubemap faces.
type Converter interface {
	Convert(img *librgbe.Image, size int) (*EnvMap, error)
	Release()
}

// Convolver filters a cubemap into a lighting-ready one.
type Convolver interface {
	Convolve(env *EnvMap, size int) (*EnvMap, error)
	Release()
}

type swConverter struct{}

// NewConverter returns the CPU equirectangular converter.
func NewConverter() Converter {
	return &swConverter{}
}

func (*swConverter) Convert(img *librgbe.Image, size int) (*EnvMap, error) {
	if img.Width == 0 || img.Height == 0 {
		return nil, fmt.Errorf("image has zero size %dx%d", img.Width, img.Height)
	}

	result := make([]float32, 6*size*size*3)

	forEachCubePixel(size, func(face, pu, pv int, cx, cy, cz float32, i int) {
		rx, ry, rz := normalize(cx, cy, cz)
		su, sv := sampleSphericalMap(rx, ry, rz)

		// hdr rows run top down, v grows upwards
		sr, sg, sb := sampleBilinear(img.Width, img.Height, 4, img.Pix, su, 1.0-sv)

		result[i*3+0] = sr
		result[i*3+1] = sg
		result[i*3+2] = sb
	})

	return NewEnvMap(result, size, 1), nil
}

func (*swConverter) Release() {}

// 1/(2pi), 1/pi
var invAtan = [2]float32{0.15915494309, 0.31830988618}

func sampleSphericalMap(rx, ry, rz float32) (u, v float32) {
	u, v = math32.Atan2(rz, rx), math32.Asin(ry)
	u = u*invAtan[0] + 0.5
	v = v*invAtan[1] + 0.5
	return u, v
}

func sampleBilinear(w, h int, channels int, pix []float32, u, v float32) (r, g, b float32) {
	// -0.5 to adjust for the pixel center offset
	u = u*float32(w) - 0.5
	v = v*float32(h) - 0.5
	ufloor, ufrac := math32.Modf(u)
	vfloor, vfrac := math32.Modf(v)
	ufloori, vfloori := int(ufloor), int(vfloor)
	uceili, vceili := ufloori+1, vfloori+1

	if ufloori < 0 {
		ufloori = 0
	}
	if vfloori < 0 {
		vfloori = 0
	}

	if uceili >= w {
		uceili = w - 1
	}
	if ufloori >= uceili {
		ufloori = uceili
		ufrac = 0.0
	}
	if vceili >= h {
		vceili = h - 1
	}
	if vfloori >= vceili {
		vfloori = vceili
		vfrac = 0.0
	}

	colstride := channels
	rowstride := channels * w

	o00 := vfloori*rowstride + ufloori*colstride
	o10 := vfloori*rowstride + uceili*colstride
	o01 := vceili*rowstride + ufloori*colstride
	o11 := vceili*rowstride + uceili*colstride

	r00, g00, b00 := pix[o00+0], pix[o00+1], pix[o00+2]
	r10, g10, b10 := pix[o10+0], pix[o10+1], pix[o10+2]
	r01, g01, b01 := pix[o01+0], pix[o01+1], pix[o01+2]
	r11, g11, b11 := pix[o11+0], pix[o11+1], pix[o11+2]

	rh0 := r00*(1.0-ufrac) + r10*ufrac
	gh0 := g00*(1.0-ufrac) + g10*ufrac
	bh0 := b00*(1.0-ufrac) + b10*ufrac

	rh1 := r01*(1.0-ufrac) + r11*ufrac
	gh1 := g01*(1.0-ufrac) + g11*ufrac
	bh1 := b01*(1.0-ufrac) + b11*ufrac

	r = rh0*(1.0-vfrac) + rh1*vfrac
	g = gh0*(1.0-vfrac) + gh1*vfrac
	b = bh0*(1.0-vfrac) + bh1*vfrac

	return r, g, b
}

type sample struct {
	// z is 'up'
	x, y, z float32
	weight  float32
}

type swDiffuseConvolver struct {
	samples []sample
}

// NewDiffuseConvolver returns the CPU cosine-hemisphere convolver.
// quality >= 0; higher quality adds sample rings.
func NewDiffuseConvolver(quality int) Convolver {
	return &swDiffuseConvolver{
		samples: diffuseSamples(quality),
	}
}

func (conv *swDiffuseConvolver) Release() {}

func diffuseSamples(quality int) []sample {
	if quality == 0 {
		// only one sample directly upwards
		return []sample{{x: 0, y: 0, z: 1, weight: 1}}
	}

	rings := quality + 1
	segments := quality * 4

	dPhi := (2.0 * math32.Pi) / float32(segments)
	dTheta := (math32.Pi / 2.0) / float32(rings)

	samples := make([]sample, (rings-1)*segments+1)
	i := 0
	for ring := 0; ring < rings-1; ring++ {
		theta := (float32(ring) + 0.5) * dTheta
		for segment := 0; segment < segments; segment++ {
			phi := (float32(segment) + 0.5) * dPhi
			samples[i].x = math32.Sin(theta) * math32.Cos(phi)
			samples[i].y = math32.Sin(theta) * math32.Sin(phi)
			samples[i].z = math32.Cos(theta)
			samples[i].weight = math32.Cos(theta) * math32.Sin(theta)
			i++
		}
	}

	// the last 'ring' accounts for the segments around the pole cap
	poleTheta := (float32(rings-1) + 0.5) * dTheta
	samples[i].x = 0
	samples[i].y = 0
	samples[i].z = 1
	samples[i].weight = float32(segments) * math32.Cos(poleTheta) * math32.Sin(poleTheta)

	return samples
}

func (conv *swDiffuseConvolver) Convolve(env *EnvMap, size int) (*EnvMap, error) {
	result := make([]float32, EnvPixels(size, 1)*3)

	forEachCubePixel(size, func(face, pu, pv int, cx, cy, cz float32, i int) {
		nx, ny, nz := normalize(cx, cy, cz)

		var upx, upy, upz float32 = 0.0, 1.0, 0.0
		if math32.Abs(ny) >= 0.999 {
			upx, upy, upz = 0.0, 0.0, 1.0
		}

		tx, ty, tz := normalize(cross(upx, upy, upz, nx, ny, nz))
		bx, by, bz := normalize(cross(nx, ny, nz, tx, ty, tz))

		var cr, cg, cb float32
		var count int
		for _, s := range conv.samples {
			dx, dy, dz := transform(s.x, s.y, s.z, tx, ty, tz, bx, by, bz, nx, ny, nz)
			if dx == 0.0 && dy == 0.0 && dz == 0.0 {
				continue
			}

			sface, su, sv := sampleCubeMap(dx, dy, dz)
			sr, sg, sb := sampleBilinear(env.BaseSize, env.BaseSize, 3, env.Face(0, sface), su, sv)

			cr += sr * s.weight
			cg += sg * s.weight
			cb += sb * s.weight
			count++
		}

		result[i*3+0] = cr * math32.Pi / float32(count)
		result[i*3+1] = cg * math32.Pi / float32(count)
		result[i*3+2] = cb * math32.Pi / float32(count)
	})

	return NewEnvMap(result, size, 1), nil
}

type swSpecularConvolver struct {
	samples [][]sample
	levels  int
}

// NewSpecularConvolver returns the CPU GGX prefilter. Level l of the
// result is convolved at roughness l/(levels-1).
func NewSpecularConvolver(samples int, levels int) Convolver {
	return &swSpecularConvolver{
		samples: specularSamples(samples, levels),
		levels:  levels,
	}
}

func (conv *swSpecularConvolver) Release() {}

func specularSamples(count int, levels int) [][]sample {
	// all levels share one contiguous backing slice
	samples := make([]sample, count*(levels-1)+1)
	sliced := make([][]sample, levels)

	// roughness 0 needs a single mirror sample
	samples[0] = sample{x: 0, y: 0, z: 1, weight: 1}
	sliced[0] = samples[0:1:1]
	i := 1

	for l := 1; l < levels; l++ {
		start := i
		roughness := float32(l) / float32(levels-1)
		for si := 0; si < count; si++ {
			hu, hv := hammersley(uint32(si), uint32(count))
			hx, hy, hz := importanceSampleGGX(hu, hv, roughness)
			samples[i] = sample{x: hx, y: hy, z: hz, weight: 1}
			i++
		}
		sliced[l] = samples[start:i:i]
	}

	return sliced
}

func radicalInverseVdC(bits uint32) float32 {
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return float32(bits) * 2.3283064365386963e-10 // / 0x100000000
}

func hammersley(i, n uint32) (x, y float32) {
	return float32(i) / float32(n), radicalInverseVdC(i)
}

func importanceSampleGGX(su, sv float32, roughness float32) (x, y, z float32) {
	a := roughness * roughness

	phi := 2.0 * math32.Pi * su
	cosTheta := math32.Sqrt((1.0 - sv) / (1.0 + (a*a-1.0)*sv))
	sinTheta := math32.Sqrt(1.0 - cosTheta*cosTheta)

	x = math32.Cos(phi) * sinTheta
	y = math32.Sin(phi) * sinTheta
	z = cosTheta
	return x, y, z
}

func (conv *swSpecularConvolver) Convolve(env *EnvMap, size int) (*EnvMap, error) {
	result := make([]float32, EnvPixels(size, conv.levels)*3)
	lvlsize := size
	for lvl := 0; lvl < conv.levels; lvl++ {
		start, end := levelRange(size, lvl)
		lvlResult := result[start*3 : end*3]
		forEachCubePixel(lvlsize, func(face, pu, pv int, cx, cy, cz float32, i int) {
			nx, ny, nz := normalize(cx, cy, cz)
			vx, vy, vz := nx, ny, nz

			// tangent space basis, z up
			var upx, upy, upz float32 = 0.0, 0.0, 1.0
			if math32.Abs(nz) >= 0.999 {
				upx, upy, upz = 1.0, 0.0, 0.0
			}
			tx, ty, tz := normalize(cross(upx, upy, upz, nx, ny, nz))
			bx, by, bz := cross(nx, ny, nz, tx, ty, tz)

			var cr, cg, cb float32
			var totalWeight float32
			for _, s := range conv.samples[lvl] {
				hx, hy, hz := normalize(transform(s.x, s.y, s.z, tx, ty, tz, bx, by, bz, nx, ny, nz))
				vdoth := 2 * dot(vx, vy, vz, hx, hy, hz)
				lx, ly, lz := normalize(vdoth*hx-vx, vdoth*hy-vy, vdoth*hz-vz)

				ndotl := math32.Max(dot(nx, ny, nz, lx, ly, lz), 0.0)
				if ndotl > 0 {
					sface, su, sv := sampleCubeMap(lx, ly, lz)
					sr, sg, sb := sampleBilinear(env.BaseSize, env.BaseSize, 3, env.Face(0, sface), su, sv)

					cr += sr * ndotl
					cg += sg * ndotl
					cb += sb * ndotl
					totalWeight += ndotl
				}
			}

			lvlResult[i*3+0] = cr / totalWeight
			lvlResult[i*3+1] = cg / totalWeight
			lvlResult[i*3+2] = cb / totalWeight
		})
		lvlsize /= 2
	}

	return NewEnvMap(result, size, conv.levels), nil
}

// sampleCubeMap maps a direction to a face index and normalized face uv.
func sampleCubeMap(rx, ry, rz float32) (face int, u, v float32) {
	ax := math32.Abs(rx)
	ay := math32.Abs(ry)
	az := math32.Abs(rz)

	var uvfac float32

	if ax >= ay && ax >= az {
		if rx >= 0 {
			face = int(CubePositiveX)
			u = -rz
		} else {
			face = int(CubeNegativeX)
			u = rz
		}
		uvfac = 0.5 / ax
		v = -ry
	} else if ay >= ax && ay >= az {
		if ry >= 0 {
			face = int(CubePositiveY)
			v = rz
		} else {
			face = int(CubeNegativeY)
			v = -rz
		}
		uvfac = 0.5 / ay
		u = rx
	} else {
		if rz >= 0 {
			face = int(CubePositiveZ)
			u = rx
		} else {
			face = int(CubeNegativeZ)
			u = -rx
		}
		uvfac = 0.5 / az
		v = -ry
	}

	u = u*uvfac + 0.5
	v = v*uvfac + 0.5
	return face, u, v
}

func normalize(x, y, z float32) (float32, float32, float32) {
	l := math32.Sqrt(x*x + y*y + z*z)
	return x / l, y / l, z / l
}

func cross(ax, ay, az, bx, by, bz float32) (float32, float32, float32) {
	return ay*bz - az*by, az*bx - ax*bz, ax*by - ay*bx
}

func dot(ax, ay, az, bx, by, bz float32) float32 {
	return ax*bx + ay*by + az*bz
}

// transform applies the basis (x,y,z columns) to v.
func transform(vx, vy, vz, xx, xy, xz, yx, yy, yz, zx, zy, zz float32) (float32, float32, float32) {
	x := (vx * xx) + (vy * yx) + (vz * zx)
	y := (vx * xy) + (vy * yy) + (vz * zy)
	z := (vx * xz) + (vy * yz) + (vz * zz)
	return x, y, z
}

// forEachCubePixel visits the pixel centers of all six faces in face order,
// handing the callback the direction through each pixel center:
// (2x+1)/r - 1 puts the coordinate at the pixel center.
func forEachCubePixel(resolution int, cb func(face, pu, pv int, cx, cy, cz float32, i int)) {
	face := 0
	index := 0
	for cx := float32(1.0); cx >= -1.0; cx -= 2.0 {
		for dy := 0; dy < resolution; dy++ {
			for dz := 0; dz < resolution; dz++ {
				cy := (2.0*float32(dy)+1.0)/float32(resolution) - 1.0
				cz := (2.0*float32(dz)+1.0)/float32(resolution) - 1.0
				cy *= -1
				if cx == 1.0 {
					cz *= -1
				}

				cb(face, dz, dy, cx, cy, cz, index)
				index++
			}
		}
		face++
	}

	for cy := float32(1.0); cy >= -1.0; cy -= 2.0 {
		for dz := 0; dz < resolution; dz++ {
			for dx := 0; dx < resolution; dx++ {
				cx := (2.0*float32(dx)+1.0)/float32(resolution) - 1.0
				cz := (2.0*float32(dz)+1.0)/float32(resolution) - 1.0
				if cy == -1.0 {
					cz *= -1
				}

				cb(face, dx, dz, cx, cy, cz, index)
				index++
			}
		}
		face++
	}

	for cz := float32(1.0); cz >= -1.0; cz -= 2.0 {
		for dy := 0; dy < resolution; dy++ {
			for dx := 0; dx < resolution; dx++ {
				cx := (2.0*float32(dx)+1.0)/float32(resolution) - 1.0
				cy := (2.0*float32(dy)+1.0)/float32(resolution) - 1.0
				cy *= -1
				if cz == -1.0 {
					cx *= -1
				}

				cb(face, dx, dy, cx, cy, cz, index)
				index++
			}
		}
		face++
	}
}
