// Package ibl turns equirectangular HDR environment textures into the
// texture set used for image-based lighting: a roughness-prefiltered
// specular cubemap, a diffuse irradiance cubemap and a shared BRDF lookup
// table. It also carries a CPU convolution path and a binary container for
// precomputed environments.
package ibl

type CubeFace int

const (
	CubePositiveX = CubeFace(iota)
	CubeNegativeX
	CubePositiveY
	CubeNegativeY
	CubePositiveZ
	CubeNegativeZ
)

// EnvMap is a CPU-side cubemap with an optional prefiltered level chain.
// Pixels are tightly packed RGB floats, levels stored largest first, the
// six faces of one level contiguous.
type EnvMap struct {
	BaseSize int
	Levels   int
	data     []float32
}

// NewEnvMap wraps data, which must hold EnvPixels(size, levels)*3 floats.
func NewEnvMap(data []float32, size, levels int) *EnvMap {
	return &EnvMap{
		BaseSize: size,
		Levels:   levels,
		data:     data,
	}
}

// EnvPixels returns the total pixel count of a cubemap with the given base
// face size and level count; every level halves the face size.
func EnvPixels(size, levels int) int {
	total := 0
	for l := 0; l < levels; l++ {
		total += 6 * size * size
		size /= 2
	}
	return total
}

// levelRange returns the pixel offsets delimiting one level.
func levelRange(size, level int) (start, end int) {
	start = EnvPixels(size, level)
	end = start + 6*(size>>level)*(size>>level)
	return start, end
}

// Size returns the face size of one level.
func (m *EnvMap) Size(level int) int {
	return m.BaseSize >> level
}

// Level returns the pixels of all six faces of one level.
func (m *EnvMap) Level(level int) []float32 {
	start, end := levelRange(m.BaseSize, level)
	return m.data[start*3 : end*3 : end*3]
}

// Face returns the pixels of a single face.
func (m *EnvMap) Face(level, face int) []float32 {
	start, _ := levelRange(m.BaseSize, level)
	n := m.Size(level) * m.Size(level)
	lo := (start + face*n) * 3
	hi := lo + n*3
	return m.data[lo:hi:hi]
}

// Concat returns the full backing buffer.
func (m *EnvMap) Concat() []float32 {
	return m.data
}
