// Package libgpu defines the graphics backend surface the lighting
// precompute pipeline runs on: devices, textures, samplers and single-pass
// render pipelines. The concrete implementation lives in webgpu.go; tests
// use the recording fake in gputest.
package libgpu

import "math/bits"

// Format is a texture pixel format.
type Format int

const (
	FormatUnknown = Format(iota)
	FormatRGBA8Unorm
	FormatRGBA16Float
	FormatRGBA32Float
)

// PixelBytes returns the byte size of one pixel.
func (f Format) PixelBytes() int {
	switch f {
	case FormatRGBA8Unorm:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	}
	return 0
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatRGBA32Float:
		return "rgba32float"
	}
	return "unknown"
}

// Feature is an optional device capability.
type Feature int

const (
	// FeatureFloat32Filterable allows linear sampling of 32 bit float
	// textures.
	FeatureFloat32Filterable = Feature(iota)
)

func (f Feature) String() string {
	if f == FeatureFloat32Filterable {
		return "float32-filterable"
	}
	return "unknown"
}

type AddressMode int

const (
	AddressClampToEdge = AddressMode(iota)
	AddressRepeat
	AddressMirrorRepeat
)

type FilterMode int

const (
	FilterLinear = FilterMode(iota)
	FilterNearest
)

// TextureDesc describes a 2D or cube texture. Faces is 1 for 2D textures
// and 6 for cubemaps.
type TextureDesc struct {
	Label         string
	Width, Height int
	Faces         int
	MipLevelCount int
	Format        Format
	// RenderTarget requests render-attachment usage for every mip level
	RenderTarget bool
}

// SamplerDesc describes a sampler. The zero value is clamp-to-edge with
// linear filtering, which is what environment maps want.
type SamplerDesc struct {
	Label                           string
	AddressU, AddressV, AddressW    AddressMode
	MinFilter, MagFilter, MipFilter FilterMode
	MaxAnisotropy                   int
}

// PipelineDesc describes a full-screen-triangle render pipeline with one
// sampled texture, one sampler and an optional uniform buffer.
type PipelineDesc struct {
	Label  string
	Source string // WGSL, entry points vs_main / fs_main
	Format Format // render target format
	// CubeSampler binds the sampled texture as a cube view instead of 2D
	CubeSampler bool
	UniformSize int
}

// Pass is one full-screen draw: sample Source, write Target.
// SourceMip < 0 binds the full mip chain, otherwise the single level;
// SourceFace < 0 binds all faces (as a cube view on cubemaps).
type Pass struct {
	Pipeline              Pipeline
	Target                Texture
	TargetMip, TargetFace int
	Source                Texture
	SourceMip, SourceFace int
	Sampler               Sampler
	Uniforms              []byte
}

// MipLevels returns the length of the full mip chain for a w by h texture,
// floor(log2(max(w,h)))+1.
func MipLevels(w, h int) int {
	if h > w {
		w = h
	}
	if w < 1 {
		return 1
	}
	return bits.Len(uint(w))
}
