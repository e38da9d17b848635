package ibl

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/bits"

	"envlight/libgpu"
	"envlight/libio"

	"github.com/go-gl/mathgl/mgl32"
)

//go:embed equirect.wgsl
var equirectShaderSrc string

//go:embed irradiance.wgsl
var irradianceShaderSrc string

//go:embed specular.wgsl
var specularShaderSrc string

var generatorRegistry = libgpu.NewRegistry[*Generator]()

// Generator prefilters equirectangular environments on the GPU. One
// instance is cached per device; pipelines are built lazily per render
// format on the first call that needs them.
type Generator struct {
	dev       libgpu.Device
	sampler   libgpu.Sampler
	pipelines map[libgpu.Format]*pipelineSet
}

type pipelineSet struct {
	equirect   libgpu.Pipeline
	irradiance libgpu.Pipeline
	specular   libgpu.Pipeline
}

func (s *pipelineSet) destroy() {
	if s.equirect != nil {
		s.equirect.Destroy()
	}
	if s.irradiance != nil {
		s.irradiance.Destroy()
	}
	if s.specular != nil {
		s.specular.Destroy()
	}
}

// Get returns the cached generator for dev, creating it on first use.
func Get(dev libgpu.Device) (*Generator, error) {
	return generatorRegistry.Get(dev, func(dev libgpu.Device) (*Generator, error) {
		sampler, err := dev.CreateSampler(&libgpu.SamplerDesc{
			Label:     "pmrem",
			MinFilter: libgpu.FilterLinear,
			MagFilter: libgpu.FilterLinear,
			MipFilter: libgpu.FilterLinear,
		})
		if err != nil {
			return nil, &libgpu.ResourceError{Op: "create pmrem sampler", Err: err}
		}
		return &Generator{
			dev:       dev,
			sampler:   sampler,
			pipelines: map[libgpu.Format]*pipelineSet{},
		}, nil
	})
}

// Dispose releases the generator's resources and evicts it from the
// per-device cache. Safe to call more than once.
func (g *Generator) Dispose() {
	for format, set := range g.pipelines {
		set.destroy()
		delete(g.pipelines, format)
	}
	if g.sampler != nil {
		g.sampler.Destroy()
		g.sampler = nil
	}
	generatorRegistry.Drop(g.dev)
}

// ClearCache disposes every cached generator.
func ClearCache() {
	generatorRegistry.Clear(func(g *Generator) { g.Dispose() })
}

type genConfig struct {
	prefilteredSize int
	irradianceSize  int
	format          libgpu.Format
}

type GenerateOption func(*genConfig)

// WithPrefilteredSize sets the base face size of the specular cubemap.
// The default is 256.
func WithPrefilteredSize(size int) GenerateOption {
	return func(c *genConfig) { c.prefilteredSize = size }
}

// WithIrradianceSize sets the face size of the irradiance cubemap. The
// default is 32.
func WithIrradianceSize(size int) GenerateOption {
	return func(c *genConfig) { c.irradianceSize = size }
}

// WithFormat sets the render format of the generated cubemaps. The
// default is rgba16float.
func WithFormat(format libgpu.Format) GenerateOption {
	return func(c *genConfig) { c.format = format }
}

// Result is one generated environment: the roughness-prefiltered specular
// cubemap, the diffuse irradiance cubemap and the device-shared BRDF
// lookup table.
type Result struct {
	Prefiltered libgpu.Texture
	Irradiance  libgpu.Texture
	BRDFLUT     libgpu.Texture
}

// MipRoughness returns the roughness convolved into one level of the
// prefiltered map.
func (r *Result) MipRoughness(mip int) float32 {
	levels := r.Prefiltered.Desc().MipLevelCount
	if levels <= 1 {
		return 0
	}
	return float32(mip) / float32(levels-1)
}

// Destroy releases the prefiltered and irradiance maps. The BRDF lookup
// table is shared across results and stays alive; see ClearBRDFCache.
func (r *Result) Destroy() {
	if r.Prefiltered != nil {
		r.Prefiltered.Destroy()
		r.Prefiltered = nil
	}
	if r.Irradiance != nil {
		r.Irradiance.Destroy()
		r.Irradiance = nil
	}
	r.BRDFLUT = nil
}

// FromEquirectangular convolves an equirectangular environment texture
// into a Result. The source must be sampleable with sampler; all render
// passes go into a single command submission.
func (g *Generator) FromEquirectangular(equirect libgpu.Texture, sampler libgpu.Sampler, opts ...GenerateOption) (*Result, error) {
	cfg := genConfig{
		prefilteredSize: 256,
		irradianceSize:  32,
		format:          libgpu.FormatRGBA16Float,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.prefilteredSize <= 0 || cfg.irradianceSize <= 0 {
		return nil, fmt.Errorf("cubemap sizes %d/%d must be positive", cfg.prefilteredSize, cfg.irradianceSize)
	}
	if !isPow2(cfg.prefilteredSize) || !isPow2(cfg.irradianceSize) {
		slog.Warn("pmrem: cubemap sizes should be powers of two",
			"prefiltered", cfg.prefilteredSize, "irradiance", cfg.irradianceSize)
	}
	if cfg.format == libgpu.FormatRGBA32Float && !g.dev.Supports(libgpu.FeatureFloat32Filterable) {
		return nil, &libgpu.CapabilityError{
			Device: g.dev.Label(),
			Msg:    "full-float prefiltering requires float32-filterable sampling",
		}
	}
	if !g.dev.Renderable(cfg.format) {
		return nil, &libgpu.CapabilityError{
			Device: g.dev.Label(),
			Msg:    fmt.Sprintf("format %s is not renderable", cfg.format),
		}
	}

	set, err := g.ensurePipelines(cfg.format)
	if err != nil {
		return nil, err
	}

	srcLabel := equirect.Desc().Label

	// The capture cubemap holds the environment with a full mip chain so
	// the specular prefilter can sample coarser levels against fireflies.
	captureMips := libgpu.MipLevels(cfg.prefilteredSize, cfg.prefilteredSize)
	capture, err := g.dev.CreateTexture(&libgpu.TextureDesc{
		Label:         srcLabel + " capture",
		Width:         cfg.prefilteredSize,
		Height:        cfg.prefilteredSize,
		Faces:         6,
		MipLevelCount: captureMips,
		Format:        cfg.format,
		RenderTarget:  true,
	})
	if err != nil {
		return nil, &libgpu.ResourceError{Op: "create capture cubemap", Err: err}
	}
	defer capture.Destroy()

	prefiltered, err := g.dev.CreateTexture(&libgpu.TextureDesc{
		Label:         srcLabel + " prefiltered",
		Width:         cfg.prefilteredSize,
		Height:        cfg.prefilteredSize,
		Faces:         6,
		MipLevelCount: captureMips,
		Format:        cfg.format,
		RenderTarget:  true,
	})
	if err != nil {
		return nil, &libgpu.ResourceError{Op: "create prefiltered cubemap", Err: err}
	}

	irradiance, err := g.dev.CreateTexture(&libgpu.TextureDesc{
		Label:         srcLabel + " irradiance",
		Width:         cfg.irradianceSize,
		Height:        cfg.irradianceSize,
		Faces:         6,
		MipLevelCount: 1,
		Format:        cfg.format,
		RenderTarget:  true,
	})
	if err != nil {
		prefiltered.Destroy()
		return nil, &libgpu.ResourceError{Op: "create irradiance cubemap", Err: err}
	}

	brdf, err := BRDFLUT(g.dev)
	if err != nil {
		prefiltered.Destroy()
		irradiance.Destroy()
		return nil, err
	}

	enc := g.dev.Encode("pmrem " + srcLabel)

	// Equirectangular projection into every face and level of the capture
	// map. Rendering each level directly beats a separate downsample chain
	// since the source already has its own mips to sample from.
	srcMips := equirect.Desc().MipLevelCount
	for mip := 0; mip < captureMips; mip++ {
		srcLod := mip
		if srcLod >= srcMips {
			srcLod = srcMips - 1
		}
		for face := 0; face < 6; face++ {
			enc.Draw(libgpu.Pass{
				Pipeline:   set.equirect,
				Target:     capture,
				TargetMip:  mip,
				TargetFace: face,
				Source:     equirect,
				SourceMip:  -1,
				Sampler:    sampler,
				Uniforms:   faceUniforms(face, float32(srcLod), 0, 0),
			})
		}
	}

	for face := 0; face < 6; face++ {
		enc.Draw(libgpu.Pass{
			Pipeline:   set.irradiance,
			Target:     irradiance,
			TargetMip:  0,
			TargetFace: face,
			Source:     capture,
			SourceMip:  -1,
			SourceFace: -1,
			Sampler:    g.sampler,
			Uniforms:   faceUniforms(face, 0, 0, 0),
		})
	}

	for mip := 0; mip < captureMips; mip++ {
		roughness := float32(0)
		if captureMips > 1 {
			roughness = float32(mip) / float32(captureMips-1)
		}
		for face := 0; face < 6; face++ {
			enc.Draw(libgpu.Pass{
				Pipeline:   set.specular,
				Target:     prefiltered,
				TargetMip:  mip,
				TargetFace: face,
				Source:     capture,
				SourceMip:  -1,
				SourceFace: -1,
				Sampler:    g.sampler,
				Uniforms: faceUniforms(face, roughness,
					float32(captureMips-1), float32(cfg.prefilteredSize)),
			})
		}
	}

	if err := enc.Submit(); err != nil {
		prefiltered.Destroy()
		irradiance.Destroy()
		return nil, &libgpu.ResourceError{Op: "submit pmrem passes", Err: err}
	}

	return &Result{
		Prefiltered: prefiltered,
		Irradiance:  irradiance,
		BRDFLUT:     brdf,
	}, nil
}

// ensurePipelines builds the three convolution pipelines for one render
// format. On partial failure everything built here is torn down again so
// a later call starts clean.
func (g *Generator) ensurePipelines(format libgpu.Format) (*pipelineSet, error) {
	if set, ok := g.pipelines[format]; ok {
		return set, nil
	}

	set := &pipelineSet{}
	shaders := []struct {
		name   string
		source string
		cube   bool
		dst    *libgpu.Pipeline
	}{
		{"equirect", equirectShaderSrc, false, &set.equirect},
		{"irradiance", irradianceShaderSrc, true, &set.irradiance},
		{"specular", specularShaderSrc, true, &set.specular},
	}
	for _, sh := range shaders {
		p, err := g.dev.CreatePipeline(&libgpu.PipelineDesc{
			Label:       fmt.Sprintf("pmrem %s %s", sh.name, format),
			Source:      sh.source,
			Format:      format,
			CubeSampler: sh.cube,
			UniformSize: 64,
		})
		if err != nil {
			set.destroy()
			return nil, &libgpu.ResourceError{Op: fmt.Sprintf("build %s pipeline for %s", sh.name, format), Err: err}
		}
		*sh.dst = p
	}

	g.pipelines[format] = set
	return set, nil
}

// faceBases orients the render passes; dir = forward + u*right + v*up
// with u, v in [-1, 1] and v pointing to the top texel row.
var faceBases = [6]struct {
	forward, right, up mgl32.Vec3
}{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
}

// faceUniforms packs the 64 byte uniform block shared by all three
// shaders: face basis plus a shader-specific parameter vector.
func faceUniforms(face int, p0, p1, p2 float32) []byte {
	basis := faceBases[face]
	block := struct {
		Forward mgl32.Vec4
		Right   mgl32.Vec4
		Up      mgl32.Vec4
		Params  mgl32.Vec4
	}{
		Forward: basis.forward.Vec4(0),
		Right:   basis.right.Vec4(0),
		Up:      basis.up.Vec4(0),
		Params:  mgl32.Vec4{p0, p1, p2, 0},
	}

	buf := bytes.Buffer{}
	bw := &libio.BinaryWriter{Dst: &buf, Order: binary.LittleEndian}
	bw.WriteRef(&block)
	return buf.Bytes()
}

func isPow2(v int) bool {
	return v > 0 && bits.OnesCount(uint(v)) == 1
}
