package libgpu

import (
	_ "embed"
	"fmt"
)

//go:embed mipmap.wgsl
var mipmapShaderSrc string

var mipmapRegistry = NewRegistry[*MipmapGenerator]()

// MipmapGenerator fills the mip chain of renderable 2D textures by drawing
// each level from the previous one with a linear-filtered full-screen pass.
// One instance is cached per device; pipelines are built lazily per format.
type MipmapGenerator struct {
	dev       Device
	sampler   Sampler
	pipelines map[Format]Pipeline
}

// GetMipmapGenerator returns the cached generator for dev, creating it on
// first use.
func GetMipmapGenerator(dev Device) (*MipmapGenerator, error) {
	return mipmapRegistry.Get(dev, func(dev Device) (*MipmapGenerator, error) {
		sampler, err := dev.CreateSampler(&SamplerDesc{
			Label:     "mipmap downsample",
			MinFilter: FilterLinear,
			MagFilter: FilterLinear,
		})
		if err != nil {
			return nil, &ResourceError{Op: "create mipmap sampler", Err: err}
		}
		return &MipmapGenerator{
			dev:       dev,
			sampler:   sampler,
			pipelines: map[Format]Pipeline{},
		}, nil
	})
}

func (g *MipmapGenerator) pipeline(format Format) (Pipeline, error) {
	if p, ok := g.pipelines[format]; ok {
		return p, nil
	}
	p, err := g.dev.CreatePipeline(&PipelineDesc{
		Label:  fmt.Sprintf("mipmap %s", format),
		Source: mipmapShaderSrc,
		Format: format,
	})
	if err != nil {
		return nil, &ResourceError{Op: fmt.Sprintf("build mipmap pipeline for %s", format), Err: err}
	}
	g.pipelines[format] = p
	return p, nil
}

// Generate renders every mip level of tex from the level above it. All
// levels go into a single command submission. Textures with a single mip
// level are left alone.
func (g *MipmapGenerator) Generate(tex Texture) error {
	desc := tex.Desc()

	if desc.Faces != 1 {
		return &CapabilityError{Device: g.dev.Label(), Msg: "mipmap generation only supports 2D textures"}
	}
	if !g.dev.Renderable(desc.Format) {
		return &CapabilityError{Device: g.dev.Label(), Msg: fmt.Sprintf("format %s is not renderable", desc.Format)}
	}
	if desc.MipLevelCount <= 1 {
		return nil
	}

	pipeline, err := g.pipeline(desc.Format)
	if err != nil {
		return err
	}

	enc := g.dev.Encode("generate mipmaps " + desc.Label)
	for level := 1; level < desc.MipLevelCount; level++ {
		enc.Draw(Pass{
			Pipeline:  pipeline,
			Target:    tex,
			TargetMip: level,
			Source:    tex,
			SourceMip: level - 1,
			Sampler:   g.sampler,
		})
	}
	if err := enc.Submit(); err != nil {
		return &ResourceError{Op: "submit mipmap passes", Err: err}
	}
	return nil
}

// Dispose releases the generator's pipelines and evicts it from the
// per-device cache. Safe to call more than once.
func (g *MipmapGenerator) Dispose() {
	for format, p := range g.pipelines {
		p.Destroy()
		delete(g.pipelines, format)
	}
	if g.sampler != nil {
		g.sampler.Destroy()
		g.sampler = nil
	}
	mipmapRegistry.Drop(g.dev)
}

// ClearMipmapCache disposes every cached generator.
func ClearMipmapCache() {
	mipmapRegistry.Clear(func(g *MipmapGenerator) { g.Dispose() })
}
