package libhdr

import "envlight/libgpu"

type config struct {
	format        libgpu.Format
	applyExposure bool
	mipmaps       bool
	label         string
	sampler       func(*libgpu.SamplerDesc)
}

func defaultConfig() config {
	return config{
		format:        libgpu.FormatRGBA16Float,
		applyExposure: true,
		mipmaps:       true,
	}
}

type Option func(*config)

// WithFormat selects the target pixel format; half-float by default.
func WithFormat(f libgpu.Format) Option {
	return func(c *config) { c.format = f }
}

// WithoutExposure keeps the raw pixel values instead of multiplying in the
// cumulative EXPOSURE header value.
func WithoutExposure() Option {
	return func(c *config) { c.applyExposure = false }
}

// WithoutMipmaps uploads a single mip level.
func WithoutMipmaps() Option {
	return func(c *config) { c.mipmaps = false }
}

func WithLabel(label string) Option {
	return func(c *config) { c.label = label }
}

// WithSampler adjusts the sampler descriptor before creation. The loader
// starts from clamp-to-edge with linear filtering; overrides are applied
// on top.
func WithSampler(override func(*libgpu.SamplerDesc)) Option {
	return func(c *config) { c.sampler = override }
}
