// Package libhdr loads Radiance .hdr panoramas into GPU textures ready for
// environment lighting: decode, exposure correction, half-float encoding,
// upload and mip generation.
package libhdr

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"envlight/libgpu"
	"envlight/libhalf"
	"envlight/libio"
	"envlight/librgbe"
)

// NetworkError reports a failed or refused fetch.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %q: http status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %q: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Environment is a loaded panorama: the uploaded texture plus the sampler
// it should be bound with. Destroy releases both.
type Environment struct {
	Texture libgpu.Texture
	Sampler libgpu.Sampler
}

func (env *Environment) Destroy() {
	if env.Texture != nil {
		env.Texture.Destroy()
		env.Texture = nil
	}
	if env.Sampler != nil {
		env.Sampler.Destroy()
		env.Sampler = nil
	}
}

// IsHDRFile reports whether the url names a Radiance .hdr file, ignoring
// query and fragment.
func IsHDRFile(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}
	return strings.EqualFold(path.Ext(p), ".hdr")
}

// FromURL fetches a .hdr file and uploads it via FromBuffer. The fetch is
// the only suspension point; decode and upload run synchronously once the
// bytes are in.
func FromURL(ctx context.Context, dev libgpu.Device, rawURL string, opts ...Option) (*Environment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: rawURL, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	if len(opts) == 0 || !hasLabel(opts) {
		opts = append(opts, WithLabel(path.Base(rawURL)))
	}
	return FromBuffer(dev, data, opts...)
}

func hasLabel(opts []Option) bool {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	return c.label != ""
}

// FromBuffer decodes a .hdr buffer and uploads it as an equirectangular
// environment texture.
func FromBuffer(dev libgpu.Device, data []byte, opts ...Option) (*Environment, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch cfg.format {
	case libgpu.FormatRGBA16Float:
	case libgpu.FormatRGBA32Float:
		// checked before any texture is allocated, never downgraded
		if !dev.Supports(libgpu.FeatureFloat32Filterable) {
			return nil, &libgpu.CapabilityError{
				Device: dev.Label(),
				Msg:    "full-float environment textures require float32-filterable sampling",
			}
		}
	default:
		return nil, &libgpu.CapabilityError{
			Device: dev.Label(),
			Msg:    fmt.Sprintf("format %s is not a supported environment format", cfg.format),
		}
	}

	img, err := librgbe.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding hdr image: %w", err)
	}

	if cfg.applyExposure && img.Exposure != 1.0 {
		applyExposure(img.Pix, img.Exposure)
	}

	mips := 1
	if cfg.mipmaps {
		if dev.Renderable(cfg.format) {
			mips = libgpu.MipLevels(img.Width, img.Height)
		} else {
			slog.Warn("hdr: skipping mipmaps, format is not renderable",
				"format", cfg.format.String(), "label", cfg.label)
		}
	}

	label := cfg.label
	if label == "" {
		label = "environment"
	}

	tex, err := dev.CreateTexture(&libgpu.TextureDesc{
		Label:         label,
		Width:         img.Width,
		Height:        img.Height,
		Faces:         1,
		MipLevelCount: mips,
		Format:        cfg.format,
		RenderTarget:  mips > 1,
	})
	if err != nil {
		return nil, &libgpu.ResourceError{Op: "create environment texture", Err: err}
	}

	if err := tex.Write(0, 0, encodePixels(img.Pix, cfg.format)); err != nil {
		tex.Destroy()
		return nil, &libgpu.ResourceError{Op: "upload environment texture", Err: err}
	}

	if mips > 1 {
		gen, err := libgpu.GetMipmapGenerator(dev)
		if err == nil {
			err = gen.Generate(tex)
		}
		if err != nil {
			tex.Destroy()
			return nil, err
		}
	}

	sampler, err := dev.CreateSampler(samplerDesc(&cfg, label, mips))
	if err != nil {
		tex.Destroy()
		return nil, &libgpu.ResourceError{Op: "create environment sampler", Err: err}
	}

	return &Environment{Texture: tex, Sampler: sampler}, nil
}

// samplerDesc builds the clamp-to-edge default (environment maps must not
// wrap) and merges in the caller's overrides.
func samplerDesc(cfg *config, label string, mips int) *libgpu.SamplerDesc {
	desc := &libgpu.SamplerDesc{
		Label:     label,
		AddressU:  libgpu.AddressClampToEdge,
		AddressV:  libgpu.AddressClampToEdge,
		AddressW:  libgpu.AddressClampToEdge,
		MinFilter: libgpu.FilterLinear,
		MagFilter: libgpu.FilterLinear,
	}
	if mips > 1 {
		desc.MipFilter = libgpu.FilterLinear
	}
	if cfg.sampler != nil {
		cfg.sampler(desc)
	}
	if desc.MaxAnisotropy > 1 && (desc.MinFilter == libgpu.FilterNearest || desc.MagFilter == libgpu.FilterNearest) {
		slog.Warn("hdr: anisotropy requires linear filtering, clamping to 1",
			"anisotropy", desc.MaxAnisotropy, "label", label)
		desc.MaxAnisotropy = 1
	}
	return desc
}

func applyExposure(pix []float32, exposure float32) {
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] *= exposure
		pix[i+1] *= exposure
		pix[i+2] *= exposure
	}
}

func encodePixels(pix []float32, format libgpu.Format) []byte {
	switch format {
	case libgpu.FormatRGBA32Float:
		buf := make([]byte, len(pix)*4)
		libio.PutFloat32Slice(binary.LittleEndian, buf, pix)
		return buf
	default:
		half := make([]uint16, len(pix))
		libhalf.ToHalfSlice(half, pix)
		buf := make([]byte, len(half)*2)
		libio.PutUint16Slice(binary.LittleEndian, buf, half)
		return buf
	}
}
