// Package gputest provides a recording fake of the libgpu backend surface
// for tests that must observe resource lifecycles without a GPU.
package gputest

import (
	"fmt"

	"envlight/libgpu"
)

// Device records every resource created on it and can be told to fail
// specific creation calls.
type Device struct {
	Name string

	// Missing capabilities; everything is supported by default.
	Missing map[libgpu.Feature]bool
	// NonRenderable marks formats that reject render-attachment usage.
	NonRenderable map[libgpu.Format]bool

	Textures  []*Texture
	Samplers  []*Sampler
	Pipelines []*Pipeline
	Encoders  []*Encoder

	// FailTexture makes every CreateTexture call fail.
	FailTexture error
	// FailTextureAt makes the n-th CreateTexture call (1-based) fail.
	FailTextureAt int
	// FailPipeline makes every CreatePipeline call fail.
	FailPipeline error
	// FailSubmit is copied into every new encoder and returned from Submit.
	FailSubmit error

	textureCalls int
}

func NewDevice(name string) *Device {
	return &Device{
		Name:          name,
		Missing:       map[libgpu.Feature]bool{},
		NonRenderable: map[libgpu.Format]bool{},
	}
}

func (d *Device) Label() string {
	return d.Name
}

func (d *Device) Supports(f libgpu.Feature) bool {
	return !d.Missing[f]
}

func (d *Device) Renderable(f libgpu.Format) bool {
	return !d.NonRenderable[f]
}

func (d *Device) CreateTexture(desc *libgpu.TextureDesc) (libgpu.Texture, error) {
	d.textureCalls++
	if d.FailTexture != nil {
		return nil, d.FailTexture
	}
	if d.FailTextureAt > 0 && d.textureCalls == d.FailTextureAt {
		return nil, fmt.Errorf("injected texture failure at call %d", d.textureCalls)
	}
	t := &Texture{D: *desc}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateSampler(desc *libgpu.SamplerDesc) (libgpu.Sampler, error) {
	s := &Sampler{D: *desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreatePipeline(desc *libgpu.PipelineDesc) (libgpu.Pipeline, error) {
	if d.FailPipeline != nil {
		return nil, d.FailPipeline
	}
	p := &Pipeline{D: *desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) Encode(label string) libgpu.Encoder {
	e := &Encoder{Label: label, FailSubmit: d.FailSubmit}
	d.Encoders = append(d.Encoders, e)
	return e
}

// Live returns the created textures that have not been destroyed.
func (d *Device) Live() []*Texture {
	live := []*Texture{}
	for _, t := range d.Textures {
		if !t.Destroyed {
			live = append(live, t)
		}
	}
	return live
}

type Write struct {
	Mip, Face int
	Data      []byte
}

type Texture struct {
	D         libgpu.TextureDesc
	Writes    []Write
	Destroyed bool
}

func (t *Texture) Desc() libgpu.TextureDesc {
	return t.D
}

func (t *Texture) Write(mip, face int, data []byte) error {
	if t.Destroyed {
		return fmt.Errorf("write to destroyed texture %q", t.D.Label)
	}
	t.Writes = append(t.Writes, Write{Mip: mip, Face: face, Data: append([]byte{}, data...)})
	return nil
}

func (t *Texture) Destroy() {
	t.Destroyed = true
}

type Sampler struct {
	D         libgpu.SamplerDesc
	Destroyed bool
}

func (s *Sampler) Destroy() {
	s.Destroyed = true
}

type Pipeline struct {
	D         libgpu.PipelineDesc
	Destroyed bool
}

func (p *Pipeline) Destroy() {
	p.Destroyed = true
}

type Encoder struct {
	Label     string
	Passes    []libgpu.Pass
	Submitted bool
	// FailSubmit is returned from Submit when set.
	FailSubmit error
}

func (e *Encoder) Draw(p libgpu.Pass) {
	e.Passes = append(e.Passes, p)
}

func (e *Encoder) Submit() error {
	if e.FailSubmit != nil {
		return e.FailSubmit
	}
	e.Submitted = true
	return nil
}
