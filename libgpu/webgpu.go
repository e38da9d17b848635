package libgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// WebGPUDevice adapts a wgpu device to the Device interface. The wgpu
// device is owned by the caller (usually whoever created the surface); the
// adapter only borrows it.
type WebGPUDevice struct {
	label    string
	dev      *wgpu.Device
	queue    *wgpu.Queue
	features map[wgpu.FeatureName]bool
}

func NewWebGPUDevice(label string, dev *wgpu.Device) *WebGPUDevice {
	features := map[wgpu.FeatureName]bool{}
	for _, f := range dev.EnumerateFeatures() {
		features[f] = true
	}
	return &WebGPUDevice{
		label:    label,
		dev:      dev,
		queue:    dev.GetQueue(),
		features: features,
	}
}

func (d *WebGPUDevice) Label() string {
	return d.label
}

func (d *WebGPUDevice) Supports(f Feature) bool {
	switch f {
	case FeatureFloat32Filterable:
		return d.features[wgpu.FeatureNameFloat32Filterable]
	}
	return false
}

func (d *WebGPUDevice) Renderable(f Format) bool {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA16Float, FormatRGBA32Float:
		return true
	}
	return false
}

func toWGPUFormat(f Format) (wgpu.TextureFormat, error) {
	switch f {
	case FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float, nil
	case FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("format %s has no wgpu equivalent", f)
}

func toWGPUAddressMode(m AddressMode) wgpu.AddressMode {
	switch m {
	case AddressRepeat:
		return wgpu.AddressModeRepeat
	case AddressMirrorRepeat:
		return wgpu.AddressModeMirrorRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func toWGPUFilter(m FilterMode) wgpu.FilterMode {
	if m == FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func toWGPUMipFilter(m FilterMode) wgpu.MipmapFilterMode {
	if m == FilterNearest {
		return wgpu.MipmapFilterModeNearest
	}
	return wgpu.MipmapFilterModeLinear
}

func (d *WebGPUDevice) CreateTexture(desc *TextureDesc) (Texture, error) {
	format, err := toWGPUFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= wgpu.TextureUsageRenderAttachment
	}

	t, err := d.dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: uint32(desc.Faces),
		},
		MipLevelCount: uint32(desc.MipLevelCount),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, err
	}

	return &webgpuTexture{dev: d, tex: t, desc: *desc, format: format}, nil
}

func (d *WebGPUDevice) CreateSampler(desc *SamplerDesc) (Sampler, error) {
	anisotropy := desc.MaxAnisotropy
	if anisotropy < 1 {
		anisotropy = 1
	}
	s, err := d.dev.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  toWGPUAddressMode(desc.AddressU),
		AddressModeV:  toWGPUAddressMode(desc.AddressV),
		AddressModeW:  toWGPUAddressMode(desc.AddressW),
		MagFilter:     toWGPUFilter(desc.MagFilter),
		MinFilter:     toWGPUFilter(desc.MinFilter),
		MipmapFilter:  toWGPUMipFilter(desc.MipFilter),
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: uint16(anisotropy),
	})
	if err != nil {
		return nil, err
	}
	return &webgpuSampler{sampler: s}, nil
}

func (d *WebGPUDevice) CreatePipeline(desc *PipelineDesc) (Pipeline, error) {
	format, err := toWGPUFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	module, err := d.dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Source},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	viewDim := wgpu.TextureViewDimension2D
	if desc.CubeSampler {
		viewDim = wgpu.TextureViewDimensionCube
	}

	entries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: viewDim,
			},
		},
	}
	if desc.UniformSize > 0 {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    2,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: uint64(desc.UniformSize),
			},
		})
	}

	bgl, err := d.dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}

	layout, err := d.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, err
	}
	defer layout.Release()

	pipeline, err := d.dev.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		bgl.Release()
		return nil, err
	}

	return &webgpuPipeline{pipeline: pipeline, layout: bgl, uniformSize: desc.UniformSize}, nil
}

func (d *WebGPUDevice) Encode(label string) Encoder {
	return &webgpuEncoder{dev: d, label: label}
}

type webgpuTexture struct {
	dev    *WebGPUDevice
	tex    *wgpu.Texture
	desc   TextureDesc
	format wgpu.TextureFormat
}

func (t *webgpuTexture) Desc() TextureDesc {
	return t.desc
}

func (t *webgpuTexture) Write(mip, face int, data []byte) error {
	if t.tex == nil {
		return fmt.Errorf("texture %q already destroyed", t.desc.Label)
	}
	w := t.desc.Width >> mip
	h := t.desc.Height >> mip
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	want := w * h * t.desc.Format.PixelBytes()
	if len(data) != want {
		return fmt.Errorf("texture %q mip %d wants %d bytes, got %d", t.desc.Label, mip, want, len(data))
	}

	t.dev.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: uint32(mip),
			Origin:   wgpu.Origin3D{Z: uint32(face)},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			BytesPerRow:  uint32(w * t.desc.Format.PixelBytes()),
			RowsPerImage: uint32(h),
		},
		&wgpu.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (t *webgpuTexture) Destroy() {
	if t.tex == nil {
		return
	}
	t.tex.Release()
	t.tex = nil
}

// view creates a transient view; the caller releases it.
func (t *webgpuTexture) view(mip, face int) *wgpu.TextureView {
	desc := wgpu.TextureViewDescriptor{
		Format: t.format,
		Aspect: wgpu.TextureAspectAll,
	}
	if mip < 0 {
		desc.BaseMipLevel = 0
		desc.MipLevelCount = uint32(t.desc.MipLevelCount)
	} else {
		desc.BaseMipLevel = uint32(mip)
		desc.MipLevelCount = 1
	}
	if face < 0 && t.desc.Faces == 6 {
		desc.Dimension = wgpu.TextureViewDimensionCube
		desc.BaseArrayLayer = 0
		desc.ArrayLayerCount = 6
	} else {
		desc.Dimension = wgpu.TextureViewDimension2D
		if face > 0 {
			desc.BaseArrayLayer = uint32(face)
		}
		desc.ArrayLayerCount = 1
	}
	view, err := t.tex.CreateView(&desc)
	if err != nil {
		return nil
	}
	return view
}

type webgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *webgpuSampler) Destroy() {
	if s.sampler == nil {
		return
	}
	s.sampler.Release()
	s.sampler = nil
}

type webgpuPipeline struct {
	pipeline    *wgpu.RenderPipeline
	layout      *wgpu.BindGroupLayout
	uniformSize int
}

func (p *webgpuPipeline) Destroy() {
	if p.pipeline == nil {
		return
	}
	p.pipeline.Release()
	p.layout.Release()
	p.pipeline = nil
	p.layout = nil
}

type releaser interface {
	Release()
}

type webgpuEncoder struct {
	dev       *WebGPUDevice
	label     string
	enc       *wgpu.CommandEncoder
	err       error
	transient []releaser
}

func (e *webgpuEncoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *webgpuEncoder) Draw(p Pass) {
	if e.err != nil {
		return
	}
	if e.enc == nil {
		enc, err := e.dev.dev.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: e.label})
		if err != nil {
			e.fail(err)
			return
		}
		e.enc = enc
	}

	pipeline, ok := p.Pipeline.(*webgpuPipeline)
	if !ok {
		e.fail(fmt.Errorf("pipeline is not a webgpu pipeline"))
		return
	}
	target, ok := p.Target.(*webgpuTexture)
	if !ok {
		e.fail(fmt.Errorf("target is not a webgpu texture"))
		return
	}
	source, ok := p.Source.(*webgpuTexture)
	if !ok {
		e.fail(fmt.Errorf("source is not a webgpu texture"))
		return
	}
	sampler, ok := p.Sampler.(*webgpuSampler)
	if !ok {
		e.fail(fmt.Errorf("sampler is not a webgpu sampler"))
		return
	}

	targetView := target.view(p.TargetMip, p.TargetFace)
	if targetView == nil {
		e.fail(fmt.Errorf("could not view target %q mip %d face %d", target.desc.Label, p.TargetMip, p.TargetFace))
		return
	}
	e.transient = append(e.transient, targetView)

	sourceView := source.view(p.SourceMip, p.SourceFace)
	if sourceView == nil {
		e.fail(fmt.Errorf("could not view source %q", source.desc.Label))
		return
	}
	e.transient = append(e.transient, sourceView)

	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Sampler: sampler.sampler},
		{Binding: 1, TextureView: sourceView},
	}
	if pipeline.uniformSize > 0 {
		buf, err := e.dev.dev.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    e.label,
			Contents: p.Uniforms,
			Usage:    wgpu.BufferUsageUniform,
		})
		if err != nil {
			e.fail(err)
			return
		}
		e.transient = append(e.transient, buf)
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: 2,
			Buffer:  buf,
			Size:    uint64(len(p.Uniforms)),
		})
	}

	bindGroup, err := e.dev.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   e.label,
		Layout:  pipeline.layout,
		Entries: entries,
	})
	if err != nil {
		e.fail(err)
		return
	}
	e.transient = append(e.transient, bindGroup)

	pass := e.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: e.label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    targetView,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(pipeline.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()
}

func (e *webgpuEncoder) Submit() error {
	defer func() {
		for _, r := range e.transient {
			r.Release()
		}
		e.transient = nil
		if e.enc != nil {
			e.enc.Release()
			e.enc = nil
		}
	}()

	if e.err != nil {
		return e.err
	}
	if e.enc == nil {
		// nothing recorded
		return nil
	}

	cmd, err := e.enc.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()

	e.dev.queue.Submit(cmd)
	return nil
}
