package libgpu

// Device is one logical GPU with a single command submission timeline.
// Implementations are compared by identity in the per-device registries,
// so a Device must be a pointer value.
type Device interface {
	Label() string
	// Supports reports whether an optional capability is available.
	Supports(Feature) bool
	// Renderable reports whether the format can be used as a render target.
	Renderable(Format) bool

	CreateTexture(*TextureDesc) (Texture, error)
	CreateSampler(*SamplerDesc) (Sampler, error)
	CreatePipeline(*PipelineDesc) (Pipeline, error)

	// Encode opens a command encoder; all passes drawn into it are
	// submitted as one unit.
	Encode(label string) Encoder
}

// Texture is a caller-owned GPU texture. Destroy releases the backing
// memory and is idempotent.
type Texture interface {
	Desc() TextureDesc
	// Write uploads tightly packed pixel bytes into one mip of one face.
	Write(mip, face int, data []byte) error
	Destroy()
}

type Sampler interface {
	Destroy()
}

type Pipeline interface {
	Destroy()
}

type Encoder interface {
	Draw(Pass)
	// Submit finishes the encoder and hands the recorded passes to the
	// device queue. The encoder must not be reused afterwards.
	Submit() error
}
