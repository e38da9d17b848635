package ibl_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"envlight/ibl"
	"envlight/libgpu"
	"envlight/libgpu/gputest"
)

var errTest = errors.New("injected failure")

func makeEquirect(t *testing.T, dev *gputest.Device) (libgpu.Texture, libgpu.Sampler) {
	t.Helper()
	tex, err := dev.CreateTexture(&libgpu.TextureDesc{
		Label:         "scene.hdr",
		Width:         16,
		Height:        8,
		Faces:         1,
		MipLevelCount: 1,
		Format:        libgpu.FormatRGBA16Float,
	})
	if err != nil {
		t.Fatal(err)
	}
	sampler, err := dev.CreateSampler(&libgpu.SamplerDesc{Label: "scene.hdr"})
	if err != nil {
		t.Fatal(err)
	}
	return tex, sampler
}

func TestGeneratorCachedPerDevice(t *testing.T) {
	a := gputest.NewDevice("a")
	b := gputest.NewDevice("b")

	ga1, err := ibl.Get(a)
	if err != nil {
		t.Fatal(err)
	}
	defer ga1.Dispose()
	ga2, _ := ibl.Get(a)
	gb, err := ibl.Get(b)
	if err != nil {
		t.Fatal(err)
	}
	defer gb.Dispose()

	if ga1 != ga2 {
		t.Error("repeated lookups on one device should share a generator")
	}
	if ga1 == gb {
		t.Error("devices should not share generators")
	}
}

func TestFromEquirectangularDefaults(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()
	defer ibl.ClearBRDFCache()

	result, err := gen.FromEquirectangular(equirect, sampler)
	if err != nil {
		t.Fatal(err)
	}

	pre := result.Prefiltered.Desc()
	if pre.Width != 256 || pre.Faces != 6 {
		t.Errorf("prefiltered map should be a 256 cubemap but is %dx%d faces", pre.Width, pre.Faces)
	}
	if pre.MipLevelCount != 9 {
		t.Errorf("a 256 cubemap should carry 9 levels but carries %d", pre.MipLevelCount)
	}

	irr := result.Irradiance.Desc()
	if irr.Width != 32 || irr.Faces != 6 || irr.MipLevelCount != 1 {
		t.Errorf("irradiance map should be a single level 32 cubemap but is %+v", irr)
	}

	if result.BRDFLUT == nil {
		t.Fatal("result should carry the shared brdf table")
	}

	// the capture cubemap is working memory only
	capture := dev.Textures[1]
	if !capture.Destroyed {
		t.Error("the capture cubemap should be destroyed after generation")
	}

	// everything renders in one submission
	if len(dev.Encoders) != 1 || !dev.Encoders[0].Submitted {
		t.Fatalf("generation should submit exactly one encoder")
	}
	// 9 capture levels and 9 specular levels of 6 faces, plus 6 irradiance faces
	if want := 9*6 + 6 + 9*6; len(dev.Encoders[0].Passes) != want {
		t.Errorf("generation should record %d passes but recorded %d", want, len(dev.Encoders[0].Passes))
	}

	if got := result.MipRoughness(0); got != 0 {
		t.Errorf("level 0 roughness should be 0 but is %g", got)
	}
	if got := result.MipRoughness(8); got != 1 {
		t.Errorf("last level roughness should be 1 but is %g", got)
	}

	result.Destroy()
	if dev.Textures[2].Destroyed != true || dev.Textures[3].Destroyed != true {
		t.Error("destroying the result should destroy its cubemaps")
	}
	if dev.Textures[4].Destroyed {
		t.Error("destroying the result should keep the shared brdf table")
	}
}

func TestFromEquirectangularSizes(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()
	defer ibl.ClearBRDFCache()

	result, err := gen.FromEquirectangular(equirect, sampler,
		ibl.WithPrefilteredSize(4), ibl.WithIrradianceSize(2))
	if err != nil {
		t.Fatal(err)
	}
	defer result.Destroy()

	if got := result.Prefiltered.Desc().MipLevelCount; got != 3 {
		t.Errorf("a 4 cubemap should carry 3 levels but carries %d", got)
	}
	if got := result.Irradiance.Desc().Width; got != 2 {
		t.Errorf("irradiance size should be 2 but is %d", got)
	}
	if want := 3*6 + 6 + 3*6; len(dev.Encoders[0].Passes) != want {
		t.Errorf("generation should record %d passes but recorded %d", want, len(dev.Encoders[0].Passes))
	}
}

func TestFromEquirectangularSingleLevel(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()
	defer ibl.ClearBRDFCache()

	result, err := gen.FromEquirectangular(equirect, sampler,
		ibl.WithPrefilteredSize(1), ibl.WithIrradianceSize(1))
	if err != nil {
		t.Fatal(err)
	}
	defer result.Destroy()

	if got := result.MipRoughness(0); got != 0 {
		t.Errorf("the only level's roughness should be 0 but is %g", got)
	}

	// the single specular pass must not divide roughness by a zero level span
	passes := dev.Encoders[0].Passes
	uniforms := passes[len(passes)-1].Uniforms
	roughness := math.Float32frombits(binary.LittleEndian.Uint32(uniforms[48:]))
	if roughness != 0 {
		t.Errorf("single level roughness uniform should be 0 but is %g", roughness)
	}
}

func TestFromEquirectangularRejectsBadSizes(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()

	if _, err := gen.FromEquirectangular(equirect, sampler, ibl.WithPrefilteredSize(0)); err == nil {
		t.Error("zero sizes should be rejected")
	}
	if _, err := gen.FromEquirectangular(equirect, sampler, ibl.WithIrradianceSize(-4)); err == nil {
		t.Error("negative sizes should be rejected")
	}
}

func TestFromEquirectangularNonPow2Warns(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()
	defer ibl.ClearBRDFCache()

	// odd sizes degrade quality but still work
	result, err := gen.FromEquirectangular(equirect, sampler, ibl.WithPrefilteredSize(6))
	if err != nil {
		t.Fatal(err)
	}
	result.Destroy()
}

func TestFromEquirectangularFullFloatNeedsCapability(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	dev.Missing[libgpu.FeatureFloat32Filterable] = true
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()

	created := len(dev.Textures)
	_, err = gen.FromEquirectangular(equirect, sampler, ibl.WithFormat(libgpu.FormatRGBA32Float))

	var cerr *libgpu.CapabilityError
	if !errors.As(err, &cerr) {
		t.Fatalf("missing capability should yield a CapabilityError but got %v", err)
	}
	if len(dev.Textures) != created {
		t.Error("no texture should be created when the capability check fails")
	}
}

func TestFromEquirectangularCleansUpOnTextureFailure(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()

	// equirect(1), capture(2), prefiltered(3), irradiance fails
	dev.FailTextureAt = 4
	if _, err := gen.FromEquirectangular(equirect, sampler); err == nil {
		t.Fatal("texture failure should propagate")
	}

	live := dev.Live()
	if len(live) != 1 || live[0].D.Label != "scene.hdr" {
		t.Errorf("only the source texture should survive a failed generation, %d live", len(live))
	}
}

func TestFromEquirectangularCleansUpOnSubmitFailure(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	dev.FailSubmit = errTest
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()
	defer ibl.ClearBRDFCache()

	if _, err := gen.FromEquirectangular(equirect, sampler); err == nil {
		t.Fatal("submission failure should propagate")
	}

	// the source and the cached brdf table stay alive
	for _, tex := range dev.Live() {
		if tex.D.Label != "scene.hdr" && tex.D.Label != "brdf lut" {
			t.Errorf("texture %q should have been destroyed", tex.D.Label)
		}
	}
}

func TestFromEquirectangularPipelineRollback(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()
	defer ibl.ClearBRDFCache()

	dev.FailPipeline = errTest
	if _, err := gen.FromEquirectangular(equirect, sampler); err == nil {
		t.Fatal("pipeline failure should propagate")
	}

	// a later call starts from a clean slate and succeeds
	dev.FailPipeline = nil
	result, err := gen.FromEquirectangular(equirect, sampler)
	if err != nil {
		t.Fatal(err)
	}
	result.Destroy()
}

func TestFromEquirectangularSharesBRDF(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen.Dispose()
	defer ibl.ClearBRDFCache()

	a, err := gen.FromEquirectangular(equirect, sampler)
	if err != nil {
		t.Fatal(err)
	}
	b, err := gen.FromEquirectangular(equirect, sampler)
	if err != nil {
		t.Fatal(err)
	}

	if a.BRDFLUT != b.BRDFLUT {
		t.Error("results on one device should share the brdf table")
	}

	a.Destroy()
	if b.BRDFLUT == nil {
		t.Fatal("shared table should outlive individual results")
	}
	b.Destroy()
}

func TestGeneratorDispose(t *testing.T) {
	dev := gputest.NewDevice("gpu")
	equirect, sampler := makeEquirect(t, dev)

	gen, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer ibl.ClearBRDFCache()

	result, err := gen.FromEquirectangular(equirect, sampler)
	if err != nil {
		t.Fatal(err)
	}
	result.Destroy()

	gen.Dispose()
	gen.Dispose()

	for _, p := range dev.Pipelines {
		if !p.Destroyed {
			t.Error("dispose should destroy the pipelines")
		}
	}

	gen2, err := ibl.Get(dev)
	if err != nil {
		t.Fatal(err)
	}
	defer gen2.Dispose()
	if gen2 == gen {
		t.Error("lookup after dispose should build a new generator")
	}
}
