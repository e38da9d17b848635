package libgpu_test

import (
	"errors"
	"testing"

	"envlight/libgpu"
	"envlight/libgpu/gputest"
)

func TestRegistryBuildsOnce(t *testing.T) {
	reg := libgpu.NewRegistry[int]()
	dev := gputest.NewDevice("a")

	builds := 0
	build := func(libgpu.Device) (int, error) {
		builds++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := reg.Get(dev, build)
		if err != nil {
			t.Fatal(err)
		}
		if v != 42 {
			t.Errorf("entry should be 42 but is %d", v)
		}
	}
	if builds != 1 {
		t.Errorf("builder should run once but ran %d times", builds)
	}
}

func TestRegistryKeysByIdentity(t *testing.T) {
	reg := libgpu.NewRegistry[string]()
	a := gputest.NewDevice("same")
	b := gputest.NewDevice("same")

	reg.Get(a, func(libgpu.Device) (string, error) { return "a", nil })
	reg.Get(b, func(libgpu.Device) (string, error) { return "b", nil })

	if v, _ := reg.Peek(a); v != "a" {
		t.Errorf("device a should map to its own entry but maps to %q", v)
	}
	if v, _ := reg.Peek(b); v != "b" {
		t.Errorf("device b should map to its own entry but maps to %q", v)
	}
}

func TestRegistryDoesNotCacheFailures(t *testing.T) {
	reg := libgpu.NewRegistry[int]()
	dev := gputest.NewDevice("a")

	fail := errors.New("nope")
	_, err := reg.Get(dev, func(libgpu.Device) (int, error) { return 0, fail })
	if !errors.Is(err, fail) {
		t.Fatalf("build error should propagate but is %v", err)
	}
	if _, ok := reg.Peek(dev); ok {
		t.Error("failed build should not leave an entry")
	}

	v, err := reg.Get(dev, func(libgpu.Device) (int, error) { return 1, nil })
	if err != nil || v != 1 {
		t.Errorf("retry should build a fresh entry, got %d, %v", v, err)
	}
}

func TestRegistryDropAndClear(t *testing.T) {
	reg := libgpu.NewRegistry[int]()
	a := gputest.NewDevice("a")
	b := gputest.NewDevice("b")

	reg.Get(a, func(libgpu.Device) (int, error) { return 1, nil })
	reg.Get(b, func(libgpu.Device) (int, error) { return 2, nil })

	reg.Drop(a)
	reg.Drop(a)
	if _, ok := reg.Peek(a); ok {
		t.Error("dropped entry should be gone")
	}

	disposed := []int{}
	reg.Clear(func(v int) { disposed = append(disposed, v) })
	if len(disposed) != 1 || disposed[0] != 2 {
		t.Errorf("clear should dispose the remaining entry but disposed %v", disposed)
	}
	if _, ok := reg.Peek(b); ok {
		t.Error("cleared entry should be gone")
	}
}
