package libgpu

// Registry caches one value per device, keyed by device identity. Entries
// are evicted explicitly via Drop or Clear; there is no GC-driven cleanup,
// so whoever tears down a device must also drop its entries. All mutation
// happens on the device's single submission path, so the registry carries
// no lock.
type Registry[T any] struct {
	entries map[Device]T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: map[Device]T{}}
}

// Get returns the cached entry for dev, building it on first use.
func (r *Registry[T]) Get(dev Device, build func(Device) (T, error)) (T, error) {
	if v, ok := r.entries[dev]; ok {
		return v, nil
	}
	v, err := build(dev)
	if err != nil {
		var zero T
		return zero, err
	}
	r.entries[dev] = v
	return v, nil
}

// Peek returns the cached entry without building one.
func (r *Registry[T]) Peek(dev Device) (T, bool) {
	v, ok := r.entries[dev]
	return v, ok
}

// Drop removes the entry for dev, if any. Dropping twice is a no-op.
func (r *Registry[T]) Drop(dev Device) {
	delete(r.entries, dev)
}

// Clear removes every entry, calling dispose on each.
func (r *Registry[T]) Clear(dispose func(T)) {
	for dev, v := range r.entries {
		delete(r.entries, dev)
		if dispose != nil {
			dispose(v)
		}
	}
}
