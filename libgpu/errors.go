package libgpu

import "fmt"

// CapabilityError reports a request the device cannot satisfy. It is
// raised before any GPU resource is allocated and is never downgraded to
// a fallback.
type CapabilityError struct {
	Device string
	Msg    string
	Err    error
}

func (e *CapabilityError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("device %q: %s", e.Device, e.Msg)
	}
	return e.Msg
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// ResourceError reports a failed allocation or pipeline build. Whatever
// partial resources the failing operation created have already been
// destroyed when the error propagates.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
