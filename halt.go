package reactor

import "errors"

// haltError is the sentinel carried by a transform that wants to stop an
// emission from propagating any further along the current edge.
type haltError struct {
	reason string
}

func (h *haltError) Error() string {
	if h.reason == "" {
		return "reactor: halt"
	}
	return "reactor: halt: " + h.reason
}

// Halt builds the error a transform returns to suppress propagation along
// its edge. The emission is dropped silently (logged at info level by the
// scheduler); it never reaches the call site as a returned error.
func Halt(reason string) error {
	return &haltError{reason: reason}
}

// IsHalt reports whether err (or something it wraps) is a Halt, and returns
// the reason it carried.
func IsHalt(err error) (reason string, ok bool) {
	var h *haltError
	if errors.As(err, &h) {
		return h.reason, true
	}
	return "", false
}
