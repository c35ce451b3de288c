package tosa

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvariant marks a violated internal invariant: a bug upstream (for
// example in the exporter), never something a caller can fix by retrying.
var ErrInvariant = errors.New("internal invariant violated")

// Invariantf returns an error wrapping ErrInvariant.
func Invariantf(format string, args ...any) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}

// ConversionError reports node metadata that cannot be expressed as a TOSA
// argument.
type ConversionError struct {
	Name   string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to a TOSA argument: %s", e.Name, e.Reason)
}

// CapabilityError reports a request the active spec cannot serve, such as a
// float tensor under an integer-only profile.
type CapabilityError struct {
	Spec Spec
	Name string
	What string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s doesn't support %s (node %q)", e.Spec, e.What, e.Name)
}

// UnsupportedSpecError reports an unrecognized spec variant.
type UnsupportedSpecError struct {
	Spec   string
	Reason string
}

func (e *UnsupportedSpecError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported TOSA spec %q: %s", e.Spec, e.Reason)
	}
	return fmt.Sprintf("unsupported TOSA spec %q", e.Spec)
}
