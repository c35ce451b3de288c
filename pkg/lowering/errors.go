package lowering

import (
	"fmt"

	"github.com/zerfoo/ztosa/pkg/tosa"
)

// UnsupportedOperatorError reports a node that cannot be lowered under the
// active spec: either no visitor is registered for its target, or its
// metadata could not be converted (Cause holds the *tosa.ConversionError).
type UnsupportedOperatorError struct {
	Node   string
	Target string
	Spec   tosa.Spec
	Cause  error
}

func (e *UnsupportedOperatorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to lower node %q (%s) for %s: %v; is the original operator %s supported?",
			e.Node, e.Target, e.Spec, e.Cause, e.Target)
	}
	return fmt.Sprintf("unsupported operator %s (node %q) for %s", e.Target, e.Node, e.Spec)
}

func (e *UnsupportedOperatorError) Unwrap() error {
	return e.Cause
}

// LayoutError reports a user input with a non-contiguous dim order.
type LayoutError struct {
	Name     string
	Expected []int
	Actual   []int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("input %q must use the contiguous dim order %v, got %v", e.Name, e.Expected, e.Actual)
}

// UnknownPlaceholderError reports a placeholder the graph signature does not
// account for.
type UnknownPlaceholderError struct {
	Name string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("placeholder %q is not an input, parameter, buffer or lifted constant", e.Name)
}

// NotImplementedError reports a placeholder category that is recognized but
// not lowered.
type NotImplementedError struct {
	Name string
	What string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s %q: not implemented", e.What, e.Name)
}
