package lowering

import (
	"github.com/zerfoo/ztosa/pkg/graph"
)

// PlaceholderKind is the role of a placeholder node.
type PlaceholderKind int

const (
	KindUnknown PlaceholderKind = iota
	KindUserInput
	KindParameter
	KindBuffer
	KindLiftedConstant
	KindLiftedCustomObject
)

func (k PlaceholderKind) String() string {
	switch k {
	case KindUserInput:
		return "user input"
	case KindParameter:
		return "parameter"
	case KindBuffer:
		return "buffer"
	case KindLiftedConstant:
		return "lifted constant"
	case KindLiftedCustomObject:
		return "lifted custom object"
	}
	return "unknown"
}

// Classify returns the role of a placeholder. Checks run in a fixed order and
// the first match wins, so a name listed in several signature sections gets
// exactly one kind.
func Classify(p *graph.ExportedProgram, n *graph.Node) PlaceholderKind {
	switch {
	case p.IsUserInput(n):
		return KindUserInput
	case p.IsParameter(n):
		return KindParameter
	case p.IsBuffer(n):
		return KindBuffer
	case p.IsLiftedConstant(n):
		return KindLiftedConstant
	case p.IsLiftedCustomObject(n):
		return KindLiftedCustomObject
	}
	return KindUnknown
}
