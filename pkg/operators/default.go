package operators

import (
	"github.com/zerfoo/ztosa/pkg/tosa"
)

func binaryVisitor(target string, op tosa.Op) Registration {
	return Registration{
		Target: target,
		New: func(spec tosa.Spec) Visitor {
			return &binary{target: target, op: op, spec: spec}
		},
	}
}

func identityVisitor(target string) Registration {
	return Registration{
		Target: target,
		New:    func(tosa.Spec) Visitor { return identity{target: target} },
	}
}

// Default returns the built-in visitor registrations.
func Default() []Registration {
	return []Registration{
		binaryVisitor("aten.add.Tensor", tosa.OpAdd),
		binaryVisitor("aten.sub.Tensor", tosa.OpSub),
		binaryVisitor("aten.maximum.default", tosa.OpMaximum),
		binaryVisitor("aten.minimum.default", tosa.OpMinimum),
		{
			Target: "aten.mul.Tensor",
			New:    func(spec tosa.Spec) Visitor { return &mul{spec: spec} },
		},
		{
			Target: "aten.relu.default",
			New:    func(spec tosa.Spec) Visitor { return &relu{spec: spec} },
		},
		{
			Target: "aten.permute_copy.default",
			New:    func(tosa.Spec) Visitor { return permute{} },
		},
		{
			Target: "aten.view_copy.default",
			New:    func(spec tosa.Spec) Visitor { return reshape{spec: spec} },
		},
		identityVisitor("aten.clone.default"),
		identityVisitor("aten.alias_copy.default"),
	}
}

// DefaultRegistry builds a registry of the built-in visitors for spec.
func DefaultRegistry(spec tosa.Spec) (*Registry, error) {
	return NewRegistry(spec, Default()...)
}
