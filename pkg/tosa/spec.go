package tosa

import (
	"fmt"
	"strings"
)

// WireVersion is the version stamped into a serialized graph.
type WireVersion struct {
	Major, Minor, Patch int32
}

func (v WireVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Spec is the active TOSA specification: one of SpecV0 or SpecV1. The set of
// variants is closed; a lowering session is tied to exactly one.
type Spec interface {
	fmt.Stringer
	// WireVersion is the version written into serialized graphs.
	WireVersion() WireVersion
	SupportsFloat() bool
	SupportsInteger() bool
	isSpec()
}

// SpecV0 is TOSA 0.80 with either the base inference (BI) or main inference
// (MI) profile. MI includes BI.
type SpecV0 struct {
	MI bool
}

func (s SpecV0) String() string {
	if s.MI {
		return "TOSA-0.80+MI"
	}
	return "TOSA-0.80+BI"
}

func (SpecV0) WireVersion() WireVersion {
	return WireVersion{Major: 0, Minor: 80}
}

func (s SpecV0) SupportsFloat() bool {
	return s.MI
}

func (SpecV0) SupportsInteger() bool {
	return true
}

func (SpecV0) isSpec() {}

// SpecV1 is TOSA 1.0 with any combination of the INT and FP profiles.
type SpecV1 struct {
	INT bool
	FP  bool
}

func (s SpecV1) String() string {
	var b strings.Builder
	b.WriteString("TOSA-1.0")
	if s.INT {
		b.WriteString("+INT")
	}
	if s.FP {
		b.WriteString("+FP")
	}
	return b.String()
}

func (SpecV1) WireVersion() WireVersion {
	return WireVersion{Major: 1, Minor: 0}
}

func (s SpecV1) SupportsFloat() bool {
	return s.FP
}

func (s SpecV1) SupportsInteger() bool {
	return s.INT
}

func (SpecV1) isSpec() {}

// ParseSpec parses strings like "TOSA-0.80+BI" or "TOSA-1.0+INT+FP".
func ParseSpec(s string) (Spec, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	version, ok := strings.CutPrefix(parts[0], "TOSA-")
	if !ok || len(parts) < 2 {
		return nil, &UnsupportedSpecError{Spec: s}
	}
	profiles := parts[1:]

	switch version {
	case "0.80", "0.80.0":
		if len(profiles) != 1 {
			return nil, &UnsupportedSpecError{Spec: s, Reason: "TOSA 0.80 takes exactly one profile"}
		}
		switch profiles[0] {
		case "BI":
			return SpecV0{}, nil
		case "MI":
			return SpecV0{MI: true}, nil
		}
	case "1.0", "1.0.0":
		var spec SpecV1
		for _, p := range profiles {
			switch p {
			case "INT":
				spec.INT = true
			case "FP":
				spec.FP = true
			default:
				// Extensions (u55, int16, ...) do not change lowering here.
				if strings.ToLower(p) != p {
					return nil, &UnsupportedSpecError{Spec: s, Reason: fmt.Sprintf("unknown profile %q", p)}
				}
			}
		}
		if spec.INT || spec.FP {
			return spec, nil
		}
	}
	return nil, &UnsupportedSpecError{Spec: s}
}
