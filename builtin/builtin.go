// Package builtin contains plugins implemented in Go, hosted without any
// plugin format in between.
package builtin

import "github.com/vsariola/hostcore"

// Register adds the builtin plugin kinds to the registry.
func Register(r *hostcore.Registry) error {
	for _, k := range []struct {
		kind string
		c    hostcore.Constructor
	}{
		{"gain", NewGain},
		{"delay", NewDelay},
		{"sine", NewSine},
	} {
		if err := r.Register(k.kind, k.c); err != nil {
			return err
		}
	}
	return nil
}

func clampParam(p hostcore.ParameterInfo, v float32) float32 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}
