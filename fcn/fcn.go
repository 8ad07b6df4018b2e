// Package fcn provides make_fcn-style closures (§2 "make_fcn"): small
// callables that map a set of parameter overrides to a scalar or vector
// observation, reusing a single already-built graph/output pair rather
// than reconstructing one per call. Typical use: feeding an external
// minimizer that repeatedly asks "what is y at this parameter point".
package fcn

import (
	"fmt"

	"github.com/dagops/dflow/core"
	"github.com/dagops/dflow/parameter"
)

// Fcn maps a slice of parameter values (one per watched Parameter, same
// order) to the current value of an observed Output.
type Fcn func(values []float64) ([]float64, error)

// Make builds a Fcn closed over pars (the parameters it may override)
// and y (the Output it reads back). Each call writes values into pars in
// order, then reads y, returning a defensive copy.
func Make(pars []*parameter.Parameter, y *core.Output) Fcn {
	return func(values []float64) ([]float64, error) {
		if len(values) != len(pars) {
			return nil, fmt.Errorf("fcn: expected %d values, got %d: %w", len(pars), len(values), core.ErrCalculation)
		}
		for i, p := range pars {
			if err := p.SetValue(values[i]); err != nil {
				return nil, err
			}
		}
		data, err := y.Data()
		if err != nil {
			return nil, err
		}
		return append([]float64(nil), data...), nil
	}
}

// MakeScalar is Make specialized for a single-element y, returning a bare
// float64 instead of a length-1 slice — the common case for a likelihood
// or chi-square wrapper.
func MakeScalar(pars []*parameter.Parameter, y *core.Output) func(values []float64) (float64, error) {
	base := Make(pars, y)
	return func(values []float64) (float64, error) {
		data, err := base(values)
		if err != nil {
			return 0, err
		}
		if len(data) != 1 {
			return 0, fmt.Errorf("fcn: observed output has %d elements, want 1: %w", len(data), core.ErrCalculation)
		}
		return data[0], nil
	}
}
