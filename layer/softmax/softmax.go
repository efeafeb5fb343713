// Package softmax implements the Darknet softmax layer.
package softmax

import "math"

import "github.com/lanternml/lantern/layer"
import "github.com/pkg/errors"

// Softmax normalizes its input into a probability distribution. With
// groups > 1 the input is split into that many contiguous groups and each
// group is normalized independently.
type Softmax struct {
	in     layer.Shape
	groups int
}

// MustNew creates a new Softmax layer or panics on invalid geometry.
func MustNew(in layer.Shape, groups int) *Softmax {
	o, err := New(in, groups)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new Softmax layer over the flattened input shape in.
func New(in layer.Shape, groups int) (*Softmax, error) {
	if groups <= 0 {
		groups = 1
	}
	if in.Size() == 0 {
		return nil, errors.Errorf("softmax: empty input shape %v", in)
	}
	if in.Size()%groups != 0 {
		return nil, errors.Errorf("softmax: input size %d not divisible into %d groups", in.Size(), groups)
	}
	o := new(Softmax)
	o.in = in
	o.groups = groups
	return o, nil
}

// Name implements layer.Layer.
func (s *Softmax) Name() string { return "softmax" }

// InShape implements layer.Layer.
func (s *Softmax) InShape() layer.Shape { return s.in }

// OutShape implements layer.Layer.
func (s *Softmax) OutShape() layer.Shape { return s.in }

// Params implements layer.Layer.
func (s *Softmax) Params() int { return 0 }

// Groups reports the number of independent normalization groups.
func (s *Softmax) Groups() int { return s.groups }

// Forward implements layer.Layer. The largest element of each group is
// subtracted before exponentiation to keep the computation stable.
func (s *Softmax) Forward(in, out []float32) {
	per := s.in.Size() / s.groups
	for g := 0; g < s.groups; g++ {
		i0, i1 := g*per, (g+1)*per
		max := in[i0]
		for _, v := range in[i0+1 : i1] {
			if v > max {
				max = v
			}
		}
		sum := float64(0)
		for i := i0; i < i1; i++ {
			e := math.Exp(float64(in[i] - max))
			out[i] = float32(e)
			sum += e
		}
		inv := float32(1 / sum)
		for i := i0; i < i1; i++ {
			out[i] *= inv
		}
	}
}
