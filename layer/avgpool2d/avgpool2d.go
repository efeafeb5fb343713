// Package avgpool2d implements the Darknet avgpool layer.
package avgpool2d

import "github.com/lanternml/lantern/layer"
import "github.com/pkg/errors"

// AvgPool2D is a global average pool: it reduces an HxWxC volume to 1x1xC
// by taking the arithmetic mean of each channel. The Darknet [avgpool]
// section has no parameters.
type AvgPool2D struct {
	in, out layer.Shape
}

// MustNew creates a new AvgPool2D layer or panics on an empty input shape.
func MustNew(in layer.Shape) *AvgPool2D {
	o, err := New(in)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new AvgPool2D layer over the input shape in.
func New(in layer.Shape) (*AvgPool2D, error) {
	if in.Size() == 0 {
		return nil, errors.Errorf("avgpool2d: empty input shape %v", in)
	}
	o := new(AvgPool2D)
	o.in = in
	o.out = layer.Shape{Height: 1, Width: 1, Channels: in.Channels}
	return o, nil
}

// Name implements layer.Layer.
func (a *AvgPool2D) Name() string { return "avgpool" }

// InShape implements layer.Layer.
func (a *AvgPool2D) InShape() layer.Shape { return a.in }

// OutShape implements layer.Layer.
func (a *AvgPool2D) OutShape() layer.Shape { return a.out }

// Params implements layer.Layer.
func (a *AvgPool2D) Params() int { return 0 }

// Forward implements layer.Layer.
func (a *AvgPool2D) Forward(in, out []float32) {
	ch := a.in.Channels
	cells := a.in.Height * a.in.Width
	inv := float32(1) / float32(cells)
	for c := 0; c < ch; c++ {
		sum := float32(0)
		for i := 0; i < cells; i++ {
			sum += in[i*ch+c]
		}
		out[c] = sum * inv
	}
}
