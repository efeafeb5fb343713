// Package maxpool2d implements the Darknet maxpool layer.
package maxpool2d

import "math"

import "github.com/lanternml/lantern/layer"
import "github.com/pkg/errors"

// MaxPool2D takes the maximum over a sliding window, per channel.
//
// Darknet geometry: the window start is offset by -padding/2 and cells
// outside the input contribute negative infinity, so with the default
// padding of size-1 the output is (in-1)/stride+1.
type MaxPool2D struct {
	in, out layer.Shape

	size    int
	stride  int
	padding int
}

// MustNew creates a new MaxPool2D layer or panics on invalid geometry.
func MustNew(in layer.Shape, size, stride, padding int) *MaxPool2D {
	o, err := New(in, size, stride, padding)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new MaxPool2D layer over the input shape in.
func New(in layer.Shape, size, stride, padding int) (*MaxPool2D, error) {
	if size <= 0 || stride <= 0 || padding < 0 {
		return nil, errors.Errorf("maxpool2d: bad geometry size=%d stride=%d padding=%d", size, stride, padding)
	}
	outH := (in.Height+padding-size)/stride + 1
	outW := (in.Width+padding-size)/stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, errors.Errorf("maxpool2d: %dx%d window does not fit input %v", size, size, in)
	}
	o := new(MaxPool2D)
	o.in = in
	o.out = layer.Shape{Height: outH, Width: outW, Channels: in.Channels}
	o.size = size
	o.stride = stride
	o.padding = padding
	return o, nil
}

// Name implements layer.Layer.
func (m *MaxPool2D) Name() string { return "maxpool" }

// InShape implements layer.Layer.
func (m *MaxPool2D) InShape() layer.Shape { return m.in }

// OutShape implements layer.Layer.
func (m *MaxPool2D) OutShape() layer.Shape { return m.out }

// Params implements layer.Layer.
func (m *MaxPool2D) Params() int { return 0 }

// Size reports the window side length.
func (m *MaxPool2D) Size() int { return m.size }

// Stride reports the pooling stride.
func (m *MaxPool2D) Stride() int { return m.stride }

// Padding reports the Darknet padding parameter.
func (m *MaxPool2D) Padding() int { return m.padding }

// Forward implements layer.Layer.
func (m *MaxPool2D) Forward(in, out []float32) {
	inH, inW, ch := m.in.Height, m.in.Width, m.in.Channels
	outH, outW := m.out.Height, m.out.Width
	off := -m.padding / 2
	neg := float32(math.Inf(-1))
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			obase := (y*outW + x) * ch
			for c := 0; c < ch; c++ {
				best := neg
				for ky := 0; ky < m.size; ky++ {
					iy := off + y*m.stride + ky
					if iy < 0 || iy >= inH {
						continue
					}
					for kx := 0; kx < m.size; kx++ {
						ix := off + x*m.stride + kx
						if ix < 0 || ix >= inW {
							continue
						}
						if v := in[(iy*inW+ix)*ch+c]; v > best {
							best = v
						}
					}
				}
				out[obase+c] = best
			}
		}
	}
}
