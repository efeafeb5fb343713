// Package predictor assembles layers into a runnable forward-inference pipeline.
package predictor

import "github.com/lanternml/lantern/layer"
import "github.com/pkg/errors"

// Predictor is an in-memory, invocable representation of a network.
// It reuses two scratch buffers across layers, so a Predictor is not safe
// for concurrent use; Clone returns an independent instance sharing the
// read-only layer weights.
type Predictor struct {
	layers []layer.Layer
	in     layer.Shape
	out    layer.Shape

	bufA []float32
	bufB []float32
}

// New creates a Predictor from an ordered list of layers. Every layer's
// input shape must have the size of the previous layer's output shape.
func New(layers ...layer.Layer) (*Predictor, error) {
	if len(layers) == 0 {
		return nil, errors.New("predictor: no layers")
	}
	max := 0
	for i, l := range layers {
		if i > 0 && l.InShape().Size() != layers[i-1].OutShape().Size() {
			return nil, errors.Errorf("predictor: layer %d (%s) wants input %v, previous layer produces %v",
				i, l.Name(), l.InShape(), layers[i-1].OutShape())
		}
		if n := l.OutShape().Size(); n > max {
			max = n
		}
		if n := l.InShape().Size(); n > max {
			max = n
		}
	}
	p := new(Predictor)
	p.layers = layers
	p.in = layers[0].InShape()
	p.out = layers[len(layers)-1].OutShape()
	p.bufA = make([]float32, max)
	p.bufB = make([]float32, max)
	return p, nil
}

// InShape reports the shape of the expected input.
func (p *Predictor) InShape() layer.Shape { return p.in }

// OutShape reports the shape of the produced output.
func (p *Predictor) OutShape() layer.Shape { return p.out }

// Layers exposes the ordered layer pipeline.
func (p *Predictor) Layers() []layer.Layer { return p.layers }

// Params reports the total number of learned parameters in the network.
func (p *Predictor) Params() (n int) {
	for _, l := range p.layers {
		n += l.Params()
	}
	return
}

// Predict runs the input through every layer and returns a fresh output
// slice. The input must be the flattened HWC volume of InShape().
func (p *Predictor) Predict(input []float32) ([]float32, error) {
	if len(input) != p.in.Size() {
		return nil, errors.Errorf("predictor: input wants %d values (%v), got %d",
			p.in.Size(), p.in, len(input))
	}
	src, dst := p.bufA, p.bufB
	copy(src, input)
	for _, l := range p.layers {
		l.Forward(src[:l.InShape().Size()], dst[:l.OutShape().Size()])
		src, dst = dst, src
	}
	out := make([]float32, p.out.Size())
	copy(out, src)
	return out, nil
}

// Clone returns an independent Predictor over the same layers.
func (p *Predictor) Clone() *Predictor {
	c := new(Predictor)
	c.layers = p.layers
	c.in = p.in
	c.out = p.out
	c.bufA = make([]float32, len(p.bufA))
	c.bufB = make([]float32, len(p.bufB))
	return c
}
