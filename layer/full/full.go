// Package full implements the Darknet connected (fully connected) layer.
package full

import "github.com/lanternml/lantern/layer"
import "github.com/pkg/errors"

// Full is a fully connected layer: out = act(W*in + b) with W stored
// row-major, one row per output.
type Full struct {
	in, out layer.Shape

	inputs  int
	outputs int

	weights []float32 // outputs*inputs, row-major
	bias    []float32

	act layer.Activation
}

// MustNew creates a new Full layer or panics on invalid geometry.
func MustNew(in layer.Shape, outputs int, act layer.Activation) *Full {
	o, err := New(in, outputs, act)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new Full layer consuming the flattened input shape in.
func New(in layer.Shape, outputs int, act layer.Activation) (*Full, error) {
	if outputs <= 0 {
		return nil, errors.Errorf("full: bad output count %d", outputs)
	}
	if in.Size() == 0 {
		return nil, errors.Errorf("full: empty input shape %v", in)
	}
	o := new(Full)
	o.in = in
	o.out = layer.Shape{Height: 1, Width: 1, Channels: outputs}
	o.inputs = in.Size()
	o.outputs = outputs
	o.weights = make([]float32, outputs*o.inputs)
	o.bias = make([]float32, outputs)
	o.act = act
	return o, nil
}

// Name implements layer.Layer.
func (f *Full) Name() string { return "connected" }

// InShape implements layer.Layer.
func (f *Full) InShape() layer.Shape { return f.in }

// OutShape implements layer.Layer.
func (f *Full) OutShape() layer.Shape { return f.out }

// Params implements layer.Layer.
func (f *Full) Params() int { return len(f.weights) + len(f.bias) }

// Inputs reports the flattened input width.
func (f *Full) Inputs() int { return f.inputs }

// Outputs reports the output width.
func (f *Full) Outputs() int { return f.outputs }

// Activation reports the layer activation.
func (f *Full) Activation() layer.Activation { return f.act }

// WeightsData exposes the row-major weight matrix.
func (f *Full) WeightsData() []float32 { return f.weights }

// Bias exposes the bias vector.
func (f *Full) Bias() []float32 { return f.bias }

// SetWeights installs the row-major weight matrix and bias vector.
func (f *Full) SetWeights(weights, bias []float32) error {
	if len(weights) != len(f.weights) {
		return errors.Errorf("full: want %d weights, got %d", len(f.weights), len(weights))
	}
	if len(bias) != len(f.bias) {
		return errors.Errorf("full: want %d biases, got %d", len(f.bias), len(bias))
	}
	copy(f.weights, weights)
	copy(f.bias, bias)
	return nil
}

// PermuteColumns reorders every weight row through perm, where perm[i] is
// the old column feeding new column i. The importer uses this to convert
// Darknet CHW-flattened weight rows to the HWC order the runtime uses.
func (f *Full) PermuteColumns(perm []int) error {
	if len(perm) != f.inputs {
		return errors.Errorf("full: permutation wants %d entries, got %d", f.inputs, len(perm))
	}
	row := make([]float32, f.inputs)
	for o := 0; o < f.outputs; o++ {
		base := o * f.inputs
		copy(row, f.weights[base:base+f.inputs])
		for i, src := range perm {
			f.weights[base+i] = row[src]
		}
	}
	return nil
}

// Forward implements layer.Layer.
func (f *Full) Forward(in, out []float32) {
	for o := 0; o < f.outputs; o++ {
		sum := f.bias[o]
		row := f.weights[o*f.inputs : (o+1)*f.inputs]
		for i, w := range row {
			sum += w * in[i]
		}
		out[o] = f.act.At(sum)
	}
}
