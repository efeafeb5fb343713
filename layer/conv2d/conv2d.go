// Package conv2d implements the Darknet convolutional layer.
package conv2d

import "math"

import "github.com/lanternml/lantern/layer"
import "github.com/pkg/errors"

// Conv2D is a 2D convolution with per-filter bias and an elementwise
// activation. Batch normalization, when the config asks for it, is folded
// into the kernel and bias at import time, so the layer itself only
// convolves.
type Conv2D struct {
	in, out layer.Shape

	filters int
	size    int
	stride  int
	padding int

	// kernel holds filters*channels*size*size values in Darknet order:
	// [filter][channel][row][col].
	kernel []float32
	bias   []float32

	act layer.Activation
}

// MustNew creates a new Conv2D layer or panics on invalid geometry.
func MustNew(in layer.Shape, filters, size, stride, padding int, act layer.Activation) *Conv2D {
	o, err := New(in, filters, size, stride, padding, act)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new Conv2D layer over the input shape in.
func New(in layer.Shape, filters, size, stride, padding int, act layer.Activation) (*Conv2D, error) {
	if filters <= 0 || size <= 0 || stride <= 0 || padding < 0 {
		return nil, errors.Errorf("conv2d: bad geometry filters=%d size=%d stride=%d padding=%d",
			filters, size, stride, padding)
	}
	outH := (in.Height+2*padding-size)/stride + 1
	outW := (in.Width+2*padding-size)/stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, errors.Errorf("conv2d: %dx%d kernel does not fit input %v", size, size, in)
	}
	o := new(Conv2D)
	o.in = in
	o.out = layer.Shape{Height: outH, Width: outW, Channels: filters}
	o.filters = filters
	o.size = size
	o.stride = stride
	o.padding = padding
	o.kernel = make([]float32, filters*in.Channels*size*size)
	o.bias = make([]float32, filters)
	o.act = act
	return o, nil
}

// Name implements layer.Layer.
func (c *Conv2D) Name() string { return "convolutional" }

// InShape implements layer.Layer.
func (c *Conv2D) InShape() layer.Shape { return c.in }

// OutShape implements layer.Layer.
func (c *Conv2D) OutShape() layer.Shape { return c.out }

// Params implements layer.Layer.
func (c *Conv2D) Params() int { return len(c.kernel) + len(c.bias) }

// Filters reports the number of output filters.
func (c *Conv2D) Filters() int { return c.filters }

// KernelSize reports the square kernel side length.
func (c *Conv2D) KernelSize() int { return c.size }

// Stride reports the convolution stride.
func (c *Conv2D) Stride() int { return c.stride }

// Padding reports the implicit zero padding on each border.
func (c *Conv2D) Padding() int { return c.padding }

// Activation reports the layer activation.
func (c *Conv2D) Activation() layer.Activation { return c.act }

// Kernel exposes the kernel weights in Darknet [filter][channel][row][col] order.
func (c *Conv2D) Kernel() []float32 { return c.kernel }

// Bias exposes the per-filter biases.
func (c *Conv2D) Bias() []float32 { return c.bias }

// SetWeights installs kernel weights and biases, in Darknet order.
func (c *Conv2D) SetWeights(kernel, bias []float32) error {
	if len(kernel) != len(c.kernel) {
		return errors.Errorf("conv2d: want %d kernel weights, got %d", len(c.kernel), len(kernel))
	}
	if len(bias) != len(c.bias) {
		return errors.Errorf("conv2d: want %d biases, got %d", len(c.bias), len(bias))
	}
	copy(c.kernel, kernel)
	copy(c.bias, bias)
	return nil
}

// FoldBatchNorm folds batch-normalization statistics into the kernel and
// bias, so that inference needs no separate normalization pass:
//
//	w' = w * scale / sqrt(variance + eps)
//	b' = (b - mean) * scale / sqrt(variance + eps)
func (c *Conv2D) FoldBatchNorm(scales, means, variances []float32, eps float32) error {
	if len(scales) != c.filters || len(means) != c.filters || len(variances) != c.filters {
		return errors.Errorf("conv2d: batchnorm stats want %d values per tensor, got %d/%d/%d",
			c.filters, len(scales), len(means), len(variances))
	}
	per := len(c.kernel) / c.filters
	for f := 0; f < c.filters; f++ {
		k := scales[f] / float32(math.Sqrt(float64(variances[f]+eps)))
		for i := f * per; i < (f+1)*per; i++ {
			c.kernel[i] *= k
		}
		c.bias[f] = (c.bias[f] - means[f]) * k
	}
	return nil
}

// Forward implements layer.Layer.
func (c *Conv2D) Forward(in, out []float32) {
	inH, inW, inC := c.in.Height, c.in.Width, c.in.Channels
	outH, outW := c.out.Height, c.out.Width
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			obase := (y*outW + x) * c.filters
			for f := 0; f < c.filters; f++ {
				sum := c.bias[f]
				for ch := 0; ch < inC; ch++ {
					wbase := (f*inC + ch) * c.size * c.size
					for ky := 0; ky < c.size; ky++ {
						iy := y*c.stride + ky - c.padding
						if iy < 0 || iy >= inH {
							continue
						}
						for kx := 0; kx < c.size; kx++ {
							ix := x*c.stride + kx - c.padding
							if ix < 0 || ix >= inW {
								continue
							}
							sum += c.kernel[wbase+ky*c.size+kx] * in[(iy*inW+ix)*inC+ch]
						}
					}
				}
				out[obase+f] = c.act.At(sum)
			}
		}
	}
}
