// Package compile lowers model maps into compiled programs: per-layer
// fused kernels over preallocated buffers, with an optional BLAS-backed
// linear-algebra path, a numeric precision choice, and a Go source-code
// emitter for ahead-of-time deployment.
package compile

import (
	"github.com/pkg/errors"

	"github.com/lanternml/lantern/layer"
	"github.com/lanternml/lantern/layer/avgpool2d"
	"github.com/lanternml/lantern/layer/conv2d"
	"github.com/lanternml/lantern/layer/full"
	"github.com/lanternml/lantern/layer/maxpool2d"
	"github.com/lanternml/lantern/layer/softmax"
	"github.com/lanternml/lantern/model"
)

// step is one lowered layer: a fused kernel with fixed input and output
// sizes.
type step struct {
	name    string
	inSize  int
	outSize int
	run     func(in, out []float32)
}

// CompiledMap is a compiled, callable model. Its kernels reuse buffers
// allocated at compile time, so a CompiledMap is not safe for concurrent
// use.
type CompiledMap struct {
	id       string
	module   string
	function string
	opts     Options

	in, out layer.Shape
	layers  []layer.Layer
	steps   []step

	bufA, bufB []float32
}

// Compile lowers a map for the given target platform into a callable
// program. Only the "host" target is supported. module and function name
// the emitted artifact; an empty function name falls back to the map's
// function prefix plus "Predict". Results are cached per map, name and
// option set.
func Compile(m *model.Map, target, module, function string, opts Options) (*CompiledMap, error) {
	if target != "host" {
		return nil, errors.Wrapf(ErrBadTarget, "%q", target)
	}
	if module == "" {
		module = "model"
	}
	if function == "" {
		function = m.FunctionPrefix() + "Predict"
	}
	if !validName(module) {
		return nil, errors.Wrapf(ErrBadName, "module %q", module)
	}
	if !validName(function) {
		return nil, errors.Wrapf(ErrBadName, "function %q", function)
	}

	if c, ok := cacheGet(m.ID(), module, function, opts); ok {
		return c, nil
	}

	p, err := m.Predictor()
	if err != nil {
		return nil, err
	}

	c := new(CompiledMap)
	c.id = m.ID()
	c.module = module
	c.function = function
	c.opts = opts
	c.in = p.InShape()
	c.out = p.OutShape()
	c.layers = p.Layers()

	max := c.in.Size()
	for _, l := range c.layers {
		s, err := lower(l, opts)
		if err != nil {
			return nil, err
		}
		c.steps = append(c.steps, s)
		if s.inSize > max {
			max = s.inSize
		}
		if s.outSize > max {
			max = s.outSize
		}
	}
	c.bufA = make([]float32, max)
	c.bufB = make([]float32, max)

	cachePut(m.ID(), module, function, opts, c)
	return c, nil
}

// Module reports the module name the map was compiled under.
func (c *CompiledMap) Module() string { return c.module }

// Function reports the generated function name.
func (c *CompiledMap) Function() string { return c.function }

// Options reports the compiler options the map was lowered with.
func (c *CompiledMap) Options() Options { return c.opts }

// InShape reports the shape of the expected input.
func (c *CompiledMap) InShape() layer.Shape { return c.in }

// OutShape reports the shape of the produced output.
func (c *CompiledMap) OutShape() layer.Shape { return c.out }

// Compute runs the compiled program on a flattened HWC input and returns
// a fresh output slice.
func (c *CompiledMap) Compute(input []float32) ([]float32, error) {
	if len(input) != c.in.Size() {
		return nil, errors.Errorf("compile: input wants %d values (%v), got %d",
			c.in.Size(), c.in, len(input))
	}
	src, dst := c.bufA, c.bufB
	copy(src, input)
	for _, s := range c.steps {
		s.run(src[:s.inSize], dst[:s.outSize])
		src, dst = dst, src
	}
	out := make([]float32, c.out.Size())
	copy(out, src)
	return out, nil
}

func lower(l layer.Layer, opts Options) (step, error) {
	switch t := l.(type) {
	case *conv2d.Conv2D:
		return lowerConv(t, opts), nil
	case *maxpool2d.MaxPool2D:
		return lowerDirect(t), nil
	case *avgpool2d.AvgPool2D:
		return lowerAvgPool(t, opts), nil
	case *full.Full:
		return lowerFull(t, opts), nil
	case *softmax.Softmax:
		return lowerDirect(t), nil
	}
	return step{}, errors.Wrapf(ErrUnsupported, "%T", l)
}

// lowerConv lowers a convolution to im2col plus one matrix product per
// call, with bias add and activation fused into the store.
func lowerConv(c *conv2d.Conv2D, opts Options) step {
	in, out := c.InShape(), c.OutShape()
	m := out.Height * out.Width
	n := c.Filters()
	k := in.Channels * c.KernelSize() * c.KernelSize()
	size, stride, padding := c.KernelSize(), c.Stride(), c.Padding()
	bias := c.Bias()
	act := c.Activation()

	if opts.UseBLAS || opts.Precision == Float64 {
		w := make([]float64, k*n)
		for f := 0; f < n; f++ {
			for p := 0; p < k; p++ {
				w[p*n+f] = float64(c.Kernel()[f*k+p])
			}
		}
		col := make([]float64, m*k)
		scratch := make([]float64, m*n)
		run := func(src, dst []float32) {
			im2col64(src, in, size, stride, padding, out.Height, out.Width, col)
			if opts.UseBLAS {
				gemmBLAS(m, n, k, col, w, scratch)
			} else {
				gemm64(m, n, k, col, w, scratch, opts.Parallelism)
			}
			for i := 0; i < m; i++ {
				for f := 0; f < n; f++ {
					dst[i*n+f] = float32(act.At64(scratch[i*n+f] + float64(bias[f])))
				}
			}
		}
		return step{name: c.Name(), inSize: in.Size(), outSize: out.Size(), run: run}
	}

	w := make([]float32, k*n)
	for f := 0; f < n; f++ {
		for p := 0; p < k; p++ {
			w[p*n+f] = c.Kernel()[f*k+p]
		}
	}
	col := make([]float32, m*k)
	scratch := make([]float32, m*n)
	run := func(src, dst []float32) {
		im2col32(src, in, size, stride, padding, out.Height, out.Width, col)
		gemm32(m, n, k, col, w, scratch, opts.Parallelism)
		for i := 0; i < m; i++ {
			for f := 0; f < n; f++ {
				dst[i*n+f] = act.At(scratch[i*n+f] + bias[f])
			}
		}
	}
	return step{name: c.Name(), inSize: in.Size(), outSize: out.Size(), run: run}
}

// lowerFull lowers a connected layer to a single vector-matrix product.
func lowerFull(f *full.Full, opts Options) step {
	k := f.Inputs()
	n := f.Outputs()
	bias := f.Bias()
	act := f.Activation()

	if opts.UseBLAS || opts.Precision == Float64 {
		w := make([]float64, k*n)
		for o := 0; o < n; o++ {
			for p := 0; p < k; p++ {
				w[p*n+o] = float64(f.WeightsData()[o*k+p])
			}
		}
		a := make([]float64, k)
		scratch := make([]float64, n)
		run := func(src, dst []float32) {
			for i, v := range src {
				a[i] = float64(v)
			}
			if opts.UseBLAS {
				gemmBLAS(1, n, k, a, w, scratch)
			} else {
				gemm64(1, n, k, a, w, scratch, 0)
			}
			for o := 0; o < n; o++ {
				dst[o] = float32(act.At64(scratch[o] + float64(bias[o])))
			}
		}
		return step{name: f.Name(), inSize: k, outSize: n, run: run}
	}

	w := make([]float32, k*n)
	for o := 0; o < n; o++ {
		for p := 0; p < k; p++ {
			w[p*n+o] = f.WeightsData()[o*k+p]
		}
	}
	scratch := make([]float32, n)
	run := func(src, dst []float32) {
		gemm32(1, n, k, src, w, scratch, 0)
		for o := 0; o < n; o++ {
			dst[o] = act.At(scratch[o] + bias[o])
		}
	}
	return step{name: f.Name(), inSize: k, outSize: n, run: run}
}

// lowerAvgPool lowers the global average pool; the double-precision
// pipeline accumulates channel sums in float64.
func lowerAvgPool(a *avgpool2d.AvgPool2D, opts Options) step {
	in := a.InShape()
	ch := in.Channels
	cells := in.Height * in.Width

	if opts.Precision == Float64 {
		run := func(src, dst []float32) {
			inv := 1 / float64(cells)
			for c := 0; c < ch; c++ {
				sum := float64(0)
				for i := 0; i < cells; i++ {
					sum += float64(src[i*ch+c])
				}
				dst[c] = float32(sum * inv)
			}
		}
		return step{name: a.Name(), inSize: in.Size(), outSize: ch, run: run}
	}
	return lowerDirect(a)
}

// lowerDirect wraps a layer whose forward pass needs no lowering: pooling
// maxima and the softmax normalization have no accumulation worth
// specializing.
func lowerDirect(l layer.Layer) step {
	return step{
		name:    l.Name(),
		inSize:  l.InShape().Size(),
		outSize: l.OutShape().Size(),
		run:     l.Forward,
	}
}
