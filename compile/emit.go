package compile

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/lanternml/lantern/layer"
	"github.com/lanternml/lantern/layer/avgpool2d"
	"github.com/lanternml/lantern/layer/conv2d"
	"github.com/lanternml/lantern/layer/full"
	"github.com/lanternml/lantern/layer/maxpool2d"
	"github.com/lanternml/lantern/layer/softmax"
)

// isNameChar reports whether c may appear in an emitted identifier.
func isNameChar(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || (c == '_')
}

// validName reports whether s is usable as an emitted Go identifier.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if !isNameChar(c) {
			return false
		}
		if i == 0 && '0' <= c && c <= '9' {
			return false
		}
	}
	return true
}

// EmitGo writes the compiled model as a standalone Go source file: one
// package named after the module, the weight tensors as literals, and one
// function named after the compiled function that maps a flattened input
// to the model output.
func (c *CompiledMap) EmitGo(w io.Writer) error {
	b, err := c.goSource()
	if err != nil {
		return err
	}
	_, err = w.Write(b.Bytes())
	return errors.Wrap(err, "compile: emit")
}

func (c *CompiledMap) goSource() (*bytes.Buffer, error) {
	b := new(bytes.Buffer)
	fmt.Fprintf(b, "// Code generated by lantern compile (model %s). DO NOT EDIT.\n\n", c.id)
	fmt.Fprintf(b, "package %s\n\n", c.module)

	if c.usesMath() {
		fmt.Fprintf(b, "import \"math\"\n\n")
	}

	// Weight tensors first, one pair of literals per parameterized layer.
	for i, l := range c.layers {
		switch t := l.(type) {
		case *conv2d.Conv2D:
			fmt.Fprintf(b, "// %sKernel%d holds the layer %d convolution kernel, [filter][channel][row][col].\n",
				c.function, i, i)
			writeFloats(b, fmt.Sprintf("%sKernel%d", c.function, i), t.Kernel())
			writeFloats(b, fmt.Sprintf("%sBias%d", c.function, i), t.Bias())
		case *full.Full:
			fmt.Fprintf(b, "// %sWeights%d holds the layer %d connected weights, one row per output.\n",
				c.function, i, i)
			writeFloats(b, fmt.Sprintf("%sWeights%d", c.function, i), t.WeightsData())
			writeFloats(b, fmt.Sprintf("%sBias%d", c.function, i), t.Bias())
		}
	}

	c.writeActHelpers(b)

	max := c.in.Size()
	for _, s := range c.steps {
		if s.outSize > max {
			max = s.outSize
		}
	}
	fmt.Fprintf(b, "// %s runs the model on a flattened %s input and returns its %d outputs.\n",
		c.function, c.in, c.out.Size())
	fmt.Fprintf(b, "func %s(input []float32) []float32 {\n", c.function)
	fmt.Fprintf(b, "\tv := make([]float32, %d)\n", max)
	fmt.Fprintf(b, "\tu := make([]float32, %d)\n", max)
	fmt.Fprintf(b, "\tcopy(v, input)\n")

	for i, l := range c.layers {
		fmt.Fprintf(b, "\t// layer %d: %s %s -> %s\n", i, l.Name(), l.InShape(), l.OutShape())
		switch t := l.(type) {
		case *conv2d.Conv2D:
			c.writeConv(b, i, t)
		case *maxpool2d.MaxPool2D:
			c.writeMaxPool(b, t)
		case *avgpool2d.AvgPool2D:
			c.writeAvgPool(b, t)
		case *full.Full:
			c.writeFull(b, i, t)
		case *softmax.Softmax:
			c.writeSoftmax(b, t)
		default:
			return nil, errors.Wrapf(ErrUnsupported, "emit %T", l)
		}
		fmt.Fprintf(b, "\tv, u = u, v\n")
	}

	fmt.Fprintf(b, "\tout := make([]float32, %d)\n", c.out.Size())
	fmt.Fprintf(b, "\tcopy(out, v)\n")
	fmt.Fprintf(b, "\treturn out\n}\n")
	return b, nil
}

// writeFloats writes one []float32 literal, eight values per line, using
// the shortest decimal form that round-trips to the same float32.
func writeFloats(b *bytes.Buffer, name string, v []float32) {
	fmt.Fprintf(b, "var %s = []float32{", name)
	for i, x := range v {
		if i%8 == 0 {
			b.WriteString("\n\t")
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
		b.WriteString(", ")
	}
	b.WriteString("\n}\n\n")
}

func (c *CompiledMap) usesMath() bool {
	for _, l := range c.layers {
		switch t := l.(type) {
		case *maxpool2d.MaxPool2D, *softmax.Softmax:
			return true
		case *conv2d.Conv2D:
			if t.Activation() == layer.Logistic || t.Activation() == layer.Tanh {
				return true
			}
		case *full.Full:
			if t.Activation() == layer.Logistic || t.Activation() == layer.Tanh {
				return true
			}
		}
	}
	return false
}

// writeActHelpers emits one small helper per nonlinearity the model uses.
func (c *CompiledMap) writeActHelpers(b *bytes.Buffer) {
	seen := map[layer.Activation]bool{}
	for _, l := range c.layers {
		var a layer.Activation
		switch t := l.(type) {
		case *conv2d.Conv2D:
			a = t.Activation()
		case *full.Full:
			a = t.Activation()
		default:
			continue
		}
		if a == layer.Linear || seen[a] {
			continue
		}
		seen[a] = true
		switch a {
		case layer.Logistic:
			fmt.Fprintf(b, "func %sLogistic(x float32) float32 {\n\treturn float32(1 / (1 + math.Exp(-float64(x))))\n}\n\n", c.function)
		case layer.Relu:
			fmt.Fprintf(b, "func %sRelu(x float32) float32 {\n\tif x < 0 {\n\t\treturn 0\n\t}\n\treturn x\n}\n\n", c.function)
		case layer.Leaky:
			fmt.Fprintf(b, "func %sLeaky(x float32) float32 {\n\tif x < 0 {\n\t\treturn 0.1 * x\n\t}\n\treturn x\n}\n\n", c.function)
		case layer.Tanh:
			fmt.Fprintf(b, "func %sTanh(x float32) float32 {\n\treturn float32(math.Tanh(float64(x)))\n}\n\n", c.function)
		}
	}
}

// actExpr renders the activation application around an expression.
func (c *CompiledMap) actExpr(a layer.Activation, expr string) string {
	switch a {
	case layer.Logistic:
		return fmt.Sprintf("%sLogistic(%s)", c.function, expr)
	case layer.Relu:
		return fmt.Sprintf("%sRelu(%s)", c.function, expr)
	case layer.Leaky:
		return fmt.Sprintf("%sLeaky(%s)", c.function, expr)
	case layer.Tanh:
		return fmt.Sprintf("%sTanh(%s)", c.function, expr)
	}
	return expr
}

func (c *CompiledMap) writeConv(b *bytes.Buffer, i int, t *conv2d.Conv2D) {
	in, out := t.InShape(), t.OutShape()
	size, stride, padding := t.KernelSize(), t.Stride(), t.Padding()
	fmt.Fprintf(b, "\tfor y := 0; y < %d; y++ {\n", out.Height)
	fmt.Fprintf(b, "\t\tfor x := 0; x < %d; x++ {\n", out.Width)
	fmt.Fprintf(b, "\t\t\tfor f := 0; f < %d; f++ {\n", t.Filters())
	fmt.Fprintf(b, "\t\t\t\tsum := %sBias%d[f]\n", c.function, i)
	fmt.Fprintf(b, "\t\t\t\tfor c := 0; c < %d; c++ {\n", in.Channels)
	fmt.Fprintf(b, "\t\t\t\t\tfor ky := 0; ky < %d; ky++ {\n", size)
	fmt.Fprintf(b, "\t\t\t\t\t\tiy := y*%d + ky - %d\n", stride, padding)
	fmt.Fprintf(b, "\t\t\t\t\t\tif iy < 0 || iy >= %d {\n\t\t\t\t\t\t\tcontinue\n\t\t\t\t\t\t}\n", in.Height)
	fmt.Fprintf(b, "\t\t\t\t\t\tfor kx := 0; kx < %d; kx++ {\n", size)
	fmt.Fprintf(b, "\t\t\t\t\t\t\tix := x*%d + kx - %d\n", stride, padding)
	fmt.Fprintf(b, "\t\t\t\t\t\t\tif ix < 0 || ix >= %d {\n\t\t\t\t\t\t\t\tcontinue\n\t\t\t\t\t\t\t}\n", in.Width)
	fmt.Fprintf(b, "\t\t\t\t\t\t\tsum += %sKernel%d[((f*%d+c)*%d+ky)*%d+kx] * v[(iy*%d+ix)*%d+c]\n",
		c.function, i, in.Channels, size, size, in.Width, in.Channels)
	fmt.Fprintf(b, "\t\t\t\t\t\t}\n\t\t\t\t\t}\n\t\t\t\t}\n")
	fmt.Fprintf(b, "\t\t\t\tu[(y*%d+x)*%d+f] = %s\n", out.Width, t.Filters(), c.actExpr(t.Activation(), "sum"))
	fmt.Fprintf(b, "\t\t\t}\n\t\t}\n\t}\n")
}

func (c *CompiledMap) writeMaxPool(b *bytes.Buffer, t *maxpool2d.MaxPool2D) {
	in, out := t.InShape(), t.OutShape()
	off := -t.Padding() / 2
	fmt.Fprintf(b, "\tfor y := 0; y < %d; y++ {\n", out.Height)
	fmt.Fprintf(b, "\t\tfor x := 0; x < %d; x++ {\n", out.Width)
	fmt.Fprintf(b, "\t\t\tfor c := 0; c < %d; c++ {\n", in.Channels)
	fmt.Fprintf(b, "\t\t\t\tbest := float32(math.Inf(-1))\n")
	fmt.Fprintf(b, "\t\t\t\tfor ky := 0; ky < %d; ky++ {\n", t.Size())
	fmt.Fprintf(b, "\t\t\t\t\tiy := %d + y*%d + ky\n", off, t.Stride())
	fmt.Fprintf(b, "\t\t\t\t\tif iy < 0 || iy >= %d {\n\t\t\t\t\t\tcontinue\n\t\t\t\t\t}\n", in.Height)
	fmt.Fprintf(b, "\t\t\t\t\tfor kx := 0; kx < %d; kx++ {\n", t.Size())
	fmt.Fprintf(b, "\t\t\t\t\t\tix := %d + x*%d + kx\n", off, t.Stride())
	fmt.Fprintf(b, "\t\t\t\t\t\tif ix < 0 || ix >= %d {\n\t\t\t\t\t\t\tcontinue\n\t\t\t\t\t\t}\n", in.Width)
	fmt.Fprintf(b, "\t\t\t\t\t\tif w := v[(iy*%d+ix)*%d+c]; w > best {\n\t\t\t\t\t\t\tbest = w\n\t\t\t\t\t\t}\n", in.Width, in.Channels)
	fmt.Fprintf(b, "\t\t\t\t\t}\n\t\t\t\t}\n")
	fmt.Fprintf(b, "\t\t\t\tu[(y*%d+x)*%d+c] = best\n", out.Width, in.Channels)
	fmt.Fprintf(b, "\t\t\t}\n\t\t}\n\t}\n")
}

func (c *CompiledMap) writeAvgPool(b *bytes.Buffer, t *avgpool2d.AvgPool2D) {
	in := t.InShape()
	cells := in.Height * in.Width
	fmt.Fprintf(b, "\tfor c := 0; c < %d; c++ {\n", in.Channels)
	fmt.Fprintf(b, "\t\tsum := float32(0)\n")
	fmt.Fprintf(b, "\t\tfor i := 0; i < %d; i++ {\n", cells)
	fmt.Fprintf(b, "\t\t\tsum += v[i*%d+c]\n", in.Channels)
	fmt.Fprintf(b, "\t\t}\n")
	fmt.Fprintf(b, "\t\tu[c] = sum / %d\n", cells)
	fmt.Fprintf(b, "\t}\n")
}

func (c *CompiledMap) writeFull(b *bytes.Buffer, i int, t *full.Full) {
	fmt.Fprintf(b, "\tfor o := 0; o < %d; o++ {\n", t.Outputs())
	fmt.Fprintf(b, "\t\tsum := %sBias%d[o]\n", c.function, i)
	fmt.Fprintf(b, "\t\tfor j := 0; j < %d; j++ {\n", t.Inputs())
	fmt.Fprintf(b, "\t\t\tsum += %sWeights%d[o*%d+j] * v[j]\n", c.function, i, t.Inputs())
	fmt.Fprintf(b, "\t\t}\n")
	fmt.Fprintf(b, "\t\tu[o] = %s\n", c.actExpr(t.Activation(), "sum"))
	fmt.Fprintf(b, "\t}\n")
}

func (c *CompiledMap) writeSoftmax(b *bytes.Buffer, t *softmax.Softmax) {
	n := t.InShape().Size()
	per := n / t.Groups()
	fmt.Fprintf(b, "\tfor g := 0; g < %d; g++ {\n", t.Groups())
	fmt.Fprintf(b, "\t\tmax := v[g*%d]\n", per)
	fmt.Fprintf(b, "\t\tfor i := g*%d + 1; i < (g+1)*%d; i++ {\n", per, per)
	fmt.Fprintf(b, "\t\t\tif v[i] > max {\n\t\t\t\tmax = v[i]\n\t\t\t}\n")
	fmt.Fprintf(b, "\t\t}\n")
	fmt.Fprintf(b, "\t\tsum := float64(0)\n")
	fmt.Fprintf(b, "\t\tfor i := g * %d; i < (g+1)*%d; i++ {\n", per, per)
	fmt.Fprintf(b, "\t\t\te := math.Exp(float64(v[i] - max))\n")
	fmt.Fprintf(b, "\t\t\tu[i] = float32(e)\n")
	fmt.Fprintf(b, "\t\t\tsum += e\n")
	fmt.Fprintf(b, "\t\t}\n")
	fmt.Fprintf(b, "\t\tfor i := g * %d; i < (g+1)*%d; i++ {\n", per, per)
	fmt.Fprintf(b, "\t\t\tu[i] /= float32(sum)\n")
	fmt.Fprintf(b, "\t\t}\n")
	fmt.Fprintf(b, "\t}\n")
}
