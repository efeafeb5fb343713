package layer

import "math"

import "github.com/pkg/errors"

// Activation is an elementwise nonlinearity attached to a layer.
type Activation int

const (
	// Linear is the identity activation.
	Linear Activation = iota

	// Logistic is the standard sigmoid, the Darknet default.
	Logistic

	// Relu clamps negative values to zero.
	Relu

	// Leaky is a rectifier with slope 0.1 on the negative side.
	Leaky

	// Tanh is the hyperbolic tangent.
	Tanh
)

// ParseActivation maps a Darknet cfg activation string to an Activation.
func ParseActivation(s string) (Activation, error) {
	switch s {
	case "linear", "":
		return Linear, nil
	case "logistic":
		return Logistic, nil
	case "relu":
		return Relu, nil
	case "leaky":
		return Leaky, nil
	case "tanh":
		return Tanh, nil
	}
	return Linear, errors.Errorf("unknown activation %q", s)
}

// String returns the Darknet cfg name of the activation.
func (a Activation) String() string {
	switch a {
	case Logistic:
		return "logistic"
	case Relu:
		return "relu"
	case Leaky:
		return "leaky"
	case Tanh:
		return "tanh"
	}
	return "linear"
}

// At applies the activation to a single value.
func (a Activation) At(x float32) float32 {
	switch a {
	case Logistic:
		return float32(1 / (1 + math.Exp(-float64(x))))
	case Relu:
		if x < 0 {
			return 0
		}
	case Leaky:
		if x < 0 {
			return 0.1 * x
		}
	case Tanh:
		return float32(math.Tanh(float64(x)))
	}
	return x
}

// At64 applies the activation to a single float64 value. The compiler's
// double-precision pipeline uses this instead of At.
func (a Activation) At64(x float64) float64 {
	switch a {
	case Logistic:
		return 1 / (1 + math.Exp(-x))
	case Relu:
		if x < 0 {
			return 0
		}
	case Leaky:
		if x < 0 {
			return 0.1 * x
		}
	case Tanh:
		return math.Tanh(x)
	}
	return x
}

// Apply applies the activation to every element of v in place.
func (a Activation) Apply(v []float32) {
	if a == Linear {
		return
	}
	for i, x := range v {
		v[i] = a.At(x)
	}
}
