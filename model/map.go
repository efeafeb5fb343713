// Package model provides the Map, a serializable model artifact built from
// a predictor. A Map can be saved to and loaded from disk, reconstructed
// into a predictor, run on a timer (steppable execution), and handed to
// the compiler for lowering.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lanternml/lantern/layer"
	"github.com/lanternml/lantern/layer/avgpool2d"
	"github.com/lanternml/lantern/layer/conv2d"
	"github.com/lanternml/lantern/layer/full"
	"github.com/lanternml/lantern/layer/maxpool2d"
	"github.com/lanternml/lantern/layer/softmax"
	"github.com/lanternml/lantern/net/predictor"
)

// LayerSpec is the serialized form of one layer. Fields that do not apply
// to a layer type stay zero.
type LayerSpec struct {
	Type       string    `json:"type"`
	Filters    int       `json:"filters,omitempty"`
	Size       int       `json:"size,omitempty"`
	Stride     int       `json:"stride,omitempty"`
	Padding    int       `json:"padding,omitempty"`
	Outputs    int       `json:"outputs,omitempty"`
	Groups     int       `json:"groups,omitempty"`
	Activation string    `json:"activation,omitempty"`
	Weights    []float32 `json:"weights,omitempty"`
	Bias       []float32 `json:"bias,omitempty"`
}

// Map is a savable model artifact: the layer specs and weights of a
// predictor plus optional steppable-execution parameters.
type Map struct {
	id      string
	created time.Time

	input  layer.Shape
	specs  []LayerSpec
	prefix string

	step time.Duration
	lag  time.Duration

	logger Logger
}

// Option configures a Map at construction.
type Option func(*Map)

// WithStepInterval makes the map steppable: Run invokes inference once
// per interval.
func WithStepInterval(d time.Duration) Option {
	return func(m *Map) { m.step = d }
}

// WithLagThreshold sets the step duration beyond which Run reports lag.
func WithLagThreshold(d time.Duration) Option {
	return func(m *Map) { m.lag = d }
}

// WithFunctionPrefix sets the prefix used for generated function names
// when the map is compiled.
func WithFunctionPrefix(prefix string) Option {
	return func(m *Map) { m.prefix = prefix }
}

// WithLogger sets a logger for steppable-execution diagnostics.
func WithLogger(logger Logger) Option {
	return func(m *Map) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// FromPredictor captures a predictor into a Map. The weights are copied;
// the predictor stays usable.
func FromPredictor(p *predictor.Predictor, opts ...Option) (*Map, error) {
	m := new(Map)
	m.id = uuid.New().String()
	m.created = time.Now().UTC()
	m.input = p.InShape()
	m.logger = nopLogger{}
	for _, l := range p.Layers() {
		spec, err := specFor(l)
		if err != nil {
			return nil, err
		}
		m.specs = append(m.specs, spec)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ID returns the unique identity assigned to the map at construction.
func (m *Map) ID() string { return m.id }

// Created returns the map creation time.
func (m *Map) Created() time.Time { return m.created }

// InShape reports the input shape of the captured network.
func (m *Map) InShape() layer.Shape { return m.input }

// StepInterval reports the steppable-execution interval, zero if the map
// is not steppable.
func (m *Map) StepInterval() time.Duration { return m.step }

// LagThreshold reports the lag-reporting threshold for steppable runs.
func (m *Map) LagThreshold() time.Duration { return m.lag }

// FunctionPrefix reports the generated-function name prefix.
func (m *Map) FunctionPrefix() string { return m.prefix }

// Layers exposes the serialized layer specs.
func (m *Map) Layers() []LayerSpec { return m.specs }

// Predictor reconstructs a runnable predictor from the map.
func (m *Map) Predictor() (*predictor.Predictor, error) {
	shape := m.input
	var layers []layer.Layer
	for i, spec := range m.specs {
		l, err := buildLayer(spec, shape)
		if err != nil {
			return nil, errors.Wrapf(err, "model: layer %d (%s)", i, spec.Type)
		}
		shape = l.OutShape()
		layers = append(layers, l)
	}
	return predictor.New(layers...)
}

func specFor(l layer.Layer) (LayerSpec, error) {
	switch t := l.(type) {
	case *conv2d.Conv2D:
		return LayerSpec{
			Type:       t.Name(),
			Filters:    t.Filters(),
			Size:       t.KernelSize(),
			Stride:     t.Stride(),
			Padding:    t.Padding(),
			Activation: t.Activation().String(),
			Weights:    append([]float32(nil), t.Kernel()...),
			Bias:       append([]float32(nil), t.Bias()...),
		}, nil
	case *maxpool2d.MaxPool2D:
		return LayerSpec{
			Type:    t.Name(),
			Size:    t.Size(),
			Stride:  t.Stride(),
			Padding: t.Padding(),
		}, nil
	case *avgpool2d.AvgPool2D:
		return LayerSpec{Type: t.Name()}, nil
	case *full.Full:
		return LayerSpec{
			Type:       t.Name(),
			Outputs:    t.Outputs(),
			Activation: t.Activation().String(),
			Weights:    append([]float32(nil), t.WeightsData()...),
			Bias:       append([]float32(nil), t.Bias()...),
		}, nil
	case *softmax.Softmax:
		return LayerSpec{Type: t.Name(), Groups: t.Groups()}, nil
	}
	return LayerSpec{}, errors.Errorf("model: cannot serialize layer type %T", l)
}

func buildLayer(spec LayerSpec, in layer.Shape) (layer.Layer, error) {
	switch spec.Type {
	case "convolutional":
		act, err := layer.ParseActivation(spec.Activation)
		if err != nil {
			return nil, err
		}
		conv, err := conv2d.New(in, spec.Filters, spec.Size, spec.Stride, spec.Padding, act)
		if err != nil {
			return nil, err
		}
		if err := conv.SetWeights(spec.Weights, spec.Bias); err != nil {
			return nil, err
		}
		return conv, nil
	case "maxpool":
		return maxpool2d.New(in, spec.Size, spec.Stride, spec.Padding)
	case "avgpool":
		return avgpool2d.New(in)
	case "connected":
		act, err := layer.ParseActivation(spec.Activation)
		if err != nil {
			return nil, err
		}
		fc, err := full.New(in, spec.Outputs, act)
		if err != nil {
			return nil, err
		}
		if err := fc.SetWeights(spec.Weights, spec.Bias); err != nil {
			return nil, err
		}
		return fc, nil
	case "softmax":
		return softmax.New(in, spec.Groups)
	}
	return nil, errors.Errorf("unknown layer type %q", spec.Type)
}

// Logger is the interface for diagnostic logging.
// Compatible with slog, zap, logrus, and other structured loggers.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
