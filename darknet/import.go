// Package darknet imports pretrained Darknet models into lantern predictors.
//
// A Darknet model is two files: a layer-configuration text file (.cfg)
// listing the network sections in order, and a binary weights file
// (.weights) holding the trained tensors in the same order. The importer
// parses both, folds batch normalization into convolution weights, permutes
// connected-layer weights from Darknet's CHW flattening to the HWC order
// the runtime uses, and returns a runnable predictor.
//
// Supported sections: [net], [convolutional], [maxpool], [avgpool],
// [connected] and [softmax].
package darknet

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/lanternml/lantern/layer"
	"github.com/lanternml/lantern/layer/avgpool2d"
	"github.com/lanternml/lantern/layer/conv2d"
	"github.com/lanternml/lantern/layer/full"
	"github.com/lanternml/lantern/layer/maxpool2d"
	"github.com/lanternml/lantern/layer/softmax"
	"github.com/lanternml/lantern/net/predictor"
)

// batchNormEps matches the epsilon Darknet uses in its batch-normalization
// forward pass.
const batchNormEps = 1e-6

// FromFiles imports the model described by a Darknet layer-configuration
// file and its companion weights file.
func FromFiles(cfgPath, weightsPath string, opts ...Option) (*predictor.Predictor, error) {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, errors.Wrapf(err, "darknet: open config %s", cfgPath)
	}
	defer cfgFile.Close()

	weightsFile, err := os.Open(weightsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "darknet: open weights %s", weightsPath)
	}
	defer weightsFile.Close()

	total := int64(0)
	if fi, err := weightsFile.Stat(); err == nil {
		total = fi.Size()
	}
	return FromReaders(cfgFile, weightsFile, total, opts...)
}

// FromReaders imports a model from an already-open config and weights
// stream. weightsSize is the total weights size in bytes, used only for
// progress reporting (0 if unknown).
func FromReaders(cfg, weights io.Reader, weightsSize int64, opts ...Option) (*predictor.Predictor, error) {
	c := newImportConfig()
	for _, opt := range opts {
		opt(c)
	}

	sections, err := parseCfg(cfg)
	if err != nil {
		return nil, err
	}
	if sections[0].name != "net" && sections[0].name != "network" {
		return nil, errors.Wrapf(ErrBadConfig, "first section is [%s], want [net]", sections[0].name)
	}
	shape, err := netShape(sections[0])
	if err != nil {
		return nil, err
	}
	c.logger.Info("importing darknet model", "input", shape.String(), "sections", len(sections)-1)

	wr, err := newWeightsReader(weights, weightsSize, c.progress)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("weights header",
		"version", wr.Major*10000+wr.Minor*100+wr.Revision, "seen", wr.Seen)

	var layers []layer.Layer
	for i, sec := range sections[1:] {
		var (
			l   layer.Layer
			err error
		)
		switch sec.name {
		case "convolutional", "conv":
			l, err = buildConv(sec, shape, wr)
		case "maxpool", "max":
			l, err = buildMaxPool(sec, shape)
		case "avgpool", "avg":
			l, err = avgpool2d.New(shape)
		case "connected", "conn":
			l, err = buildConnected(sec, shape, wr)
		case "softmax", "soft":
			l, err = buildSoftmax(sec, shape)
		default:
			return nil, errors.Wrapf(ErrUnsupportedLayer, "section %d is [%s]", i+1, sec.name)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d [%s]", i+1, sec.name)
		}
		c.logger.Debug("imported layer",
			"index", i+1, "type", l.Name(), "in", l.InShape().String(), "out", l.OutShape().String(),
			"params", l.Params())
		shape = l.OutShape()
		layers = append(layers, l)
	}
	if err := wr.drained(); err != nil {
		return nil, err
	}

	p, err := predictor.New(layers...)
	if err != nil {
		return nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}
	c.logger.Info("imported darknet model",
		"layers", len(layers), "params", p.Params(), "output", p.OutShape().String())
	return p, nil
}

// netShape extracts the input volume from the [net] section.
func netShape(sec section) (layer.Shape, error) {
	h, err := sec.getInt("height", 0)
	if err != nil {
		return layer.Shape{}, err
	}
	w, err := sec.getInt("width", 0)
	if err != nil {
		return layer.Shape{}, err
	}
	ch, err := sec.getInt("channels", 0)
	if err != nil {
		return layer.Shape{}, err
	}
	if h <= 0 || w <= 0 || ch <= 0 {
		return layer.Shape{}, errors.Wrapf(ErrBadConfig,
			"[net] wants positive height, width and channels, got %dx%dx%d", h, w, ch)
	}
	return layer.Shape{Height: h, Width: w, Channels: ch}, nil
}

func buildConv(sec section, in layer.Shape, wr *weightsReader) (layer.Layer, error) {
	filters, err := sec.getInt("filters", 1)
	if err != nil {
		return nil, err
	}
	size, err := sec.getInt("size", 1)
	if err != nil {
		return nil, err
	}
	stride, err := sec.getInt("stride", 1)
	if err != nil {
		return nil, err
	}
	padding, err := sec.getInt("padding", 0)
	if err != nil {
		return nil, err
	}
	pad, err := sec.getInt("pad", 0)
	if err != nil {
		return nil, err
	}
	if pad != 0 {
		padding = size / 2
	}
	bn, err := sec.getInt("batch_normalize", 0)
	if err != nil {
		return nil, err
	}
	act, err := layer.ParseActivation(sec.getString("activation", "logistic"))
	if err != nil {
		return nil, errors.Wrap(ErrBadConfig, err.Error())
	}

	conv, err := conv2d.New(in, filters, size, stride, padding, act)
	if err != nil {
		return nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}

	// File order: biases, then batchnorm stats, then kernel weights.
	bias, err := wr.floats(filters)
	if err != nil {
		return nil, err
	}
	var scales, means, variances []float32
	if bn != 0 {
		if scales, err = wr.floats(filters); err != nil {
			return nil, err
		}
		if means, err = wr.floats(filters); err != nil {
			return nil, err
		}
		if variances, err = wr.floats(filters); err != nil {
			return nil, err
		}
	}
	kernel, err := wr.floats(filters * in.Channels * size * size)
	if err != nil {
		return nil, err
	}
	if err := conv.SetWeights(kernel, bias); err != nil {
		return nil, err
	}
	if bn != 0 {
		if err := conv.FoldBatchNorm(scales, means, variances, batchNormEps); err != nil {
			return nil, err
		}
	}
	return conv, nil
}

func buildMaxPool(sec section, in layer.Shape) (layer.Layer, error) {
	stride, err := sec.getInt("stride", 1)
	if err != nil {
		return nil, err
	}
	size, err := sec.getInt("size", stride)
	if err != nil {
		return nil, err
	}
	padding, err := sec.getInt("padding", size-1)
	if err != nil {
		return nil, err
	}
	l, err := maxpool2d.New(in, size, stride, padding)
	if err != nil {
		return nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}
	return l, nil
}

func buildConnected(sec section, in layer.Shape, wr *weightsReader) (layer.Layer, error) {
	outputs, err := sec.getInt("output", 1)
	if err != nil {
		return nil, err
	}
	act, err := layer.ParseActivation(sec.getString("activation", "logistic"))
	if err != nil {
		return nil, errors.Wrap(ErrBadConfig, err.Error())
	}
	fc, err := full.New(in, outputs, act)
	if err != nil {
		return nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}

	// File order: biases, then the row-major weight matrix.
	bias, err := wr.floats(outputs)
	if err != nil {
		return nil, err
	}
	weights, err := wr.floats(outputs * in.Size())
	if err != nil {
		return nil, err
	}
	if err := fc.SetWeights(weights, bias); err != nil {
		return nil, err
	}

	// Darknet flattens conv activations in CHW order; this runtime keeps
	// them in HWC. Permute each weight row so the matrix consumes HWC.
	if in.Channels > 1 && (in.Height > 1 || in.Width > 1) {
		if err := fc.PermuteColumns(chwToHWC(in)); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

func buildSoftmax(sec section, in layer.Shape) (layer.Layer, error) {
	groups, err := sec.getInt("groups", 1)
	if err != nil {
		return nil, err
	}
	l, err := softmax.New(in, groups)
	if err != nil {
		return nil, errors.Wrap(ErrShapeMismatch, err.Error())
	}
	return l, nil
}

// chwToHWC builds the column permutation mapping HWC feature index i to
// its CHW source index.
func chwToHWC(s layer.Shape) []int {
	perm := make([]int, s.Size())
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			for c := 0; c < s.Channels; c++ {
				perm[(y*s.Width+x)*s.Channels+c] = c*s.Height*s.Width + y*s.Width + x
			}
		}
	}
	return perm
}
