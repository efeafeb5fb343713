package model

import (
	"compress/lzw"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/lanternml/lantern/layer"
)

// mapFile is the on-disk JSON schema of a Map. The JSON stream is wrapped
// in LZW (LSB, 8-bit) compression; weight tensors dominate the payload.
type mapFile struct {
	ID             string      `json:"id"`
	Created        time.Time   `json:"created"`
	Input          layer.Shape `json:"input"`
	StepIntervalMS int64       `json:"step_interval_msec,omitempty"`
	LagThresholdMS int64       `json:"lag_threshold_msec,omitempty"`
	FunctionPrefix string      `json:"function_prefix,omitempty"`
	Layers         []LayerSpec `json:"layers"`
}

// Save writes the map to a file at path.
func (m *Map) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "model: create %s", path)
	}
	err = m.Write(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Write writes the map to a writer.
func (m *Map) Write(w io.Writer) error {
	lw := lzw.NewWriter(w, lzw.LSB, 8)
	enc := json.NewEncoder(lw)
	err := enc.Encode(mapFile{
		ID:             m.id,
		Created:        m.created,
		Input:          m.input,
		StepIntervalMS: m.step.Milliseconds(),
		LagThresholdMS: m.lag.Milliseconds(),
		FunctionPrefix: m.prefix,
		Layers:         m.specs,
	})
	if err != nil {
		return errors.Wrap(err, "model: encode map")
	}
	return lw.Close()
}

// Load reads a map from a file at path.
func Load(path string, opts ...Option) (*Map, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "model: open %s", path)
	}
	defer file.Close()
	return Read(file, opts...)
}

// Read reads a map from a reader.
func Read(r io.Reader, opts ...Option) (*Map, error) {
	lr := lzw.NewReader(r, lzw.LSB, 8)
	defer lr.Close()

	var f mapFile
	if err := json.NewDecoder(lr).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "model: decode map")
	}
	if len(f.Layers) == 0 {
		return nil, errors.New("model: map holds no layers")
	}
	m := new(Map)
	m.id = f.ID
	m.created = f.Created
	m.input = f.Input
	m.specs = f.Layers
	m.prefix = f.FunctionPrefix
	m.step = time.Duration(f.StepIntervalMS) * time.Millisecond
	m.lag = time.Duration(f.LagThresholdMS) * time.Millisecond
	m.logger = nopLogger{}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}
