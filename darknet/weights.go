package darknet

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// weightsReader reads the little-endian binary tensors of a Darknet
// .weights file in file order.
type weightsReader struct {
	r        *bufio.Reader
	read     int64
	total    int64
	progress func(read, total int64)

	// Major, Minor, Revision are the format version from the file header.
	Major, Minor, Revision int32

	// Seen is the number of images the network was trained on, per the
	// header. Stored as uint64 from format 0.2 on, uint32 before.
	Seen uint64
}

// newWeightsReader consumes the weights-file header. total is the file
// size in bytes, used only for progress reporting (0 if unknown).
func newWeightsReader(r io.Reader, total int64, progress func(read, total int64)) (*weightsReader, error) {
	w := &weightsReader{r: bufio.NewReader(r), total: total, progress: progress}
	var version [3]int32
	for i := range version {
		v, err := w.int32()
		if err != nil {
			return nil, errors.Wrap(ErrBadWeights, "truncated header")
		}
		version[i] = v
	}
	w.Major, w.Minor, w.Revision = version[0], version[1], version[2]
	if w.Major*10+w.Minor >= 2 {
		seen, err := w.uint64()
		if err != nil {
			return nil, errors.Wrap(ErrBadWeights, "truncated header")
		}
		w.Seen = seen
	} else {
		seen, err := w.uint32()
		if err != nil {
			return nil, errors.Wrap(ErrBadWeights, "truncated header")
		}
		w.Seen = uint64(seen)
	}
	return w, nil
}

func (w *weightsReader) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.r, buf); err != nil {
		return nil, err
	}
	w.read += int64(n)
	if w.progress != nil {
		w.progress(w.read, w.total)
	}
	return buf, nil
}

func (w *weightsReader) int32() (int32, error) {
	b, err := w.bytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (w *weightsReader) uint32() (uint32, error) {
	b, err := w.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (w *weightsReader) uint64() (uint64, error) {
	b, err := w.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// floats reads n float32 values into a fresh slice.
func (w *weightsReader) floats(n int) ([]float32, error) {
	b, err := w.bytes(4 * n)
	if err != nil {
		return nil, errors.Wrapf(ErrBadWeights, "truncated tensor: want %d floats: %v", n, err)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// drained reports an error if any bytes remain unread.
func (w *weightsReader) drained() error {
	if _, err := w.r.ReadByte(); err == nil {
		return errors.Wrap(ErrBadWeights, "trailing bytes after last layer")
	} else if err != io.EOF {
		return errors.Wrap(err, "darknet: reading weights")
	}
	return nil
}
