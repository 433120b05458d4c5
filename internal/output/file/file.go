package file

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/danieldk/finalfrontier/internal/model"
)

const defaultBufSize = 256 * 1024

// Output writes a trained model as a text container: a header with the shape
// and subword parameters, one line per vocabulary word, then one line per
// subword bucket row. The bucket rows plus the header parameters are enough
// to reconstruct representations for words unseen during training.
type Output struct {
	f *os.File
	w *bufio.Writer
}

// New creates a file output at the given path, truncating any existing file.
func New(path string) (*Output, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	return &Output{f: f, w: bufio.NewWriterSize(f, defaultBufSize)}, nil
}

// Write serializes the model. The header line is:
//
//	finalfrontier <run-id> <nwords> <nbuckets> <dims> <minn> <maxn> <buckets_exp>
//
// followed by len(Words) lines of "token v0 … vd" and BucketRows() lines of
// "bucket<i> v0 … vd".
func (o *Output) Write(m model.TrainedModel) error {
	nBuckets := m.BucketRows()
	_, err := fmt.Fprintf(o.w, "finalfrontier %s %d %d %d %d %d %d\n",
		m.Info.RunID, len(m.Words), nBuckets, m.Dims, m.MinN, m.MaxN, m.BucketsExp)
	if err != nil {
		return fmt.Errorf("output: header: %w", err)
	}

	buf := make([]byte, 0, 16*m.Dims)
	writeRow := func(label string, row []float32) error {
		buf = buf[:0]
		buf = append(buf, label...)
		for _, v := range row {
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, float64(v), 'g', -1, 32)
		}
		buf = append(buf, '\n')
		if _, err := o.w.Write(buf); err != nil {
			return fmt.Errorf("output: row %s: %w", label, err)
		}
		return nil
	}

	for i, tok := range m.Words {
		if err := writeRow(tok, m.Input[i*m.Dims:(i+1)*m.Dims]); err != nil {
			return err
		}
	}
	for i := 0; i < nBuckets; i++ {
		r := len(m.Words) + i
		if err := writeRow(fmt.Sprintf("bucket%d", i), m.Input[r*m.Dims:(r+1)*m.Dims]); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return fmt.Errorf("output: flush: %w", err)
	}
	return o.f.Close()
}
