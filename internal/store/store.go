package store

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat/distuv"
)

// Matrix is a dense rows × dims arena of float32 embedding rows backed by one
// flat slice. Rows are addressed by integer index; concurrent unsynchronized
// additive updates to rows are part of the design (see AddScaled).
type Matrix struct {
	Rows int
	Dims int
	Data []float32 // row-major, len Rows*Dims
}

// NewMatrix allocates a zeroed matrix.
func NewMatrix(rows, dims int) *Matrix {
	return &Matrix{Rows: rows, Dims: dims, Data: make([]float32, rows*dims)}
}

// Row returns row i as a mutable slice view.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dims : (i+1)*m.Dims]
}

// RowVec returns row i as a BLAS vector view.
func (m *Matrix) RowVec(i int) blas32.Vector {
	return blas32.Vector{N: m.Dims, Inc: 1, Data: m.Row(i)}
}

// AddScaled adds a*delta to row i in place without locking. Concurrent
// writers may interleave at the component level; the training procedure
// tolerates these races because updates are sparse and small relative to row
// magnitude. This relaxed-consistency contract trades bit-exactness for
// throughput.
func (m *Matrix) AddScaled(i int, delta []float32, a float32) {
	blas32.Axpy(a, vec(delta), m.RowVec(i))
}

// Dot returns the inner product of two equal-length vectors.
func Dot(x, y []float32) float32 {
	return blas32.Dot(vec(x), vec(y))
}

// Axpy adds a*x to y in place.
func Axpy(a float32, x, y []float32) {
	blas32.Axpy(a, vec(x), vec(y))
}

func vec(s []float32) blas32.Vector {
	return blas32.Vector{N: len(s), Inc: 1, Data: s}
}

// Finite reports whether every component of v is a finite number.
func Finite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

// Store owns the two embedding matrices. Input has one row per vocabulary
// word followed by one shared row per subword bucket; Output has
// outputRowsPerWord rows per vocabulary word, its meaning depending on the
// model variant.
type Store struct {
	Input  *Matrix
	Output *Matrix
}

// New allocates and initializes the matrices. Input components are drawn
// uniformly from ±1/dims with a generator seeded by seed, so identical seeds
// give identical initializations. Output rows start at zero.
func New(nWords, nBuckets, dims, outputRowsPerWord int, seed uint64) *Store {
	s := &Store{
		Input:  NewMatrix(nWords+nBuckets, dims),
		Output: NewMatrix(nWords*outputRowsPerWord, dims),
	}

	bound := 1 / float64(dims)
	u := distuv.Uniform{Min: -bound, Max: bound, Src: rand.NewPCG(seed, 0)}
	for i := range s.Input.Data {
		s.Input.Data[i] = float32(u.Rand())
	}
	return s
}

// ComposeInput sums the listed input rows into dst, which must have length
// dims. The composition is recomputed per use; it is never cached, since the
// underlying rows change concurrently.
func (s *Store) ComposeInput(rows []int, dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	d := vec(dst)
	for _, r := range rows {
		blas32.Axpy(1, s.Input.RowVec(r), d)
	}
}

// FanOut adds the identical delta to every listed input row: the word's own
// row and each of its subword bucket rows receive the same update.
func (s *Store) FanOut(rows []int, delta []float32) {
	for _, r := range rows {
		s.Input.AddScaled(r, delta, 1)
	}
}
