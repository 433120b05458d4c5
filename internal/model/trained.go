package model

// TrainedModel is the handoff from the trainer to the serialization layer: the
// vocabulary in index order, the input embedding matrix (vocabulary rows
// followed by subword bucket rows), and the subword hashing parameters needed
// to build representations for words unseen during training.
type TrainedModel struct {
	Info TrainInfo

	Words []string // vocabulary tokens, index order
	Dims  int

	// Subword hashing parameters. When NoSubwords is set the input matrix
	// carries no bucket rows and MinN/MaxN/BucketsExp are meaningless.
	NoSubwords bool
	MinN       int
	MaxN       int
	BucketsExp uint

	// Input is the (len(Words)+nBuckets) × Dims input matrix, row-major.
	Input []float32
}

// BucketRows returns the number of subword bucket rows in Input.
func (m TrainedModel) BucketRows() int {
	if m.NoSubwords {
		return 0
	}
	return 1 << m.BucketsExp
}
