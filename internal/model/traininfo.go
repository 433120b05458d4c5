package model

import (
	"time"

	"github.com/google/uuid"
)

// TrainInfo records metadata about one training run. It travels with the
// trained model into the output container.
type TrainInfo struct {
	RunID   string
	Corpus  string
	Output  string
	Threads int
	Start   time.Time
	End     time.Time // zero until the run finishes
}

// NewTrainInfo constructs a TrainInfo with a fresh run identifier and the
// start time set to now.
func NewTrainInfo(corpus, output string, threads int) TrainInfo {
	return TrainInfo{
		RunID:   uuid.NewString(),
		Corpus:  corpus,
		Output:  output,
		Threads: threads,
		Start:   time.Now(),
	}
}

// Finish stamps the end time.
func (t *TrainInfo) Finish() {
	t.End = time.Now()
}
