package trainer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danieldk/finalfrontier/internal/config"
	"github.com/danieldk/finalfrontier/internal/corpus"
	"github.com/danieldk/finalfrontier/internal/model"
	"github.com/danieldk/finalfrontier/internal/sampling"
	"github.com/danieldk/finalfrontier/internal/store"
	"github.com/danieldk/finalfrontier/internal/subword"
	"github.com/danieldk/finalfrontier/internal/vocab"
)

// ErrDiverged reports a non-finite value in an embedding row. Divergence
// invalidates the whole run; it is fatal and never retried, since silently
// restarting an expensive multi-epoch run could mask a configuration problem.
var ErrDiverged = errors.New("trainer: non-finite value in embedding row")

// State tracks the trainer lifecycle.
type State int

const (
	Idle State = iota
	VocabBuilt
	Training
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case VocabBuilt:
		return "vocab-built"
	case Training:
		return "training"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// The learning rate decays linearly with processed tokens but never below
// this fraction of the initial rate.
const lrFloor = 1e-4

// Trainer orchestrates vocabulary construction, embedding allocation, and the
// concurrent SGD loop. Lifecycle: Idle → VocabBuilt (BuildVocab) → Training →
// Done (Train), with Failed terminal on vocabulary or numeric errors.
type Trainer struct {
	cfg   config.Config
	corp  corpus.Corpus
	state State

	vocab   *vocab.Vocab
	indexer *subword.Indexer // nil when subwords are disabled
	cm      ContextModel
	store   *store.Store
	info    model.TrainInfo

	// Shared training state. tokens is the only cross-worker counter; the
	// embedding matrices take unsynchronized row updates by design.
	tokens       atomic.Uint64
	totalPlanned uint64
	lossBits     atomic.Uint64 // float64 bits of the summed log loss
	lossSteps    atomic.Uint64

	abort   atomic.Bool
	failMu  sync.Mutex
	failErr error

	// Divergence probe interval, in focus tokens per worker.
	checkEvery int

	progressEvery time.Duration
}

// New creates an Idle trainer for the given corpus. The configuration must
// already be validated.
func New(cfg config.Config, corp corpus.Corpus) *Trainer {
	return &Trainer{
		cfg:           cfg,
		corp:          corp,
		state:         Idle,
		info:          model.NewTrainInfo(cfg.Corpus, cfg.Output, cfg.Threads),
		checkEvery:    10000,
		progressEvery: 10 * time.Second,
	}
}

// State returns the current lifecycle state.
func (t *Trainer) State() State {
	return t.state
}

// Vocab returns the vocabulary; valid after BuildVocab.
func (t *Trainer) Vocab() *vocab.Vocab {
	return t.vocab
}

// BuildVocab runs the single counting pass over the corpus and fixes the
// subword hashing parameters. Idle → VocabBuilt.
func (t *Trainer) BuildVocab() error {
	if t.state != Idle {
		return fmt.Errorf("trainer: BuildVocab called in state %s", t.state)
	}

	b := vocab.NewBuilder()
	b.CountCorpus(t.corp)
	v, err := b.Build(t.cfg.MinCount, t.cfg.Discard)
	if err != nil {
		t.state = Failed
		return err
	}

	if !t.cfg.NoSubwords {
		t.indexer = &subword.Indexer{
			MinN:       t.cfg.MinN,
			MaxN:       t.cfg.MaxN,
			BucketsExp: t.cfg.BucketsExp,
		}
	}
	v.AttachSubwords(t.indexer)

	t.vocab = v
	t.state = VocabBuilt
	slog.Info("vocabulary built",
		"words", v.Len(),
		"tokens", v.TotalTokens(),
		"subwords", t.indexer != nil)
	return nil
}

// Train allocates the embedding store, partitions the corpus into one shard
// per worker, and runs epochs passes per worker. VocabBuilt → Training →
// Done, or Failed on divergence or worker failure. With zero epochs the
// matrices keep their initialization.
func (t *Trainer) Train() error {
	if t.state != VocabBuilt {
		return fmt.Errorf("trainer: Train called in state %s", t.state)
	}

	t.cm = newContextModel(t.cfg.Model, t.cfg.ContextSize)
	nBuckets := 0
	if t.indexer != nil {
		nBuckets = t.indexer.NBuckets()
	}
	t.store = store.New(t.vocab.Len(), nBuckets, t.cfg.Dims, t.cm.RowsPerWord(), t.cfg.Seed)
	t.totalPlanned = uint64(t.cfg.Epochs) * uint64(t.vocab.TotalTokens())

	t.state = Training
	if t.cfg.Epochs == 0 {
		t.state = Done
		t.info.Finish()
		return nil
	}

	shards := t.corp.Shards(t.cfg.Threads)
	var wg sync.WaitGroup
	for w := 0; w < t.cfg.Threads; w++ {
		wg.Add(1)
		go func(id int, shard corpus.Corpus) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.fail(fmt.Errorf("trainer: worker %d: %v", id, r))
				}
			}()
			t.worker(id, shard)
		}(w, shards[w])
	}

	progressDone := make(chan struct{})
	go t.logProgress(progressDone)
	wg.Wait()
	close(progressDone)

	t.failMu.Lock()
	err := t.failErr
	t.failMu.Unlock()
	if err != nil {
		t.state = Failed
		return err
	}

	t.state = Done
	t.info.Finish()
	return nil
}

// Stop requests a cooperative stop. Workers finish their current sentence and
// return; Train then completes normally with the matrices as they stand.
func (t *Trainer) Stop() {
	t.abort.Store(true)
}

// Result returns the handoff for the serialization layer; only valid once
// every worker has reached Done.
func (t *Trainer) Result() (model.TrainedModel, error) {
	if t.state != Done {
		return model.TrainedModel{}, fmt.Errorf("trainer: result requested in state %s", t.state)
	}
	return model.TrainedModel{
		Info:       t.info,
		Words:      t.vocab.Tokens(),
		Dims:       t.cfg.Dims,
		NoSubwords: t.cfg.NoSubwords,
		MinN:       t.cfg.MinN,
		MaxN:       t.cfg.MaxN,
		BucketsExp: t.cfg.BucketsExp,
		Input:      t.store.Input.Data,
	}, nil
}

// TrainLoss returns the mean log loss over all processed pairs so far.
func (t *Trainer) TrainLoss() float64 {
	steps := t.lossSteps.Load()
	if steps == 0 {
		return 0
	}
	return math.Float64frombits(t.lossBits.Load()) / float64(steps)
}

// worker runs epochs passes over its fixed shard. Each worker derives its
// window RNG and negative sampler deterministically from the global seed and
// its identity, so single-threaded runs are reproducible.
func (t *Trainer) worker(id int, shard corpus.Corpus) {
	rng := rand.New(rand.NewPCG(t.cfg.Seed, uint64(2*id+1)))
	negs := sampling.NewZipf(t.vocab.Len(), t.cfg.ZipfExp, rand.NewPCG(t.cfg.Seed, uint64(2*id+2)))

	// Map the shard to vocabulary indices once; out-of-vocabulary tokens are
	// dropped. All epochs reuse the mapped shard.
	sents := make([][]int, 0, len(shard))
	for _, sent := range shard {
		if ids := t.vocab.IDs(sent); len(ids) > 0 {
			sents = append(sents, ids)
		}
	}

	input := make([]float32, t.cfg.Dims)
	delta := make([]float32, t.cfg.Dims)
	kept := make([]int, 0, 128)
	var localLoss float64
	var localSteps uint64
	var sinceCheck int

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		for _, sent := range sents {
			if t.abort.Load() {
				t.flushLoss(localLoss, localSteps)
				return
			}

			// Discard sampling: each occurrence of a frequent word is skipped
			// independently with the word's discard probability. The counter
			// advances for every in-vocabulary token so the learning-rate
			// schedule covers the whole corpus.
			kept = kept[:0]
			for _, w := range sent {
				t.tokens.Add(1)
				if rng.Float64() < t.vocab.Word(w).Discard {
					continue
				}
				kept = append(kept, w)
			}

			for i, focus := range kept {
				lr := float32(t.currentLR())
				win := 1 + rng.IntN(t.cfg.ContextSize)
				lo := i - win
				if lo < 0 {
					lo = 0
				}
				hi := i + win
				if hi > len(kept)-1 {
					hi = len(kept) - 1
				}
				rows := t.vocab.Rows(focus)
				for j := lo; j <= hi; j++ {
					if j == i {
						continue
					}
					localLoss += t.trainPair(rows, kept[j], j-i, lr, input, delta, negs)
					localSteps++
				}

				sinceCheck++
				if sinceCheck >= t.checkEvery {
					sinceCheck = 0
					t.store.ComposeInput(rows, input)
					if !store.Finite(input) {
						t.fail(ErrDiverged)
						t.flushLoss(localLoss, localSteps)
						return
					}
				}
			}
		}
		t.flushLoss(localLoss, localSteps)
		localLoss, localSteps = 0, 0
	}
}

// trainPair applies one positive and NegSamples negative logistic updates for
// a single (focus, context) pair and returns the summed log loss. The
// accumulated input-side error fans out to every row composing the focus
// word's vector, each receiving the identical delta.
func (t *Trainer) trainPair(rows []int, ctx, offset int, lr float32, input, delta []float32, negs sampling.Zipf) float64 {
	t.store.ComposeInput(rows, input)
	for i := range delta {
		delta[i] = 0
	}

	loss := t.step(input, delta, t.cm.OutputRow(ctx, offset), 1, lr)
	for n := 0; n < t.cfg.NegSamples; n++ {
		neg := negs.Draw()
		// A draw that coincides with the positive context word is skipped
		// rather than redrawn.
		if neg == ctx {
			continue
		}
		loss += t.step(input, delta, t.cm.OutputRow(neg, offset), 0, lr)
	}
	t.store.FanOut(rows, delta)
	return loss
}

// step performs one logistic-regression update against a single output row.
// The input-side error term uses the pre-update output row.
func (t *Trainer) step(input, delta []float32, outRow int, label, lr float32) float64 {
	out := t.store.Output.Row(outRow)
	score := sigmoid(store.Dot(input, out))
	g := lr * (label - score)

	store.Axpy(g, out, delta)
	t.store.Output.AddScaled(outRow, input, g)

	if label == 1 {
		return -math.Log(float64(score) + 1e-10)
	}
	return -math.Log(1 - float64(score) + 1e-10)
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// currentLR derives the learning rate from the shared token counter:
// lr0 · max(floor, 1 − tokens/totalPlanned), non-increasing over the run.
func (t *Trainer) currentLR() float64 {
	frac := 1 - float64(t.tokens.Load())/float64(t.totalPlanned)
	if frac < lrFloor {
		frac = lrFloor
	}
	return t.cfg.LR * frac
}

// fail records the first worker error and requests a cooperative abort of all
// workers.
func (t *Trainer) fail(err error) {
	t.failMu.Lock()
	if t.failErr == nil {
		t.failErr = err
	}
	t.failMu.Unlock()
	t.abort.Store(true)
}

// flushLoss merges a worker's local loss accumulator into the shared sums.
func (t *Trainer) flushLoss(loss float64, steps uint64) {
	if steps == 0 {
		return
	}
	for {
		old := t.lossBits.Load()
		upd := math.Float64bits(math.Float64frombits(old) + loss)
		if t.lossBits.CompareAndSwap(old, upd) {
			break
		}
	}
	t.lossSteps.Add(steps)
}

// logProgress periodically reports throughput, loss, and learning rate until
// training finishes.
func (t *Trainer) logProgress(done <-chan struct{}) {
	tick := time.NewTicker(t.progressEvery)
	defer tick.Stop()
	start := time.Now()
	for {
		select {
		case <-done:
			return
		case <-tick.C:
			n := t.tokens.Load()
			slog.Info("training",
				"tokens", n,
				"pct", fmt.Sprintf("%.1f", float64(n)/float64(t.totalPlanned)*100),
				"loss", fmt.Sprintf("%.5f", t.TrainLoss()),
				"lr", fmt.Sprintf("%.5f", t.currentLR()),
				"tokens_per_sec", uint64(float64(n)/time.Since(start).Seconds()))
		}
	}
}
