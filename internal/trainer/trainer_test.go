package trainer

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/danieldk/finalfrontier/internal/config"
	"github.com/danieldk/finalfrontier/internal/corpus"
	"github.com/danieldk/finalfrontier/internal/model"
	"github.com/danieldk/finalfrontier/internal/store"
)

// tinyCorpus is the end-to-end fixture: two sentences, six distinct words.
func tinyCorpus() corpus.Corpus {
	return corpus.Corpus{
		{"the", "quick", "fox", "the", "lazy", "dog"},
		{"the", "fox", "runs"},
	}
}

// tinyConfig disables subwords and subsampling so every occurrence trains.
func tinyConfig() config.Config {
	return config.Config{
		Corpus:      "corpus.txt",
		Output:      "out.embeddings",
		ContextSize: 1,
		Dims:        4,
		Discard:     100, // relative frequencies never exceed 1: nothing discarded
		Epochs:      1,
		LR:          0.05,
		MaxN:        6,
		MinCount:    1,
		MinN:        3,
		Model:       model.SkipGram,
		NegSamples:  5,
		NoSubwords:  true,
		Threads:     1,
		ZipfExp:     0.5,
		Seed:        19,
	}
}

func TestLifecycle_OrderEnforced(t *testing.T) {
	tr := New(tinyConfig(), tinyCorpus())
	if tr.State() != Idle {
		t.Fatalf("expected Idle, got %v", tr.State())
	}

	if err := tr.Train(); err == nil {
		t.Fatal("expected Train before BuildVocab to fail")
	}
	if _, err := tr.Result(); err == nil {
		t.Fatal("expected Result before training to fail")
	}

	if err := tr.BuildVocab(); err != nil {
		t.Fatalf("BuildVocab failed: %v", err)
	}
	if tr.State() != VocabBuilt {
		t.Fatalf("expected VocabBuilt, got %v", tr.State())
	}
	if err := tr.BuildVocab(); err == nil {
		t.Fatal("expected second BuildVocab to fail")
	}
}

func TestTrain_EndToEnd(t *testing.T) {
	cfg := tinyConfig()
	tr := New(cfg, tinyCorpus())
	if err := tr.BuildVocab(); err != nil {
		t.Fatalf("BuildVocab failed: %v", err)
	}

	v := tr.Vocab()
	wantCounts := map[string]int{"the": 3, "quick": 1, "fox": 2, "lazy": 1, "dog": 1, "runs": 1}
	if v.Len() != len(wantCounts) {
		t.Fatalf("expected %d words, got %d", len(wantCounts), v.Len())
	}
	for tok, want := range wantCounts {
		i, ok := v.Idx(tok)
		if !ok {
			t.Fatalf("missing vocabulary word %q", tok)
		}
		if got := v.Word(i).Count; got != want {
			t.Errorf("%q: expected count %d, got %d", tok, want, got)
		}
	}

	if err := tr.Train(); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if tr.State() != Done {
		t.Fatalf("expected Done, got %v", tr.State())
	}

	// Every word appears as focus or context at least once, so after one
	// epoch each word's input row or output row must have moved.
	initial := store.New(v.Len(), 0, cfg.Dims, 1, cfg.Seed)
	for i := 0; i < v.Len(); i++ {
		inputMoved := !slices.Equal(tr.store.Input.Row(i), initial.Input.Row(i))
		outputMoved := false
		for _, x := range tr.store.Output.Row(i) {
			if x != 0 {
				outputMoved = true
				break
			}
		}
		if !inputMoved && !outputMoved {
			t.Errorf("word %q: neither input nor output row moved", v.Word(i).Token)
		}
	}

	if tr.TrainLoss() <= 0 {
		t.Errorf("expected positive mean train loss, got %g", tr.TrainLoss())
	}

	m, err := tr.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if len(m.Words) != v.Len() || m.Dims != cfg.Dims || !m.NoSubwords {
		t.Fatalf("unexpected handoff: %d words, %d dims", len(m.Words), m.Dims)
	}
	if len(m.Input) != v.Len()*cfg.Dims {
		t.Fatalf("expected %d input components, got %d", v.Len()*cfg.Dims, len(m.Input))
	}
}

func TestTrain_ZeroEpochsIsNoop(t *testing.T) {
	cfg := tinyConfig()
	cfg.Epochs = 0
	cfg.NoSubwords = false
	cfg.MinN = 2
	cfg.MaxN = 3
	cfg.BucketsExp = 6

	tr := New(cfg, tinyCorpus())
	if err := tr.BuildVocab(); err != nil {
		t.Fatalf("BuildVocab failed: %v", err)
	}
	if err := tr.Train(); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if tr.State() != Done {
		t.Fatalf("expected Done, got %v", tr.State())
	}

	initial := store.New(tr.Vocab().Len(), 1<<cfg.BucketsExp, cfg.Dims, 1, cfg.Seed)
	if !slices.Equal(tr.store.Input.Data, initial.Input.Data) {
		t.Fatal("zero epochs changed the input matrix")
	}
	for _, x := range tr.store.Output.Data {
		if x != 0 {
			t.Fatal("zero epochs changed the output matrix")
		}
	}
}

func TestTrain_StopFlushesCurrentState(t *testing.T) {
	cfg := tinyConfig()
	cfg.Epochs = 50
	tr := New(cfg, tinyCorpus())
	if err := tr.BuildVocab(); err != nil {
		t.Fatalf("BuildVocab failed: %v", err)
	}

	// A stop requested before training starts makes every worker exit at its
	// first sentence; the run still completes and hands off the matrices.
	tr.Stop()
	if err := tr.Train(); err != nil {
		t.Fatalf("Train after Stop failed: %v", err)
	}
	if tr.State() != Done {
		t.Fatalf("expected Done after cooperative stop, got %v", tr.State())
	}
	if _, err := tr.Result(); err != nil {
		t.Fatalf("Result after stop failed: %v", err)
	}
}

func TestTrain_Divergence(t *testing.T) {
	cfg := tinyConfig()
	cfg.LR = 1e30 // absurd rate: updates overflow float32 within a few pairs
	cfg.ContextSize = 2
	cfg.Epochs = 300

	var c corpus.Corpus
	for i := 0; i < 10; i++ {
		c = append(c, []string{"a", "b", "c", "d", "e", "f"})
	}

	tr := New(cfg, c)
	tr.checkEvery = 1
	if err := tr.BuildVocab(); err != nil {
		t.Fatalf("BuildVocab failed: %v", err)
	}

	err := tr.Train()
	if err == nil {
		t.Fatal("expected divergence error")
	}
	if !errors.Is(err, ErrDiverged) {
		t.Fatalf("expected ErrDiverged, got %v", err)
	}
	if tr.State() != Failed {
		t.Fatalf("expected Failed, got %v", tr.State())
	}
}

// syntheticCorpus builds sentences over a fixed small vocabulary.
func syntheticCorpus(sentences, length, nWords int, seed uint64) corpus.Corpus {
	rng := rand.New(rand.NewPCG(seed, 0))
	c := make(corpus.Corpus, sentences)
	for i := range c {
		sent := make([]string, length)
		for j := range sent {
			sent[j] = "w" + string(rune('a'+rng.IntN(nWords)/26)) + string(rune('a'+rng.IntN(nWords)%26))
		}
		c[i] = sent
	}
	return c
}

func TestTrain_ThreadCountLossEquivalence(t *testing.T) {
	c := syntheticCorpus(400, 10, 26, 3)

	run := func(threads int) float64 {
		cfg := tinyConfig()
		cfg.ContextSize = 3
		cfg.Dims = 16
		cfg.Threads = threads
		tr := New(cfg, c)
		if err := tr.BuildVocab(); err != nil {
			t.Fatalf("BuildVocab failed: %v", err)
		}
		if err := tr.Train(); err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		return tr.TrainLoss()
	}

	loss1 := run(1)
	loss4 := run(4)
	if loss1 <= 0 || loss4 <= 0 {
		t.Fatalf("expected positive losses, got %g and %g", loss1, loss4)
	}

	// Shard boundaries and RNG streams differ, so bit-exact equality is not
	// expected; the aggregate loss must still land in the same regime.
	if rel := math.Abs(loss1-loss4) / loss1; rel > 0.25 {
		t.Fatalf("threads=1 loss %g and threads=4 loss %g differ by %.0f%%",
			loss1, loss4, rel*100)
	}
}

func TestCurrentLR_NonIncreasing(t *testing.T) {
	cfg := tinyConfig()
	tr := New(cfg, tinyCorpus())
	tr.totalPlanned = 1000

	prev := tr.currentLR()
	if prev != cfg.LR {
		t.Fatalf("expected initial lr %g, got %g", cfg.LR, prev)
	}
	for _, n := range []uint64{1, 10, 100, 500, 999, 1000, 2000} {
		tr.tokens.Store(n)
		lr := tr.currentLR()
		if lr > prev {
			t.Fatalf("learning rate increased at %d tokens: %g > %g", n, lr, prev)
		}
		if lr <= 0 {
			t.Fatalf("learning rate dropped to %g at %d tokens", lr, n)
		}
		prev = lr
	}

	// The floor keeps the rate strictly positive past the planned end.
	tr.tokens.Store(10000)
	if got, want := tr.currentLR(), cfg.LR*lrFloor; got != want {
		t.Fatalf("expected floored lr %g, got %g", want, got)
	}
}
