package config

import (
	"errors"
	"flag"
	"fmt"
	"runtime"

	"github.com/danieldk/finalfrontier/internal/model"
)

// ErrInvalid marks configuration validation failures. All validation happens
// before any corpus pass; a wrapped ErrInvalid means training never started.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all trainer configuration.
type Config struct {
	Corpus string
	Output string

	BucketsExp  uint    // number of subword buckets: 2^BucketsExp
	ContextSize int     // tokens considered on each side of the focus token
	Dims        int     // embedding dimensionality
	Discard     float64 // frequent-word discard threshold
	Epochs      int
	LR          float64 // initial learning rate
	MaxN        int     // maximum subword n-gram length (inclusive)
	MinCount    int     // minimum token frequency
	MinN        int     // minimum subword n-gram length (inclusive)
	Model       model.ModelType
	NegSamples  int // negative samples per context word
	NoSubwords  bool
	Threads     int
	ZipfExp     float64 // exponent of the negative-sampling Zipf distribution
	Seed        uint64  // base seed for per-worker RNGs
	LogLevel    string
}

// Parse builds a Config from command-line arguments: options followed by the
// CORPUS and OUTPUT positional arguments.
func Parse(args []string) (Config, error) {
	var cfg Config
	var modelName string

	fs := flag.NewFlagSet("ff-train-skipgram", flag.ContinueOnError)
	fs.UintVar(&cfg.BucketsExp, "buckets", 21, "number of buckets: 2^EXP")
	fs.IntVar(&cfg.ContextSize, "context", 10, "context size")
	fs.IntVar(&cfg.Dims, "dims", 300, "embedding dimensionality")
	fs.Float64Var(&cfg.Discard, "discard", 1e-4, "discard threshold")
	fs.IntVar(&cfg.Epochs, "epochs", 15, "number of epochs")
	fs.Float64Var(&cfg.LR, "lr", 0.05, "initial learning rate")
	fs.IntVar(&cfg.MaxN, "maxn", 6, "maximum ngram length")
	fs.IntVar(&cfg.MinCount, "mincount", 5, "minimum token frequency")
	fs.IntVar(&cfg.MinN, "minn", 3, "minimum ngram length")
	fs.StringVar(&modelName, "model", "skipgram", "model: skipgram, dirgram, or structgram")
	fs.BoolVar(&cfg.NoSubwords, "no_subwords", false, "train without subword representations")
	fs.IntVar(&cfg.NegSamples, "ns", 5, "negative samples per word")
	fs.IntVar(&cfg.Threads, "threads", defaultThreads(), "number of worker threads")
	fs.Float64Var(&cfg.ZipfExp, "zipf", 0.5, "exponent of the Zipf distribution for negative sampling")
	fs.Uint64Var(&cfg.Seed, "seed", 19, "base random seed")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "log level: debug, info, warn, or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	m, err := model.ParseModelType(modelName)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.Model = m

	if fs.NArg() != 2 {
		return Config{}, fmt.Errorf("%w: expected CORPUS and OUTPUT arguments, got %d", ErrInvalid, fs.NArg())
	}
	cfg.Corpus = fs.Arg(0)
	cfg.Output = fs.Arg(1)

	return cfg, nil
}

// Validate checks all fields and reports every fault at once. It must pass
// before any training work begins.
func (c Config) Validate() error {
	var errs []error

	if c.Dims < 1 {
		errs = append(errs, fmt.Errorf("dims must be positive, got %d", c.Dims))
	}
	if c.Epochs < 0 {
		errs = append(errs, fmt.Errorf("epochs must not be negative, got %d", c.Epochs))
	}
	if c.ContextSize < 1 {
		errs = append(errs, fmt.Errorf("context size must be positive, got %d", c.ContextSize))
	}
	if c.LR <= 0 {
		errs = append(errs, fmt.Errorf("learning rate must be positive, got %g", c.LR))
	}
	if c.Discard <= 0 {
		errs = append(errs, fmt.Errorf("discard threshold must be positive, got %g", c.Discard))
	}
	if c.MinCount < 1 {
		errs = append(errs, fmt.Errorf("mincount must be positive, got %d", c.MinCount))
	}
	if c.NegSamples < 0 {
		errs = append(errs, fmt.Errorf("negative samples must not be negative, got %d", c.NegSamples))
	}
	if c.ZipfExp < 0 {
		errs = append(errs, fmt.Errorf("zipf exponent must not be negative, got %g", c.ZipfExp))
	}
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("threads must be positive, got %d", c.Threads))
	}
	if !c.NoSubwords {
		if c.MinN < 1 {
			errs = append(errs, fmt.Errorf("minn must be positive, got %d", c.MinN))
		}
		if c.MinN > c.MaxN {
			errs = append(errs, fmt.Errorf("minn (%d) must not exceed maxn (%d)", c.MinN, c.MaxN))
		}
		if c.BucketsExp > 31 {
			errs = append(errs, fmt.Errorf("buckets exponent must be at most 31, got %d", c.BucketsExp))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// defaultThreads is half the logical CPUs, capped at 20 and floored at 1.
func defaultThreads() int {
	n := runtime.NumCPU() / 2
	if n > 20 {
		n = 20
	}
	if n < 1 {
		n = 1
	}
	return n
}
