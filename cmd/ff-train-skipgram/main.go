package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/danieldk/finalfrontier/internal/config"
	"github.com/danieldk/finalfrontier/internal/corpus"
	"github.com/danieldk/finalfrontier/internal/logging"
	"github.com/danieldk/finalfrontier/internal/model"
	"github.com/danieldk/finalfrontier/internal/output"
	"github.com/danieldk/finalfrontier/internal/output/file"
	"github.com/danieldk/finalfrontier/internal/trainer"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel)

	corp, err := corpus.ReadFile(cfg.Corpus)
	if err != nil {
		slog.Error("reading corpus", "err", err)
		os.Exit(1)
	}
	slog.Info("corpus read", "sentences", len(corp), "tokens", corp.Tokens())

	tr := trainer.New(cfg, corp)
	if err := tr.BuildVocab(); err != nil {
		slog.Error("building vocabulary", "err", err)
		os.Exit(1)
	}

	// A termination signal stops all workers cooperatively; the matrices as
	// they stand are still flushed to the output.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Warn("stopping early", "signal", sig.String())
		tr.Stop()
	}()

	if err := tr.Train(); err != nil {
		slog.Error("training", "err", err)
		os.Exit(1)
	}

	m, err := tr.Result()
	if err != nil {
		slog.Error("collecting result", "err", err)
		os.Exit(1)
	}

	out, err := file.New(cfg.Output)
	if err != nil {
		slog.Error("opening output", "err", err)
		os.Exit(1)
	}
	if err := writeModel(out, m); err != nil {
		slog.Error("writing output", "err", err)
		os.Exit(1)
	}

	slog.Info("embeddings written",
		"path", cfg.Output,
		"words", len(m.Words),
		"buckets", m.BucketRows(),
		"dims", m.Dims,
		"run_id", m.Info.RunID)
}

// writeModel serializes the model to a destination and closes it, keeping the
// close error when the write itself succeeded.
func writeModel(dest output.Output, m model.TrainedModel) error {
	if err := dest.Write(m); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}
