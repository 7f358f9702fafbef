package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lsi/internal/config"
	"lsi/internal/loader"
	"lsi/internal/logger"
	"lsi/internal/workers"
	"lsi/interning"
)

type loadReport struct {
	RunID    string `json:"run_id"`
	Files    int    `json:"files"`
	Lines    int    `json:"lines"`
	Bytes    int64  `json:"bytes"`
	Entries  int    `json:"entries"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Strategy string `json:"strategy"`
	Elapsed  string `json:"elapsed"`
}

func (r loadReport) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"run:      %s\nfiles:    %d\nlines:    %d\nbytes:    %d\nentries:  %d\nhits:     %d\nmisses:   %d\nstrategy: %s\nelapsed:  %s\n",
		r.RunID, r.Files, r.Lines, r.Bytes, r.Entries, r.Hits, r.Misses, r.Strategy, r.Elapsed)
	return err
}

func newLoadCommand(a *app) *cobra.Command {
	var (
		strategy string
		workerN  int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "load [files...]",
		Short: "intern every line of the given corpora and print a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("strategy") {
				a.cfg.Table.Strategy = strategy
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Workers.Size = workerN
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			paths := append(append([]string(nil), a.cfg.Corpora...), args...)
			_, report, err := runLoad(cmd.Context(), a.cfg, paths)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return report.writeText(a.out)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "table locking strategy (optimistic or exclusive)")
	cmd.Flags().IntVar(&workerN, "workers", 0, "worker pool size, 0 for GOMAXPROCS")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as json")
	return cmd
}

func newTable(cfg config.Config, log logger.Logger) *interning.Table {
	return interning.NewTable(
		interning.WithStrategy(cfg.Strategy()),
		interning.WithCapacity(cfg.Table.InitialCapacity),
		interning.WithLogger(log.Zap()),
	)
}

// runLoad reads paths and interns every line into a fresh table. It logs
// through the logger carried by ctx.
func runLoad(ctx context.Context, cfg config.Config, paths []string) (*interning.Table, loadReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.New()
	log := logger.FromContext(ctx).With(logger.F("run_id", runID.String()))
	begin := time.Now()

	corpora, err := loader.LoadFiles(ctx, paths, loader.Options{
		Concurrency:  cfg.Loader.Concurrency,
		MaxLineBytes: cfg.Loader.MaxLineBytes,
	})
	if err != nil {
		return nil, loadReport{}, err
	}
	lines := loader.Lines(corpora)

	table := newTable(cfg, log)
	pool, err := workers.New(workers.Config{
		Size:      cfg.WorkerCount(),
		ChunkSize: cfg.Workers.ChunkSize,
		PreAlloc:  cfg.Workers.PreAlloc,
	}, table, log)
	if err != nil {
		return nil, loadReport{}, err
	}
	defer pool.Close()

	if _, err := pool.InternAll(ctx, lines); err != nil {
		return nil, loadReport{}, err
	}

	st := table.Stats()
	report := loadReport{
		RunID:    runID.String(),
		Files:    len(corpora),
		Lines:    len(lines),
		Entries:  st.Entries,
		Hits:     st.Hits,
		Misses:   st.Misses,
		Strategy: st.Strategy,
		Elapsed:  time.Since(begin).Round(time.Microsecond).String(),
	}
	for _, c := range corpora {
		report.Bytes += c.Bytes
	}
	ps := pool.Stats()
	log.Info("corpora interned",
		logger.F("files", report.Files),
		logger.F("lines", report.Lines),
		logger.F("entries", report.Entries),
		logger.F("chunks", ps.ChunksProcessed),
		logger.F("max_chunk_latency", ps.MaxLatency))
	return table, report, nil
}
