// Package workers interns large batches of text on a bounded goroutine pool.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"lsi/internal/logger"
	"lsi/interning"
)

var (
	ErrPoolClosed   = errors.New("worker pool closed")
	ErrTaskPanicked = errors.New("intern task panicked")
)

const defaultChunkSize = 512

// Interner is the part of *interning.Table the pool needs.
type Interner interface {
	GetOrIntern(s string) (interning.Handle, error)
}

// Config sizes a Pool. A zero Size means GOMAXPROCS and a zero ChunkSize
// means 512 texts per task.
type Config struct {
	Size      int
	ChunkSize int
	PreAlloc  bool
}

// Pool splits batches into chunks and interns each chunk as one ants task.
type Pool struct {
	pool      *ants.Pool
	table     Interner
	chunkSize int
	log       logger.Logger
	metrics   *poolMetrics
	closed    atomic.Bool
}

// New creates a pool interning into table.
func New(cfg Config, table Interner, log logger.Logger) (*Pool, error) {
	if log == nil {
		log = logger.NewNop()
	}
	size := cfg.Size
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	p := &Pool{
		table:     table,
		chunkSize: chunk,
		log:       log.With(logger.F("component", "workers")),
		metrics:   newPoolMetrics(),
	}
	pool, err := ants.NewPool(
		size,
		ants.WithPreAlloc(cfg.PreAlloc),
		ants.WithPanicHandler(p.handlePanic),
		ants.WithLogger(antsLogger{p.log}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool: %w", err)
	}
	p.pool = pool
	p.log.Debug("worker pool started",
		logger.F("workers", size),
		logger.F("chunk_size", chunk),
		logger.F("pre_alloc", cfg.PreAlloc))
	return p, nil
}

// InternAll interns every text and returns the handles in input order.
// Submission stops at the first failed chunk or when ctx is done; chunks
// already running finish before InternAll returns.
func (p *Pool) InternAll(ctx context.Context, texts []string) ([]interning.Handle, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	out := make([]interning.Handle, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for start := 0; start < len(texts); start += p.chunkSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+p.chunkSize, len(texts))
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.internChunk(ctx, texts[start:end], out[start:end]); err != nil {
				cancel(err)
			}
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrPoolClosed
			}
			cancel(err)
			break
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pool) internChunk(ctx context.Context, texts []string, out []interning.Handle) (err error) {
	begin := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrTaskPanicked, e)
			} else {
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
			p.log.Error("intern chunk panicked", logger.Err(err), logger.F("texts", len(texts)))
		}
		if err != nil {
			p.metrics.recordFailure()
			return
		}
		p.metrics.recordChunk(len(texts), time.Since(begin))
	}()

	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	for i, s := range texts {
		h, err := p.table.GetOrIntern(s)
		if err != nil {
			return err
		}
		out[i] = h
	}
	return nil
}

// handlePanic only sees panics that escape internChunk's own recovery.
func (p *Pool) handlePanic(r interface{}) {
	p.log.Error("worker panic", logger.F("panic", fmt.Sprint(r)))
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Metrics {
	return p.metrics.snapshot(p.pool.Running())
}

// ResetStats zeroes the counters.
func (p *Pool) ResetStats() {
	p.metrics.reset()
}

// Cap is the number of workers.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Close releases the workers. It is safe to call more than once.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	p.log.Debug("worker pool released")
}

// antsLogger routes ants' internal messages through the structured logger.
type antsLogger struct {
	log logger.Logger
}

func (l antsLogger) Printf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...), logger.F("source", "ants"))
}
