package interning

import (
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"
	"unsafe"

	"github.com/cockroachdb/swiss"
	"go.uber.org/zap"
)

// Strategy selects how a Table takes its lock on get-or-insert.
type Strategy int

const (
	// Optimistic probes under the shared lock and only takes the exclusive
	// lock on a miss, re-probing before it inserts.
	Optimistic Strategy = iota
	// Exclusive takes the exclusive lock on every call.
	Exclusive
)

func (s Strategy) String() string {
	switch s {
	case Optimistic:
		return "optimistic"
	case Exclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses the name of a strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "optimistic":
		return Optimistic, nil
	case "exclusive":
		return Exclusive, nil
	default:
		return 0, fmt.Errorf("interning: unknown strategy %q", name)
	}
}

// chain holds every handle whose content hashes to the same value. The
// second slot is only used on a 64-bit hash collision.
type chain struct {
	head Handle
	rest []Handle
}

// Stats is a point-in-time view of a table.
type Stats struct {
	Entries  int    `json:"entries"`
	Bytes    uint64 `json:"bytes"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Strategy string `json:"strategy"`
}

// Table is a concurrent, deduplicating set of handles keyed by content.
// Entries are never removed.
type Table struct {
	mu      sync.RWMutex
	index   *swiss.Map[uint64, chain]
	handles []Handle

	strategy Strategy
	log      *zap.Logger

	hits     atomic.Uint64
	misses   atomic.Uint64
	bytes    atomic.Uint64
	poisoned atomic.Bool

	// construct builds the buffer for a miss. Replaced in tests.
	construct func(string) (Handle, error)
}

// Option configures a Table.
type Option func(*tableOptions)

type tableOptions struct {
	strategy Strategy
	capacity int
	log      *zap.Logger
}

// WithStrategy sets the locking strategy. The default is Optimistic.
func WithStrategy(s Strategy) Option {
	return func(o *tableOptions) {
		o.strategy = s
	}
}

// WithCapacity presizes the table for n entries.
func WithCapacity(n int) Option {
	return func(o *tableOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithLogger sets the logger used for table lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(o *tableOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewTable creates an empty table.
func NewTable(opts ...Option) *Table {
	o := tableOptions{
		strategy: Optimistic,
		capacity: 64,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Table{
		index:     swiss.New[uint64, chain](o.capacity),
		handles:   make([]Handle, 0, o.capacity),
		strategy:  o.strategy,
		log:       o.log,
		construct: construct,
	}
	t.log.Debug("created intern table",
		zap.Stringer("strategy", t.strategy),
		zap.Int("capacity", o.capacity),
	)
	return t
}

func construct(s string) (Handle, error) {
	h, err := newBuffer(s)
	if err != nil {
		return Handle{}, err
	}
	return Handle{p: h}, nil
}

// Strategy returns the locking strategy of the table.
func (t *Table) Strategy() Strategy {
	return t.strategy
}

// GetOrIntern returns the handle for s, creating it on first use. Every call
// with equal content returns the same handle, whichever goroutine wins.
func (t *Table) GetOrIntern(s string) (Handle, error) {
	if s == "" {
		return empty, nil
	}
	t.checkPoisoned()
	hash := hashString(s)
	if t.strategy == Optimistic {
		t.mu.RLock()
		h, ok := t.probe(hash, s)
		t.mu.RUnlock()
		if ok {
			t.hits.Add(1)
			return h, nil
		}
	}
	return t.insert(hash, s)
}

// Intern is like GetOrIntern but panics if s is longer than MaxLen.
func (t *Table) Intern(s string) Handle {
	h, err := t.GetOrIntern(s)
	if err != nil {
		panic(err)
	}
	return h
}

// InternBytes interns b after validating it as UTF-8. The probe does not
// allocate; b is copied only when the content is new.
func (t *Table) InternBytes(b []byte) (Handle, error) {
	if len(b) == 0 {
		return empty, nil
	}
	if !utf8.Valid(b) {
		return Handle{}, ErrInvalidUTF8
	}
	return t.GetOrIntern(unsafe.String(unsafe.SliceData(b), len(b)))
}

// insert runs under the exclusive lock. It re-probes first: another
// goroutine may have inserted s while the lock was being acquired.
func (t *Table) insert(hash uint64, s string) (h Handle, err error) {
	t.mu.Lock()
	done := false
	defer func() {
		if !done {
			t.poisoned.Store(true)
			t.log.Error("intern table poisoned by panic under write lock", zap.Int("len", len(s)))
		}
		t.mu.Unlock()
	}()

	if h, ok := t.probe(hash, s); ok {
		done = true
		t.hits.Add(1)
		return h, nil
	}

	// s may alias caller memory; construct copies it into the buffer.
	h, err = t.construct(s)
	if err != nil {
		done = true
		t.log.Warn("rejected text for interning", zap.Int("len", len(s)), zap.Error(err))
		return Handle{}, err
	}

	c, ok := t.index.Get(hash)
	if !ok {
		c = chain{head: h}
	} else {
		c.rest = append(c.rest, h)
	}
	t.index.Put(hash, c)
	t.handles = append(t.handles, h)
	t.misses.Add(1)
	t.bytes.Add(uint64(h.Len()))
	done = true
	return h, nil
}

// probe looks s up by content. Callers hold t.mu.
func (t *Table) probe(hash uint64, s string) (Handle, bool) {
	c, ok := t.index.Get(hash)
	if !ok {
		return Handle{}, false
	}
	if c.head.String() == s {
		return c.head, true
	}
	for _, h := range c.rest {
		if h.String() == s {
			return h, true
		}
	}
	return Handle{}, false
}

// Lookup returns the handle for s if it has already been interned.
func (t *Table) Lookup(s string) (Handle, bool) {
	if s == "" {
		return empty, true
	}
	t.checkPoisoned()
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.probe(hashString(s), s)
}

// Len returns the number of distinct strings held by the table.
func (t *Table) Len() int {
	t.checkPoisoned()
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}

// Stats returns the current counters. The counters are read without the
// lock, so they may be slightly ahead of Entries under concurrent use.
func (t *Table) Stats() Stats {
	return Stats{
		Entries:  t.Len(),
		Bytes:    t.bytes.Load(),
		Hits:     t.hits.Load(),
		Misses:   t.misses.Load(),
		Strategy: t.strategy.String(),
	}
}

// All yields every handle in insertion order. It iterates over a snapshot
// taken under the shared lock, so the body may intern freely.
func (t *Table) All() iter.Seq[Handle] {
	t.checkPoisoned()
	t.mu.RLock()
	snapshot := t.handles[:len(t.handles):len(t.handles)]
	t.mu.RUnlock()
	return func(yield func(Handle) bool) {
		for _, h := range snapshot {
			if !yield(h) {
				return
			}
		}
	}
}

func (t *Table) checkPoisoned() {
	if t.poisoned.Load() {
		panic(ErrPoisoned)
	}
}
