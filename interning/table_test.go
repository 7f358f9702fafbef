package interning

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var strategies = []Strategy{Optimistic, Exclusive}

func forEachStrategy(t *testing.T, fn func(t *testing.T, table *Table)) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			fn(t, NewTable(WithStrategy(s)))
		})
	}
}

func TestTableSameContentSameHandle(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, table *Table) {
		before := table.Len()
		a := table.Intern("hello")
		b := table.Intern("hello")
		if a != b {
			t.Fatalf("expected the same handle, got %p and %p", a.p, b.p)
		}
		if got := table.Len() - before; got != 1 {
			t.Fatalf("expected table to grow by 1, grew by %d", got)
		}
	})
}

func TestTableEmptyDoesNotGrow(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, table *Table) {
		h, err := table.GetOrIntern("")
		if err != nil {
			t.Fatalf("GetOrIntern(\"\") returned error: %v", err)
		}
		if h != Empty() || h.Len() != 0 {
			t.Fatalf("expected empty sentinel, got %#v", h)
		}
		if table.Len() != 0 {
			t.Fatalf("expected empty table, got %d entries", table.Len())
		}
		if st := table.Stats(); st.Hits != 0 || st.Misses != 0 {
			t.Fatalf("empty text touched the counters: %+v", st)
		}
	})
}

func TestTableDistinctContent(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, table *Table) {
		a := table.Intern("a")
		b := table.Intern("b")
		if a == b {
			t.Fatalf("expected distinct handles")
		}
		if a.String() == b.String() {
			t.Fatalf("expected distinct text")
		}
		if table.Len() != 2 {
			t.Fatalf("expected 2 entries, got %d", table.Len())
		}
	})
}

func TestTableRoundTrip(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, table *Table) {
		for i := 0; i < 1000; i++ {
			s := fmt.Sprintf("entry-%04d", i)
			h := table.Intern(s)
			if h.String() != s || h.Len() != len(s) {
				t.Fatalf("round trip failed for %q: got %q (len %d)", s, h.String(), h.Len())
			}
		}
		if table.Len() != 1000 {
			t.Fatalf("expected 1000 entries, got %d", table.Len())
		}
		for i := 0; i < 1000; i++ {
			s := fmt.Sprintf("entry-%04d", i)
			h, ok := table.Lookup(s)
			if !ok || h.String() != s {
				t.Fatalf("Lookup(%q) = %q, %v", s, h.String(), ok)
			}
		}
	})
}

func TestTableConcurrentSharedContent(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, table *Table) {
		const goroutines = 1000
		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			got   = make([]Handle, goroutines)
		)
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				got[i] = table.Intern("shared")
			}(i)
		}
		close(start)
		wg.Wait()

		for i, h := range got {
			if h != got[0] {
				t.Fatalf("goroutine %d observed a different handle", i)
			}
		}
		if table.Len() != 1 {
			t.Fatalf("expected exactly 1 entry, got %d", table.Len())
		}
		if st := table.Stats(); st.Misses != 1 || st.Hits != goroutines-1 {
			t.Fatalf("expected 1 miss and %d hits, got %+v", goroutines-1, st)
		}
	})
}

func TestTableConcurrentManyContents(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, table *Table) {
		const (
			goroutines = 32
			distinct   = 500
		)
		var wg sync.WaitGroup
		results := make([][]Handle, goroutines)
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				hs := make([]Handle, distinct)
				// Walk the keys in a different order per goroutine.
				for i := 0; i < distinct; i++ {
					k := (i*7 + g*13) % distinct
					hs[k] = table.Intern(fmt.Sprintf("key-%d", k))
				}
				results[g] = hs
			}(g)
		}
		wg.Wait()

		if table.Len() != distinct {
			t.Fatalf("expected %d entries, got %d", distinct, table.Len())
		}
		addrs := make(map[string]*header, distinct)
		for _, hs := range results {
			for k, h := range hs {
				want := fmt.Sprintf("key-%d", k)
				if h.String() != want {
					t.Fatalf("expected %q, got %q", want, h.String())
				}
				if p, ok := addrs[want]; ok && p != h.p {
					t.Fatalf("duplicate buffers for %q", want)
				}
				addrs[want] = h.p
			}
		}
	})
}

func TestTableHashCollision(t *testing.T) {
	table := NewTable()
	a := table.Intern("collide-a")
	// Force "collide-b" into the chain of "collide-a" to exercise the
	// collision path: the probe must compare content, not hashes alone.
	hash := hashString("collide-a")
	b, err := table.insert(hash, "collide-b")
	if err != nil {
		t.Fatalf("insert returned error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct handles in one chain")
	}
	if h, ok := table.probe(hash, "collide-b"); !ok || h != b {
		t.Fatalf("probe did not find the chained handle")
	}
	if h, ok := table.probe(hash, "collide-a"); !ok || h != a {
		t.Fatalf("probe did not find the chain head")
	}
	if _, ok := table.probe(hash, "collide-c"); ok {
		t.Fatalf("probe matched content that was never inserted")
	}
}

func TestTableLookupDoesNotInsert(t *testing.T) {
	table := NewTable()
	if _, ok := table.Lookup("absent"); ok {
		t.Fatalf("Lookup found content that was never interned")
	}
	if table.Len() != 0 {
		t.Fatalf("Lookup inserted into the table")
	}
	if h, ok := table.Lookup(""); !ok || h != Empty() {
		t.Fatalf("expected the empty sentinel for \"\"")
	}
}

func TestTableAllInsertionOrder(t *testing.T) {
	table := NewTable()
	want := []string{"one", "two", "three"}
	for _, s := range want {
		table.Intern(s)
	}
	table.Intern("two")

	var got []string
	for h := range table.All() {
		got = append(got, h.String())
		// Interning while iterating must not deadlock.
		table.Intern(h.String() + "!")
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if table.Len() != 6 {
		t.Fatalf("expected 6 entries, got %d", table.Len())
	}
}

func TestTableStats(t *testing.T) {
	table := NewTable(WithStrategy(Exclusive))
	table.Intern("abc")
	table.Intern("abc")
	table.Intern("de")
	st := table.Stats()
	want := Stats{Entries: 2, Bytes: 5, Hits: 1, Misses: 2, Strategy: "exclusive"}
	if st != want {
		t.Fatalf("expected %+v, got %+v", want, st)
	}
}

func TestTableOverflowRejected(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	table := NewTable(WithLogger(zap.New(core)))
	table.construct = func(s string) (Handle, error) {
		return Handle{}, &LayoutError{Len: uint(len(s))}
	}

	_, err := table.GetOrIntern("too long")
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("rejected text was inserted")
	}
	if recorded.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", recorded.Len())
	}

	defer func() {
		err, _ := recover().(error)
		if !errors.Is(err, ErrOverflow) {
			t.Fatalf("expected Intern to panic with ErrOverflow, got %v", err)
		}
	}()
	table.Intern("too long")
}

func TestTablePoisoning(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	table := NewTable(WithLogger(zap.New(core)))
	table.Intern("before")
	table.construct = func(string) (Handle, error) {
		panic("allocator exploded")
	}

	func() {
		defer func() {
			if r := recover(); r != "allocator exploded" {
				t.Fatalf("expected the original panic, got %v", r)
			}
		}()
		table.Intern("boom")
	}()

	if recorded.FilterMessage("intern table poisoned by panic under write lock").Len() != 1 {
		t.Fatalf("expected poisoning to be logged")
	}

	for name, call := range map[string]func(){
		"Intern": func() { table.Intern("before") },
		"Lookup": func() { table.Lookup("before") },
		"Len":    func() { table.Len() },
	} {
		func() {
			defer func() {
				if r := recover(); r != ErrPoisoned {
					t.Errorf("%s: expected ErrPoisoned panic, got %v", name, r)
				}
			}()
			call()
		}()
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"":           Optimistic,
		"optimistic": Optimistic,
		"Exclusive":  Exclusive,
		" exclusive": Exclusive,
	} {
		got, err := ParseStrategy(in)
		if err != nil {
			t.Fatalf("ParseStrategy(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseStrategy(%q): expected %v, got %v", in, want, got)
		}
	}
	if _, err := ParseStrategy("sharded"); err == nil {
		t.Fatalf("expected an error for an unknown strategy")
	}
}
