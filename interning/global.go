// Package interning maps text to pointer-sized handles. Equal text always
// resolves to the same handle, so handles compare with a single pointer
// comparison and carry their own length.
//
// Interned text is kept for the life of its table. The global table, used by
// Intern, lives for the whole process and is never torn down; tests that
// observe it should use content unique to the test rather than expect a
// fresh table.
package interning

import "sync"

var global = sync.OnceValue(func() *Table {
	return NewTable(WithCapacity(1024))
})

// Global returns the process-wide table, creating it on first use.
func Global() *Table {
	return global()
}

// Len returns the number of distinct strings in the global table.
func Len() int {
	return Global().Len()
}
