// Package symbols resolves addresses to demangled function names.
package symbols

import (
	"sort"
	"sync"

	"github.com/ianlancetaylor/demangle"

	"pcode/internal/elfx"
)

var (
	demangleMu    sync.RWMutex
	demangleCache = make(map[string]string)
)

// Demangle returns the demangled form of a C++ or Rust name, or the name
// itself. Results are cached.
func Demangle(mangled string) string {
	demangleMu.RLock()
	if d, ok := demangleCache[mangled]; ok {
		demangleMu.RUnlock()
		return d
	}
	demangleMu.RUnlock()

	d := demangle.Filter(mangled, demangle.NoClones)

	demangleMu.Lock()
	demangleCache[mangled] = d
	demangleMu.Unlock()
	return d
}

// Table maps addresses to the functions that contain them.
type Table struct {
	syms []elfx.Symbol
}

// NewTable builds a table from symbols in any order.
func NewTable(syms []elfx.Symbol) *Table {
	s := append([]elfx.Symbol(nil), syms...)
	sort.Slice(s, func(i, j int) bool { return s[i].Addr < s[j].Addr })
	return &Table{syms: s}
}

func (t *Table) Len() int { return len(t.syms) }

// At returns the demangled name of the symbol starting exactly at addr.
func (t *Table) At(addr uint64) (string, bool) {
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Addr >= addr })
	if i < len(t.syms) && t.syms[i].Addr == addr {
		return Demangle(t.syms[i].Name), true
	}
	return "", false
}

// Lookup returns the demangled name of the function containing addr and the
// function's start. Symbols without a size cover addresses up to the next
// symbol.
func (t *Table) Lookup(addr uint64) (name string, base uint64, ok bool) {
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Addr > addr })
	if i == 0 {
		return "", 0, false
	}
	s := t.syms[i-1]
	if s.Size != 0 && addr >= s.Addr+s.Size {
		return "", 0, false
	}
	return Demangle(s.Name), s.Addr, true
}
