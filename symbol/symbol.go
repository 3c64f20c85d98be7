// Package symbol manages symbols. Symbols are deduped strings represented as
// small integers. The compiler interns every identifier, type name and member
// name it sees, so name lookups elsewhere are integer compares.
package symbol

import (
	"sync"

	"github.com/grailbio/base/log"
)

// ID represents an interned symbol.
type ID int32

const (
	// Invalid is a sentinel.
	Invalid = ID(0)
)

// Singleton symbol intern table.
type table struct {
	mu    sync.Mutex
	syms  map[string]ID
	names []string
}

var symbols = table{
	syms:  map[string]ID{"(invalid)": 0},
	names: []string{"(invalid)"},
}

// Str returns a human-readable string.
//
// Note: we don't call it String() since it makes the code deadlock prone.
func (id ID) Str() string {
	symbols.mu.Lock()
	defer symbols.mu.Unlock()
	if int(id) >= len(symbols.names) {
		log.Panicf("symboltable: id %d not found", id)
	}
	return symbols.names[id]
}

// Intern finds or creates an ID for the given string.
func Intern(v string) ID {
	if v == "" {
		log.Panicf("Empty symbol")
	}
	symbols.mu.Lock()
	defer symbols.mu.Unlock()
	if id, ok := symbols.syms[v]; ok {
		return id
	}
	id := ID(len(symbols.names))
	symbols.names = append(symbols.names, v)
	symbols.syms[v] = id
	return id
}
