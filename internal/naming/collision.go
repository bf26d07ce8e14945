package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

type claim struct {
	requested string
	path      string
}

// Resolver tracks output paths claimed by input files and resolves
// duplicates by appending "-N" to the stem. All methods are goroutine-safe.
type Resolver struct {
	mu       sync.Mutex
	owners   map[string]string // output path -> input path that owns it
	claims   map[string]claim  // input path -> what it asked for and got
	counters map[string]int    // requested output path -> next counter
}

// NewResolver creates a ready-to-use resolver.
func NewResolver() *Resolver {
	return &Resolver{
		owners:   make(map[string]string),
		claims:   make(map[string]claim),
		counters: make(map[string]int),
	}
}

// Resolve returns the final output path for input. If requested is
// unclaimed it is returned as-is, otherwise the first free "<stem>-N<ext>"
// variant is claimed.
//
// Asking again with the same input and request returns the same answer. An
// input asking for a different path (its content hash changed, say)
// releases the path it held before.
func (r *Resolver) Resolve(input, requested string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.claims[input]; ok {
		if c.requested == requested {
			return c.path
		}
		delete(r.owners, c.path)
		delete(r.claims, input)
	}

	if _, taken := r.owners[requested]; !taken {
		r.take(input, requested, requested)
		return requested
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := r.counters[requested]
	if counter == 0 {
		counter = 1
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, counter, ext))
		if _, taken := r.owners[candidate]; !taken {
			r.counters[requested] = counter + 1
			r.take(input, requested, candidate)
			return candidate
		}
		counter++
	}
}

func (r *Resolver) take(input, requested, path string) {
	r.owners[path] = input
	r.claims[input] = claim{requested: requested, path: path}
}
