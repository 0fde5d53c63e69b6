package resolve

import "sync"

// GuessCache remembers the top-scoring candidate tier per part key. The
// tier depends only on the schema, so rows are always counted afresh for
// each project. An entry whose tables no longer yield rows is bypassed by
// a rescan.
type GuessCache interface {
	Get(part string) ([]Candidate, bool)
	Put(part string, tier []Candidate)
	Invalidate(part string)
}

// MemoryCache is a process-local GuessCache. The zero value is ready to use.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string][]Candidate
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache { return &MemoryCache{} }

func (c *MemoryCache) Get(part string) ([]Candidate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tier, ok := c.m[part]
	if !ok {
		return nil, false
	}
	return append([]Candidate(nil), tier...), true
}

// Put stores a copy of tier with row counts cleared.
func (c *MemoryCache) Put(part string, tier []Candidate) {
	cp := make([]Candidate, len(tier))
	for i, cand := range tier {
		cand.Rows = -1
		cp[i] = cand
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]Candidate{}
	}
	c.m[part] = cp
}

// Invalidate drops one part, or every part when part is "".
func (c *MemoryCache) Invalidate(part string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if part == "" {
		c.m = nil
		return
	}
	delete(c.m, part)
}
