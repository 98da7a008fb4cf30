package pairing

import "math/rand/v2"

// Pool is the waiting pool: the set of connections seeking a partner. A
// connection appears at most once. Pool is not goroutine-safe on its own;
// the Engine's mutex serializes all access.
type Pool struct {
	ids   []string
	index map[string]int // connID -> position in ids
}

// NewPool creates an empty waiting pool.
func NewPool() *Pool {
	return &Pool{index: make(map[string]int)}
}

// Add inserts a connection into the pool. Returns false if the connection
// is already waiting (membership is idempotent, never duplicated).
func (p *Pool) Add(connID string) bool {
	if _, ok := p.index[connID]; ok {
		return false
	}
	p.index[connID] = len(p.ids)
	p.ids = append(p.ids, connID)
	return true
}

// PopRandom removes and returns a random member of the pool. Selection is
// intentionally not oldest-first: with a near-empty pool a FIFO policy would
// bias latency toward whichever side of the queue a client lands on.
func (p *Pool) PopRandom() (string, bool) {
	if len(p.ids) == 0 {
		return "", false
	}
	i := rand.IntN(len(p.ids))
	connID := p.ids[i]
	p.removeAt(i)
	return connID, true
}

// Remove deletes a connection from the pool. No-op if absent. Returns true
// if the connection was present.
func (p *Pool) Remove(connID string) bool {
	i, ok := p.index[connID]
	if !ok {
		return false
	}
	p.removeAt(i)
	return true
}

// Contains reports whether a connection is currently waiting.
func (p *Pool) Contains(connID string) bool {
	_, ok := p.index[connID]
	return ok
}

// Len returns the number of waiting connections.
func (p *Pool) Len() int {
	return len(p.ids)
}

// removeAt deletes the entry at position i by swapping in the last element.
func (p *Pool) removeAt(i int) {
	last := len(p.ids) - 1
	delete(p.index, p.ids[i])
	if i != last {
		p.ids[i] = p.ids[last]
		p.index[p.ids[i]] = i
	}
	p.ids = p.ids[:last]
}
