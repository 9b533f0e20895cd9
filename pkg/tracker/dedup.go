package tracker

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// DeDupSet holds tokens that are permanently done being evaluated: either
// already signaled, or terminally rejected. Its only purpose is to stop
// the signal engine from re-running the full predicate chain on every
// subsequent mutation of a token that can never pass.
type DeDupSet struct {
	mu   sync.RWMutex
	seen map[common.Address]struct{}
}

func NewDeDupSet() *DeDupSet {
	return &DeDupSet{seen: make(map[common.Address]struct{})}
}

func (d *DeDupSet) Add(token common.Address) {
	d.mu.Lock()
	d.seen[token] = struct{}{}
	d.mu.Unlock()
}

func (d *DeDupSet) Contains(token common.Address) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[token]
	return ok
}
