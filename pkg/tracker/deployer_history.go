package tracker

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// deployerWindow is 24 hours: the rolling window DeployerHistory enforces
// against serial token launchers.
const deployerWindow = 24 * time.Hour

type deployerLaunch struct {
	token common.Address
	at    time.Time
}

// DeployerHistory maps a deployer address to the tokens it has launched in
// the last 24 hours. Entries older than the window are pruned lazily, on
// the next lookup for that deployer, rather than on a timer.
type DeployerHistory struct {
	mu      sync.Mutex
	byOwner map[common.Address][]deployerLaunch
}

func NewDeployerHistory() *DeployerHistory {
	return &DeployerHistory{byOwner: make(map[common.Address][]deployerLaunch)}
}

// Record registers a new token launch for a deployer.
func (h *DeployerHistory) Record(deployer, token common.Address, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byOwner[deployer] = h.prune(h.byOwner[deployer], at)
	h.byOwner[deployer] = append(h.byOwner[deployer], deployerLaunch{token: token, at: at})
}

// CountLast24h returns how many tokens this deployer has launched within
// the rolling 24h window as of now.
func (h *DeployerHistory) CountLast24h(deployer common.Address, now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byOwner[deployer] = h.prune(h.byOwner[deployer], now)
	return len(h.byOwner[deployer])
}

func (h *DeployerHistory) prune(launches []deployerLaunch, now time.Time) []deployerLaunch {
	kept := launches[:0]
	for _, l := range launches {
		if now.Sub(l.at) <= deployerWindow {
			kept = append(kept, l)
		}
	}
	return kept
}
