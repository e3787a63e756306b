package deploy

import (
	"sync"

	"github.com/dmitrijs2005/guidesync/internal/common"
)

// activeGuard enforces at-most-one in-flight deployment per instance. It is
// in-process only; cross-process exclusion is a scaling boundary, not a
// correctness requirement here.
type activeGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newActiveGuard() *activeGuard {
	return &activeGuard{active: map[string]struct{}{}}
}

// acquire reserves the instance for one deployment. The caller must release
// on every exit path.
func (g *activeGuard) acquire(instanceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[instanceID]; busy {
		return &common.ConcurrencyError{InstanceID: instanceID}
	}
	g.active[instanceID] = struct{}{}
	return nil
}

func (g *activeGuard) release(instanceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, instanceID)
}
