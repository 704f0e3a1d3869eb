package tune

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cwbudde/hypertune/internal/optpath"
	"github.com/cwbudde/hypertune/internal/param"
)

// Strategy is the contract a search algorithm must satisfy to drive the
// evaluation loop. A strategy is free to call the evaluator any number of
// times and is the only component deciding which configurations to try and
// when to stop. It must not mutate the path directly; all recording happens
// through the evaluator. The returned best must reference a trial the
// strategy actually evaluated.
type Strategy interface {
	Search(ctx context.Context, ev *Evaluator, space *param.Space, ctrl Control, path *optpath.Path) (*SearchOutcome, error)
}

// SearchOutcome is what a strategy reports back: the winning trial's index
// into the path plus any strategy-specific diagnostics (e.g. racing survivor
// counts). Identifying the winner by path index makes a synthesized,
// never-evaluated best impossible by construction.
type SearchOutcome struct {
	BestIndex   int
	Diagnostics map[string]any
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Strategy)
)

// Register binds a control kind to its strategy implementation. Strategy
// packages call this from init; re-registering a kind panics, as it is a
// programming error.
func Register(kind string, s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("tune: strategy kind already registered: %s", kind))
	}
	registry[kind] = s
}

// Kinds returns the registered strategy kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// strategyFor resolves the registered strategy for a control. An unknown
// kind is a configuration error, not a silent no-op.
func strategyFor(ctrl Control) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[ctrl.Kind()]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind: %s (registered: %v)", ctrl.Kind(), Kinds())
	}
	return s, nil
}
