// Package guard rejects re-entrant calls into state-mutating operations.
package guard

import (
	"sync"

	"stakehub/pkg/errors"
)

// Guard admits one operation at a time. A second Enter while the first is
// still running fails instead of waiting, so a value ledger that calls back
// into the core cannot observe or modify a half-applied operation.
type Guard struct {
	mu sync.Mutex
}

func New() *Guard {
	return &Guard{}
}

// Enter acquires the guard and returns the release func; callers defer it.
func (g *Guard) Enter() (func(), error) {
	if !g.mu.TryLock() {
		return nil, errors.State(errors.ErrReentrant)
	}
	return g.mu.Unlock, nil
}
