package lifecycle

import (
	"context"
	"sync"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// Guard serializes bulk transitions per production line. Different lines
// never block each other.
type Guard interface {
	// TryAcquire takes the line's guard without waiting. It fails with
	// entities.ErrTransitionInFlight when the guard is already held.
	TryAcquire(ctx context.Context, lineID entities.LineID) (release func(context.Context) error, err error)
}

// MemoryGuard is a Guard for a single process
type MemoryGuard struct {
	mu   sync.Mutex
	held map[entities.LineID]bool
}

// NewMemoryGuard creates an in-process guard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[entities.LineID]bool)}
}

var _ Guard = (*MemoryGuard)(nil)

func (g *MemoryGuard) TryAcquire(ctx context.Context, lineID entities.LineID) (func(context.Context) error, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held[lineID] {
		return nil, entities.ErrTransitionInFlight
	}
	g.held[lineID] = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, lineID)
			g.mu.Unlock()
		})
		return nil
	}, nil
}

// Held reports whether the line's guard is taken
func (g *MemoryGuard) Held(lineID entities.LineID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[lineID]
}
