package table

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/janpfeifer/GoOracle/internal/game"
	"k8s.io/klog/v2"
)

var ErrNotFound = errors.New("table not found")

// Registry holds the open tables, indexed by ID.
type Registry struct {
	opts Options

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry returns an empty registry; tables it creates are configured with opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, tables: make(map[string]*Table)}
}

// Create opens a new table and starts its first game.
// If deck is not nil, it is dealt as is instead of a shuffled one.
func (r *Registry) Create(start Start, deck game.Deck) (*Table, game.Snapshot, error) {
	opts := r.opts
	if deck != nil {
		opts.Deck = deck.Clone()
	}
	t := New(uuid.NewString(), opts)
	snap, err := t.Dispatch(start)
	if err != nil {
		t.Close()
		return nil, game.Snapshot{}, err
	}

	r.mu.Lock()
	r.tables[t.ID] = t
	n := len(r.tables)
	r.mu.Unlock()
	klog.V(1).Infof("Registry: created table %s (%d open)", t.ID, n)
	return t, snap, nil
}

// Get returns the table with the given ID, or ErrNotFound.
func (r *Registry) Get(id string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, found := r.tables[id]
	if !found {
		return nil, ErrNotFound
	}
	return t, nil
}

// Remove closes and forgets the table.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	t, found := r.tables[id]
	delete(r.tables, id)
	r.mu.Unlock()
	if !found {
		return ErrNotFound
	}
	t.Close()
	return nil
}

// Len returns the number of open tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}

// CloseAll closes every table, used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	tables := r.tables
	r.tables = make(map[string]*Table)
	r.mu.Unlock()
	for _, t := range tables {
		t.Close()
	}
}
