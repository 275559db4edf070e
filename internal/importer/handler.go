// Package importer defines the per-entity import strategy and its registry.
package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"async-import/internal/domain"
	"async-import/internal/repository"
)

// DefaultBatchSize is used by handlers that do not choose their own.
const DefaultBatchSize = 100

// Row is one parsed source row keyed by column name.
type Row = map[string]any

// Handler validates and writes rows for one target entity.
type Handler interface {
	// Entity is the registry key, e.g. "users".
	Entity() string
	Supports(entity string) bool
	// Preprocess normalises a row. An error counts as a row failure.
	Preprocess(row Row) (Row, error)
	Validate(ctx context.Context, row Row, line int) *domain.ValidationResult
	// Import writes one row through db, which is scoped to the row savepoint.
	Import(ctx context.Context, db repository.DBTX, row Row, task *domain.Task) error
	BatchSize() int
	// FieldMapping maps source column names to target fields. Advisory only.
	FieldMapping() map[string]string
}

// Base implements the bookkeeping parts of Handler.
type Base struct {
	Name    string
	Size    int
	Mapping map[string]string
}

func (b Base) Entity() string { return b.Name }

func (b Base) Supports(entity string) bool { return entity == b.Name }

func (b Base) BatchSize() int {
	if b.Size < 1 {
		return DefaultBatchSize
	}
	return b.Size
}

func (b Base) FieldMapping() map[string]string {
	out := make(map[string]string, len(b.Mapping))
	for k, v := range b.Mapping {
		out[k] = v
	}
	return out
}

// Registry resolves handlers by entity key. Registration happens at wiring time.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a registry. It panics on duplicate entities, which is a
// wiring bug.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a handler under its entity key.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := h.Entity()
	if key == "" {
		return fmt.Errorf("import handler has empty entity")
	}
	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("import handler for %q already registered", key)
	}
	r.handlers[key] = h
	return nil
}

// Get returns the handler for entity. When no handler is keyed by entity the
// registered handlers are asked whether they support it, in key order.
func (r *Registry) Get(entity string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[entity]; ok {
		return h, nil
	}
	for _, key := range r.keysLocked() {
		if h := r.handlers[key]; h.Supports(entity) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrHandlerNotFound, entity)
}

// Entities lists registered entity keys in sorted order.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keysLocked()
}

// All returns the registered handlers ordered by entity key.
func (r *Registry) All() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.keysLocked()
	out := make([]Handler, len(keys))
	for i, k := range keys {
		out[i] = r.handlers[k]
	}
	return out
}

func (r *Registry) keysLocked() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
