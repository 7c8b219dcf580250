package store

import "sync"

// Table is a typed key/value table.
type Table[V any] struct {
	mu   sync.RWMutex
	rows map[string]V
}

func NewTable[V any]() *Table[V] {
	return &Table[V]{rows: make(map[string]V)}
}

func (t *Table[V]) Get(key string) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[key]
	return v, ok
}

func (t *Table[V]) Set(key string, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[key] = v
}

// Delete removes key and reports whether it was present.
func (t *Table[V]) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rows[key]
	delete(t.rows, key)
	return ok
}

func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (t *Table[V]) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	return keys
}

// Update applies fn to the current row atomically for the table. fn returns
// the new value and whether to keep it; keep=false deletes the row.
func (t *Table[V]) Update(key string, fn func(old V, ok bool) (V, bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, ok := t.rows[key]
	v, keep := fn(old, ok)
	if !keep {
		delete(t.rows, key)
		return
	}
	t.rows[key] = v
}
