package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-clinic-notifications/pkg/domain"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/store"
	"github.com/google/uuid"
)

// rows is a uuid keyed table of values embedding domain.RecordMeta. Values
// are stored and returned by copy.
type rows[T any] struct {
	mu   sync.RWMutex
	data map[uuid.UUID]T
	meta func(*T) *domain.RecordMeta
}

func newRows[T any](meta func(*T) *domain.RecordMeta) *rows[T] {
	return &rows[T]{data: make(map[uuid.UUID]T), meta: meta}
}

func (r *rows[T]) insert(record *T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.meta(record)
	m.EnsureID()
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.data[m.ID] = *record
}

func (r *rows[T]) replace(record *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.meta(record)
	if _, ok := r.data[m.ID]; !ok || m.ID == uuid.Nil {
		return store.ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	r.data[m.ID] = *record
	return nil
}

func (r *rows[T]) get(id uuid.UUID) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.data[id]
	if !ok || !r.meta(&record).DeletedAt.IsZero() {
		return nil, store.ErrNotFound
	}
	return &record, nil
}

// live reports whether m passes the soft delete and time window options.
func live(m *domain.RecordMeta, opts store.ListOptions) bool {
	if !opts.IncludeSoftDeleted && !m.DeletedAt.IsZero() {
		return false
	}
	if !opts.Since.IsZero() && m.CreatedAt.Before(opts.Since) {
		return false
	}
	if !opts.Until.IsZero() && m.CreatedAt.After(opts.Until) {
		return false
	}
	return true
}

// page selects rows accepted by keep, newest first, and applies the
// offset/limit window. Ties on CreatedAt order by id descending.
func (r *rows[T]) page(opts store.ListOptions, keep func(*T) bool) store.ListResult[T] {
	r.mu.RLock()
	matched := make([]T, 0)
	for _, record := range r.data {
		if !live(r.meta(&record), opts) {
			continue
		}
		if keep != nil && !keep(&record) {
			continue
		}
		matched = append(matched, record)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := r.meta(&matched[i]), r.meta(&matched[j])
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID.String() > b.ID.String()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := len(matched)
	start := min(opts.Offset, total)
	end := total
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return store.ListResult[T]{Items: matched[start:end], Total: total}
}

// count returns the number of live rows accepted by keep.
func (r *rows[T]) count(keep func(*T) bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, record := range r.data {
		if r.meta(&record).DeletedAt.IsZero() && keep(&record) {
			n++
		}
	}
	return n
}

// update applies fn to every live row accepted by keep under one lock and
// returns how many rows changed.
func (r *rows[T]) update(keep func(*T) bool, fn func(*T, time.Time)) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	changed := 0
	for id, record := range r.data {
		m := r.meta(&record)
		if !m.DeletedAt.IsZero() || !keep(&record) {
			continue
		}
		fn(&record, now)
		m.UpdatedAt = now
		r.data[id] = record
		changed++
	}
	return changed
}

func (r *rows[T]) softDelete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.data[id]
	m := r.meta(&record)
	if !ok || !m.DeletedAt.IsZero() {
		return store.ErrNotFound
	}
	m.DeletedAt = time.Now().UTC()
	r.data[id] = record
	return nil
}
