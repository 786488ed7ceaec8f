package store

import (
	"context"
	"sort"
	"sync"

	"github.com/presensync/presensync/backend/go-services/internal/models"
)

// MemoryStore is an in-memory Store used in development and unit tests.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]models.Fields
	watchers map[*watcher]struct{}
}

type watcher struct {
	collection string
	filter     Filter
	ch         chan Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]models.Fields),
		watchers: make(map[*watcher]struct{}),
	}
}

func copyFields(in models.Fields) models.Fields {
	out := make(models.Fields, len(in))
	for k, v := range in {
		if fs, ok := v.([]float64); ok {
			c := make([]float64, len(fs))
			copy(c, fs)
			v = c
		}
		out[k] = v
	}
	return out
}

func (m *MemoryStore) Get(ctx context.Context, path string) (models.Fields, error) {
	if _, _, err := SplitPath(path); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[cleanPath(path)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyFields(d), nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, data models.Fields, merge bool) error {
	coll, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(cleanPath(path), data, merge)
	m.notifyLocked(coll)
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, path string, data models.Fields) error {
	coll, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cleanPath(path)
	if _, ok := m.docs[key]; ok {
		return ErrExists
	}
	m.docs[key] = copyFields(data)
	m.notifyLocked(coll)
	return nil
}

func (m *MemoryStore) setLocked(key string, data models.Fields, merge bool) {
	existing, ok := m.docs[key]
	if !merge || !ok {
		m.docs[key] = copyFields(data)
		return
	}
	for k, v := range copyFields(data) {
		existing[k] = v
	}
}

func (m *MemoryStore) Update(ctx context.Context, path string, data models.Fields) error {
	coll, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cleanPath(path)
	if _, ok := m.docs[key]; !ok {
		return ErrNotFound
	}
	m.setLocked(key, data, true)
	m.notifyLocked(coll)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	coll, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cleanPath(path)
	if _, ok := m.docs[key]; !ok {
		return nil
	}
	delete(m.docs, key)
	m.notifyLocked(coll)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, collection string, filter Filter) ([]Doc, error) {
	if !validCollection(collection) {
		return nil, ErrInvalidPath
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(cleanPath(collection), filter), nil
}

func (m *MemoryStore) listLocked(collection string, filter Filter) []Doc {
	out := []Doc{}
	for key, data := range m.docs {
		coll, id, err := SplitPath(key)
		if err != nil || coll != collection {
			continue
		}
		if !filter.matches(data) {
			continue
		}
		out = append(out, Doc{Path: key, ID: id, Data: copyFields(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) Batch(ctx context.Context, writes []Write) error {
	colls := map[string]struct{}{}
	for _, w := range writes {
		coll, _, err := SplitPath(w.Path)
		if err != nil {
			return err
		}
		colls[coll] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		m.setLocked(cleanPath(w.Path), w.Data, w.Merge)
	}
	for coll := range colls {
		m.notifyLocked(coll)
	}
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection string, filter Filter) (<-chan Snapshot, error) {
	if !validCollection(collection) {
		return nil, ErrInvalidPath
	}
	w := &watcher{collection: cleanPath(collection), filter: filter, ch: make(chan Snapshot, 1)}

	m.mu.Lock()
	m.watchers[w] = struct{}{}
	w.ch <- Snapshot{Docs: m.listLocked(w.collection, w.filter)}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, w)
		close(w.ch)
		m.mu.Unlock()
	}()
	return w.ch, nil
}

// notifyLocked pushes a fresh snapshot to every watcher of coll, replacing
// any snapshot the reader has not consumed yet. Caller holds m.mu.
func (m *MemoryStore) notifyLocked(coll string) {
	for w := range m.watchers {
		if w.collection != coll {
			continue
		}
		snap := Snapshot{Docs: m.listLocked(coll, w.filter)}
		select {
		case w.ch <- snap:
		default:
			select {
			case <-w.ch:
			default:
			}
			select {
			case w.ch <- snap:
			default:
			}
		}
	}
}
