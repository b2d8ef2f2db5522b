package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]interface{})}
}

func (s *MemoryStore) GetCollection(ctx context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.collections[collection]
	docs := make([]Document, 0, len(col))
	for id, data := range col {
		docs = append(docs, Document{ID: id, Data: cloneData(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, collection, id string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return cloneData(data), nil
}

func (s *MemoryStore) SetDocument(ctx context.Context, collection, id string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]map[string]interface{})
		s.collections[collection] = col
	}
	col[id] = cloneData(data)
	return nil
}

func (s *MemoryStore) AddDocument(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := uuid.NewString()
	return id, s.SetDocument(ctx, collection, id, data)
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters []Filter, order *Order, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for id, data := range s.collections[collection] {
		if matchesAll(data, filters) {
			docs = append(docs, Document{ID: id, Data: cloneData(data)})
		}
	}

	if order != nil {
		sort.SliceStable(docs, func(i, j int) bool {
			cmp := compareValues(docs[i].Data[order.Field], docs[j].Data[order.Field])
			if order.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	} else {
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}

	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func matchesAll(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		cmp := compareValues(data[f.Field], f.Value)
		switch f.Op {
		case OpEqual, "":
			if cmp != 0 {
				return false
			}
		case OpGreaterOrEqual:
			if cmp < 0 {
				return false
			}
		case OpLessOrEqual:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders the small set of value kinds stored documents use.
func compareValues(a, b interface{}) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	sa, sb := stringOf(a), stringOf(b)
	return strings.Compare(sa, sb)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return copied
}
