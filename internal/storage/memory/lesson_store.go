package memory

import (
	"context"
	"sort"
	"sync"

	"trendloop/internal/domain"
	"trendloop/internal/storage"
)

// LessonStore is an in-memory implementation of storage.LessonStore.
type LessonStore struct {
	mu   sync.RWMutex
	data map[string]domain.Lesson
}

// NewLessonStore creates a new in-memory lesson store.
func NewLessonStore() *LessonStore {
	return &LessonStore{
		data: make(map[string]domain.Lesson),
	}
}

// Compile-time interface check.
var _ storage.LessonStore = (*LessonStore)(nil)

// Upsert writes lessons keyed by id.
func (s *LessonStore) Upsert(_ context.Context, lessons []domain.Lesson) error {
	for _, l := range lessons {
		if l.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lessons {
		l.Scope = domain.CloneScope(l.Scope)
		s.data[l.ID] = l
	}
	return nil
}

// List returns every lesson ordered by id.
func (s *LessonStore) List(_ context.Context) ([]domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Lesson, 0, len(s.data))
	for _, l := range s.data {
		l.Scope = domain.CloneScope(l.Scope)
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
