package server

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/YuminosukeSato/trainedml"
	"github.com/YuminosukeSato/trainedml/evaluation"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

// Entry is a fitted trainer held by the Store.
type Entry struct {
	ID        string
	Dataset   string
	URL       string
	Target    string
	Trainer   *trainedml.Trainer
	Scores    evaluation.Scores
	CreatedAt time.Time
}

// Store keeps the most recently used trainers. When it is full, adding a
// trainer evicts the least recently used one.
type Store struct {
	cache  *lru.Cache
	logger log.Logger
}

// NewStore returns a Store holding at most size trainers.
func NewStore(size int, logger log.Logger) (*Store, error) {
	if size < 1 {
		return nil, errors.NewValidationError("server.max_trainers", "must be at least 1", size)
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	s := &Store{logger: logger}
	cache, err := lru.NewWithEvict(size, func(key, _ interface{}) {
		s.logger.Debug("Trainer evicted", log.TrainerIDKey, key)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create trainer store")
	}
	s.cache = cache
	return s, nil
}

// Add stores e under a new ID and returns it.
func (s *Store) Add(e *Entry) string {
	e.ID = uuid.New().String()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.cache.Add(e.ID, e)
	return e.ID
}

// Get returns the entry with the given ID and marks it as recently used.
func (s *Store) Get(id string) (*Entry, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Remove deletes the entry and reports whether it was present.
func (s *Store) Remove(id string) bool {
	if !s.cache.Contains(id) {
		return false
	}
	s.cache.Remove(id)
	return true
}

// Len returns the number of stored trainers.
func (s *Store) Len() int { return s.cache.Len() }

// IDs returns the stored IDs from oldest to newest.
func (s *Store) IDs() []string {
	keys := s.cache.Keys()
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.(string)
	}
	return ids
}
