package investigation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*State
	// order is creation order; ties on timestamps resolve to the later row.
	order []uuid.UUID
	now   func() time.Time
}

// NewMemoryRepository returns a process-local Repository. Reads hand out
// copies, so mutating a returned State never touches the stored one.
func NewMemoryRepository() Repository {
	return &memoryRepo{sessions: make(map[uuid.UUID]*State), now: time.Now}
}

func (r *memoryRepo) Get(_ context.Context, userID, topicKey string) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.sessions[r.order[i]]
		if s.UserID == userID && s.TopicKey == topicKey {
			return s.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (r *memoryRepo) Create(_ context.Context, userID, topicKey string) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.UserID == userID && s.TopicKey == topicKey && !s.Terminal() {
			return nil, ErrAlreadyExists
		}
	}

	now := r.now().UTC()
	s := &State{
		ID:        uuid.New(),
		UserID:    userID,
		TopicKey:  topicKey,
		Status:    StatusInProgress,
		Answers:   []string{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	return s.clone(), nil
}

func (r *memoryRepo) Save(_ context.Context, s *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != s.Version {
		return ErrVersionConflict
	}

	updatedAt := r.now().UTC()
	// Never let UpdatedAt go backwards within a session.
	if !updatedAt.After(cur.UpdatedAt) {
		updatedAt = cur.UpdatedAt.Add(time.Nanosecond)
	}

	stored := s.clone()
	stored.Version = cur.Version + 1
	stored.CreatedAt = cur.CreatedAt
	stored.UpdatedAt = updatedAt
	r.sessions[s.ID] = stored

	s.Version = stored.Version
	s.UpdatedAt = updatedAt
	return nil
}

func (r *memoryRepo) ListOpen(_ context.Context, userID string) ([]*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*State
	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.sessions[r.order[i]]
		if s.UserID == userID && !s.Terminal() {
			out = append(out, s.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
