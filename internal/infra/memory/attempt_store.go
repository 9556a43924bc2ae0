package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-engine/internal/domain"
)

// AttemptStore is an in-memory implementation of attempt.AttemptStore,
// used by tests and the storage-less demo mode.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]domain.Attempt)}
}

func (s *AttemptStore) ListAttempts(_ context.Context, quizID, studentID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0, 4)
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AttemptNumber > out[j].AttemptNumber
	})
	return out, nil
}

func (s *AttemptStore) CreateAttempt(_ context.Context, quizID, studentID string, attemptNumber int, startedAt time.Time) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// mirror the unique-index behavior: a taken number bumps to max+1
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.StudentID == studentID && a.AttemptNumber >= attemptNumber {
			attemptNumber = a.AttemptNumber + 1
		}
	}
	id := uuid.NewString()
	s.attempts[id] = domain.Attempt{
		ID:            id,
		QuizID:        quizID,
		StudentID:     studentID,
		AttemptNumber: attemptNumber,
		StartedAt:     startedAt,
	}
	return id, attemptNumber, nil
}

func (s *AttemptStore) FinalizeAttempt(_ context.Context, id string, submittedAt time.Time, durationSec int, score int, meta domain.AttemptMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	a.SubmittedAt = &submittedAt
	a.DurationSec = durationSec
	a.Score = score
	a.Meta = &meta
	s.attempts[id] = a
	return nil
}

func (s *AttemptStore) DeleteAttempt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[id]; !ok {
		return domain.ErrAttemptNotFound
	}
	delete(s.attempts, id)
	return nil
}

// Get is a test helper for inspecting a persisted row.
func (s *AttemptStore) Get(id string) (domain.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	return a, ok
}
