package attempt

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"quiz-attempt-engine/internal/domain"
)

// BankRepository loads quiz content (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, quizID string) (domain.Bank, error)
}

// AttemptStore abstracts the persistence collaborator. Attempts are listed
// newest-first by attempt number. CreateAttempt returns the number actually
// persisted, which may exceed the requested one when another writer took it.
type AttemptStore interface {
	ListAttempts(ctx context.Context, quizID, studentID string) ([]domain.Attempt, error)
	CreateAttempt(ctx context.Context, quizID, studentID string, attemptNumber int, startedAt time.Time) (string, int, error)
	FinalizeAttempt(ctx context.Context, id string, submittedAt time.Time, durationSec int, score int, meta domain.AttemptMeta) error
	DeleteAttempt(ctx context.Context, id string) error
}

// Engine builds attempt sessions from a bank repository and an attempt store.
type Engine struct {
	banks     BankRepository
	store     AttemptStore
	clock     func() time.Time
	tickEvery time.Duration
}

func NewEngine(banks BankRepository, store AttemptStore) *Engine {
	return NewEngineWithClock(banks, store, time.Now)
}

// NewEngineWithClock is a test hook for deterministic timestamps.
func NewEngineWithClock(banks BankRepository, store AttemptStore, now func() time.Time) *Engine {
	return &Engine{banks: banks, store: store, clock: now, tickEvery: time.Second}
}

// SetTickInterval overrides the 1s display tick (config and tests).
func (e *Engine) SetTickInterval(d time.Duration) {
	if d > 0 {
		e.tickEvery = d
	}
}

// Open loads the question bank and the student's attempt history concurrently
// and returns a NotStarted session. Teachers get a read-only preview session
// with the full answer key and no history. Shuffled quizzes are randomized
// once here, not reshuffled mid-attempt.
func (e *Engine) Open(ctx context.Context, quizID, studentID string, role domain.Role) (*Session, error) {
	var (
		bank     domain.Bank
		attempts []domain.Attempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bank, err = e.banks.GetBank(gctx, quizID)
		if err != nil {
			return fmt.Errorf("load bank: %w", err)
		}
		return nil
	})
	if role != domain.RoleTeacher {
		g.Go(func() error {
			var err error
			attempts, err = e.store.ListAttempts(gctx, quizID, studentID)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	questions := bank.Questions
	if bank.Quiz.Shuffle && role != domain.RoleTeacher {
		questions = shuffleBank(questions, rand.New(rand.NewSource(e.clock().UnixNano())))
	}

	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &Session{
		store:     e.store,
		quiz:      bank.Quiz,
		questions: questions,
		byID:      byID,
		studentID: studentID,
		preview:   role == domain.RoleTeacher,
		clock:     e.clock,
		tickEvery: e.tickEvery,
		state:     StateNotStarted,
		history:   NewHistory(bank.Quiz, attempts),
	}, nil
}

// shuffleBank randomizes question order and, independently, each question's
// choice order, leaving the input slices untouched.
func shuffleBank(questions []domain.Question, rnd *rand.Rand) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	for i := range out {
		choices := append([]domain.Choice(nil), out[i].Choices...)
		rnd.Shuffle(len(choices), func(a, b int) { choices[a], choices[b] = choices[b], choices[a] })
		out[i].Choices = choices
	}
	return out
}
