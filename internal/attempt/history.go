package attempt

import (
	"time"

	"quiz-attempt-engine/internal/domain"
)

// History tracks the attempts a student has used on one quiz, newest first.
// It answers "can another attempt start" and seeds reviews of past results.
type History struct {
	quiz     domain.Quiz
	attempts []domain.Attempt // attempt_number desc
}

func NewHistory(quiz domain.Quiz, attempts []domain.Attempt) History {
	return History{quiz: quiz, attempts: attempts}
}

// AttemptsUsed counts every attempt held, started or submitted.
func (h History) AttemptsUsed() int {
	return len(h.attempts)
}

// NextAttemptNumber is max(existing)+1; never reuses a number.
func (h History) NextAttemptNumber() int {
	if len(h.attempts) == 0 {
		return 1
	}
	return h.attempts[0].AttemptNumber + 1
}

// LastSubmitted returns the most recent finalized attempt, if any.
func (h History) LastSubmitted() (domain.Attempt, bool) {
	for _, a := range h.attempts {
		if a.Submitted() {
			return a, true
		}
	}
	return domain.Attempt{}, false
}

// LastScore is the score of the most recent finalized attempt.
func (h History) LastScore() (int, bool) {
	a, ok := h.LastSubmitted()
	if !ok {
		return 0, false
	}
	return a.Score, true
}

// CanStart reports whether a new attempt may begin at the given instant.
func (h History) CanStart(now time.Time) bool {
	return h.startBlock(now) == nil
}

// startBlock returns the reason a start is refused, or nil.
func (h History) startBlock(now time.Time) error {
	if !h.quiz.Published {
		return domain.ErrQuizClosed
	}
	if h.quiz.AvailableFrom != nil && now.Before(*h.quiz.AvailableFrom) {
		return domain.ErrQuizClosed
	}
	if h.quiz.ExpiresAt != nil && now.After(*h.quiz.ExpiresAt) {
		return domain.ErrQuizClosed
	}
	if h.quiz.MaxAttempts > 0 && len(h.attempts) >= h.quiz.MaxAttempts {
		return domain.ErrNoAttemptsLeft
	}
	return nil
}

// with prepends or replaces an attempt, keeping newest-first order.
func (h History) with(a domain.Attempt) History {
	next := make([]domain.Attempt, 0, len(h.attempts)+1)
	replaced := false
	for _, existing := range h.attempts {
		if existing.ID == a.ID {
			next = append(next, a)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append([]domain.Attempt{a}, next...)
	}
	return History{quiz: h.quiz, attempts: next}
}

// without drops a cancelled attempt so it no longer counts as used.
func (h History) without(attemptID string) History {
	next := make([]domain.Attempt, 0, len(h.attempts))
	for _, existing := range h.attempts {
		if existing.ID == attemptID {
			continue
		}
		next = append(next, existing)
	}
	return History{quiz: h.quiz, attempts: next}
}
