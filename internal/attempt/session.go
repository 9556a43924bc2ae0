package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quiz-attempt-engine/internal/domain"
)

// State is the session lifecycle position. The Submit transition doubles as
// the admission flag: only InProgress accepts it, and it exits immediately,
// so racing triggers (manual click vs deadline) finalize at most once.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
)

// Result carries the finalized attempt and its reconstructed review.
type Result struct {
	Attempt domain.Attempt
	Review  domain.Review
}

// Observers receive asynchronous session events. OnTick is called from the
// display-tick goroutine with freshly derived remaining time; OnAutoSubmit is
// called once when the deadline wins the submit race (including when the
// finalize write failed, with the error attached).
type Observers struct {
	OnTick       func(remaining time.Duration)
	OnAutoSubmit func(res Result, err error)
}

// Session is the in-memory state machine for one student's run at one quiz.
// One session per connection; answers live only here until Submit.
type Session struct {
	store     AttemptStore
	quiz      domain.Quiz
	questions []domain.Question
	byID      map[string]domain.Question
	studentID string
	preview   bool
	clock     func() time.Time
	tickEvery time.Duration

	mu       sync.Mutex
	state    State
	starting bool
	history  History
	attempt  domain.Attempt
	answers  map[string][]string
	timer    *Timer
	review   *domain.Review
	obs      Observers
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Quiz returns the loaded quiz metadata.
func (s *Session) Quiz() domain.Quiz {
	return s.quiz
}

// History returns the current attempt counter snapshot.
func (s *Session) History() History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// CanStart evaluates the start gate against the session's own clock.
func (s *Session) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanStart(s.clock())
}

// Preview reports whether this is a read-only teacher session.
func (s *Session) Preview() bool {
	return s.preview
}

// Questions returns the bank in serving order. Student sessions get a copy
// with correctness stripped; teacher previews see the full key.
func (s *Session) Questions() []domain.Question {
	if s.preview {
		return s.questions
	}
	out := make([]domain.Question, len(s.questions))
	for i, q := range s.questions {
		q.Choices = append([]domain.Choice(nil), q.Choices...)
		for j := range q.Choices {
			q.Choices[j].Correct = false
		}
		out[i] = q
	}
	return out
}

// Start begins a new attempt cycle. Valid only when no attempt is running and
// the quiz is open with attempts remaining. A start already in flight is a
// no-op, so a double-click cannot create duplicate rows.
func (s *Session) Start(ctx context.Context, obs Observers) error {
	s.mu.Lock()
	if s.preview {
		s.mu.Unlock()
		return domain.ErrPreviewOnly
	}
	if s.starting {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateInProgress {
		s.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	now := s.clock()
	if err := s.history.startBlock(now); err != nil {
		s.mu.Unlock()
		return err
	}
	if len(s.questions) == 0 {
		s.mu.Unlock()
		return domain.ErrNoQuestions
	}
	number := s.history.NextAttemptNumber()
	s.starting = true
	s.mu.Unlock()

	// the store may hand back a higher number when another tab raced this one
	id, persisted, err := s.store.CreateAttempt(ctx, s.quiz.ID, s.studentID, number, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		// remain NotStarted; the caller may retry
		return fmt.Errorf("create attempt: %w", err)
	}
	s.attempt = domain.Attempt{
		ID:            id,
		QuizID:        s.quiz.ID,
		StudentID:     s.studentID,
		AttemptNumber: persisted,
		StartedAt:     now,
	}
	s.state = StateInProgress
	s.answers = make(map[string][]string)
	s.review = nil
	s.obs = obs
	s.history = s.history.with(s.attempt)
	if s.quiz.TimeLimitSec > 0 {
		deadline := now.Add(time.Duration(s.quiz.TimeLimitSec) * time.Second)
		s.timer = newTimer(deadline, s.tickEvery, s.clock)
		s.timer.Arm(obs.OnTick, s.autoSubmit)
	}
	return nil
}

// autoSubmit is invoked by both timer triggers; the state transition inside
// Submit admits exactly one of them.
func (s *Session) autoSubmit() {
	res, err := s.Submit(context.Background(), true)
	if errors.Is(err, domain.ErrAlreadySubmitted) || errors.Is(err, domain.ErrNotInProgress) {
		return
	}
	s.mu.Lock()
	notify := s.obs.OnAutoSubmit
	s.mu.Unlock()
	if notify != nil {
		notify(res, err)
	}
}

// Answer records a selection in memory. Single-answer questions replace the
// set (radio); multi-answer questions toggle membership (checkbox). Returns
// the question's resulting selection. No write leaves the process.
func (s *Session) Answer(questionID, choiceID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return nil, domain.ErrNotInProgress
	}
	q, ok := s.byID[questionID]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	if !hasChoice(q, choiceID) {
		return nil, domain.ErrChoiceNotFound
	}
	current := s.answers[questionID]
	if !q.MultiAnswer() {
		s.answers[questionID] = []string{choiceID}
	} else if contains(current, choiceID) {
		next := make([]string, 0, len(current)-1)
		for _, id := range current {
			if id != choiceID {
				next = append(next, id)
			}
		}
		s.answers[questionID] = next
	} else {
		s.answers[questionID] = append(append([]string(nil), current...), choiceID)
	}
	return append([]string(nil), s.answers[questionID]...), nil
}

// Submit finalizes the running attempt. The InProgress->Submitted transition
// is taken under the lock before any scoring or I/O, so a manual submit
// racing the deadline executes the score+persist path at most once; the loser
// sees ErrAlreadySubmitted. A finalize-write failure still leaves the session
// Submitted (the admission already fired); the error tells the caller the
// result may not be saved.
func (s *Session) Submit(ctx context.Context, auto bool) (Result, error) {
	s.mu.Lock()
	switch s.state {
	case StateInProgress:
	case StateSubmitted:
		s.mu.Unlock()
		return Result{}, domain.ErrAlreadySubmitted
	default:
		s.mu.Unlock()
		return Result{}, domain.ErrNotInProgress
	}
	s.state = StateSubmitted
	attempt := s.attempt
	answers := copyAnswers(s.answers)
	timer := s.timer
	s.timer = nil
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	now := s.clock()
	// wall-clock duration, floored at 1s; a suspend past the deadline shows up
	// here as elapsed time, not as the nominal limit
	durSec := int(now.Sub(attempt.StartedAt) / time.Second)
	if durSec < 1 {
		durSec = 1
	}
	meta := domain.AttemptMeta{Answers: answers, AutoSubmitted: auto}
	submittedAt := now
	attempt.SubmittedAt = &submittedAt
	attempt.DurationSec = durSec
	attempt.Score = Score(s.questions, answers)
	attempt.Meta = &meta

	review := BuildReview(domain.Bank{Quiz: s.quiz, Questions: s.questions}, meta)

	s.mu.Lock()
	s.attempt = attempt
	s.review = &review
	s.history = s.history.with(attempt)
	s.mu.Unlock()

	res := Result{Attempt: attempt, Review: review}
	if err := s.store.FinalizeAttempt(ctx, attempt.ID, submittedAt, durSec, attempt.Score, meta); err != nil {
		return res, fmt.Errorf("finalize attempt: %w", err)
	}
	s.refreshHistory(ctx)
	return res, nil
}

// Cancel discards the running attempt without counting it as used. The row
// delete is best-effort; a failure leaves an orphaned, never-submitted row.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return domain.ErrNotInProgress
	}
	attempt := s.attempt
	timer := s.timer
	s.timer = nil
	s.state = StateNotStarted
	s.answers = nil
	s.attempt = domain.Attempt{}
	s.history = s.history.without(attempt.ID)
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	_ = s.store.DeleteAttempt(ctx, attempt.ID)
	return nil
}

// AttemptNumber is the number of the current (or last) attempt in this session.
func (s *Session) AttemptNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.AttemptNumber
}

// AttemptID is the row ID of the current (or last) attempt in this session.
func (s *Session) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.ID
}

// StartedAt is when the current (or last) attempt began.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.StartedAt
}

// Deadline returns the armed timer's absolute expiry, if any.
func (s *Session) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.timer.Deadline(), true
}

// Remaining derives the countdown from the stored deadline. The second value
// is false when no timer is armed (unlimited quiz or no running attempt).
// Clients resync here after suspend/resume; reading never affects submission.
func (s *Session) Remaining() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return 0, false
	}
	return s.timer.Remaining(), true
}

// Review returns the snapshot produced by the last Submit in this session.
func (s *Session) Review() (domain.Review, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.review == nil {
		return domain.Review{}, false
	}
	return *s.review, true
}

// LastReview reconstructs the most recent persisted result, independent of
// whether a new attempt was started in this session.
func (s *Session) LastReview() (domain.Review, error) {
	s.mu.Lock()
	last, ok := s.history.LastSubmitted()
	s.mu.Unlock()
	if !ok || last.Meta == nil {
		return domain.Review{}, domain.ErrNoSubmittedAttempt
	}
	return BuildReview(domain.Bank{Quiz: s.quiz, Questions: s.questions}, *last.Meta), nil
}

// refreshHistory reloads the counter from the store; on failure the locally
// updated copy stands.
func (s *Session) refreshHistory(ctx context.Context) {
	attempts, err := s.store.ListAttempts(ctx, s.quiz.ID, s.studentID)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.history = NewHistory(s.quiz, attempts)
	s.mu.Unlock()
}

func hasChoice(q domain.Question, choiceID string) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

func copyAnswers(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		if len(v) == 0 {
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}
