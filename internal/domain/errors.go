package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz metadata could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when a persisted attempt row is missing.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrQuizClosed means the quiz is unpublished or outside its availability window.
	ErrQuizClosed = errors.New("quiz is not open for attempts")
	// ErrNoAttemptsLeft means the student has used every allowed attempt.
	ErrNoAttemptsLeft = errors.New("no attempts left")
	// ErrNotInProgress rejects answer/submit/cancel outside a running attempt.
	ErrNotInProgress = errors.New("attempt is not in progress")
	// ErrAlreadyStarted rejects start while an attempt is already running.
	ErrAlreadyStarted = errors.New("attempt already in progress")
	// ErrAlreadySubmitted is the losing side of the submit race; callers racing
	// the deadline treat it as a no-op.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrNoQuestions means the bank loaded empty (fetch failed or nothing published).
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrQuestionNotFound indicates an answered question ID is not in the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrChoiceNotFound indicates a selected choice ID does not belong to the question.
	ErrChoiceNotFound = errors.New("choice not found")
	// ErrPreviewOnly rejects attempt mutations from a teacher preview session.
	ErrPreviewOnly = errors.New("preview sessions cannot create attempts")
	// ErrNoSubmittedAttempt means there is nothing to build a review from.
	ErrNoSubmittedAttempt = errors.New("no submitted attempt to review")
)
