package domain

import "time"

// Quiz is the assessment metadata. It is authored elsewhere and read-only here.
type Quiz struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	TimeLimitSec         int        `json:"timeLimitSec"` // 0 means unlimited
	AvailableFrom        *time.Time `json:"availableFrom,omitempty"`
	ExpiresAt            *time.Time `json:"expiresAt,omitempty"`
	MaxAttempts          int        `json:"maxAttempts"`
	RevealCorrectAnswers bool       `json:"revealCorrectAnswers"`
	Published            bool       `json:"published"`
	Shuffle              bool       `json:"shuffle"`
}

// Underline marks a substring of the question text for display emphasis.
type Underline struct {
	Text          string `json:"text"`
	CaseSensitive bool   `json:"caseSensitive"`
}

// Choice is one selectable option of a question.
type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	OrderIndex int    `json:"orderIndex"`
	Text       string `json:"text"`
	Correct    bool   `json:"correct"`
}

// Question is a single quiz item with its ordered choices.
type Question struct {
	ID          string     `json:"id"`
	QuizID      string     `json:"quizId"`
	OrderIndex  int        `json:"orderIndex"`
	Text        string     `json:"text"`
	Instruction string     `json:"instruction,omitempty"`
	Underline   *Underline `json:"underline,omitempty"`
	Points      int        `json:"points"` // defaults to 1 if zero
	Choices     []Choice   `json:"choices"`
}

// MultiAnswer reports whether more than one choice is marked correct,
// which switches the question from radio to checkbox semantics.
func (q Question) MultiAnswer() bool {
	n := 0
	for _, c := range q.Choices {
		if c.Correct {
			n++
		}
	}
	return n > 1
}

// Bank is a quiz together with its loaded questions, in serving order.
type Bank struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// AttemptMeta is the structured payload persisted with a finalized attempt.
type AttemptMeta struct {
	Answers       map[string][]string `json:"answers"` // questionID -> selected choice IDs
	AutoSubmitted bool                `json:"autoSubmitted"`
}

// Attempt is one run of a quiz by one student, numbered per student+quiz.
type Attempt struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quizId"`
	StudentID     string       `json:"studentId"`
	AttemptNumber int          `json:"attemptNumber"`
	StartedAt     time.Time    `json:"startedAt"`
	SubmittedAt   *time.Time   `json:"submittedAt,omitempty"`
	DurationSec   int          `json:"durationSec"`
	Score         int          `json:"score"`
	Meta          *AttemptMeta `json:"meta,omitempty"`
}

// Submitted reports whether the attempt was finalized.
func (a Attempt) Submitted() bool {
	return a.SubmittedAt != nil
}

// ReviewChoice annotates one choice of a reviewed question.
type ReviewChoice struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
	Correct  *bool  `json:"correct,omitempty"` // only set when the quiz reveals answers
}

// ReviewQuestion is the per-question verdict of a reconstructed review.
type ReviewQuestion struct {
	QuestionID string         `json:"questionId"`
	Text       string         `json:"text"`
	Points     int            `json:"points"`
	Awarded    int            `json:"awarded"`
	Correct    bool           `json:"correct"`
	Choices    []ReviewChoice `json:"choices"`
}

// Review is a read-only reconstruction of a past attempt's correctness.
type Review struct {
	QuizID        string           `json:"quizId"`
	Score         int              `json:"score"`
	MaxScore      int              `json:"maxScore"`
	AutoSubmitted bool             `json:"autoSubmitted"`
	Questions     []ReviewQuestion `json:"questions"`
}

// Role tags the identity opening an attempt session.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleOther   Role = "other"
)
