package attempt_test

import (
	"testing"

	"quiz-attempt-engine/internal/attempt"
	"quiz-attempt-engine/internal/domain"
)

func scoringBank() []domain.Question {
	return []domain.Question{
		{
			ID:     "q1",
			Points: 1,
			Choices: []domain.Choice{
				{ID: "c1", QuestionID: "q1"},
				{ID: "c2", QuestionID: "q1", Correct: true},
			},
		},
		{
			ID:     "q2",
			Points: 3,
			Choices: []domain.Choice{
				{ID: "c3", QuestionID: "q2", Correct: true},
				{ID: "c4", QuestionID: "q2"},
				{ID: "c5", QuestionID: "q2", Correct: true},
			},
		},
	}
}

func TestScoreEmptyAnswers(t *testing.T) {
	if got := attempt.Score(scoringBank(), map[string][]string{}); got != 0 {
		t.Fatalf("expected 0 for empty answers, got %d", got)
	}
	if got := attempt.Score(scoringBank(), nil); got != 0 {
		t.Fatalf("expected 0 for nil answers, got %d", got)
	}
}

func TestScoreAllCorrect(t *testing.T) {
	answers := map[string][]string{
		"q1": {"c2"},
		"q2": {"c5", "c3"}, // order must not matter
	}
	if got := attempt.Score(scoringBank(), answers); got != 4 {
		t.Fatalf("expected full score 4, got %d", got)
	}
}

func TestScoreExactSetNoPartialCredit(t *testing.T) {
	cases := []struct {
		name    string
		answers map[string][]string
		want    int
	}{
		{"subset of correct", map[string][]string{"q2": {"c3"}}, 0},
		{"superset of correct", map[string][]string{"q2": {"c3", "c4", "c5"}}, 0},
		{"wrong single", map[string][]string{"q1": {"c1"}}, 0},
		{"exact multi only", map[string][]string{"q2": {"c3", "c5"}}, 3},
	}
	for _, tc := range cases {
		if got := attempt.Score(scoringBank(), tc.answers); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestScoreDefaultsPointsToOne(t *testing.T) {
	questions := []domain.Question{
		{
			ID: "q1",
			Choices: []domain.Choice{
				{ID: "c1", Correct: true},
			},
		},
	}
	if got := attempt.Score(questions, map[string][]string{"q1": {"c1"}}); got != 1 {
		t.Fatalf("expected zero-point question to award 1, got %d", got)
	}
	if got := attempt.MaxScore(questions); got != 1 {
		t.Fatalf("expected max score 1, got %d", got)
	}
}
