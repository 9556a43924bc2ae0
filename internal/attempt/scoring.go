package attempt

import (
	"sort"

	"quiz-attempt-engine/internal/domain"
)

// Score grades a full answer map against the question bank. Pure: same inputs,
// same total. Each question awards its points iff the selected choice set
// equals the correct choice set exactly; there is no partial credit.
func Score(questions []domain.Question, answers map[string][]string) int {
	total := 0
	for _, q := range questions {
		total += scoreQuestion(q, answers[q.ID])
	}
	return total
}

// MaxScore is the total available over the bank.
func MaxScore(questions []domain.Question) int {
	total := 0
	for _, q := range questions {
		total += pointsOf(q)
	}
	return total
}

func scoreQuestion(q domain.Question, selected []string) int {
	if len(selected) == 0 {
		return 0
	}
	correct := make([]string, 0, len(q.Choices))
	for _, c := range q.Choices {
		if c.Correct {
			correct = append(correct, c.ID)
		}
	}
	if !equalSets(selected, correct) {
		return 0
	}
	return pointsOf(q)
}

func pointsOf(q domain.Question) int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// equalSets compares two ID lists order-insensitively.
func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
