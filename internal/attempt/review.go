package attempt

import "quiz-attempt-engine/internal/domain"

// BuildReview reconstructs a read-only correctness view from a persisted
// attempt's answers. Per-question verdicts come from the same grading helper
// the scorer uses, so the two can never disagree about the same inputs.
// Choice-level correct markers are included only when the quiz reveals them.
func BuildReview(bank domain.Bank, meta domain.AttemptMeta) domain.Review {
	review := domain.Review{
		QuizID:        bank.Quiz.ID,
		MaxScore:      MaxScore(bank.Questions),
		AutoSubmitted: meta.AutoSubmitted,
		Questions:     make([]domain.ReviewQuestion, 0, len(bank.Questions)),
	}
	for _, q := range bank.Questions {
		selected := meta.Answers[q.ID]
		awarded := scoreQuestion(q, selected)
		rq := domain.ReviewQuestion{
			QuestionID: q.ID,
			Text:       q.Text,
			Points:     pointsOf(q),
			Awarded:    awarded,
			Correct:    awarded > 0,
			Choices:    make([]domain.ReviewChoice, 0, len(q.Choices)),
		}
		for _, c := range q.Choices {
			rc := domain.ReviewChoice{
				ID:       c.ID,
				Text:     c.Text,
				Selected: contains(selected, c.ID),
			}
			if bank.Quiz.RevealCorrectAnswers {
				correct := c.Correct
				rc.Correct = &correct
			}
			rq.Choices = append(rq.Choices, rc)
		}
		review.Score += awarded
		review.Questions = append(review.Questions, rq)
	}
	return review
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
