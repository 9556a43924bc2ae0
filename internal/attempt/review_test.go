package attempt_test

import (
	"testing"

	"quiz-attempt-engine/internal/attempt"
	"quiz-attempt-engine/internal/domain"
)

func reviewBank(reveal bool) domain.Bank {
	return domain.Bank{
		Quiz: domain.Quiz{
			ID:                   "quiz-1",
			RevealCorrectAnswers: reveal,
		},
		Questions: scoringBank(),
	}
}

func TestReviewAgreesWithScorer(t *testing.T) {
	answerMaps := []map[string][]string{
		{},
		{"q1": {"c2"}},
		{"q1": {"c1"}, "q2": {"c3", "c5"}},
		{"q2": {"c3"}},
		{"q1": {"c2"}, "q2": {"c3", "c4", "c5"}},
	}
	for _, answers := range answerMaps {
		meta := domain.AttemptMeta{Answers: answers}
		review := attempt.BuildReview(reviewBank(false), meta)
		if review.Score != attempt.Score(scoringBank(), answers) {
			t.Fatalf("review score %d disagrees with scorer %d for %v",
				review.Score, attempt.Score(scoringBank(), answers), answers)
		}
		for _, rq := range review.Questions {
			var question domain.Question
			for _, q := range scoringBank() {
				if q.ID == rq.QuestionID {
					question = q
				}
			}
			perQuestion := attempt.Score([]domain.Question{question}, answers)
			if rq.Correct != (perQuestion > 0) {
				t.Fatalf("question %s: review says correct=%v, scorer awards %d",
					rq.QuestionID, rq.Correct, perQuestion)
			}
			if rq.Awarded != perQuestion {
				t.Fatalf("question %s: awarded %d, scorer %d", rq.QuestionID, rq.Awarded, perQuestion)
			}
		}
	}
}

func TestReviewHidesCorrectnessUnlessRevealed(t *testing.T) {
	meta := domain.AttemptMeta{Answers: map[string][]string{"q1": {"c2"}}}

	hidden := attempt.BuildReview(reviewBank(false), meta)
	for _, rq := range hidden.Questions {
		for _, rc := range rq.Choices {
			if rc.Correct != nil {
				t.Fatalf("expected correctness hidden, got %v on choice %s", *rc.Correct, rc.ID)
			}
		}
	}

	shown := attempt.BuildReview(reviewBank(true), meta)
	marked := 0
	for _, rq := range shown.Questions {
		for _, rc := range rq.Choices {
			if rc.Correct == nil {
				t.Fatalf("expected correctness shown on choice %s", rc.ID)
			}
			if *rc.Correct {
				marked++
			}
		}
	}
	if marked != 3 {
		t.Fatalf("expected 3 correct choices marked, got %d", marked)
	}
}

func TestReviewMarksSelections(t *testing.T) {
	meta := domain.AttemptMeta{Answers: map[string][]string{"q2": {"c3", "c4"}}, AutoSubmitted: true}
	review := attempt.BuildReview(reviewBank(false), meta)
	if !review.AutoSubmitted {
		t.Fatalf("expected autoSubmitted carried into review")
	}
	for _, rq := range review.Questions {
		if rq.QuestionID != "q2" {
			continue
		}
		for _, rc := range rq.Choices {
			want := rc.ID == "c3" || rc.ID == "c4"
			if rc.Selected != want {
				t.Fatalf("choice %s: selected=%v, want %v", rc.ID, rc.Selected, want)
			}
		}
	}
}
