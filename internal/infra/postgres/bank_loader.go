package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-engine/internal/domain"
)

// BankLoader reads quiz metadata, questions and choices from Postgres.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

// LoadBank returns the quiz with its questions ordered by order_index and
// each question's choices ordered by order_index. A missing quiz is an error;
// a failed question/choice fetch degrades to an empty bank, which callers
// surface as "no questions".
func (l *BankLoader) LoadBank(ctx context.Context, quizID string) (domain.Bank, error) {
	quiz, err := l.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.Bank{}, err
	}
	questions, err := l.loadQuestions(ctx, quizID)
	if err != nil {
		return domain.Bank{Quiz: quiz}, nil
	}
	if err := l.attachChoices(ctx, questions); err != nil {
		return domain.Bank{Quiz: quiz}, nil
	}
	return domain.Bank{Quiz: quiz, Questions: questions}, nil
}

func (l *BankLoader) loadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var q domain.Quiz
	err := l.pool.QueryRow(ctx, `
		SELECT id, title, description, time_limit_sec, available_from, expires_at,
		       max_attempts, reveal_correct_answers, is_published, shuffle
		FROM quizzes WHERE id=$1`, quizID).
		Scan(&q.ID, &q.Title, &q.Description, &q.TimeLimitSec, &q.AvailableFrom, &q.ExpiresAt,
			&q.MaxAttempts, &q.RevealCorrectAnswers, &q.Published, &q.Shuffle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return q, nil
}

func (l *BankLoader) loadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, quiz_id, order_index, text, instruction, underline_text, underline_case_sensitive, points
		FROM questions WHERE quiz_id=$1 ORDER BY order_index`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q             domain.Question
			underline     *string
			caseSensitive bool
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.OrderIndex, &q.Text, &q.Instruction, &underline, &caseSensitive, &q.Points); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if underline != nil && *underline != "" {
			q.Underline = &domain.Underline{Text: *underline, CaseSensitive: caseSensitive}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (l *BankLoader) attachChoices(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]string, len(questions))
	index := make(map[string]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
		index[q.ID] = i
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, question_id, order_index, text, is_correct
		FROM choices WHERE question_id = ANY($1) ORDER BY question_id, order_index`, ids)
	if err != nil {
		return fmt.Errorf("load choices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.OrderIndex, &c.Text, &c.Correct); err != nil {
			return fmt.Errorf("scan choice: %w", err)
		}
		if i, ok := index[c.QuestionID]; ok {
			questions[i].Choices = append(questions[i].Choices, c)
		}
	}
	return rows.Err()
}
