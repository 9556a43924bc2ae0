package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-engine/internal/domain"
)

const uniqueViolation = "23505"

// AttemptStore persists attempt rows in Postgres. A unique index on
// (quiz_id, student_id, attempt_number) serializes concurrent starts from
// separate tabs; on conflict the number is recomputed from the table and the
// insert retried once.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) ListAttempts(ctx context.Context, quizID, studentID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id, student_id, attempt_number, started_at, submitted_at, duration_sec, score, meta
		FROM attempts WHERE quiz_id=$1 AND student_id=$2
		ORDER BY attempt_number DESC`, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var (
			a   domain.Attempt
			raw []byte
		)
		if err := rows.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.AttemptNumber, &a.StartedAt, &a.SubmittedAt, &a.DurationSec, &a.Score, &raw); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if len(raw) > 0 {
			var meta domain.AttemptMeta
			if err := json.Unmarshal(raw, &meta); err == nil {
				a.Meta = &meta
			}
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, quizID, studentID string, attemptNumber int, startedAt time.Time) (string, int, error) {
	id := uuid.NewString()
	err := s.insert(ctx, id, quizID, studentID, attemptNumber, startedAt)
	if err == nil {
		return id, attemptNumber, nil
	}
	if !isUniqueViolation(err) {
		return "", 0, fmt.Errorf("create attempt: %w", err)
	}
	// Another tab took this number; recompute from the table and retry once.
	// The caller must adopt the returned number, not the one it requested.
	var next int
	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM attempts
		WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID).Scan(&next); err != nil {
		return "", 0, fmt.Errorf("create attempt: %w", err)
	}
	if err := s.insert(ctx, id, quizID, studentID, next, startedAt); err != nil {
		return "", 0, fmt.Errorf("create attempt: %w", err)
	}
	return id, next, nil
}

func (s *AttemptStore) insert(ctx context.Context, id, quizID, studentID string, attemptNumber int, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, student_id, attempt_number, started_at, duration_sec, score)
		VALUES ($1, $2, $3, $4, $5, 0, 0)`,
		id, quizID, studentID, attemptNumber, startedAt)
	return err
}

func (s *AttemptStore) FinalizeAttempt(ctx context.Context, id string, submittedAt time.Time, durationSec int, score int, meta domain.AttemptMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET submitted_at=$1, duration_sec=$2, score=$3, meta=$4
		WHERE id=$5 AND submitted_at IS NULL`,
		submittedAt, durationSec, score, raw, id)
	if err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) DeleteAttempt(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attempts WHERE id=$1 AND submitted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
