package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-attempt-engine/internal/config"
	"quiz-attempt-engine/internal/domain"
)

// NewSeedCmd loads a quiz bank JSON file into Postgres. The file holds a
// domain.Bank: quiz metadata plus questions with nested choices.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <bank.json>",
		Short: "Insert a quiz bank from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, args[0])
		},
	}
}

func runSeed(ctx context.Context, configPath, bankPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	data, err := os.ReadFile(bankPath)
	if err != nil {
		return err
	}
	var bank domain.Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		return fmt.Errorf("parse bank: %w", err)
	}
	if bank.Quiz.ID == "" {
		return fmt.Errorf("bank is missing quiz id")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := bank.Quiz
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quizzes (id, title, description, time_limit_sec, available_from, expires_at,
			                     max_attempts, reveal_correct_answers, is_published, shuffle)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
			time_limit_sec=EXCLUDED.time_limit_sec, available_from=EXCLUDED.available_from,
			expires_at=EXCLUDED.expires_at, max_attempts=EXCLUDED.max_attempts,
			reveal_correct_answers=EXCLUDED.reveal_correct_answers,
			is_published=EXCLUDED.is_published, shuffle=EXCLUDED.shuffle`,
			q.ID, q.Title, q.Description, q.TimeLimitSec, q.AvailableFrom, q.ExpiresAt,
			q.MaxAttempts, q.RevealCorrectAnswers, q.Published, q.Shuffle); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		for _, question := range bank.Questions {
			var underline *string
			caseSensitive := false
			if question.Underline != nil {
				underline = &question.Underline.Text
				caseSensitive = question.Underline.CaseSensitive
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO questions (id, quiz_id, order_index, text, instruction, underline_text, underline_case_sensitive, points)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET order_index=EXCLUDED.order_index, text=EXCLUDED.text,
				instruction=EXCLUDED.instruction, underline_text=EXCLUDED.underline_text,
				underline_case_sensitive=EXCLUDED.underline_case_sensitive, points=EXCLUDED.points`,
				question.ID, q.ID, question.OrderIndex, question.Text, question.Instruction,
				underline, caseSensitive, question.Points); err != nil {
				return fmt.Errorf("insert question %s: %w", question.ID, err)
			}
			for _, choice := range question.Choices {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO choices (id, question_id, order_index, text, is_correct)
					VALUES (?, ?, ?, ?, ?)
					ON CONFLICT (id) DO UPDATE SET order_index=EXCLUDED.order_index,
					text=EXCLUDED.text, is_correct=EXCLUDED.is_correct`,
					choice.ID, question.ID, choice.OrderIndex, choice.Text, choice.Correct); err != nil {
					return fmt.Errorf("insert choice %s: %w", choice.ID, err)
				}
			}
		}
		log.Printf("seeded quiz %s (%d questions)", q.ID, len(bank.Questions))
		return nil
	})
}
