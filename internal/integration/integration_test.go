package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-attempt-engine/internal/attempt"
	"quiz-attempt-engine/internal/domain"
	pgstore "quiz-attempt-engine/internal/infra/postgres"
	pgmigrations "quiz-attempt-engine/internal/infra/postgres/migrations"
	infraredis "quiz-attempt-engine/internal/infra/redis"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedBank(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	banks := infraredis.NewBankCache(redisClient, pgstore.NewBankLoader(pool), 5*time.Minute)
	store := pgstore.NewAttemptStore(pool)
	engine := attempt.NewEngine(banks, store)

	session, err := engine.Open(ctx, "quiz-1", "s1", domain.RoleStudent)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := session.Start(ctx, attempt.Observers{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.AttemptNumber() != 1 {
		t.Fatalf("expected attempt 1, got %d", session.AttemptNumber())
	}
	if _, err := session.Answer("q1", "c2"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := session.Answer("q2", "c4"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := session.Answer("q2", "c6"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	res, err := session.Submit(ctx, false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Attempt.Score != 3 {
		t.Fatalf("expected score 3, got %d", res.Attempt.Score)
	}

	// the finalized row must be visible to a fresh session
	reopened, err := engine.Open(ctx, "quiz-1", "s1", domain.RoleStudent)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	hist := reopened.History()
	if hist.AttemptsUsed() != 1 {
		t.Fatalf("expected 1 attempt used, got %d", hist.AttemptsUsed())
	}
	score, ok := hist.LastScore()
	if !ok || score != 3 {
		t.Fatalf("expected last score 3, got %d ok=%v", score, ok)
	}
	review, err := reopened.LastReview()
	if err != nil {
		t.Fatalf("last review: %v", err)
	}
	if review.Score != 3 {
		t.Fatalf("reconstructed review score %d, want 3", review.Score)
	}

	var durationSec int
	var submittedAt *time.Time
	if err := pool.QueryRow(ctx, `SELECT duration_sec, submitted_at FROM attempts WHERE id=$1`, res.Attempt.ID).
		Scan(&durationSec, &submittedAt); err != nil {
		t.Fatalf("query row: %v", err)
	}
	if submittedAt == nil || durationSec < 1 {
		t.Fatalf("row not finalized: duration=%d submitted=%v", durationSec, submittedAt)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("pg host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("pg port: %v", err)
	}
	url := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedBank(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO quizzes (id, title, description, time_limit_sec, max_attempts, reveal_correct_answers, is_published, shuffle)
		VALUES ('quiz-1', 'Integration quiz', '', 600, 3, TRUE, TRUE, FALSE)`); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO questions (id, quiz_id, order_index, text, instruction, points) VALUES
		('q1', 'quiz-1', 0, 'What is 2 + 2?', '', 1),
		('q2', 'quiz-1', 1, 'Select every even number.', '', 2)`); err != nil {
		t.Fatalf("insert questions: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO choices (id, question_id, order_index, text, is_correct) VALUES
		('c1', 'q1', 0, '3', FALSE),
		('c2', 'q1', 1, '4', TRUE),
		('c3', 'q1', 2, '5', FALSE),
		('c4', 'q2', 0, '2', TRUE),
		('c5', 'q2', 1, '3', FALSE),
		('c6', 'q2', 2, '4', TRUE)`); err != nil {
		t.Fatalf("insert choices: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
