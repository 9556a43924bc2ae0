package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-attempt-engine/internal/attempt"
	"quiz-attempt-engine/internal/config"
	"quiz-attempt-engine/internal/domain"
	"quiz-attempt-engine/internal/infra/memory"
	pgstore "quiz-attempt-engine/internal/infra/postgres"
	redisinfra "quiz-attempt-engine/internal/infra/redis"
	transport "quiz-attempt-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	var store attempt.AttemptStore = memory.NewAttemptStore()
	if pool != nil {
		loader = pgstore.NewBankLoader(pool)
		store = pgstore.NewAttemptStore(pool)
	}

	bankTTL := config.Duration(cfg.Bank.TTL, 10*time.Minute)
	var banks attempt.BankRepository
	var tracker transport.AttemptTracker
	if redisClient != nil {
		banks = redisinfra.NewBankCache(redisClient, loader, bankTTL)
		tracker = redisinfra.NewAttemptTracker(redisClient, config.Duration(cfg.Redis.TTL, time.Hour))
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	engine := attempt.NewEngine(banks, store)
	engine.SetTickInterval(config.Duration(cfg.Attempt.Tick, time.Second))
	wsHandler := transport.NewWSHandler(engine, tracker)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting attempt engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBanks provides demo content for storage-less runs; production loads
// from Postgres instead.
func sampleBanks() map[string]domain.Bank {
	return map[string]domain.Bank{
		"quiz-1": {
			Quiz: domain.Quiz{
				ID:                   "quiz-1",
				Title:                "Arithmetic warm-up",
				TimeLimitSec:         600,
				MaxAttempts:          3,
				RevealCorrectAnswers: true,
				Published:            true,
			},
			Questions: []domain.Question{
				{
					ID:     "q1",
					QuizID: "quiz-1",
					Text:   "What is 2 + 2?",
					Points: 1,
					Choices: []domain.Choice{
						{ID: "c1", QuestionID: "q1", OrderIndex: 0, Text: "3"},
						{ID: "c2", QuestionID: "q1", OrderIndex: 1, Text: "4", Correct: true},
						{ID: "c3", QuestionID: "q1", OrderIndex: 2, Text: "5"},
					},
				},
				{
					ID:     "q2",
					QuizID: "quiz-1",
					Text:   "Select every even number.",
					Points: 2,
					Choices: []domain.Choice{
						{ID: "c4", QuestionID: "q2", OrderIndex: 0, Text: "2", Correct: true},
						{ID: "c5", QuestionID: "q2", OrderIndex: 1, Text: "3"},
						{ID: "c6", QuestionID: "q2", OrderIndex: 2, Text: "4", Correct: true},
					},
				},
			},
		},
	}
}
