package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptTracker marks live attempts in Redis for operational visibility
// (dashboards, debugging stuck attempts). It is strictly best-effort and
// never gates attempt creation: two tabs can still start independently.
type AttemptTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptTracker(client *redis.Client, ttl time.Duration) *AttemptTracker {
	return &AttemptTracker{client: client, ttl: ttl}
}

// MarkActive records that an attempt went in-progress.
func (t *AttemptTracker) MarkActive(ctx context.Context, quizID, studentID, attemptID string) {
	_ = t.client.Set(ctx, t.key(quizID, studentID), attemptID, t.ttl).Err()
}

// Clear removes the marker after submit or cancel.
func (t *AttemptTracker) Clear(ctx context.Context, quizID, studentID string) {
	_ = t.client.Del(ctx, t.key(quizID, studentID)).Err()
}

// Active returns the marked attempt ID, if any.
func (t *AttemptTracker) Active(ctx context.Context, quizID, studentID string) (string, bool) {
	id, err := t.client.Get(ctx, t.key(quizID, studentID)).Result()
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (t *AttemptTracker) key(quizID, studentID string) string {
	return "attempt:active:" + quizID + ":" + studentID
}
