package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-engine/internal/domain"
)

// BankLoader fetches quiz content from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, quizID string) (domain.Bank, error)
}

// BankCache caches full question banks in Redis as JSON and falls back to a
// loader on cache miss. Keys: bank:{quizID}.
type BankCache struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewBankCache(client *redis.Client, loader BankLoader, ttl time.Duration) *BankCache {
	return &BankCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *BankCache) GetBank(ctx context.Context, quizID string) (domain.Bank, error) {
	key := c.key(quizID)

	if bank, ok := c.fromCache(ctx, key); ok {
		return bank, nil
	}

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := c.fromCache(ctx, key); ok {
			return bank, nil
		}

		bank, err := c.loader.LoadBank(ctx, quizID)
		if err != nil {
			return domain.Bank{}, err
		}

		if raw, err := json.Marshal(bank); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return bank, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

func (c *BankCache) fromCache(ctx context.Context, key string) (domain.Bank, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Bank{}, false
	}
	var bank domain.Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return domain.Bank{}, false
	}
	return bank, true
}

func (c *BankCache) key(quizID string) string {
	return "bank:" + quizID
}

func (c *BankCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
