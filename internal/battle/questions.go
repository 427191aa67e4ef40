package battle

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kodzimk/head2head/internal/obslog"
)

// QuestionCache is the lease-backed cache mapping battle id to its ordered
// question list. The list is generated once per battle and every participant
// observes the identical order; entries expire after the configured TTL.
type QuestionCache struct {
	rdb   *redis.Client
	gen   Generator
	ttl   time.Duration
	count int

	mu      sync.Mutex
	loading map[string]*loadCall
}

type loadCall struct {
	done chan struct{}
	qs   []Question
	err  error
}

func NewQuestionCache(rdb *redis.Client, gen Generator, ttl time.Duration, count int) *QuestionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if count <= 0 {
		count = 5
	}
	return &QuestionCache{
		rdb:     rdb,
		gen:     gen,
		ttl:     ttl,
		count:   count,
		loading: make(map[string]*loadCall),
	}
}

// GetOrLoad returns the cached question list for the battle, invoking the
// generator on a miss. Concurrent callers for the same battle share a single
// generation; a short or empty result is cached as-is and the engine treats
// the shorter list end as "finished".
func (c *QuestionCache) GetOrLoad(ctx context.Context, battleID, sport, level string) ([]Question, error) {
	if strings.TrimSpace(battleID) == "" {
		return nil, ErrInvalidArgs
	}
	if qs, err := c.get(ctx, battleID); err != nil {
		return nil, err
	} else if qs != nil {
		return qs, nil
	}

	c.mu.Lock()
	if call, ok := c.loading[battleID]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.qs, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	c.loading[battleID] = call
	c.mu.Unlock()

	call.qs, call.err = c.load(ctx, battleID, sport, level)
	close(call.done)

	c.mu.Lock()
	delete(c.loading, battleID)
	c.mu.Unlock()
	return call.qs, call.err
}

// Evict removes the battle's question list ahead of its TTL.
func (c *QuestionCache) Evict(ctx context.Context, battleID string) {
	if err := c.rdb.Del(ctx, questionsKey(battleID)).Err(); err != nil {
		obslog.L().Warn("question_cache_evict_failed", zap.String("battle_id", battleID), zap.Error(err))
	}
}

func (c *QuestionCache) load(ctx context.Context, battleID, sport, level string) ([]Question, error) {
	// another process may have populated the key while we queued
	if qs, err := c.get(ctx, battleID); err == nil && qs != nil {
		return qs, nil
	}

	qs, err := c.gen.Generate(ctx, sport, level, c.count)
	if err != nil {
		obslog.L().Error("question_generate_failed",
			zap.String("battle_id", battleID),
			zap.String("sport", sport),
			zap.String("level", level),
			zap.Error(err),
		)
		return nil, err
	}
	if qs == nil {
		qs = []Question{}
	}
	if len(qs) < c.count {
		obslog.L().Warn("question_generate_short",
			zap.String("battle_id", battleID),
			zap.Int("requested", c.count),
			zap.Int("got", len(qs)),
		)
	}

	raw, err := json.Marshal(qs)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, questionsKey(battleID), raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	obslog.L().Info("question_set_cached",
		zap.String("battle_id", battleID),
		zap.Int("count", len(qs)),
	)
	return qs, nil
}

func (c *QuestionCache) get(ctx context.Context, battleID string) ([]Question, error) {
	raw, err := c.rdb.Get(ctx, questionsKey(battleID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var qs []Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func questionsKey(battleID string) string { return "battle:questions:" + strings.TrimSpace(battleID) }
