package battle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, gen Generator, count int) (*QuestionCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewQuestionCache(rdb, gen, time.Hour, count), mr
}

func TestQuestionCacheGeneratesOnce(t *testing.T) {
	gen := &stubGen{qs: testQuestions(5)}
	cache, mr := newTestCache(t, gen, 5)
	ctx := context.Background()

	qs1, err := cache.GetOrLoad(ctx, "b1", "football", "easy")
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	qs2, err := cache.GetOrLoad(ctx, "b1", "football", "easy")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(qs1) != 5 || len(qs2) != 5 {
		t.Fatalf("lengths: %d / %d", len(qs1), len(qs2))
	}
	if got := atomic.LoadInt32(&gen.calls); got != 1 {
		t.Fatalf("generator called %d times, want 1", got)
	}
	// identical order on every read
	for i := range qs1 {
		if qs1[i].Text != qs2[i].Text {
			t.Fatalf("question order differs at %d: %q vs %q", i, qs1[i].Text, qs2[i].Text)
		}
	}
	if ttl := mr.TTL(questionsKey("b1")); ttl <= 0 {
		t.Fatalf("cached entry has no TTL")
	}
}

type slowGen struct {
	qs    []Question
	calls int32
	gate  chan struct{}
}

func (g *slowGen) Generate(_ context.Context, _, _ string, _ int) ([]Question, error) {
	atomic.AddInt32(&g.calls, 1)
	<-g.gate
	return g.qs, nil
}

func TestQuestionCacheConcurrentLoadShared(t *testing.T) {
	gen := &slowGen{qs: testQuestions(3), gate: make(chan struct{})}
	cache, _ := newTestCache(t, gen, 3)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qs, err := cache.GetOrLoad(ctx, "b1", "football", "easy")
			if err != nil {
				t.Errorf("GetOrLoad: %v", err)
				return
			}
			results[i] = len(qs)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(gen.gate)
	wg.Wait()

	if got := atomic.LoadInt32(&gen.calls); got != 1 {
		t.Fatalf("generator called %d times for one battle, want 1", got)
	}
	for i, n := range results {
		if n != 3 {
			t.Fatalf("caller %d saw %d questions", i, n)
		}
	}
}

func TestQuestionCacheDistinctBattles(t *testing.T) {
	gen := &stubGen{qs: testQuestions(2)}
	cache, _ := newTestCache(t, gen, 2)
	ctx := context.Background()

	if _, err := cache.GetOrLoad(ctx, "b1", "football", "easy"); err != nil {
		t.Fatalf("b1: %v", err)
	}
	if _, err := cache.GetOrLoad(ctx, "b2", "football", "easy"); err != nil {
		t.Fatalf("b2: %v", err)
	}
	if got := atomic.LoadInt32(&gen.calls); got != 2 {
		t.Fatalf("generator called %d times for two battles, want 2", got)
	}
}

func TestQuestionCacheEmptyResultCached(t *testing.T) {
	gen := &stubGen{qs: nil}
	cache, _ := newTestCache(t, gen, 5)
	ctx := context.Background()

	qs, err := cache.GetOrLoad(ctx, "b1", "football", "easy")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("expected empty list, got %d", len(qs))
	}
	// the empty list must be cached, not regenerated per call
	if _, err := cache.GetOrLoad(ctx, "b1", "football", "easy"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := atomic.LoadInt32(&gen.calls); got != 1 {
		t.Fatalf("generator called %d times, want 1", got)
	}
}

func TestQuestionCacheEvict(t *testing.T) {
	gen := &stubGen{qs: testQuestions(2)}
	cache, mr := newTestCache(t, gen, 2)
	ctx := context.Background()

	if _, err := cache.GetOrLoad(ctx, "b1", "football", "easy"); err != nil {
		t.Fatalf("load: %v", err)
	}
	cache.Evict(ctx, "b1")
	if mr.Exists(questionsKey("b1")) {
		t.Fatalf("key still present after evict")
	}
}

func TestQuestionCacheRejectsEmptyBattleID(t *testing.T) {
	gen := &stubGen{qs: testQuestions(2)}
	cache, _ := newTestCache(t, gen, 2)
	if _, err := cache.GetOrLoad(context.Background(), "  ", "football", "easy"); err != ErrInvalidArgs {
		t.Fatalf("blank battle id: %v, want ErrInvalidArgs", err)
	}
}
