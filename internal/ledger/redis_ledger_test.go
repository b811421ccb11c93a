package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisLedger(t *testing.T) *RedisLedger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLedger(rdb)
}

func TestRedisLedger_ChargeDebits(t *testing.T) {
	l := setupRedisLedger(t)
	ctx := context.Background()

	if _, err := l.Grant(ctx, "u1", 50, "starter:u1", "welcome"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	remaining, err := l.Charge(ctx, "u1", 20, "job-1", "short video")
	if err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if remaining != 30 {
		t.Errorf("expected 30 remaining, got %d", remaining)
	}
}

func TestRedisLedger_InsufficientLeavesBalance(t *testing.T) {
	l := setupRedisLedger(t)
	ctx := context.Background()
	_, _ = l.Grant(ctx, "u1", 5, "starter:u1", "welcome")

	_, err := l.Charge(ctx, "u1", 10, "job-1", "teaser")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	bal, _ := l.Balance(ctx, "u1")
	if bal != 5 {
		t.Errorf("expected balance untouched at 5, got %d", bal)
	}

	// a later refund for the rejected job has nothing to return
	if _, _, err := l.Refund(ctx, "u1", 10, "job-1", "teaser"); !errors.Is(err, ErrNoCharge) {
		t.Errorf("expected ErrNoCharge, got %v", err)
	}
}

func TestRedisLedger_ChargeIdempotentPerReference(t *testing.T) {
	l := setupRedisLedger(t)
	ctx := context.Background()
	_, _ = l.Grant(ctx, "u1", 100, "starter:u1", "welcome")

	_, _ = l.Charge(ctx, "u1", 20, "job-1", "short")
	remaining, err := l.Charge(ctx, "u1", 20, "job-1", "short")
	if err != nil {
		t.Fatalf("Charge retry: %v", err)
	}
	if remaining != 80 {
		t.Errorf("expected single debit, balance %d", remaining)
	}
}

func TestRedisLedger_RefundExactlyOnceUnderConcurrency(t *testing.T) {
	l := setupRedisLedger(t)
	ctx := context.Background()
	_, _ = l.Grant(ctx, "u1", 35, "starter:u1", "welcome")
	_, _ = l.Charge(ctx, "u1", 35, "job-1", "story")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := l.Refund(ctx, "u1", 35, "job-1", "story failed")
			if err != nil {
				t.Errorf("Refund: %v", err)
				return
			}
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one applied refund, got %d", applied)
	}
	bal, _ := l.Balance(ctx, "u1")
	if bal != 35 {
		t.Errorf("expected balance restored to 35, got %d", bal)
	}
}

func TestRedisLedger_EntriesAppendedNewestFirst(t *testing.T) {
	l := setupRedisLedger(t)
	ctx := context.Background()
	_, _ = l.Grant(ctx, "u1", 20, "starter:u1", "welcome")
	_, _ = l.Charge(ctx, "u1", 10, "job-1", "teaser")
	_, _, _ = l.Refund(ctx, "u1", 10, "job-1", "teaser failed")

	raw, err := l.redis.LRange(ctx, historyKey("u1"), 0, -1).Result()
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(raw))
	}
	var newest, oldest Entry
	_ = json.Unmarshal([]byte(raw[0]), &newest)
	_ = json.Unmarshal([]byte(raw[2]), &oldest)
	if newest.Kind != KindRefund || oldest.Kind != KindGrant {
		t.Errorf("unexpected order: %s ... %s", newest.Kind, oldest.Kind)
	}
}

func TestRedisLedger_RejectsNonPositiveAmounts(t *testing.T) {
	l := setupRedisLedger(t)
	if _, err := l.Charge(context.Background(), "u1", 0, "job-1", "x"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}
