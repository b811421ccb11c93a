package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// KEYS: balance, entry marker, history. ARGV: amount, entry json.
// Returns {status, balance}: 1 applied, 2 already applied, 0 insufficient.
var chargeScript = redis.NewScript(`
local bal = tonumber(redis.call("GET", KEYS[1]) or "0")
if redis.call("EXISTS", KEYS[2]) == 1 then
	return {2, bal}
end
local amt = tonumber(ARGV[1])
if bal < amt then
	return {0, bal}
end
local nb = redis.call("DECRBY", KEYS[1], amt)
redis.call("SET", KEYS[2], ARGV[1])
redis.call("LPUSH", KEYS[3], ARGV[2])
return {1, nb}
`)

// KEYS: balance, entry marker, history, required marker (or ""). ARGV: amount, entry json.
// Returns {status, balance}: 1 applied, 2 already applied, -1 missing required marker.
var creditScript = redis.NewScript(`
local bal = tonumber(redis.call("GET", KEYS[1]) or "0")
if redis.call("EXISTS", KEYS[2]) == 1 then
	return {2, bal}
end
if KEYS[4] ~= "" and redis.call("EXISTS", KEYS[4]) == 0 then
	return {-1, bal}
end
local nb = redis.call("INCRBY", KEYS[1], tonumber(ARGV[1]))
redis.call("SET", KEYS[2], ARGV[1])
redis.call("LPUSH", KEYS[3], ARGV[2])
return {1, nb}
`)

// RedisLedger keeps balances as integers and applies each mutation in one Lua call.
type RedisLedger struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRedisLedger(redisClient *redis.Client) *RedisLedger {
	return &RedisLedger{redis: redisClient, now: time.Now}
}

func balanceKey(userID string) string { return fmt.Sprintf("credits:balance:%s", userID) }
func historyKey(userID string) string { return fmt.Sprintf("credits:history:%s", userID) }
func markerKey(kind, reference string) string {
	return fmt.Sprintf("credits:entry:%s:%s", kind, reference)
}

func (l *RedisLedger) Charge(ctx context.Context, userID string, amount int64, reference, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	entry, err := l.entry(KindCharge, userID, amount, reference, description)
	if err != nil {
		return 0, err
	}

	res, err := chargeScript.Run(ctx, l.redis,
		[]string{balanceKey(userID), markerKey(KindCharge, reference), historyKey(userID)},
		amount, entry,
	).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to charge credits: %w", err)
	}

	switch res[0] {
	case 0:
		return res[1], ErrInsufficientCredits
	case 2:
		log.Printf("[Ledger] charge %s already applied for user %s", reference, userID)
	default:
		log.Printf("[Ledger] charged %d credits from user %s (%s)", amount, userID, reference)
	}
	return res[1], nil
}

func (l *RedisLedger) Refund(ctx context.Context, userID string, amount int64, reference, description string) (bool, int64, error) {
	if amount <= 0 {
		return false, 0, ErrInvalidAmount
	}
	status, balance, err := l.credit(ctx, KindRefund, userID, amount, reference, description, markerKey(KindCharge, reference))
	if err != nil {
		return false, 0, err
	}
	switch status {
	case -1:
		return false, balance, ErrNoCharge
	case 2:
		return false, balance, nil
	}
	log.Printf("[Ledger] refunded %d credits to user %s (%s)", amount, userID, reference)
	return true, balance, nil
}

func (l *RedisLedger) Grant(ctx context.Context, userID string, amount int64, reference, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	status, balance, err := l.credit(ctx, KindGrant, userID, amount, reference, description, "")
	if err != nil {
		return 0, err
	}
	if status == 1 {
		log.Printf("[Ledger] granted %d credits to user %s (%s)", amount, userID, reference)
	}
	return balance, nil
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (int64, error) {
	bal, err := l.redis.Get(ctx, balanceKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return bal, nil
}

func (l *RedisLedger) credit(ctx context.Context, kind, userID string, amount int64, reference, description, required string) (int64, int64, error) {
	entry, err := l.entry(kind, userID, amount, reference, description)
	if err != nil {
		return 0, 0, err
	}
	res, err := creditScript.Run(ctx, l.redis,
		[]string{balanceKey(userID), markerKey(kind, reference), historyKey(userID), required},
		amount, entry,
	).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to %s credits: %w", kind, err)
	}
	return res[0], res[1], nil
}

func (l *RedisLedger) entry(kind, userID string, amount int64, reference, description string) (string, error) {
	data, err := json.Marshal(Entry{
		Kind:        kind,
		UserID:      userID,
		Amount:      amount,
		Reference:   reference,
		Description: description,
		CreatedAt:   l.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ledger entry: %w", err)
	}
	return string(data), nil
}
