package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// InventoryLock はInventoryKey単位の分散ロック
// SQL台帳を複数プロセスで使う場合、同一キーへの変更操作を直列化するために使う
// （インメモリ台帳はプールごとのミューテックスで直列化するため不要）
type InventoryLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// LockManager はInventoryKey単位の分散ロックを管理する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// Acquire はキーのロックを取得する
// SetNX を使用し、キーが存在しない場合のみ設定される
func (m *LockManager) Acquire(ctx context.Context, key inventory.Key, ttl time.Duration) (*InventoryLock, error) {
	lockKey := fmt.Sprintf("lock:inventory:%s", key)
	lockValue := uuid.New().String()

	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	return &InventoryLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// AcquireWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireWithRetry(ctx context.Context, key inventory.Key, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*InventoryLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Release はロックを解放する（Luaスクリプトで所有者確認と削除をアトミックに実行）
func (l *InventoryLock) Release(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// Extend はロックの有効期限を延長する
func (l *InventoryLock) Extend(ctx context.Context, ttl time.Duration) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	l.ttl = ttl
	return nil
}
