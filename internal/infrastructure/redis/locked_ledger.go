package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

// ロック取得のデフォルトパラメータ
const (
	lockTTL        = 10 * time.Second
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond
)

// LockedLedger は台帳の変更操作をInventoryKey単位の分散ロックで直列化する
// SQL台帳を複数プロセスで共有する構成で使い、check-then-act 競合を
// プロセスをまたいで防ぐ。読み取りはロックなしで内側の台帳に委譲する
type LockedLedger struct {
	inner inventory.Ledger
	locks *LockManager
}

func NewLockedLedger(inner inventory.Ledger, locks *LockManager) *LockedLedger {
	return &LockedLedger{inner: inner, locks: locks}
}

// AvailableSeats はロックなしで内側の台帳に委譲する
func (l *LockedLedger) AvailableSeats(ctx context.Context, key inventory.Key) ([]seatmap.Label, error) {
	return l.inner.AvailableSeats(ctx, key)
}

// Hold はキーのロックを取得してから仮押さえを実行する
func (l *LockedLedger) Hold(ctx context.Context, key inventory.Key, requested []seatmap.Label, holderID string, ttl time.Duration) (*inventory.HoldTicket, error) {
	lock, err := l.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	return l.inner.Hold(ctx, key, requested, holderID, ttl)
}

// Commit はキーのロックを取得してから予約確定を実行する
func (l *LockedLedger) Commit(ctx context.Context, ticket *inventory.HoldTicket, bookingID string) error {
	lock, err := l.acquire(ctx, ticket.Key)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	return l.inner.Commit(ctx, ticket, bookingID)
}

// Release はキーのロックを取得してから座席解放を実行する
func (l *LockedLedger) Release(ctx context.Context, ticket *inventory.HoldTicket) error {
	lock, err := l.acquire(ctx, ticket.Key)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	return l.inner.Release(ctx, ticket)
}

// SweepExpired はロックなしで内側の台帳に委譲する
// 失効解放は条件付きUPDATEでありキーロックを必要としない
func (l *LockedLedger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	return l.inner.SweepExpired(ctx, now)
}

func (l *LockedLedger) acquire(ctx context.Context, key inventory.Key) (*InventoryLock, error) {
	lock, err := l.locks.AcquireWithRetry(ctx, key, lockTTL, lockMaxRetries, lockRetryDelay)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, fmt.Errorf("座席が他のユーザーによって処理中です: %w", err)
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	return lock, nil
}

var _ inventory.Ledger = (*LockedLedger)(nil)
