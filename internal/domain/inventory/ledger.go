package inventory

import (
	"context"
	"time"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

// Ledger は座席状態を読み書きする唯一の窓口
// 同一Keyに対する全ての変更操作は単一の直列化ポイントで実行される
type Ledger interface {
	// AvailableSeats は現在空席の座席ラベル一覧を返す（失効した仮押さえは空席扱い）
	AvailableSeats(ctx context.Context, key Key) ([]seatmap.Label, error)

	// Hold は要求された全座席をアトミックに仮押さえする
	// 1席でも空席でなければ ErrSeatUnavailable を返し、部分的な仮押さえは一切行わない
	Hold(ctx context.Context, key Key, requested []seatmap.Label, holderID string, ttl time.Duration) (*HoldTicket, error)

	// Commit は仮押さえ中の座席を予約確定に遷移させる
	// 期限切れなら ErrHoldExpired、消費済みなら ErrHoldNotFound を返し、座席状態は変更しない
	Commit(ctx context.Context, ticket *HoldTicket, bookingID string) error

	// Release はチケットの座席を空席に戻す（仮押さえ中・予約確定済みを問わない）
	// 解放済みチケットの再解放は何もしない（冪等）
	Release(ctx context.Context, ticket *HoldTicket) error

	// SweepExpired は失効した仮押さえを即時解放し、解放した座席数を返す
	// 遅延失効が正となるため、呼び出しタイミングに正確性は依存しない
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}
