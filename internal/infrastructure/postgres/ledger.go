package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

// Ledger はPostgreSQLを使った永続化版の座席在庫台帳
// 変更操作は1トランザクション内の条件付きUPDATE + 更新行数チェックで
// all-or-nothing を保証する。複数プロセスで運用する場合は
// redis.LockManager でInventoryKey単位の直列化を併用すること
type Ledger struct {
	db         *sqlx.DB
	capacities *seatmap.CapacityTable
}

// NewLedger は新しい永続化台帳を作成する
func NewLedger(db *sqlx.DB, capacities *seatmap.CapacityTable) *Ledger {
	return &Ledger{db: db, capacities: capacities}
}

type ticketRow struct {
	ID         string         `db:"id"`
	HolderID   string         `db:"holder_id"`
	ScheduleID int64          `db:"schedule_id"`
	TravelDate string         `db:"travel_date"`
	SeatLabels pq.StringArray `db:"seat_labels"`
	ExpiresAt  time.Time      `db:"expires_at"`
	Committed  bool           `db:"committed"`
	BookingID  *string        `db:"booking_id"`
	CreatedAt  time.Time      `db:"created_at"`
}

// ensurePool はキーの座席行を遅延初期化する（既存行には影響しない）
func (l *Ledger) ensurePool(ctx context.Context, tx *sqlx.Tx, key inventory.Key) error {
	labels := l.capacities.LabelsFor(key.ScheduleID)
	strs := make([]string, len(labels))
	for i, label := range labels {
		strs[i] = string(label)
	}
	query := `
		INSERT INTO seat_states (schedule_id, travel_date, seat_label, status)
		SELECT $1, $2, unnest($3::text[]), 'free'
		ON CONFLICT (schedule_id, travel_date, seat_label) DO NOTHING`
	if _, err := tx.ExecContext(ctx, query, key.ScheduleID, key.TravelDate, pq.Array(strs)); err != nil {
		return fmt.Errorf("座席プール初期化に失敗: %w", err)
	}
	return nil
}

// AvailableSeats は空席ラベルを安定順序で返す（失効した仮押さえは空席扱い）
func (l *Ledger) AvailableSeats(ctx context.Context, key inventory.Key) ([]seatmap.Label, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := l.ensurePool(ctx, tx, key); err != nil {
		return nil, err
	}

	query := `
		SELECT seat_label FROM seat_states
		WHERE schedule_id = $1 AND travel_date = $2
		  AND (status = 'free' OR (status = 'held' AND expires_at <= NOW()))
		ORDER BY LENGTH(seat_label), seat_label`
	var rows []string
	if err := tx.SelectContext(ctx, &rows, query, key.ScheduleID, key.TravelDate); err != nil {
		return nil, fmt.Errorf("空席取得に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	labels := make([]seatmap.Label, len(rows))
	for i, r := range rows {
		labels[i] = seatmap.Label(r)
	}
	return labels, nil
}

// Hold は要求された全座席をアトミックに仮押さえする
func (l *Ledger) Hold(ctx context.Context, key inventory.Key, requested []seatmap.Label, holderID string, ttl time.Duration) (*inventory.HoldTicket, error) {
	// チケットの座席ラベルは集合であり、同一ラベルの重複指定は受け付けない
	seen := make(map[seatmap.Label]struct{}, len(requested))
	for _, label := range requested {
		if _, dup := seen[label]; dup {
			return nil, inventory.ErrDuplicateSeat
		}
		seen[label] = struct{}{}
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := l.ensurePool(ctx, tx, key); err != nil {
		return nil, err
	}

	strs := make([]string, len(requested))
	for i, label := range requested {
		strs[i] = string(label)
	}

	// 要求ラベルが全て実在するか確認
	var known int
	if err := tx.GetContext(ctx, &known,
		`SELECT COUNT(*) FROM seat_states WHERE schedule_id = $1 AND travel_date = $2 AND seat_label = ANY($3)`,
		key.ScheduleID, key.TravelDate, pq.Array(strs)); err != nil {
		return nil, fmt.Errorf("座席確認に失敗: %w", err)
	}
	if known != len(requested) {
		return nil, inventory.ErrUnknownSeat
	}

	ticketID := uuid.New().String()
	now := time.Now()
	expiresAt := now.Add(ttl)

	// 空席（失効した仮押さえ含む）のみを条件付きで更新し、
	// 更新行数が要求数に満たなければ全体をロールバックする（all-or-nothing）
	result, err := tx.ExecContext(ctx, `
		UPDATE seat_states
		SET status = 'held', holder_id = $1, ticket_id = $2, booking_id = NULL,
		    expires_at = $3, updated_at = NOW()
		WHERE schedule_id = $4 AND travel_date = $5 AND seat_label = ANY($6)
		  AND (status = 'free' OR (status = 'held' AND expires_at <= NOW()))`,
		holderID, ticketID, expiresAt, key.ScheduleID, key.TravelDate, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("座席仮押さえに失敗: %w", err)
	}
	affected, _ := result.RowsAffected()
	if int(affected) != len(requested) {
		return nil, inventory.ErrSeatUnavailable
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO hold_tickets (id, holder_id, schedule_id, travel_date, seat_labels, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ticketID, holderID, key.ScheduleID, key.TravelDate, pq.Array(strs), expiresAt, now); err != nil {
		return nil, fmt.Errorf("チケット作成に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	return &inventory.HoldTicket{
		ID:         ticketID,
		HolderID:   holderID,
		Key:        key,
		SeatLabels: append([]seatmap.Label(nil), requested...),
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}, nil
}

// Commit は仮押さえ中の座席を予約確定に遷移させる
func (l *Ledger) Commit(ctx context.Context, ticket *inventory.HoldTicket, bookingID string) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	var row ticketRow
	err = tx.GetContext(ctx, &row,
		`SELECT id, holder_id, schedule_id, travel_date, seat_labels, expires_at, committed, booking_id, created_at
		 FROM hold_tickets WHERE id = $1 FOR UPDATE`, ticket.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.ErrHoldNotFound
	}
	if err != nil {
		return fmt.Errorf("チケット取得に失敗: %w", err)
	}
	if row.Committed {
		return inventory.ErrHoldNotFound
	}

	if time.Now().After(row.ExpiresAt) {
		// 失効済み。座席を解放しチケットを破棄する
		if _, err := tx.ExecContext(ctx, `
			UPDATE seat_states
			SET status = 'free', holder_id = NULL, ticket_id = NULL, expires_at = NULL, updated_at = NOW()
			WHERE ticket_id = $1 AND status = 'held'`, ticket.ID); err != nil {
			return fmt.Errorf("失効座席の解放に失敗: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM hold_tickets WHERE id = $1`, ticket.ID); err != nil {
			return fmt.Errorf("チケット削除に失敗: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("コミットに失敗: %w", err)
		}
		return inventory.ErrHoldExpired
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE seat_states
		SET status = 'booked', booking_id = $1, expires_at = NULL, updated_at = NOW()
		WHERE ticket_id = $2 AND status = 'held'`, bookingID, ticket.ID)
	if err != nil {
		return fmt.Errorf("座席確定に失敗: %w", err)
	}
	affected, _ := result.RowsAffected()
	if int(affected) != len(row.SeatLabels) {
		return inventory.ErrHoldNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE hold_tickets SET committed = TRUE, booking_id = $1 WHERE id = $2`,
		bookingID, ticket.ID); err != nil {
		return fmt.Errorf("チケット更新に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// Release はチケットの座席を空席に戻す（冪等）
func (l *Ledger) Release(ctx context.Context, ticket *inventory.HoldTicket) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM hold_tickets WHERE id = $1)`, ticket.ID); err != nil {
		return fmt.Errorf("チケット確認に失敗: %w", err)
	}
	if !exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE seat_states
		SET status = 'free', holder_id = NULL, ticket_id = NULL, booking_id = NULL,
		    expires_at = NULL, updated_at = NOW()
		WHERE ticket_id = $1`, ticket.ID); err != nil {
		return fmt.Errorf("座席解放に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hold_tickets WHERE id = $1`, ticket.ID); err != nil {
		return fmt.Errorf("チケット削除に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// SweepExpired は失効した仮押さえを即時解放する
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE seat_states
		SET status = 'free', holder_id = NULL, ticket_id = NULL, expires_at = NULL, updated_at = NOW()
		WHERE status = 'held' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("失効座席の解放に失敗: %w", err)
	}
	freed, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM hold_tickets WHERE committed = FALSE AND expires_at <= $1`, now); err != nil {
		return 0, fmt.Errorf("失効チケット削除に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}
	return int(freed), nil
}

var _ inventory.Ledger = (*Ledger)(nil)
