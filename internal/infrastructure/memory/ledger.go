package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

// seatSlot は1座席の状態を保持する
// ticketID は Held / Booked の間、座席を押さえているチケットを指す
type seatSlot struct {
	status    inventory.SeatStatus
	holderID  string
	ticketID  string
	bookingID string
	expiresAt time.Time
}

// ticketRecord はプール内でのチケットの消費状況を追跡する
// Commit 後もキャンセル（Release）に備えて保持される
type ticketRecord struct {
	labels    []seatmap.Label
	expiresAt time.Time
	committed bool
	bookingID string
}

// pool は1つのInventoryKeyに対応する座席プール
// mu がこのキーの唯一の直列化ポイントであり、「空席確認」と「仮押さえ」を
// アトミックに行うことで check-then-act 競合を防ぐ
type pool struct {
	mu      sync.Mutex
	order   []seatmap.Label
	slots   map[seatmap.Label]*seatSlot
	tickets map[string]*ticketRecord
}

// Ledger はインメモリの座席在庫台帳
// キーごとに独立したミューテックスを持ち、異なるスケジュール・搭乗日の
// 操作は互いに競合しない（グローバルロックはプール生成時のみ）
type Ledger struct {
	mu         sync.RWMutex
	pools      map[inventory.Key]*pool
	capacities *seatmap.CapacityTable
}

// NewLedger は新しいインメモリ台帳を作成する
func NewLedger(capacities *seatmap.CapacityTable) *Ledger {
	return &Ledger{
		pools:      make(map[inventory.Key]*pool),
		capacities: capacities,
	}
}

// getPool はキーに対応するプールを返す（初回アクセス時に全席Freeで遅延初期化）
func (l *Ledger) getPool(key inventory.Key) *pool {
	l.mu.RLock()
	p, ok := l.pools[key]
	l.mu.RUnlock()
	if ok {
		return p
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pools[key]; ok {
		return p
	}

	labels := l.capacities.LabelsFor(key.ScheduleID)
	p = &pool{
		order:   labels,
		slots:   make(map[seatmap.Label]*seatSlot, len(labels)),
		tickets: make(map[string]*ticketRecord),
	}
	for _, label := range labels {
		p.slots[label] = &seatSlot{status: inventory.StatusFree}
	}
	l.pools[key] = p
	return p
}

// expireLocked は失効した仮押さえを空席に戻す（pool.mu 保持中に呼ぶこと）
// 失効チケットのレコードも削除する。戻り値は解放した座席数
func (p *pool) expireLocked(now time.Time) int {
	freed := 0
	for _, slot := range p.slots {
		if slot.status == inventory.StatusHeld && now.After(slot.expiresAt) {
			delete(p.tickets, slot.ticketID)
			*slot = seatSlot{status: inventory.StatusFree}
			freed++
		}
	}
	return freed
}

// AvailableSeats は現在空席の座席ラベルを安定順序で返す
func (l *Ledger) AvailableSeats(_ context.Context, key inventory.Key) ([]seatmap.Label, error) {
	p := l.getPool(key)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.expireLocked(time.Now())

	available := make([]seatmap.Label, 0, len(p.order))
	for _, label := range p.order {
		if p.slots[label].status == inventory.StatusFree {
			available = append(available, label)
		}
	}
	return available, nil
}

// Hold は要求された全座席をアトミックに仮押さえする
// 1席でも空席でなければ ErrSeatUnavailable を返し、状態は一切変更しない
func (l *Ledger) Hold(_ context.Context, key inventory.Key, requested []seatmap.Label, holderID string, ttl time.Duration) (*inventory.HoldTicket, error) {
	p := l.getPool(key)
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.expireLocked(now)

	// 全席の空き確認を先に行う（all-or-nothing）
	// チケットの座席ラベルは集合であり、同一ラベルの重複指定は受け付けない
	seen := make(map[seatmap.Label]struct{}, len(requested))
	for _, label := range requested {
		if _, dup := seen[label]; dup {
			return nil, inventory.ErrDuplicateSeat
		}
		seen[label] = struct{}{}

		slot, ok := p.slots[label]
		if !ok {
			return nil, inventory.ErrUnknownSeat
		}
		if slot.status != inventory.StatusFree {
			return nil, inventory.ErrSeatUnavailable
		}
	}

	ticket := &inventory.HoldTicket{
		ID:         uuid.New().String(),
		HolderID:   holderID,
		Key:        key,
		SeatLabels: append([]seatmap.Label(nil), requested...),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}

	for _, label := range requested {
		slot := p.slots[label]
		slot.status = inventory.StatusHeld
		slot.holderID = holderID
		slot.ticketID = ticket.ID
		slot.expiresAt = ticket.ExpiresAt
	}
	// 呼び出し側がチケットのスライスを書き換えても台帳が壊れないよう別に複製する
	p.tickets[ticket.ID] = &ticketRecord{
		labels:    append([]seatmap.Label(nil), requested...),
		expiresAt: ticket.ExpiresAt,
	}

	return ticket, nil
}

// Commit は仮押さえ中の座席を予約確定に遷移させる
func (l *Ledger) Commit(_ context.Context, ticket *inventory.HoldTicket, bookingID string) error {
	p := l.getPool(ticket.Key)
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if ticket.Expired(now) {
		// 失効済み。座席は遅延失効で既に解放されているか、ここで解放する
		p.expireLocked(now)
		delete(p.tickets, ticket.ID)
		return inventory.ErrHoldExpired
	}

	rec, ok := p.tickets[ticket.ID]
	if !ok || rec.committed {
		return inventory.ErrHoldNotFound
	}

	for _, label := range rec.labels {
		slot := p.slots[label]
		slot.status = inventory.StatusBooked
		slot.bookingID = bookingID
		slot.expiresAt = time.Time{}
	}
	rec.committed = true
	rec.bookingID = bookingID
	return nil
}

// Release はチケットが押さえている座席を空席に戻す
// 仮押さえ中・予約確定済みのどちらでも解放でき、解放済みなら何もしない（冪等）
func (l *Ledger) Release(_ context.Context, ticket *inventory.HoldTicket) error {
	p := l.getPool(ticket.Key)

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.tickets[ticket.ID]
	if !ok {
		return nil
	}

	for _, label := range rec.labels {
		slot := p.slots[label]
		if slot.ticketID == ticket.ID {
			*slot = seatSlot{status: inventory.StatusFree}
		}
	}
	delete(p.tickets, ticket.ID)
	return nil
}

// SweepExpired は全プールの失効仮押さえを即時解放する
// 遅延失効が正であり、このスイープの実行タイミングに正確性は依存しない
func (l *Ledger) SweepExpired(_ context.Context, now time.Time) (int, error) {
	l.mu.RLock()
	pools := make([]*pool, 0, len(l.pools))
	for _, p := range l.pools {
		pools = append(pools, p)
	}
	l.mu.RUnlock()

	freed := 0
	for _, p := range pools {
		p.mu.Lock()
		freed += p.expireLocked(now)
		p.mu.Unlock()
	}
	return freed, nil
}

var _ inventory.Ledger = (*Ledger)(nil)
