package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/cancellation"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/fare"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
	redisinfra "github.com/ManupriyaNagar/flyolaIn-sub001/internal/infrastructure/redis"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/pkg/logger"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/pkg/metrics"
)

// BookingService は仮押さえ・確定・キャンセルの予約フロー全体を調整する
// 座席状態の変更は全てLedger経由で行い、自身は業務ルール（運賃・返金）と
// チケット/予約の対応表のみを持つ
type BookingService struct {
	ledger  inventory.Ledger
	cache   *redisinfra.AvailabilityCache
	metrics *metrics.Metrics
	holdTTL time.Duration

	mu       sync.Mutex
	holds    map[string]*heldBooking
	bookings map[string]*Booking
}

// heldBooking は確定待ちの仮押さえと、その時点の運賃見積もり
type heldBooking struct {
	ticket *inventory.HoldTicket
	quote  *fare.Quote
}

// Booking は確定済みの予約を表す
type Booking struct {
	ID        string
	Ticket    *inventory.HoldTicket
	Quote     *fare.Quote
	CreatedAt time.Time
	Cancelled bool
	Refund    *cancellation.RefundQuote
}

func NewBookingService(ledger inventory.Ledger, cache *redisinfra.AvailabilityCache, m *metrics.Metrics, holdTTL time.Duration) *BookingService {
	return &BookingService{
		ledger:   ledger,
		cache:    cache,
		metrics:  m,
		holdTTL:  holdTTL,
		holds:    make(map[string]*heldBooking),
		bookings: make(map[string]*Booking),
	}
}

type BookSeatsInput struct {
	ScheduleID int64
	TravelDate time.Time
	HolderID   string
	// SeatLabels が空の場合は空席から先頭順に選択する
	SeatLabels []seatmap.Label
	Adults     int
	Children   int
	Infants    int
	BasePrice  decimal.Decimal
}

// BookingHold は仮押さえ結果（チケット + 運賃見積もり）
type BookingHold struct {
	Ticket *inventory.HoldTicket
	Quote  *fare.Quote
}

// BookSeats はフライト座席を仮押さえし運賃を見積もる
// 仮押さえ前に空席数を確認し、不足していれば座席状態を一切変更せずに
// ErrInsufficientSeats を返す
func (s *BookingService) BookSeats(ctx context.Context, input BookSeatsInput) (*BookingHold, error) {
	// 幼児は座席を占有しない
	seated := input.Adults + input.Children
	if seated <= 0 {
		return nil, fare.ErrInvalidPassengerCount
	}
	// 座席指定がある場合は座席を使う搭乗者数と一致していること
	if len(input.SeatLabels) > 0 && len(input.SeatLabels) != seated {
		return nil, inventory.ErrSeatCountMismatch
	}
	needed := seated

	quote, err := fare.QuoteFlight(input.BasePrice, input.Adults, input.Children, input.Infants)
	if err != nil {
		return nil, err
	}

	key := inventory.NewKey(input.ScheduleID, input.TravelDate)
	ticket, err := s.holdSeats(ctx, key, input.SeatLabels, needed, input.HolderID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.holds[ticket.ID] = &heldBooking{ticket: ticket, quote: quote}
	s.mu.Unlock()

	return &BookingHold{Ticket: ticket, Quote: quote}, nil
}

type BookJoyrideInput struct {
	ScheduleID       int64
	TravelDate       time.Time
	HolderID         string
	BasePricePerSeat decimal.Decimal
	Passengers       []fare.Passenger
}

// BookJoyride は遊覧飛行の座席を仮押さえする
// 搭乗者1人につき1席を占有し、体重サーチャージを含む運賃を見積もる
func (s *BookingService) BookJoyride(ctx context.Context, input BookJoyrideInput) (*BookingHold, error) {
	if len(input.Passengers) == 0 {
		return nil, fare.ErrInvalidPassengerCount
	}

	quote, err := fare.QuoteJoyride(input.BasePricePerSeat, input.Passengers)
	if err != nil {
		return nil, err
	}

	key := inventory.NewKey(input.ScheduleID, input.TravelDate)
	ticket, err := s.holdSeats(ctx, key, nil, len(input.Passengers), input.HolderID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.holds[ticket.ID] = &heldBooking{ticket: ticket, quote: quote}
	s.mu.Unlock()

	return &BookingHold{Ticket: ticket, Quote: quote}, nil
}

// QuoteJoyride は座席を押さえずに遊覧飛行の運賃だけを見積もる
func (s *BookingService) QuoteJoyride(basePricePerSeat decimal.Decimal, passengers []fare.Passenger) (*fare.Quote, error) {
	return fare.QuoteJoyride(basePricePerSeat, passengers)
}

// holdSeats は空席数を事前確認したうえで全席をアトミックに仮押さえする
func (s *BookingService) holdSeats(ctx context.Context, key inventory.Key, requested []seatmap.Label, needed int, holderID string) (*inventory.HoldTicket, error) {
	available, err := s.ledger.AvailableSeats(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("空席一覧の取得に失敗: %w", err)
	}
	if len(available) < needed {
		s.countBooking("sold_out")
		return nil, inventory.ErrInsufficientSeats
	}

	labels := requested
	if len(labels) == 0 {
		labels = available[:needed]
	}

	ticket, err := s.ledger.Hold(ctx, key, labels, holderID, s.holdTTL)
	if err != nil {
		if errors.Is(err, inventory.ErrSeatUnavailable) {
			s.countBooking("seat_conflict")
		}
		return nil, err
	}

	s.invalidateCache(ctx, key)
	if s.metrics != nil {
		s.metrics.HoldsTotal.WithLabelValues("held").Inc()
		s.metrics.ActiveHolds.Inc()
	}
	return ticket, nil
}

// ConfirmBooking は支払い完了を受けて仮押さえを予約確定に遷移させる
// 期限切れの場合は ErrHoldExpired を返し、呼び出し側は座席の再選択からやり直す
func (s *BookingService) ConfirmBooking(ctx context.Context, ticketID, bookingID string) (*Booking, error) {
	s.mu.Lock()
	held, ok := s.holds[ticketID]
	s.mu.Unlock()
	if !ok {
		return nil, inventory.ErrHoldNotFound
	}

	if err := s.ledger.Commit(ctx, held.ticket, bookingID); err != nil {
		if errors.Is(err, inventory.ErrHoldExpired) {
			s.mu.Lock()
			delete(s.holds, ticketID)
			s.mu.Unlock()
			s.invalidateCache(ctx, held.ticket.Key)
			if s.metrics != nil {
				s.metrics.HoldsTotal.WithLabelValues("expired").Inc()
				s.metrics.ActiveHolds.Dec()
			}
			s.countBooking("expired")
		}
		return nil, err
	}

	booking := &Booking{
		ID:        bookingID,
		Ticket:    held.ticket,
		Quote:     held.quote,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	delete(s.holds, ticketID)
	s.bookings[bookingID] = booking
	s.mu.Unlock()

	s.invalidateCache(ctx, held.ticket.Key)
	if s.metrics != nil {
		s.metrics.ActiveHolds.Dec()
		s.metrics.HoldDuration.Observe(time.Since(held.ticket.CreatedAt).Seconds())
	}
	s.countBooking("confirmed")

	return booking, nil
}

type CancelBookingInput struct {
	BookingID string
	// Departure は対象便の出発日時（キャンセル帯の判定基準）
	Departure time.Time
	// Override は管理者による全額返金の明示的な例外
	Override bool
	Reason   string
}

// CancelBooking は返金額を確定してから座席を解放する
// 同一予約の再キャンセルは座席状態を変更せず、最初の返金見積もりを返す
func (s *BookingService) CancelBooking(ctx context.Context, input CancelBookingInput) (*cancellation.RefundQuote, error) {
	s.mu.Lock()
	booking, ok := s.bookings[input.BookingID]
	if !ok {
		s.mu.Unlock()
		return nil, inventory.ErrBookingNotFound
	}
	if booking.Cancelled {
		refund := booking.Refund
		s.mu.Unlock()
		return refund, nil
	}

	var refund *cancellation.RefundQuote
	if input.Override {
		refund = cancellation.EvaluateOverride(booking.Quote.Total)
		logger.Warn("管理者権限による全額返金",
			zap.String("booking_id", input.BookingID),
			zap.String("reason", input.Reason),
			zap.String("amount", refund.RefundAmount.StringFixed(2)),
		)
	} else {
		refund = cancellation.Evaluate(booking.Quote.Total, len(booking.Ticket.SeatLabels), input.Departure, time.Now())
	}

	// 座席解放はネットワークI/Oになりうるため、ロック保持中には呼ばない
	// 先にキャンセル済みへ遷移させて同一予約の再入を防ぎ、解放失敗時に巻き戻す
	booking.Cancelled = true
	booking.Refund = refund
	s.mu.Unlock()

	if err := s.ledger.Release(ctx, booking.Ticket); err != nil {
		s.mu.Lock()
		booking.Cancelled = false
		booking.Refund = nil
		s.mu.Unlock()
		return nil, fmt.Errorf("座席解放に失敗: %w", err)
	}

	s.invalidateCache(ctx, booking.Ticket.Key)
	if s.metrics != nil {
		s.metrics.HoldsTotal.WithLabelValues("released").Inc()
		s.metrics.RefundsTotal.WithLabelValues(string(refund.Tier)).Inc()
	}
	s.countBooking("cancelled")

	return refund, nil
}

// GetBooking は確定済み予約を返す
func (s *BookingService) GetBooking(bookingID string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[bookingID]
	if !ok {
		return nil, inventory.ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) countBooking(status string) {
	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(status).Inc()
	}
}

// invalidateCache は空席数キャッシュを無効化する（キャッシュ未設定時は何もしない）
// キャッシュはヒントに過ぎないため、失敗してもログに留めて処理を続行する
func (s *BookingService) invalidateCache(ctx context.Context, key inventory.Key) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		logger.Warn("空席数キャッシュの無効化に失敗",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}
