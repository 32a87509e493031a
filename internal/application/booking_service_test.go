package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/cancellation"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/fare"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/infrastructure/memory"
)

// newTestBookingService はインメモリ台帳を使うBookingServiceを作成する
// Redisキャッシュとメトリクスは使わない（nilで無効化）
func newTestBookingService(holdTTL time.Duration) (*BookingService, *seatmap.CapacityTable, inventory.Ledger) {
	capacities := seatmap.NewCapacityTable()
	ledger := memory.NewLedger(capacities)
	svc := NewBookingService(ledger, nil, nil, holdTTL)
	return svc, capacities, ledger
}

func TestBookingService_BookSeats(t *testing.T) {
	ctx := context.Background()
	travelDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("大人2名小児1名で3席を仮押さえ", func(t *testing.T) {
		svc, _, ledger := newTestBookingService(15 * time.Minute)

		hold, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-yamada",
			Adults:     2,
			Children:   1,
			BasePrice:  decimal.NewFromInt(15000),
		})
		require.NoError(t, err)
		assert.Len(t, hold.Ticket.SeatLabels, 3)
		// 15000*2 + 15000*1*0.5 = 37500
		assert.Equal(t, "37500.00", hold.Quote.Total.StringFixed(2))

		available, err := ledger.AvailableSeats(ctx, inventory.NewKey(1, travelDate))
		require.NoError(t, err)
		assert.Len(t, available, 3)
	})

	t.Run("座席ラベルを明示指定して仮押さえ", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		hold, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-sato",
			SeatLabels: []seatmap.Label{"S2", "S4"},
			Adults:     2,
			BasePrice:  decimal.NewFromInt(10000),
		})
		require.NoError(t, err)
		assert.Equal(t, []seatmap.Label{"S2", "S4"}, hold.Ticket.SeatLabels)
	})

	t.Run("空席数が不足していれば仮押さえ前に失敗する", func(t *testing.T) {
		svc, _, ledger := newTestBookingService(15 * time.Minute)

		// デフォルト6席に対して7席を要求
		_, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-oversize",
			Adults:     7,
			BasePrice:  decimal.NewFromInt(10000),
		})
		assert.ErrorIs(t, err, inventory.ErrInsufficientSeats)

		// 座席状態は一切変更されていない
		available, err := ledger.AvailableSeats(ctx, inventory.NewKey(1, travelDate))
		require.NoError(t, err)
		assert.Len(t, available, 6)
	})

	t.Run("指定座席が押さえられていれば全体が失敗する", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		_, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-first",
			SeatLabels: []seatmap.Label{"S1"},
			Adults:     1,
			BasePrice:  decimal.NewFromInt(10000),
		})
		require.NoError(t, err)

		_, err = svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-second",
			SeatLabels: []seatmap.Label{"S1", "S2"},
			Adults:     2,
			BasePrice:  decimal.NewFromInt(10000),
		})
		assert.ErrorIs(t, err, inventory.ErrSeatUnavailable)
	})

	t.Run("重複した座席ラベルの指定はエラーで座席状態は変わらない", func(t *testing.T) {
		svc, _, ledger := newTestBookingService(15 * time.Minute)

		// 同じ座席を2回指定しても1席で2席分のチケットにはならない
		_, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-dup",
			SeatLabels: []seatmap.Label{"S1", "S1"},
			Adults:     2,
			BasePrice:  decimal.NewFromInt(10000),
		})
		assert.ErrorIs(t, err, inventory.ErrDuplicateSeat)

		available, err := ledger.AvailableSeats(ctx, inventory.NewKey(1, travelDate))
		require.NoError(t, err)
		assert.Len(t, available, 6)
	})

	t.Run("指定座席数が搭乗者数と一致しなければエラー", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		// 大人4名に対して座席1席の指定は受け付けない
		_, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-mismatch",
			SeatLabels: []seatmap.Label{"S1"},
			Adults:     4,
			BasePrice:  decimal.NewFromInt(10000),
		})
		assert.ErrorIs(t, err, inventory.ErrSeatCountMismatch)
	})

	t.Run("搭乗者数が0ならエラー", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		_, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1,
			TravelDate: travelDate,
			HolderID:   "user-empty",
			BasePrice:  decimal.NewFromInt(10000),
		})
		assert.ErrorIs(t, err, fare.ErrInvalidPassengerCount)
	})
}

func TestBookingService_BookJoyride(t *testing.T) {
	ctx := context.Background()
	travelDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("搭乗者ごとに1席と体重サーチャージ", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		hold, err := svc.BookJoyride(ctx, BookJoyrideInput{
			ScheduleID:       2,
			TravelDate:       travelDate,
			HolderID:         "user-group",
			BasePricePerSeat: decimal.NewFromInt(5000),
			Passengers: []fare.Passenger{
				{Name: "山田", Weight: decimal.NewFromInt(70)},
				{Name: "佐藤", Weight: decimal.NewFromInt(80)},
			},
		})
		require.NoError(t, err)
		assert.Len(t, hold.Ticket.SeatLabels, 2)
		// 5000*2 + (80-75)*500 = 12500
		assert.Equal(t, "12500.00", hold.Quote.Total.StringFixed(2))
	})

	t.Run("搭乗者なしはエラー", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		_, err := svc.BookJoyride(ctx, BookJoyrideInput{
			ScheduleID:       2,
			TravelDate:       travelDate,
			HolderID:         "user-none",
			BasePricePerSeat: decimal.NewFromInt(5000),
		})
		assert.ErrorIs(t, err, fare.ErrInvalidPassengerCount)
	})
}

func TestBookingService_ConfirmBooking(t *testing.T) {
	ctx := context.Background()
	travelDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	t.Run("仮押さえを確定すると予約が参照できる", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		hold, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1, TravelDate: travelDate, HolderID: "user-a",
			Adults: 2, BasePrice: decimal.NewFromInt(10000),
		})
		require.NoError(t, err)

		booking, err := svc.ConfirmBooking(ctx, hold.Ticket.ID, "booking-001")
		require.NoError(t, err)
		assert.Equal(t, "booking-001", booking.ID)

		got, err := svc.GetBooking("booking-001")
		require.NoError(t, err)
		assert.Equal(t, hold.Ticket.ID, got.Ticket.ID)
	})

	t.Run("存在しないチケットの確定はエラー", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		_, err := svc.ConfirmBooking(ctx, "unknown-ticket", "booking-x")
		assert.ErrorIs(t, err, inventory.ErrHoldNotFound)
	})

	t.Run("期限切れの仮押さえは確定できず座席は空席に戻る", func(t *testing.T) {
		svc, _, ledger := newTestBookingService(time.Millisecond)

		hold, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1, TravelDate: travelDate, HolderID: "user-slow",
			Adults: 2, BasePrice: decimal.NewFromInt(10000),
		})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		_, err = svc.ConfirmBooking(ctx, hold.Ticket.ID, "booking-late")
		assert.ErrorIs(t, err, inventory.ErrHoldExpired)

		available, err := ledger.AvailableSeats(ctx, inventory.NewKey(1, travelDate))
		require.NoError(t, err)
		assert.Len(t, available, 6)
	})

	t.Run("同一チケットの二重確定はエラー", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		hold, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1, TravelDate: travelDate, HolderID: "user-a",
			Adults: 1, BasePrice: decimal.NewFromInt(10000),
		})
		require.NoError(t, err)

		_, err = svc.ConfirmBooking(ctx, hold.Ticket.ID, "booking-1")
		require.NoError(t, err)

		_, err = svc.ConfirmBooking(ctx, hold.Ticket.ID, "booking-2")
		assert.ErrorIs(t, err, inventory.ErrHoldNotFound)
	})
}

func TestBookingService_CancelBooking(t *testing.T) {
	ctx := context.Background()
	travelDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	// 予約を1件確定させるヘルパー
	confirm := func(t *testing.T, svc *BookingService, bookingID string, seats int) *Booking {
		t.Helper()
		hold, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: 1, TravelDate: travelDate, HolderID: "user-cancel",
			Adults: seats, BasePrice: decimal.NewFromInt(10000),
		})
		require.NoError(t, err)
		booking, err := svc.ConfirmBooking(ctx, hold.Ticket.ID, bookingID)
		require.NoError(t, err)
		return booking
	}

	t.Run("出発96時間超前のキャンセルは座席ごとの定額手数料", func(t *testing.T) {
		svc, _, ledger := newTestBookingService(15 * time.Minute)
		confirm(t, svc, "booking-early", 2)

		refund, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "booking-early",
			Departure: time.Now().Add(200 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, cancellation.TierEarly, refund.Tier)
		// 20000 - 400*2 = 19200
		assert.Equal(t, "19200.00", refund.RefundAmount.StringFixed(2))

		// 座席は空席に戻る
		available, err := ledger.AvailableSeats(ctx, inventory.NewKey(1, travelDate))
		require.NoError(t, err)
		assert.Len(t, available, 6)
	})

	t.Run("出発12時間前以降は返金なし", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)
		confirm(t, svc, "booking-final", 1)

		refund, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "booking-final",
			Departure: time.Now().Add(10 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, cancellation.TierFinal, refund.Tier)
		assert.True(t, refund.RefundAmount.IsZero())
	})

	t.Run("二重キャンセルは最初の返金見積もりを返す", func(t *testing.T) {
		svc, _, ledger := newTestBookingService(15 * time.Minute)
		confirm(t, svc, "booking-twice", 2)

		first, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "booking-twice",
			Departure: time.Now().Add(200 * time.Hour),
		})
		require.NoError(t, err)

		// 2回目は帯が変わる条件でも最初の見積もりのまま
		second, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "booking-twice",
			Departure: time.Now().Add(10 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, first.Tier, second.Tier)
		assert.True(t, first.RefundAmount.Equal(second.RefundAmount))

		// 座席状態も変化しない
		available, err := ledger.AvailableSeats(ctx, inventory.NewKey(1, travelDate))
		require.NoError(t, err)
		assert.Len(t, available, 6)
	})

	t.Run("管理者の全額返金は帯判定を行わない", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)
		confirm(t, svc, "booking-override", 1)

		refund, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "booking-override",
			Departure: time.Now().Add(time.Hour), // Final帯相当でも全額返金
			Override:  true,
			Reason:    "天候による欠航",
		})
		require.NoError(t, err)
		assert.Equal(t, cancellation.TierOverride, refund.Tier)
		assert.True(t, refund.Charges.IsZero())
		assert.True(t, refund.RefundAmount.Equal(refund.OriginalAmount))
	})

	t.Run("存在しない予約のキャンセルはエラー", func(t *testing.T) {
		svc, _, _ := newTestBookingService(15 * time.Minute)

		_, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "no-such-booking",
			Departure: time.Now().Add(time.Hour),
		})
		assert.ErrorIs(t, err, inventory.ErrBookingNotFound)
	})
}

// blockingReleaseLedger はReleaseを指示があるまで停止させる台帳ラッパー
type blockingReleaseLedger struct {
	inventory.Ledger
	entered chan struct{}
	gate    chan struct{}
}

func (l *blockingReleaseLedger) Release(ctx context.Context, ticket *inventory.HoldTicket) error {
	l.entered <- struct{}{}
	<-l.gate
	return l.Ledger.Release(ctx, ticket)
}

// failingReleaseLedger はReleaseを常に失敗させる台帳ラッパー
type failingReleaseLedger struct {
	inventory.Ledger
	fail bool
}

func (l *failingReleaseLedger) Release(ctx context.Context, ticket *inventory.HoldTicket) error {
	if l.fail {
		return errors.New("台帳への接続に失敗")
	}
	return l.Ledger.Release(ctx, ticket)
}

func TestBookingService_CancelBookingRelease(t *testing.T) {
	ctx := context.Background()
	travelDate := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	confirm := func(t *testing.T, svc *BookingService, scheduleID int64, bookingID string) {
		t.Helper()
		hold, err := svc.BookSeats(ctx, BookSeatsInput{
			ScheduleID: scheduleID, TravelDate: travelDate, HolderID: "user-release",
			Adults: 1, BasePrice: decimal.NewFromInt(10000),
		})
		require.NoError(t, err)
		_, err = svc.ConfirmBooking(ctx, hold.Ticket.ID, bookingID)
		require.NoError(t, err)
	}

	t.Run("座席解放中に他の予約の操作がブロックされない", func(t *testing.T) {
		ledger := &blockingReleaseLedger{
			Ledger:  memory.NewLedger(seatmap.NewCapacityTable()),
			entered: make(chan struct{}),
			gate:    make(chan struct{}),
		}
		svc := NewBookingService(ledger, nil, nil, 15*time.Minute)
		confirm(t, svc, 1, "booking-slow")
		confirm(t, svc, 2, "booking-other")

		cancelDone := make(chan error, 1)
		go func() {
			_, err := svc.CancelBooking(ctx, CancelBookingInput{
				BookingID: "booking-slow",
				Departure: time.Now().Add(200 * time.Hour),
			})
			cancelDone <- err
		}()
		<-ledger.entered

		// 解放待ちの間でも別予約の参照が完了する
		lookupDone := make(chan struct{})
		go func() {
			_, err := svc.GetBooking("booking-other")
			assert.NoError(t, err)
			close(lookupDone)
		}()
		select {
		case <-lookupDone:
		case <-time.After(time.Second):
			t.Fatal("座席解放中に予約参照がブロックされた")
		}

		close(ledger.gate)
		require.NoError(t, <-cancelDone)
	})

	t.Run("座席解放に失敗したらキャンセル状態を巻き戻す", func(t *testing.T) {
		ledger := &failingReleaseLedger{Ledger: memory.NewLedger(seatmap.NewCapacityTable())}
		svc := NewBookingService(ledger, nil, nil, 15*time.Minute)
		confirm(t, svc, 1, "booking-retry")

		ledger.fail = true
		_, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "booking-retry",
			Departure: time.Now().Add(200 * time.Hour),
		})
		require.Error(t, err)

		booking, err := svc.GetBooking("booking-retry")
		require.NoError(t, err)
		assert.False(t, booking.Cancelled)

		// 復旧後のキャンセルは成功する
		ledger.fail = false
		refund, err := svc.CancelBooking(ctx, CancelBookingInput{
			BookingID: "booking-retry",
			Departure: time.Now().Add(200 * time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, cancellation.TierEarly, refund.Tier)
	})
}
