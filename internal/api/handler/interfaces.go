package handler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/application"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/cancellation"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/fare"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	BookSeats(ctx context.Context, input application.BookSeatsInput) (*application.BookingHold, error)
	BookJoyride(ctx context.Context, input application.BookJoyrideInput) (*application.BookingHold, error)
	QuoteJoyride(basePricePerSeat decimal.Decimal, passengers []fare.Passenger) (*fare.Quote, error)
	ConfirmBooking(ctx context.Context, ticketID, bookingID string) (*application.Booking, error)
	CancelBooking(ctx context.Context, input application.CancelBookingInput) (*cancellation.RefundQuote, error)
	GetBooking(bookingID string) (*application.Booking, error)
}

// InventoryServiceInterface は在庫サービスのインターフェース
type InventoryServiceInterface interface {
	AvailableSeats(ctx context.Context, scheduleID int64, travelDate time.Time) ([]seatmap.Label, error)
	AvailableSeatCount(ctx context.Context, scheduleID int64, travelDate time.Time) (int, error)
	RegisterSchedule(scheduleID int64, seatLimit int) error
}
