package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/application"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/fare"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type BookSeatsRequest struct {
	ScheduleID int64    `json:"schedule_id" validate:"required" example:"101"`
	TravelDate string   `json:"travel_date" validate:"required" example:"2026-11-15"`
	SeatLabels []string `json:"seat_labels,omitempty" example:"S1,S2"`
	Adults     int      `json:"adults" validate:"min=0" example:"2"`
	Children   int      `json:"children" validate:"min=0" example:"1"`
	Infants    int      `json:"infants" validate:"min=0" example:"0"`
	BasePrice  string   `json:"base_price" validate:"required" example:"15000.00"`
}

type PassengerRequest struct {
	Name   string  `json:"name" validate:"required" example:"山田太郎"`
	Weight float64 `json:"weight" validate:"required" example:"72.5"`
}

type BookJoyrideRequest struct {
	ScheduleID       int64              `json:"schedule_id" validate:"required" example:"201"`
	TravelDate       string             `json:"travel_date" validate:"required" example:"2026-11-15"`
	BasePricePerSeat string             `json:"base_price_per_seat" validate:"required" example:"5000.00"`
	Passengers       []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
}

type QuoteJoyrideRequest struct {
	BasePricePerSeat string             `json:"base_price_per_seat" validate:"required" example:"5000.00"`
	Passengers       []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
}

type QuoteResponse struct {
	BasePrice string `json:"base_price" example:"15000.00"`
	Adults    int    `json:"adults" example:"2"`
	Children  int    `json:"children" example:"1"`
	Infants   int    `json:"infants" example:"0"`
	Total     string `json:"total" example:"37500.00"`
}

type BookingHoldResponse struct {
	TicketID   string        `json:"ticket_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ScheduleID int64         `json:"schedule_id" example:"101"`
	TravelDate string        `json:"travel_date" example:"2026-11-15"`
	SeatLabels []string      `json:"seat_labels" example:"S1,S2"`
	ExpiresAt  time.Time     `json:"expires_at"`
	Quote      QuoteResponse `json:"quote"`
}

type ConfirmBookingRequest struct {
	// BookingID は省略時に自動採番される
	BookingID string `json:"booking_id,omitempty" example:"booking-2026-001"`
}

type BookingResponse struct {
	BookingID  string        `json:"booking_id" example:"booking-2026-001"`
	TicketID   string        `json:"ticket_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ScheduleID int64         `json:"schedule_id" example:"101"`
	TravelDate string        `json:"travel_date" example:"2026-11-15"`
	SeatLabels []string      `json:"seat_labels" example:"S1,S2"`
	Cancelled  bool          `json:"cancelled" example:"false"`
	CreatedAt  time.Time     `json:"created_at"`
	Quote      QuoteResponse `json:"quote"`
}

type CancelBookingRequest struct {
	// Departure は対象便の出発日時（RFC3339）
	Departure string `json:"departure" validate:"required" example:"2026-11-15T09:30:00+09:00"`
	Override  bool   `json:"override,omitempty" example:"false"`
	Reason    string `json:"reason,omitempty" example:"天候による欠航"`
}

type RefundResponse struct {
	BookingID      string `json:"booking_id" example:"booking-2026-001"`
	Tier           string `json:"tier" example:"standard"`
	OriginalAmount string `json:"original_amount" example:"37500.00"`
	Charges        string `json:"charges" example:"9375.00"`
	RefundAmount   string `json:"refund_amount" example:"28125.00"`
}

func toQuoteResponse(q *fare.Quote) QuoteResponse {
	return QuoteResponse{
		BasePrice: q.BasePrice.StringFixed(2),
		Adults:    q.Adults,
		Children:  q.Children,
		Infants:   q.Infants,
		Total:     q.Total.StringFixed(2),
	}
}

func toHoldResponse(hold *application.BookingHold) BookingHoldResponse {
	seats := make([]string, len(hold.Ticket.SeatLabels))
	for i, label := range hold.Ticket.SeatLabels {
		seats[i] = string(label)
	}
	return BookingHoldResponse{
		TicketID:   hold.Ticket.ID,
		ScheduleID: hold.Ticket.Key.ScheduleID,
		TravelDate: hold.Ticket.Key.TravelDate,
		SeatLabels: seats,
		ExpiresAt:  hold.Ticket.ExpiresAt,
		Quote:      toQuoteResponse(hold.Quote),
	}
}

func toBookingResponse(b *application.Booking) BookingResponse {
	seats := make([]string, len(b.Ticket.SeatLabels))
	for i, label := range b.Ticket.SeatLabels {
		seats[i] = string(label)
	}
	return BookingResponse{
		BookingID:  b.ID,
		TicketID:   b.Ticket.ID,
		ScheduleID: b.Ticket.Key.ScheduleID,
		TravelDate: b.Ticket.Key.TravelDate,
		SeatLabels: seats,
		Cancelled:  b.Cancelled,
		CreatedAt:  b.CreatedAt,
		Quote:      toQuoteResponse(b.Quote),
	}
}

func parseMoney(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil || amount.IsNegative() {
		return decimal.Decimal{}, echo.NewHTTPError(http.StatusBadRequest, "金額が不正です")
	}
	return amount, nil
}

func parseTravelDate(s string) (time.Time, error) {
	travelDate, err := time.Parse(inventory.TravelDateLayout, s)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "travel_dateはYYYY-MM-DD形式で指定してください")
	}
	return travelDate, nil
}

func toPassengers(reqs []PassengerRequest) []fare.Passenger {
	passengers := make([]fare.Passenger, len(reqs))
	for i, p := range reqs {
		passengers[i] = fare.Passenger{
			Name:   p.Name,
			Weight: decimal.NewFromFloat(p.Weight),
		}
	}
	return passengers
}

// Create godoc
// @Summary 座席を仮押さえ
// @Description 要求された全座席をアトミックに仮押さえし、運賃を見積もります
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body BookSeatsRequest true "予約情報"
// @Success 201 {object} BookingHoldResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string "空席不足または座席競合"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req BookSeatsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	travelDate, err := parseTravelDate(req.TravelDate)
	if err != nil {
		return err
	}
	basePrice, err := parseMoney(req.BasePrice)
	if err != nil {
		return err
	}

	labels := make([]seatmap.Label, len(req.SeatLabels))
	for i, s := range req.SeatLabels {
		labels[i] = seatmap.Label(s)
	}

	hold, err := h.service.BookSeats(c.Request().Context(), application.BookSeatsInput{
		ScheduleID: req.ScheduleID,
		TravelDate: travelDate,
		HolderID:   userID,
		SeatLabels: labels,
		Adults:     req.Adults,
		Children:   req.Children,
		Infants:    req.Infants,
		BasePrice:  basePrice,
	})
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusCreated, toHoldResponse(hold))
}

// CreateJoyride godoc
// @Summary 遊覧飛行の座席を仮押さえ
// @Description 搭乗者1人につき1席を押さえ、体重サーチャージ込みで見積もります
// @Tags bookings
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body BookJoyrideRequest true "予約情報"
// @Success 201 {object} BookingHoldResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /bookings/joyride [post]
func (h *BookingHandler) CreateJoyride(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req BookJoyrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	travelDate, err := parseTravelDate(req.TravelDate)
	if err != nil {
		return err
	}
	basePrice, err := parseMoney(req.BasePricePerSeat)
	if err != nil {
		return err
	}

	hold, err := h.service.BookJoyride(c.Request().Context(), application.BookJoyrideInput{
		ScheduleID:       req.ScheduleID,
		TravelDate:       travelDate,
		HolderID:         userID,
		BasePricePerSeat: basePrice,
		Passengers:       toPassengers(req.Passengers),
	})
	if err != nil {
		return bookingError(err)
	}
	return c.JSON(http.StatusCreated, toHoldResponse(hold))
}

// QuoteJoyride godoc
// @Summary 遊覧飛行の運賃を見積もる
// @Description 座席を押さえずに体重サーチャージ込みの運賃を計算します
// @Tags quotes
// @Accept json
// @Produce json
// @Param request body QuoteJoyrideRequest true "見積もり条件"
// @Success 200 {object} QuoteResponse
// @Failure 400 {object} map[string]string
// @Router /quotes/joyride [post]
func (h *BookingHandler) QuoteJoyride(c echo.Context) error {
	var req QuoteJoyrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	basePrice, err := parseMoney(req.BasePricePerSeat)
	if err != nil {
		return err
	}

	quote, err := h.service.QuoteJoyride(basePrice, toPassengers(req.Passengers))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, toQuoteResponse(quote))
}

// Confirm godoc
// @Summary 仮押さえを確定
// @Description 支払い完了を受けて仮押さえを予約確定に遷移させます
// @Tags bookings
// @Accept json
// @Produce json
// @Param ticket_id path string true "仮押さえチケットID"
// @Param request body ConfirmBookingRequest false "確定情報"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "期限切れ（座席の再選択が必要）"
// @Router /bookings/{ticket_id}/confirm [post]
func (h *BookingHandler) Confirm(c echo.Context) error {
	ticketID := c.Param("ticket_id")

	var req ConfirmBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	bookingID := req.BookingID
	if bookingID == "" {
		bookingID = uuid.New().String()
	}

	booking, err := h.service.ConfirmBooking(c.Request().Context(), ticketID, bookingID)
	if err != nil {
		if errors.Is(err, inventory.ErrHoldExpired) {
			return echo.NewHTTPError(http.StatusConflict, "仮押さえの有効期限が切れました。座席を再選択してください")
		}
		if errors.Is(err, inventory.ErrHoldNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param booking_id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} map[string]string
// @Router /bookings/{booking_id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	booking, err := h.service.GetBooking(c.Param("booking_id"))
	if err != nil {
		if errors.Is(err, inventory.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 返金額を確定してから座席を解放します（再キャンセルは冪等）
// @Tags cancellation
// @Accept json
// @Produce json
// @Param booking_id path string true "予約ID"
// @Param request body CancelBookingRequest true "キャンセル情報"
// @Success 200 {object} RefundResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /cancellation/cancel/{booking_id} [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	bookingID := c.Param("booking_id")

	var req CancelBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	departure, err := time.Parse(time.RFC3339, req.Departure)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "departureはRFC3339形式で指定してください")
	}

	refund, err := h.service.CancelBooking(c.Request().Context(), application.CancelBookingInput{
		BookingID: bookingID,
		Departure: departure,
		Override:  req.Override,
		Reason:    req.Reason,
	})
	if err != nil {
		if errors.Is(err, inventory.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, RefundResponse{
		BookingID:      bookingID,
		Tier:           string(refund.Tier),
		OriginalAmount: refund.OriginalAmount.StringFixed(2),
		Charges:        refund.Charges.StringFixed(2),
		RefundAmount:   refund.RefundAmount.StringFixed(2),
	})
}

// bookingError は予約時のドメインエラーをHTTPステータスに対応付ける
func bookingError(err error) error {
	switch {
	case errors.Is(err, inventory.ErrInsufficientSeats),
		errors.Is(err, inventory.ErrSeatUnavailable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrUnknownSeat),
		errors.Is(err, inventory.ErrDuplicateSeat),
		errors.Is(err, inventory.ErrSeatCountMismatch),
		errors.Is(err, fare.ErrInvalidPassengerCount),
		errors.Is(err, fare.ErrInvalidWeight):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
