package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/application"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/fare"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

func TestHealthHandler_Check(t *testing.T) {
	// Setup
	e := NewTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHealthHandler()

	// Act
	err := h.Check(c)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"timestamp"`)
}

func TestNewHealthHandler(t *testing.T) {
	h := NewHealthHandler()
	assert.NotNil(t, h)
}

func TestToQuoteResponse(t *testing.T) {
	q := &fare.Quote{
		BasePrice: decimal.NewFromInt(15000),
		Adults:    2,
		Children:  1,
		Infants:   1,
		Total:     decimal.NewFromFloat(37510),
	}

	resp := toQuoteResponse(q)

	assert.Equal(t, "15000.00", resp.BasePrice)
	assert.Equal(t, 2, resp.Adults)
	assert.Equal(t, 1, resp.Children)
	assert.Equal(t, 1, resp.Infants)
	assert.Equal(t, "37510.00", resp.Total)
}

func TestToBookingResponse(t *testing.T) {
	now := time.Now()
	ticket := &inventory.HoldTicket{
		ID:         "ticket-123",
		HolderID:   "user-789",
		Key:        inventory.NewKey(101, time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)),
		SeatLabels: []seatmap.Label{"S1", "S2"},
		ExpiresAt:  now.Add(15 * time.Minute),
		CreatedAt:  now,
	}
	b := &application.Booking{
		ID:     "booking-456",
		Ticket: ticket,
		Quote: &fare.Quote{
			BasePrice: decimal.NewFromInt(10000),
			Adults:    2,
			Total:     decimal.NewFromInt(20000),
		},
		CreatedAt: now,
	}

	resp := toBookingResponse(b)

	assert.Equal(t, "booking-456", resp.BookingID)
	assert.Equal(t, "ticket-123", resp.TicketID)
	assert.Equal(t, int64(101), resp.ScheduleID)
	assert.Equal(t, "2026-11-15", resp.TravelDate)
	assert.Equal(t, []string{"S1", "S2"}, resp.SeatLabels)
	assert.False(t, resp.Cancelled)
	assert.Equal(t, "20000.00", resp.Quote.Total)
}
