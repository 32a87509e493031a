package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

type InventoryHandler struct {
	service InventoryServiceInterface
}

func NewInventoryHandler(s InventoryServiceInterface) *InventoryHandler {
	return &InventoryHandler{service: s}
}

type AvailableSeatsResponse struct {
	ScheduleID int64    `json:"schedule_id" example:"101"`
	TravelDate string   `json:"travel_date" example:"2026-11-15"`
	Seats      []string `json:"seats" example:"S1,S2,S3"`
	Count      int      `json:"count" example:"3"`
}

type AvailableCountResponse struct {
	ScheduleID int64  `json:"schedule_id" example:"101"`
	TravelDate string `json:"travel_date" example:"2026-11-15"`
	Count      int    `json:"count" example:"3"`
}

type RegisterScheduleRequest struct {
	ScheduleID int64 `json:"schedule_id" validate:"required" example:"101"`
	SeatLimit  int   `json:"seat_limit" validate:"required,min=1" example:"6"`
}

// parseInventoryQuery は schedule_id と bookDate のクエリパラメータを検証する
func parseInventoryQuery(c echo.Context) (int64, time.Time, error) {
	scheduleID, err := strconv.ParseInt(c.QueryParam("schedule_id"), 10, 64)
	if err != nil {
		return 0, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "schedule_idが不正です")
	}
	travelDate, err := time.Parse(inventory.TravelDateLayout, c.QueryParam("bookDate"))
	if err != nil {
		return 0, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "bookDateはYYYY-MM-DD形式で指定してください")
	}
	return scheduleID, travelDate, nil
}

// AvailableSeats godoc
// @Summary 空席一覧を取得
// @Description 指定スケジュール・搭乗日の空席ラベル一覧を返します
// @Tags inventory
// @Produce json
// @Param schedule_id query int true "スケジュールID"
// @Param bookDate query string true "搭乗日（YYYY-MM-DD）"
// @Success 200 {object} AvailableSeatsResponse
// @Failure 400 {object} map[string]string
// @Router /inventory/available-seats [get]
func (h *InventoryHandler) AvailableSeats(c echo.Context) error {
	scheduleID, travelDate, err := parseInventoryQuery(c)
	if err != nil {
		return err
	}

	labels, err := h.service.AvailableSeats(c.Request().Context(), scheduleID, travelDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	seats := make([]string, len(labels))
	for i, label := range labels {
		seats[i] = string(label)
	}
	return c.JSON(http.StatusOK, AvailableSeatsResponse{
		ScheduleID: scheduleID,
		TravelDate: travelDate.Format(inventory.TravelDateLayout),
		Seats:      seats,
		Count:      len(seats),
	})
}

// AvailableCount godoc
// @Summary 空席数を取得
// @Description 一覧画面向けの軽量パス（キャッシュ利用）
// @Tags inventory
// @Produce json
// @Param schedule_id query int true "スケジュールID"
// @Param bookDate query string true "搭乗日（YYYY-MM-DD）"
// @Success 200 {object} AvailableCountResponse
// @Failure 400 {object} map[string]string
// @Router /inventory/available-count [get]
func (h *InventoryHandler) AvailableCount(c echo.Context) error {
	scheduleID, travelDate, err := parseInventoryQuery(c)
	if err != nil {
		return err
	}

	count, err := h.service.AvailableSeatCount(c.Request().Context(), scheduleID, travelDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, AvailableCountResponse{
		ScheduleID: scheduleID,
		TravelDate: travelDate.Format(inventory.TravelDateLayout),
		Count:      count,
	})
}

// RegisterSchedule godoc
// @Summary スケジュールを登録
// @Description スケジュールの座席数を設定します（未登録はデフォルト6席）
// @Tags inventory
// @Accept json
// @Produce json
// @Param request body RegisterScheduleRequest true "スケジュール情報"
// @Success 201 {object} RegisterScheduleRequest
// @Failure 400 {object} map[string]string
// @Router /schedules [post]
func (h *InventoryHandler) RegisterSchedule(c echo.Context) error {
	var req RegisterScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.service.RegisterSchedule(req.ScheduleID, req.SeatLimit); err != nil {
		if errors.Is(err, seatmap.ErrInvalidCapacity) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, req)
}
