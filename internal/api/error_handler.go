package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
// ハンドラーが対応付けなかったドメインエラーもここで拾う
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if domainCode, ok := domainStatus(err); ok {
		code = domainCode
		message = err.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

// domainStatus は在庫ドメインのエラーをHTTPステータスに対応付ける
func domainStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, inventory.ErrSeatUnavailable),
		errors.Is(err, inventory.ErrInsufficientSeats),
		errors.Is(err, inventory.ErrHoldExpired):
		return http.StatusConflict, true
	case errors.Is(err, inventory.ErrHoldNotFound),
		errors.Is(err, inventory.ErrBookingNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, inventory.ErrUnknownSeat),
		errors.Is(err, inventory.ErrDuplicateSeat),
		errors.Is(err, inventory.ErrSeatCountMismatch):
		return http.StatusBadRequest, true
	default:
		return 0, false
	}
}
