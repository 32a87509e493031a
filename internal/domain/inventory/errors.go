package inventory

import "errors"

// Inventory ドメインのエラー定義
var (
	ErrSeatUnavailable   = errors.New("座席は空席ではありません")
	ErrInsufficientSeats = errors.New("空席が不足しています")
	ErrHoldExpired       = errors.New("仮押さえの有効期限が切れています")
	ErrHoldNotFound      = errors.New("仮押さえが見つかりません")
	ErrAlreadyCancelled  = errors.New("予約は既にキャンセルされています")
	ErrUnknownSeat       = errors.New("存在しない座席ラベルです")
	ErrDuplicateSeat     = errors.New("同じ座席ラベルが重複して指定されています")
	ErrSeatCountMismatch = errors.New("指定座席数が搭乗者数と一致しません")
	ErrBookingNotFound   = errors.New("予約が見つかりません")
)
