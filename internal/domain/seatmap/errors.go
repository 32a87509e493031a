package seatmap

import "errors"

// SeatMap ドメインのエラー定義
var (
	ErrInvalidCapacity = errors.New("座席数は1以上である必要があります")
)
