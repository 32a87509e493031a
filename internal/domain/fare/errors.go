package fare

import "errors"

// Fare ドメインのエラー定義
var (
	ErrInvalidPassengerCount = errors.New("搭乗者数は0以上である必要があります")
	ErrInvalidWeight         = errors.New("体重は0より大きい必要があります")
)
