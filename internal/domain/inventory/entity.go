package inventory

import (
	"fmt"
	"time"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
)

// TravelDateLayout は搭乗日の正規化フォーマット
const TravelDateLayout = "2006-01-02"

// Key は座席在庫のパーティションキー（スケジュール × 搭乗日）を表す
// 同一スケジュールでも搭乗日が異なれば完全に独立した座席プールになる
type Key struct {
	ScheduleID int64
	TravelDate string
}

// NewKey は搭乗日を日付単位に正規化したKeyを作成する
func NewKey(scheduleID int64, travelDate time.Time) Key {
	return Key{
		ScheduleID: scheduleID,
		TravelDate: travelDate.Format(TravelDateLayout),
	}
}

// String はロックキーやログに使う表現を返す
func (k Key) String() string {
	return fmt.Sprintf("%d:%s", k.ScheduleID, k.TravelDate)
}

// SeatStatus は座席の状態を表す
type SeatStatus string

const (
	StatusFree   SeatStatus = "free"
	StatusHeld   SeatStatus = "held"
	StatusBooked SeatStatus = "booked"
)

// HoldTicket は座席の仮押さえを表す
// Hold で作成され、Commit または Release で消費される
// ExpiresAt を過ぎた仮押さえは自動的に失効し、座席は空席に戻る
type HoldTicket struct {
	ID         string
	HolderID   string
	Key        Key
	SeatLabels []seatmap.Label
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired は仮押さえが失効しているかを返す
func (t *HoldTicket) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
