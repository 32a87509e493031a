package seatmap

import (
	"fmt"
	"sync"
)

// DefaultSeatLimit は座席数が未設定のスケジュールに適用されるデフォルト座席数
const DefaultSeatLimit = 6

// Label は座席ラベルを表す（スケジュール内で一意、例: S1..S6）
type Label string

// Labels は seatLimit 席分の座席ラベルを安定した順序で生成する
func Labels(seatLimit int) ([]Label, error) {
	if seatLimit <= 0 {
		return nil, ErrInvalidCapacity
	}
	labels := make([]Label, seatLimit)
	for i := 0; i < seatLimit; i++ {
		labels[i] = Label(fmt.Sprintf("S%d", i+1))
	}
	return labels, nil
}

// CapacityTable はスケジュールごとの座席数設定を管理する
// 設定がないスケジュールはデフォルト座席数として扱う
type CapacityTable struct {
	mu           sync.RWMutex
	limits       map[int64]int
	defaultLimit int
}

// NewCapacityTable は DefaultSeatLimit をデフォルトとするCapacityTableを作成する
func NewCapacityTable() *CapacityTable {
	return NewCapacityTableWithDefault(DefaultSeatLimit)
}

// NewCapacityTableWithDefault はデフォルト座席数を指定してCapacityTableを作成する
func NewCapacityTableWithDefault(defaultLimit int) *CapacityTable {
	if defaultLimit <= 0 {
		defaultLimit = DefaultSeatLimit
	}
	return &CapacityTable{
		limits:       make(map[int64]int),
		defaultLimit: defaultLimit,
	}
}

// Set はスケジュールの座席数を設定する
func (t *CapacityTable) Set(scheduleID int64, seatLimit int) error {
	if seatLimit <= 0 {
		return ErrInvalidCapacity
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits[scheduleID] = seatLimit
	return nil
}

// Capacity はスケジュールの座席数を返す（未設定ならデフォルト）
func (t *CapacityTable) Capacity(scheduleID int64) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if limit, ok := t.limits[scheduleID]; ok {
		return limit
	}
	return t.defaultLimit
}

// LabelsFor はスケジュールの全座席ラベルを返す
func (t *CapacityTable) LabelsFor(scheduleID int64) []Label {
	labels, _ := Labels(t.Capacity(scheduleID))
	return labels
}
