package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
	redisinfra "github.com/ManupriyaNagar/flyolaIn-sub001/internal/infrastructure/redis"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/pkg/logger"
)

// availabilityCacheTTL は空席数キャッシュの有効期間
// 在庫変更時に即時無効化されるため、短いTTLは安全網に過ぎない
const availabilityCacheTTL = 30 * time.Second

// InventoryService は空席照会とスケジュール登録を提供する
type InventoryService struct {
	ledger     inventory.Ledger
	capacities *seatmap.CapacityTable
	cache      *redisinfra.AvailabilityCache
}

func NewInventoryService(ledger inventory.Ledger, capacities *seatmap.CapacityTable, cache *redisinfra.AvailabilityCache) *InventoryService {
	return &InventoryService{
		ledger:     ledger,
		capacities: capacities,
		cache:      cache,
	}
}

// AvailableSeats は現在空席の座席ラベル一覧を返す
// 常に台帳を直接参照し、取得した空席数でキャッシュを更新する
func (s *InventoryService) AvailableSeats(ctx context.Context, scheduleID int64, travelDate time.Time) ([]seatmap.Label, error) {
	key := inventory.NewKey(scheduleID, travelDate)
	labels, err := s.ledger.AvailableSeats(ctx, key)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCount(ctx, key, len(labels), availabilityCacheTTL); err != nil {
			logger.Warn("空席数キャッシュの更新に失敗",
				zap.String("key", key.String()),
				zap.Error(err),
			)
		}
	}
	return labels, nil
}

// AvailableSeatCount は空席数を返す（一覧画面向けの軽量パス）
// キャッシュヒット時は台帳を参照しない
func (s *InventoryService) AvailableSeatCount(ctx context.Context, scheduleID int64, travelDate time.Time) (int, error) {
	key := inventory.NewKey(scheduleID, travelDate)

	if s.cache != nil {
		count, err := s.cache.GetCount(ctx, key)
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("空席数キャッシュの取得に失敗",
				zap.String("key", key.String()),
				zap.Error(err),
			)
		}
	}

	labels, err := s.AvailableSeats(ctx, scheduleID, travelDate)
	if err != nil {
		return 0, err
	}
	return len(labels), nil
}

// RegisterSchedule はスケジュールの座席数を登録する
// 未登録のスケジュールはデフォルト座席数で運用される
func (s *InventoryService) RegisterSchedule(scheduleID int64, seatLimit int) error {
	if err := s.capacities.Set(scheduleID, seatLimit); err != nil {
		return err
	}
	logger.Info("スケジュールを登録しました",
		zap.Int64("schedule_id", scheduleID),
		zap.Int("seat_limit", seatLimit),
	)
	return nil
}
