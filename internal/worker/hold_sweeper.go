package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/pkg/logger"
)

// ExpiredHoldSweeper は失効した仮押さえを解放するインターフェース
type ExpiredHoldSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// HoldSweeper は失効仮押さえを定期的に解放するワーカー
// 失効判定は台帳の遅延失効が正であり、このワーカーは在庫を早めに
// 空席に戻すための補助に過ぎない
type HoldSweeper struct {
	ledger   ExpiredHoldSweeper
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHoldSweeper は新しいスイーパーを作成
func NewHoldSweeper(ledger ExpiredHoldSweeper, interval time.Duration) *HoldSweeper {
	return &HoldSweeper{
		ledger:   ledger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (s *HoldSweeper) Start(ctx context.Context) {
	logger.Info("仮押さえスイーパー開始",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("仮押さえスイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("仮押さえスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (s *HoldSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep は失効した仮押さえを解放
func (s *HoldSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("失効仮押さえのスイープ開始")

	freed, err := s.ledger.SweepExpired(ctx, time.Now())
	if err != nil {
		log.Error("失効仮押さえのスイープ失敗", zap.Error(err))
		return
	}

	if freed > 0 {
		log.Info("失効した仮押さえを解放", zap.Int("freed_seats", freed))
	} else {
		log.Debug("失効した仮押さえなし")
	}
}
