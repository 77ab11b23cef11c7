package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"herekitty/internal/market"
	"herekitty/internal/service"
)

// SimulateAlert 用给定的地板价模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, category string, floor decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	tokenIDs, ok := a.Config.Category(category)
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	pricer := &staticFloorPricer{floor: floor}

	// 只模拟指定类别
	cfg := *a.Config
	cfg.Categories = map[string][]uint64{category: tokenIDs}

	svc := service.New(&cfg, nil, pricer, nil, nil, notifier, a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	return svc.ProcessBucket(ctx, bucket)
}

type staticFloorPricer struct {
	floor decimal.Decimal
}

func (s *staticFloorPricer) FloorPrice(ctx context.Context, tokenIDs []uint64, batchSize int) (market.FloorResult, error) {
	return market.FloorResult{Floor: s.floor, Count: 1}, nil
}

var _ service.FloorPricer = (*staticFloorPricer)(nil)
