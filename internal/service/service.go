package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"herekitty/internal/alerting"
	"herekitty/internal/config"
	"herekitty/internal/market"
	"herekitty/internal/scheduler"
	"herekitty/internal/storage"
)

// FloorPricer computes the floor price over a set of tokens.
type FloorPricer interface {
	FloorPrice(ctx context.Context, tokenIDs []uint64, batchSize int) (market.FloorResult, error)
}

// Service orchestrates floor sampling, persistence, and alerting.
type Service struct {
	scheduler  *scheduler.Scheduler
	floor      FloorPricer
	store      storage.FloorSampleStore
	alertStore storage.AlertStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	categories map[string][]uint64
	batchSize  int
	threshold  decimal.Decimal
	cooldown   time.Duration
	channels   []string
	alertsOn   bool
	locker     storage.AdvisoryLocker
	lockKey    int64
}

// New constructs the floor watch service.
func New(cfg *config.Config, sched *scheduler.Scheduler, floor FloorPricer, store storage.FloorSampleStore, alertStore storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.FloorBelowETH > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.FloorBelowETH)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:  sched,
		floor:      floor,
		store:      store,
		alertStore: alertStore,
		notifier:   notifier,
		logger:     logger.With().Str("component", "service").Logger(),
		categories: cfg.Categories,
		batchSize:  cfg.OpenSea.BatchSize,
		threshold:  threshold,
		cooldown:   cfg.Alerting.Cooldown,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned sampling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if len(s.categories) == 0 {
		return fmt.Errorf("no categories configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket 执行单个时间桶内全部类别的地板价采样。
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	names := make([]string, 0, len(s.categories))
	for name := range s.categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.sampleCategory(ctx, bucket, name, s.categories[name])
	}
	return nil
}

func (s *Service) sampleCategory(ctx context.Context, bucket time.Time, category string, tokenIDs []uint64) {
	sample := storage.FloorSample{
		Bucket:     bucket,
		Category:   category,
		FloorETH:   decimal.Zero,
		TokenCount: len(tokenIDs),
		Status:     "complete",
		CreatedAt:  time.Now().UTC(),
	}

	result, err := s.floor.FloorPrice(ctx, tokenIDs, s.batchSize)
	switch {
	case errors.Is(err, market.ErrNoListings):
		sample.Status = "no_listings"
	case err != nil:
		msg := err.Error()
		sample.Status = "errored"
		sample.Error = &msg
		s.logger.Error().Err(err).Time("bucket", bucket).Str("category", category).Msg("floor aggregation failed")
	default:
		sample.FloorETH = result.Floor
		sample.ListingCount = result.Count
	}

	if s.store != nil {
		if storeErr := s.store.UpsertFloorSample(ctx, sample); storeErr != nil {
			s.logger.Error().Err(storeErr).Time("bucket", bucket).Str("category", category).Msg("failed to upsert sample")
		}
	}

	s.logger.Info().Time("bucket", bucket).
		Str("category", category).
		Str("floor_eth", sample.FloorETH.String()).
		Int("listings", sample.ListingCount).
		Str("status", sample.Status).
		Msg("sample recorded")

	if sample.Status == "complete" {
		s.maybeAlert(ctx, bucket, category, sample)
	}
}

func (s *Service) maybeAlert(ctx context.Context, bucket time.Time, category string, sample storage.FloorSample) {
	if !s.alertsOn || s.notifier == nil || s.threshold.IsZero() {
		return
	}
	if sample.FloorETH.GreaterThan(s.threshold) {
		return
	}
	if s.inCooldown(ctx, category) {
		s.logger.Debug().Str("category", category).Msg("alert suppressed by cooldown")
		return
	}

	note := alerting.Notification{
		Bucket:       bucket,
		Category:     category,
		FloorETH:     sample.FloorETH,
		ThresholdETH: s.threshold,
		ListingCount: sample.ListingCount,
		TokenCount:   sample.TokenCount,
		Channels:     s.channels,
	}

	if s.alertStore != nil {
		record := storage.AlertRecord{
			SampleTS:     bucket,
			Category:     category,
			FloorETH:     sample.FloorETH,
			ThresholdETH: s.threshold,
			Channels:     s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("bucket", bucket).Str("category", category).Msg("failed to persist alert record")
		}
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Str("category", category).Msg("failed to dispatch alert")
	}
}

func (s *Service) inCooldown(ctx context.Context, category string) bool {
	if s.cooldown <= 0 || s.alertStore == nil {
		return false
	}
	latest, err := s.alertStore.LatestAlertForCategory(ctx, category)
	if err != nil {
		s.logger.Error().Err(err).Str("category", category).Msg("failed to load latest alert")
		return false
	}
	if latest == nil {
		return false
	}
	return time.Since(latest.CreatedAt) < s.cooldown
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
