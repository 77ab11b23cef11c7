package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"herekitty/internal/alerting"
	"herekitty/internal/config"
	"herekitty/internal/market"
	"herekitty/internal/storage"
)

type stubFloorPricer struct {
	results map[string]market.FloorResult
	errs    map[string]error
	calls   []string
}

func keyOf(tokenIDs []uint64) string {
	if len(tokenIDs) == 0 {
		return ""
	}
	switch tokenIDs[0] {
	case 1:
		return "garfield"
	default:
		return "2017"
	}
}

func (s *stubFloorPricer) FloorPrice(ctx context.Context, tokenIDs []uint64, batchSize int) (market.FloorResult, error) {
	key := keyOf(tokenIDs)
	s.calls = append(s.calls, key)
	if err, ok := s.errs[key]; ok {
		return market.FloorResult{}, err
	}
	return s.results[key], nil
}

type memorySampleStore struct {
	samples []storage.FloorSample
}

func (m *memorySampleStore) UpsertFloorSample(ctx context.Context, sample storage.FloorSample) error {
	m.samples = append(m.samples, sample)
	return nil
}

func (m *memorySampleStore) ListSamplesBetween(ctx context.Context, category string, from, to time.Time) ([]storage.FloorSample, error) {
	return nil, nil
}

func (m *memorySampleStore) ListRecentSamples(ctx context.Context, limit int) ([]storage.FloorSample, error) {
	return nil, nil
}

func (m *memorySampleStore) CountSamples(ctx context.Context) (int64, error) {
	return int64(len(m.samples)), nil
}

type memoryAlertStore struct {
	alerts []storage.AlertRecord
	latest map[string]*storage.AlertRecord
}

func (m *memoryAlertStore) InsertAlert(ctx context.Context, alert storage.AlertRecord) (storage.AlertRecord, error) {
	m.alerts = append(m.alerts, alert)
	return alert, nil
}

func (m *memoryAlertStore) LatestAlertForCategory(ctx context.Context, category string) (*storage.AlertRecord, error) {
	if m.latest == nil {
		return nil, nil
	}
	return m.latest[category], nil
}

func (m *memoryAlertStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	return nil
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	r.notes = append(r.notes, note)
	return nil
}

func watchConfig() *config.Config {
	return &config.Config{
		OpenSea: config.OpenSeaConfig{BatchSize: 30},
		Alerting: config.AlertingConfig{
			Enabled:       true,
			FloorBelowETH: 1.0,
			Channels:      []string{"discord"},
		},
		Categories: map[string][]uint64{
			"garfield": {1, 2, 3},
			"2017":     {400, 401},
		},
	}
}

func TestProcessBucketSamplesAllCategories(t *testing.T) {
	pricer := &stubFloorPricer{results: map[string]market.FloorResult{
		"garfield": {Floor: decimal.RequireFromString("2.5"), Count: 3},
		"2017":     {Floor: decimal.RequireFromString("4.0"), Count: 1},
	}}
	store := &memorySampleStore{}
	alerts := &memoryAlertStore{}
	notifier := &recordingNotifier{}

	svc := New(watchConfig(), nil, pricer, store, alerts, notifier, zerolog.Nop())

	bucket := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := svc.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("ProcessBucket 应成功: %v", err)
	}

	if len(store.samples) != 2 {
		t.Fatalf("期望 2 条样本, 实际 %d", len(store.samples))
	}
	// 类别按字典序处理
	if store.samples[0].Category != "2017" || store.samples[1].Category != "garfield" {
		t.Fatalf("类别处理顺序不正确: %+v", store.samples)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("地板价高于阈值时不应告警")
	}
}

func TestProcessBucketAlertsBelowThreshold(t *testing.T) {
	pricer := &stubFloorPricer{results: map[string]market.FloorResult{
		"garfield": {Floor: decimal.RequireFromString("0.8"), Count: 2},
		"2017":     {Floor: decimal.RequireFromString("3.0"), Count: 5},
	}}
	store := &memorySampleStore{}
	alerts := &memoryAlertStore{}
	notifier := &recordingNotifier{}

	svc := New(watchConfig(), nil, pricer, store, alerts, notifier, zerolog.Nop())

	bucket := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := svc.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("ProcessBucket 应成功: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("期望 1 条告警, 实际 %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.Category != "garfield" || note.FloorETH.StringFixed(2) != "0.80" {
		t.Fatalf("告警内容不正确: %+v", note)
	}
	if len(alerts.alerts) != 1 {
		t.Fatalf("告警应持久化, 实际 %d 条", len(alerts.alerts))
	}
}

func TestProcessBucketNoListingsIsNotAnError(t *testing.T) {
	pricer := &stubFloorPricer{errs: map[string]error{
		"garfield": market.ErrNoListings,
		"2017":     market.ErrNoListings,
	}}
	store := &memorySampleStore{}
	notifier := &recordingNotifier{}

	svc := New(watchConfig(), nil, pricer, store, nil, notifier, zerolog.Nop())

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("无挂单不应视为错误: %v", err)
	}
	for _, sample := range store.samples {
		if sample.Status != "no_listings" {
			t.Fatalf("样本状态应为 no_listings, 实际 %s", sample.Status)
		}
	}
	if len(notifier.notes) != 0 {
		t.Fatal("无挂单时不应告警 (floor=0 不算跌破阈值)")
	}
}

func TestProcessBucketCategoryFailureIsIsolated(t *testing.T) {
	pricer := &stubFloorPricer{
		results: map[string]market.FloorResult{
			"2017": {Floor: decimal.RequireFromString("3.0"), Count: 5},
		},
		errs: map[string]error{
			"garfield": context.DeadlineExceeded,
		},
	}
	store := &memorySampleStore{}

	svc := New(watchConfig(), nil, pricer, store, nil, nil, zerolog.Nop())

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("单个类别失败不应中止整个 bucket: %v", err)
	}
	if len(store.samples) != 2 {
		t.Fatalf("两个类别都应有样本, 实际 %d", len(store.samples))
	}

	var errored, complete int
	for _, sample := range store.samples {
		switch sample.Status {
		case "errored":
			errored++
			if sample.Error == nil {
				t.Fatal("errored 样本应携带错误信息")
			}
		case "complete":
			complete++
		}
	}
	if errored != 1 || complete != 1 {
		t.Fatalf("期望 1 errored + 1 complete, 实际 %+v", store.samples)
	}
}

func TestAlertCooldownSuppresses(t *testing.T) {
	pricer := &stubFloorPricer{results: map[string]market.FloorResult{
		"garfield": {Floor: decimal.RequireFromString("0.5"), Count: 1},
		"2017":     {Floor: decimal.RequireFromString("3.0"), Count: 5},
	}}
	recent := &storage.AlertRecord{Category: "garfield", CreatedAt: time.Now().Add(-time.Minute)}
	alerts := &memoryAlertStore{latest: map[string]*storage.AlertRecord{"garfield": recent}}
	notifier := &recordingNotifier{}

	cfg := watchConfig()
	cfg.Alerting.Cooldown = time.Hour
	svc := New(cfg, nil, pricer, &memorySampleStore{}, alerts, notifier, zerolog.Nop())

	if err := svc.ProcessBucket(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("ProcessBucket 应成功: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("冷却期内不应重复告警")
	}
}
