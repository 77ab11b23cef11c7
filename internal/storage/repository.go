package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertFloorSampleSQL = `INSERT INTO floor_samples (
        bucket_ts,
        category,
        floor_eth,
        listing_count,
        token_count,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (bucket_ts, category) DO UPDATE
    SET
        floor_eth     = EXCLUDED.floor_eth,
        listing_count = EXCLUDED.listing_count,
        token_count   = EXCLUDED.token_count,
        status        = EXCLUDED.status,
        error         = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        bucket_ts,
        category,
        floor_eth,
        listing_count,
        token_count,
        status,
        error,
        created_at
    FROM floor_samples
    WHERE category = $1
      AND bucket_ts >= $2
      AND bucket_ts < $3
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        bucket_ts,
        category,
        floor_eth,
        listing_count,
        token_count,
        status,
        error,
        created_at
    FROM floor_samples
    ORDER BY bucket_ts DESC, category
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM floor_samples;`

	insertAlertSQL = `INSERT INTO alerts (
        sample_ts,
        category,
        floor_eth,
        threshold_eth,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (sample_ts, category) DO UPDATE
    SET floor_eth     = EXCLUDED.floor_eth,
        threshold_eth = EXCLUDED.threshold_eth,
        channels      = EXCLUDED.channels
    RETURNING id, sample_ts, category, floor_eth, threshold_eth, channels, created_at;`

	latestAlertForCategorySQL = `SELECT
        id,
        sample_ts,
        category,
        floor_eth,
        threshold_eth,
        channels,
        created_at
    FROM alerts
    WHERE category = $1
    ORDER BY created_at DESC
    LIMIT 1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// FloorSampleStore defines operations for floor sample persistence.
type FloorSampleStore interface {
	UpsertFloorSample(ctx context.Context, sample FloorSample) error
	ListSamplesBetween(ctx context.Context, category string, from, to time.Time) ([]FloorSample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]FloorSample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	LatestAlertForCategory(ctx context.Context, category string) (*AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to floor samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertFloorSample persists or updates a floor sample.
func (s *Store) UpsertFloorSample(ctx context.Context, sample FloorSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	floor := sample.FloorETH.String()

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertFloorSampleSQL,
		sample.Bucket,
		sample.Category,
		floor,
		sample.ListingCount,
		sample.TokenCount,
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert floor sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists one category's samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, category string, from, to time.Time) ([]FloorSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, category, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]FloorSample, 0)
	for rows.Next() {
		sample, scanErr := scanFloorSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending bucket.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]FloorSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]FloorSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanFloorSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	floor := alert.FloorETH.String()
	threshold := alert.ThresholdETH.String()

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SampleTS,
		alert.Category,
		floor,
		threshold,
		alert.Channels,
	)

	rec, scanErr := scanAlertRecord(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// LatestAlertForCategory returns the most recent alert for a category, or nil.
func (s *Store) LatestAlertForCategory(ctx context.Context, category string) (*AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, latestAlertForCategorySQL, category)
	rec, scanErr := scanAlertRecord(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest alert for category: %w", scanErr)
	}
	return &rec, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanFloorSample(rows pgx.Rows) (FloorSample, error) {
	var (
		bucket       time.Time
		category     string
		floorStr     string
		listingCount int
		tokenCount   int
		status       string
		errMsg       sql.NullString
		createdAt    time.Time
	)

	if err := rows.Scan(
		&bucket,
		&category,
		&floorStr,
		&listingCount,
		&tokenCount,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return FloorSample{}, err
	}

	floor, err := decimal.NewFromString(floorStr)
	if err != nil {
		return FloorSample{}, fmt.Errorf("parse floor: %w", err)
	}

	sample := FloorSample{
		Bucket:       bucket,
		Category:     category,
		FloorETH:     floor,
		ListingCount: listingCount,
		TokenCount:   tokenCount,
		Status:       status,
		CreatedAt:    createdAt,
	}

	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}

	return sample, nil
}

func scanAlertRecord(row pgx.Row) (AlertRecord, error) {
	var rec AlertRecord
	var floorStr, thresholdStr string
	if err := row.Scan(
		&rec.ID,
		&rec.SampleTS,
		&rec.Category,
		&floorStr,
		&thresholdStr,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var convErr error
	rec.FloorETH, convErr = decimal.NewFromString(floorStr)
	if convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse floor eth: %w", convErr)
	}
	rec.ThresholdETH, convErr = decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold eth: %w", convErr)
	}

	return rec, nil
}
