//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/repository.go -package=mocks . Repository

// Package database implements the sharded measurement store.
//
// Layout:
//   - One SQLite file per device per calendar month, <root>/<device>/<YYYY-MM>-monthly,
//     created lazily on the first write for that month.
//   - One read-only SQLite file per device per year, <root>/<device>/<YYYY>-yearly,
//     produced by an external archival job and never written here.
//
// Device ids must pass models.ValidateDeviceID; anything else is rejected
// before a path is built.
//
// Every shard holds a single Measurements table. Writes to a month shard run in
// one exclusive transaction, so at most one writer holds a shard at a time.
// Callers must not overlap polls of the same device.
//
// Example usage:
//
//	store := NewShardStore(Config{Root: "/var/lib/edgemeter"}, logger)
//
//	// Persist one poll
//	err := store.Write(ctx, "meter-01", time.Now(), readings)
//
//	// Read back a range across month shards
//	rows, err := store.ReadRange(ctx, "meter-01", from, to, ChannelFilter{5, 7})
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

var (
	// ErrNoStoreAvailable is returned when a shard is missing and creation is not allowed.
	ErrNoStoreAvailable = errors.New("no store available")
	// ErrTransaction wraps begin and commit failures.
	ErrTransaction = errors.New("transaction error")
)

const schema = `
CREATE TABLE IF NOT EXISTS Measurements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    channel INTEGER,
    measured_value REAL,
    recorded_time INTEGER
);
CREATE INDEX IF NOT EXISTS idx_measurements_time ON Measurements(recorded_time, channel);
`

// Repository defines the measurement store operations.
type Repository interface {
	// Write persists one poll worth of readings into the month shard for at.
	// Rows are inserted in one exclusive transaction. The commit is attempted
	// and the shard closed even when an insert fails.
	Write(ctx context.Context, device string, at time.Time, readings []models.Measurement) error

	// ReadRange returns readings with recorded_time in [from, to] from every
	// month shard the range touches, in shard order and ordered by
	// (recorded_time, channel) within a shard. Missing or unreadable shards
	// contribute nothing.
	ReadRange(ctx context.Context, device string, from, to time.Time, filter ChannelFilter) ([]models.Measurement, error)

	// ReadYearlyRange returns readings of the given year from the yearly shard.
	ReadYearlyRange(ctx context.Context, device string, year int, filter ChannelFilter) ([]models.Measurement, error)
}

// ChannelFilter restricts reads to the listed channels. Empty means all.
type ChannelFilter []int

func (f ChannelFilter) clause() (string, []interface{}) {
	switch len(f) {
	case 0:
		return "", nil
	case 1:
		return " AND channel = ?", []interface{}{f[0]}
	default:
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f)), ",")
		args := make([]interface{}, len(f))
		for i, ch := range f {
			args[i] = ch
		}
		return " AND channel IN (" + marks + ")", args
	}
}

// Config holds shard store settings.
type Config struct {
	// Root is the data directory holding one sub directory per device.
	Root string
	// BusyTimeout is how long SQLite waits on a locked shard.
	BusyTimeout time.Duration
}

// ShardStore implements Repository on SQLite files.
type ShardStore struct {
	root        string
	busyTimeout time.Duration
	logger      logrus.FieldLogger
}

// NewShardStore creates a store rooted at cfg.Root. No file is touched until
// the first write.
func NewShardStore(cfg Config, logger logrus.FieldLogger) *ShardStore {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ShardStore{
		root:        cfg.Root,
		busyTimeout: cfg.BusyTimeout,
		logger:      logger,
	}
}

// Check verifies the data root exists and is a directory, creating it when
// missing.
func (s *ShardStore) Check(_ context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("data root unusable: %w", err)
	}
	fi, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("data root unusable: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("data root %s is not a directory", s.root)
	}
	return nil
}

// MonthlyPath returns the shard file for the month containing t (UTC).
func (s *ShardStore) MonthlyPath(device string, t time.Time) string {
	return filepath.Join(s.root, device, t.UTC().Format("2006-01")+"-monthly")
}

// YearlyPath returns the archive shard file for year.
func (s *ShardStore) YearlyPath(device string, year int) string {
	return filepath.Join(s.root, device, fmt.Sprintf("%04d-yearly", year))
}

func (s *ShardStore) dsn(path string, readOnly bool) string {
	params := fmt.Sprintf("_pragma=busy_timeout(%d)", s.busyTimeout.Milliseconds())
	if readOnly {
		params += "&mode=ro"
	} else {
		params += "&_txlock=exclusive"
	}
	return "file:" + path + "?" + params
}

// openShard opens the shard at path. With create set, the directory and schema
// are created on demand; otherwise a missing file yields ErrNoStoreAvailable.
func (s *ShardStore) openShard(ctx context.Context, path string, create bool) (*sql.DB, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrNoStoreAvailable, path)
			}
			return nil, err
		}
		return sql.Open("sqlite", s.dsn(path, true))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}
	db, err := sql.Open("sqlite", s.dsn(path, false))
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema in %s: %w", path, err)
	}
	return db, nil
}

// Write implements Repository.
//
// Transaction flow:
//  1. Open or create the month shard
//  2. Begin an exclusive transaction
//  3. Insert one row per reading
//  4. Always: commit, then close the shard
func (s *ShardStore) Write(ctx context.Context, device string, at time.Time, readings []models.Measurement) (err error) {
	if err := models.ValidateDeviceID(device); err != nil {
		return err
	}
	path := s.MonthlyPath(device, at)

	db, err := s.openShard(ctx, path, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close shard %s: %w", path, cerr))
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin on %s: %v", ErrTransaction, path, err)
	}
	defer func() {
		if cerr := tx.Commit(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("%w: commit on %s: %v", ErrTransaction, path, cerr))
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO Measurements (channel, measured_value, recorded_time) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.Channel, r.Value, r.RecordedTime); err != nil {
			return fmt.Errorf("failed to insert reading for channel %d: %w", r.Channel, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"device": device,
		"shard":  path,
		"rows":   len(readings),
	}).Debug("Wrote readings")

	return nil
}

// ReadRange implements Repository.
func (s *ShardStore) ReadRange(
	ctx context.Context,
	device string,
	from, to time.Time,
	filter ChannelFilter,
) ([]models.Measurement, error) {
	if err := models.ValidateDeviceID(device); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}

	var results []models.Measurement
	for month := monthStart(from); !month.After(to.UTC()); month = month.AddDate(0, 1, 0) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.queryShard(ctx, s.MonthlyPath(device, month), from.Unix(), to.Unix(), filter)
		if err != nil {
			s.logShardError(device, s.MonthlyPath(device, month), err)
			continue
		}
		results = append(results, rows...)
	}
	return results, nil
}

// ReadYearlyRange implements Repository.
func (s *ShardStore) ReadYearlyRange(
	ctx context.Context,
	device string,
	year int,
	filter ChannelFilter,
) ([]models.Measurement, error) {
	if err := models.ValidateDeviceID(device); err != nil {
		return nil, err
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0).Add(-time.Second)

	path := s.YearlyPath(device, year)
	rows, err := s.queryShard(ctx, path, from.Unix(), to.Unix(), filter)
	if err != nil {
		s.logShardError(device, path, err)
		return nil, nil
	}
	return rows, nil
}

func (s *ShardStore) logShardError(device, path string, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"device": device,
		"shard":  path,
	})
	if errors.Is(err, ErrNoStoreAvailable) {
		entry.Debug("Shard not present, skipping")
		return
	}
	entry.WithError(err).Warn("Failed to read shard, skipping")
}

func (s *ShardStore) queryShard(
	ctx context.Context,
	path string,
	from, to int64,
	filter ChannelFilter,
) ([]models.Measurement, error) {
	db, err := s.openShard(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	clause, filterArgs := filter.clause()
	query := `
        SELECT id, channel, measured_value, recorded_time
        FROM Measurements
        WHERE recorded_time BETWEEN ? AND ?` + clause + `
        ORDER BY recorded_time, channel`

	args := append([]interface{}{from, to}, filterArgs...)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.Measurement
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(&m.ID, &m.Channel, &m.Value, &m.RecordedTime); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Compile-time interface implementation check
var _ Repository = (*ShardStore)(nil)
