package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iulianpascalau/pivitals-monitoring/services/dashboard/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/multiversx/mx-chain-logger-go"
)

const minCleanupIntervalInSeconds = 60

var log = logger.GetOrCreate("storage")

// ErrInvalidMaxStoredSnapshots signals a non-positive snapshot cap
var ErrInvalidMaxStoredSnapshots = errors.New("invalid maximum number of stored snapshots")

// ArgsSQLiteStorage holds the arguments needed to create the snapshot archive
type ArgsSQLiteStorage struct {
	Path               string
	MaxStoredSnapshots int
	RetentionSeconds   int
}

// sqliteStorage is the sqlite implementation of the snapshot archive
type sqliteStorage struct {
	db                 *sql.DB
	maxStoredSnapshots int
	retentionSeconds   int
	timeHandler        func() time.Time
	cancelFunc         context.CancelFunc
	wg                 sync.WaitGroup
}

// NewSQLiteStorage creates the database, the schema and starts the retention cleaner if a retention is set
func NewSQLiteStorage(args ArgsSQLiteStorage) (*sqliteStorage, error) {
	if args.MaxStoredSnapshots <= 0 {
		return nil, ErrInvalidMaxStoredSnapshots
	}

	err := prepareDirectories(args.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create the database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", args.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases consistent across queries
	db.SetMaxOpenConns(1)

	err = createSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &sqliteStorage{
		db:                 db,
		maxStoredSnapshots: args.MaxStoredSnapshots,
		retentionSeconds:   args.RetentionSeconds,
		timeHandler:        time.Now,
		cancelFunc:         cancel,
	}

	if s.retentionSeconds > 0 {
		s.startRetentionCleaner(ctx)
	}

	return s, nil
}

func prepareDirectories(dbPath string) error {
	return os.MkdirAll(filepath.Dir(dbPath), os.ModePerm)
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		recorded_at INTEGER NOT NULL,
		cpu         TEXT    NOT NULL,
		memory      TEXT    NOT NULL,
		disk        TEXT    NOT NULL,
		network     TEXT    NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_recorded_at ON snapshots(recorded_at);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveSnapshot inserts the snapshot and trims the table to the newest MaxStoredSnapshots rows
func (s *sqliteStorage) SaveSnapshot(ctx context.Context, snapshot common.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (recorded_at, cpu, memory, disk, network)
		VALUES (?, ?, ?, ?, ?)
	`, snapshot.Timestamp.UnixMilli(),
		rawText(snapshot.CPU), rawText(snapshot.Memory), rawText(snapshot.Disk), rawText(snapshot.Network))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE rowid NOT IN (
			SELECT rowid FROM snapshots
			ORDER BY recorded_at DESC, rowid DESC
			LIMIT ?
		)
	`, s.maxStoredSnapshots)
	if err != nil {
		return fmt.Errorf("failed to trim the snapshots table: %w", err)
	}

	return tx.Commit()
}

// GetSnapshots returns the newest limit snapshots in chronological order. A non-positive limit returns all of them.
func (s *sqliteStorage) GetSnapshots(ctx context.Context, limit int) ([]common.Snapshot, error) {
	if limit <= 0 {
		limit = s.maxStoredSnapshots
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, cpu, memory, disk, network FROM (
			SELECT rowid, recorded_at, cpu, memory, disk, network
			FROM snapshots
			ORDER BY recorded_at DESC, rowid DESC
			LIMIT ?
		) ORDER BY recorded_at, rowid
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]common.Snapshot, 0, limit)
	for rows.Next() {
		var recordedAt int64
		var cpu, memory, disk, network string

		err = rows.Scan(&recordedAt, &cpu, &memory, &disk, &network)
		if err != nil {
			return nil, err
		}

		results = append(results, common.Snapshot{
			Timestamp: time.UnixMilli(recordedAt),
			CPU:       json.RawMessage(cpu),
			Memory:    json.RawMessage(memory),
			Disk:      json.RawMessage(disk),
			Network:   json.RawMessage(network),
		})
	}

	return results, rows.Err()
}

// DeleteAll removes every stored snapshot
func (s *sqliteStorage) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM snapshots")
	return err
}

func (s *sqliteStorage) cleanRetainedSnapshots(ctx context.Context) error {
	cutoff := s.timeHandler().Add(-time.Duration(s.retentionSeconds) * time.Second).UnixMilli()
	result, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE recorded_at < ?", cutoff)
	if err != nil {
		return err
	}

	numDeleted, _ := result.RowsAffected()
	log.Debug("retention cleanup done", "deleted", numDeleted)

	return nil
}

func (s *sqliteStorage) startRetentionCleaner(ctx context.Context) {
	s.wg.Add(1)

	// max(RetentionSeconds/10, 60)
	intervalSec := s.retentionSeconds / 10
	if intervalSec < minCleanupIntervalInSeconds {
		intervalSec = minCleanupIntervalInSeconds
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)

	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := s.cleanRetainedSnapshots(ctx)
				if err != nil {
					log.Warn("failed to cleanup retained snapshots", "error", err)
				}
			}
		}
	}()
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}

	return string(raw)
}

// Close closes the database and stops background routines
func (s *sqliteStorage) Close() error {
	s.cancelFunc()
	s.wg.Wait()
	return s.db.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *sqliteStorage) IsInterfaceNil() bool {
	return s == nil
}
