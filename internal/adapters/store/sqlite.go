package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/calder/phishscan/internal/core"
)

// retentionSweepInterval is how often the SQL-backed stores look for
// records past their retention period.
const retentionSweepInterval = time.Hour

// SQLiteStore is a SQLite implementation of the ScanStore interface.
type SQLiteStore struct {
	db        *sql.DB
	logger    *zap.Logger
	retention time.Duration
	stopCh    chan struct{}
}

// NewSQLiteStore opens (and if needed initializes) a SQLite scan store.
// When retention is positive, records older than it are purged in the
// background.
func NewSQLiteStore(dbPath string, retention time.Duration, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			subject TEXT,
			sender TEXT,
			sender_domain TEXT,
			verdict TEXT,
			confidence REAL,
			explanation TEXT,
			source TEXT,
			scanned_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create scans table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	store := &SQLiteStore{
		db:        db,
		logger:    logger,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
	if retention > 0 {
		go store.startRetentionTask()
	}
	return store, nil
}

// startRetentionTask purges expired records on a fixed interval until
// the store is closed.
func (s *SQLiteStore) startRetentionTask() {
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.retention).Format(time.RFC3339)
			res, err := s.db.Exec(`DELETE FROM scans WHERE scanned_at < ?`, cutoff)
			if err != nil {
				s.logger.Error("Failed to purge expired scan records", zap.Error(err))
				continue
			}
			if n, err := res.RowsAffected(); err == nil && n > 0 {
				s.logger.Debug("Purged expired scan records", zap.Int64("count", n))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Save persists one scan record.
func (s *SQLiteStore) Save(ctx context.Context, record *core.ScanRecord) error {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	scannedAt := record.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scans (id, subject, sender, sender_domain, verdict, confidence, explanation, source, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, record.Subject, record.Sender, record.SenderDomain, string(record.Verdict),
		record.ConfidencePercent, record.Explanation, record.Source, scannedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert scan record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*core.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, sender, sender_domain, verdict, confidence, explanation, source, scanned_at
		FROM scans
		ORDER BY scanned_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan records: %w", err)
	}
	defer rows.Close()

	var records []*core.ScanRecord
	for rows.Next() {
		var r core.ScanRecord
		var verdict, scannedAt string
		if err := rows.Scan(&r.ID, &r.Subject, &r.Sender, &r.SenderDomain, &verdict,
			&r.ConfidencePercent, &r.Explanation, &r.Source, &scannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Verdict = core.Verdict(verdict)
		ts, err := time.Parse(time.RFC3339, scannedAt)
		if err != nil {
			s.logger.Warn("Failed to parse scanned_at timestamp",
				zap.String("id", r.ID), zap.Error(err))
		} else {
			r.ScannedAt = ts
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// CountByVerdict tallies stored records per verdict.
func (s *SQLiteStore) CountByVerdict(ctx context.Context) (map[core.Verdict]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT verdict, COUNT(*) FROM scans GROUP BY verdict
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count scan records: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.Verdict]int64)
	for rows.Next() {
		var verdict string
		var n int64
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[core.Verdict(verdict)] = n
	}
	return counts, rows.Err()
}

// Close stops the retention task and closes the database connection.
func (s *SQLiteStore) Close() error {
	close(s.stopCh)
	return s.db.Close()
}
