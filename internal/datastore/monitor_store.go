package datastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tagwatch/internal/models"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// MonitorStore persists per-monitor durable state in SQLite, one row per
// unique key. Each monitor actor is the single writer for its own row; the
// store itself only guarantees that one Put is one atomic write.
type MonitorStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewMonitorStore opens (creating if needed) the SQLite database at
// dataSourceName and ensures the schema exists.
func NewMonitorStore(dataSourceName string, logger zerolog.Logger) (*MonitorStore, error) {
	storeLogger := logger.With().Str("component", "MonitorStore").Logger()

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}

	store := &MonitorStore{
		db:     dbInstance,
		logger: storeLogger,
	}

	if err := store.initSchema(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	storeLogger.Info().Str("path", dataSourceName).Msg("State store initialized")
	return store, nil
}

// Close closes the database connection.
func (s *MonitorStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *MonitorStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS monitors (
		unique_key TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		current_version TEXT,
		paused INTEGER NOT NULL DEFAULT 0,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create monitors table: %w", err)
	}
	return nil
}

// Put writes the full record for its key, inserting or replacing the row.
func (s *MonitorStore) Put(record *models.MonitorRecord) error {
	configJSON, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal monitor config: %w", err)
	}

	var currentVersion sql.NullString
	if record.State.CurrentVersion != nil {
		versionJSON, err := json.Marshal(record.State.CurrentVersion)
		if err != nil {
			return fmt.Errorf("failed to marshal current version: %w", err)
		}
		currentVersion = sql.NullString{String: string(versionJSON), Valid: true}
	}

	query := `INSERT INTO monitors (unique_key, config, current_version, paused, consecutive_failures, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(unique_key) DO UPDATE SET
		config = excluded.config,
		current_version = excluded.current_version,
		paused = excluded.paused,
		consecutive_failures = excluded.consecutive_failures,
		updated_at = excluded.updated_at`

	_, err = s.db.Exec(query,
		record.Config.UniqueKey,
		string(configJSON),
		currentVersion,
		record.State.Paused,
		record.State.ConsecutiveFailures,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert monitor %s: %w", record.Config.UniqueKey, err)
	}
	return nil
}

// Get reads the record for uniqueKey. A missing row returns (nil, nil).
func (s *MonitorStore) Get(uniqueKey string) (*models.MonitorRecord, error) {
	query := `SELECT config, current_version, paused, consecutive_failures FROM monitors WHERE unique_key = ?`

	var configJSON string
	var currentVersion sql.NullString
	var record models.MonitorRecord

	err := s.db.QueryRow(query, uniqueKey).Scan(&configJSON, &currentVersion, &record.State.Paused, &record.State.ConsecutiveFailures)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query monitor %s: %w", uniqueKey, err)
	}

	if err := json.Unmarshal([]byte(configJSON), &record.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for %s: %w", uniqueKey, err)
	}
	if currentVersion.Valid {
		var release models.ReleaseRecord
		if err := json.Unmarshal([]byte(currentVersion.String), &release); err != nil {
			return nil, fmt.Errorf("failed to unmarshal current version for %s: %w", uniqueKey, err)
		}
		record.State.CurrentVersion = &release
	}

	return &record, nil
}

// Delete erases the row for uniqueKey. Deleting an absent key is a no-op.
func (s *MonitorStore) Delete(uniqueKey string) error {
	if _, err := s.db.Exec(`DELETE FROM monitors WHERE unique_key = ?`, uniqueKey); err != nil {
		return fmt.Errorf("failed to delete monitor %s: %w", uniqueKey, err)
	}
	return nil
}

// List returns every persisted record, ordered by key. Used to restore the
// monitor population at startup.
func (s *MonitorStore) List() ([]models.MonitorRecord, error) {
	rows, err := s.db.Query(`SELECT unique_key FROM monitors ORDER BY unique_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan monitor key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monitor keys: %w", err)
	}

	records := make([]models.MonitorRecord, 0, len(keys))
	for _, key := range keys {
		record, err := s.Get(key)
		if err != nil {
			// A single corrupt row must not block restoring the others.
			s.logger.Error().Err(err).Str("key", key).Msg("Skipping unreadable monitor record")
			continue
		}
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, nil
}
