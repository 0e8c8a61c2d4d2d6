package algofi

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

type SqlLiteDatabase struct {
	db *sql.DB
	mu sync.Mutex
}

var _ StateDatabase = &SqlLiteDatabase{}

func NewSqlLiteDatabase(path string) (db *SqlLiteDatabase, err error) {
	log.Info().Msgf("opening sqlite db at: '%s'", path)

	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		err = errors.Wrap(err, "failed to open database")
		return
	}

	if err = sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to ping database")
		return
	}

	db = &SqlLiteDatabase{db: sqldb}
	if err = db.initTables(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to init tables")
		return
	}

	return
}

func (s *SqlLiteDatabase) initTables() (err error) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS app_state (
			app_id INTEGER,
			round INTEGER,
			state BLOB,
			PRIMARY KEY (app_id, round)
		)`,
		`CREATE TABLE IF NOT EXISTS storage_address (
			manager_app_id INTEGER,
			address TEXT,
			storage TEXT,
			PRIMARY KEY (manager_app_id, address)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_app_state_round ON app_state(app_id, round)`,
	}

	for i, query := range queries {
		_, err = s.db.Exec(query)
		if err != nil {
			err = errors.Wrapf(err, "failed to execute query: %d", i)
			return
		}
	}

	return
}

func (s *SqlLiteDatabase) Close() error {
	return errors.WithStack(s.db.Close())
}

func (s *SqlLiteDatabase) RecordState(appID, round uint64, entries []StateEntry) (err error) {
	encoded, err := EncodeStateEntries(entries)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO app_state (app_id, round, state) VALUES (?, ?, ?)",
		appID, round, encoded,
	)
	return errors.WithStack(err)
}

// GlobalStateAt returns the latest snapshot at or before round.
func (s *SqlLiteDatabase) GlobalStateAt(ctx context.Context, appID, round uint64) (entries []StateEntry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var encoded []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT state
		FROM app_state
		WHERE app_id = ? AND round <= ?
		ORDER BY round DESC
		LIMIT 1`,
		appID, round,
	).Scan(&encoded)

	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Wrapf(ErrStateNotFound, "no state for app %d at or before round %d", appID, round)
		return
	} else if err != nil {
		err = errors.WithStack(err)
		return
	}

	return DecodeStateEntries(encoded)
}

func (s *SqlLiteDatabase) RoundSpan(appID uint64) (first, last uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRow(
		"SELECT COALESCE(MIN(round), 0), COALESCE(MAX(round), 0) FROM app_state WHERE app_id = ?",
		appID,
	).Scan(&first, &last)
	err = errors.WithStack(err)

	return
}

func (s *SqlLiteDatabase) GetStorageAddress(managerAppID uint64, address string) (storage string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRow(
		"SELECT storage FROM storage_address WHERE manager_app_id = ? AND address = ?",
		managerAppID, address,
	).Scan(&storage)
	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Wrapf(ErrStateNotFound, "no storage address cached for %s under app %d", address, managerAppID)
		return
	}
	err = errors.WithStack(err)

	return
}

func (s *SqlLiteDatabase) SetStorageAddress(managerAppID uint64, address, storage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO storage_address (manager_app_id, address, storage) VALUES (?, ?, ?)",
		managerAppID, address, storage,
	)
	return errors.WithStack(err)
}
