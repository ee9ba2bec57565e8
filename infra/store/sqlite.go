package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/smartcharging/core/model"
	corestore "github.com/kilianp07/smartcharging/core/store"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists charging profiles in a SQLite database. The seq column
// records installation order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS charging_profiles (
        id INTEGER PRIMARY KEY,
        evse_id INTEGER NOT NULL,
        seq INTEGER NOT NULL,
        body TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS charging_profiles_evse ON charging_profiles (evse_id, seq);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ProfilesForOutlet(ctx context.Context, evseID int) ([]model.ChargingProfile, error) {
	return s.query(ctx, `SELECT body FROM charging_profiles WHERE evse_id = ? ORDER BY seq`, evseID)
}

func (s *SQLiteStore) AllProfiles(ctx context.Context) ([]model.ChargingProfile, error) {
	return s.query(ctx, `SELECT body FROM charging_profiles ORDER BY seq`)
}

func (s *SQLiteStore) Get(ctx context.Context, id int) (model.ChargingProfile, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM charging_profiles WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ChargingProfile{}, corestore.ErrNotFound
	}
	if err != nil {
		return model.ChargingProfile{}, err
	}
	return decodeProfile(body)
}

// Put inserts or replaces the profile and moves it to the end of the
// installation order.
func (s *SQLiteStore) Put(ctx context.Context, p model.ChargingProfile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %d: %w", p.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO charging_profiles (id, evse_id, seq, body)
        VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM charging_profiles), ?)
        ON CONFLICT(id) DO UPDATE SET
            evse_id = excluded.evse_id,
            seq = excluded.seq,
            body = excluded.body`,
		p.ID, p.EvseID, string(body))
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM charging_profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return corestore.ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.ChargingProfile, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ChargingProfile
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		p, err := decodeProfile(body)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func decodeProfile(body string) (model.ChargingProfile, error) {
	var p model.ChargingProfile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return model.ChargingProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}
