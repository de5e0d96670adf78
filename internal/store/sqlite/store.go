package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// LaunchRecord is one row of launch history: which interpreter ran the
// application, with which flags, and how the child exited.
type LaunchRecord struct {
	LaunchID      string `json:"launchId"`
	PythonPath    string `json:"pythonPath"`
	PythonVersion string `json:"pythonVersion"`
	Target        string `json:"target"`
	Debug         bool   `json:"debug"`
	SafeMode      bool   `json:"safeMode"`
	Status        string `json:"status"`
	ExitCode      *int   `json:"exitCode,omitempty"`
	StartedAt     string `json:"startedAt"`
	EndedAt       string `json:"endedAt,omitempty"`
	LastError     string `json:"lastError,omitempty"`
}

func Open(stateDir string) (*Store, error) {
	if stateDir == "" {
		stateDir = ".tradelaunch"
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(stateDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS launches (
		launch_id TEXT PRIMARY KEY,
		python_path TEXT NOT NULL,
		python_version TEXT NOT NULL,
		target TEXT NOT NULL,
		debug INTEGER NOT NULL,
		safe_mode INTEGER NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		last_error TEXT
	);`)
	return err
}

func (s *Store) InsertLaunch(r LaunchRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO launches (launch_id, python_path, python_version, target, debug, safe_mode, status, exit_code, started_at, ended_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.LaunchID, r.PythonPath, r.PythonVersion, r.Target, boolInt(r.Debug), boolInt(r.SafeMode),
		r.Status, nullableInt(r.ExitCode), r.StartedAt, nullableString(r.EndedAt), nullableString(r.LastError),
	)
	return err
}

func (s *Store) UpdateLaunchCompletion(launchID, status string, exitCode *int, lastError string) error {
	_, err := s.db.Exec(
		`UPDATE launches SET status = ?, exit_code = ?, ended_at = ?, last_error = ? WHERE launch_id = ?`,
		status, nullableInt(exitCode), time.Now().UTC().Format(time.RFC3339Nano), nullableString(lastError), launchID,
	)
	return err
}

func (s *Store) GetLaunch(launchID string) (LaunchRecord, error) {
	row := s.db.QueryRow(
		`SELECT launch_id, python_path, python_version, target, debug, safe_mode, status, exit_code, started_at, COALESCE(ended_at,''), COALESCE(last_error,'')
		 FROM launches WHERE launch_id = ?`, launchID)
	r, err := scanLaunch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LaunchRecord{}, fmt.Errorf("launch not found: %s", launchID)
		}
		return LaunchRecord{}, err
	}
	return r, nil
}

func (s *Store) ListLaunches(limit int) ([]LaunchRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT launch_id, python_path, python_version, target, debug, safe_mode, status, exit_code, started_at, COALESCE(ended_at,''), COALESCE(last_error,'')
		 FROM launches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LaunchRecord, 0)
	for rows.Next() {
		r, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLaunch(row rowScanner) (LaunchRecord, error) {
	var r LaunchRecord
	var debug, safe int
	var exit sql.NullInt64
	if err := row.Scan(&r.LaunchID, &r.PythonPath, &r.PythonVersion, &r.Target, &debug, &safe, &r.Status, &exit, &r.StartedAt, &r.EndedAt, &r.LastError); err != nil {
		return LaunchRecord{}, err
	}
	r.Debug = debug != 0
	r.SafeMode = safe != 0
	if exit.Valid {
		v := int(exit.Int64)
		r.ExitCode = &v
	}
	return r, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
