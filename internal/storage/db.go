package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"clientmap/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  inputPath TEXT NOT NULL,
  outputPath TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS unresolved_cities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId INTEGER NOT NULL,
  city TEXT NOT NULL,
  UNIQUE(runId, city),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// InsertRun stores one pipeline run and the cities it could not place.
func (d *DB) InsertRun(traceID, inputPath, outputPath string, durationMs float64, stats internal.RunStats) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	timingsJSON, _ := json.Marshal(map[string]float64{"totalMs": durationMs})
	countsJSON, _ := json.Marshal(stats)
	result, err := tx.Exec(`INSERT INTO runs (traceId, inputPath, outputPath, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?)`,
		traceID, inputPath, outputPath, string(timingsJSON), string(countsJSON))
	if err != nil {
		return 0, err
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO unresolved_cities (runId, city) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, city := range stats.UnresolvedCities {
		if _, err := stmt.Exec(runID, city); err != nil {
			return 0, err
		}
	}

	return runID, tx.Commit()
}

func (d *DB) LatestRun() (*internal.RunRow, error) {
	var row internal.RunRow
	var timingsJSON, countsJSON string
	err := d.conn.QueryRow(`
SELECT id, traceId, inputPath, outputPath, timingsJson, countsJson, createdAt
FROM runs ORDER BY id DESC LIMIT 1
`).Scan(&row.ID, &row.TraceID, &row.InputPath, &row.OutputPath, &timingsJSON, &countsJSON, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	timings := map[string]float64{}
	_ = json.Unmarshal([]byte(timingsJSON), &timings)
	row.DurationMs = timings["totalMs"]
	_ = json.Unmarshal([]byte(countsJSON), &row.Stats)

	cities, err := d.ListUnresolvedCities(row.ID)
	if err != nil {
		return nil, err
	}
	row.Stats.UnresolvedCities = cities
	return &row, nil
}

func (d *DB) ListUnresolvedCities(runID int) ([]string, error) {
	rows, err := d.conn.Query(`SELECT city FROM unresolved_cities WHERE runId = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, err
		}
		out = append(out, city)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
