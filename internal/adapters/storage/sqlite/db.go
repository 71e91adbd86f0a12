package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS medications (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	name            TEXT NOT NULL,
	dosage          TEXT NOT NULL,
	dose_times      TEXT NOT NULL,
	start_date      TEXT NOT NULL DEFAULT '',
	end_date        TEXT NOT NULL DEFAULT '',
	recurrence_kind TEXT NOT NULL,
	weekdays        TEXT NOT NULL DEFAULT '[]',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_medications_owner ON medications(owner_id);

CREATE TABLE IF NOT EXISTS medication_intakes (
	medication_id TEXT NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
	intake_date   TEXT NOT NULL,
	intake_time   TEXT NOT NULL,
	taken         BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (medication_id, intake_date, intake_time)
);
`

// Open abre (o crea) la base local y deja el esquema listo. Pensado para
// dev/self-hosted sin Postgres; usa el driver puro de modernc (sin cgo).
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// FKs vienen apagadas por default en sqlite
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return db, nil
}
