package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoint (
	id INTEGER PRIMARY KEY CHECK(id=1),
	accumulated_kwh REAL NOT NULL,
	last_update_time TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	seq INTEGER PRIMARY KEY,
	time TEXT NOT NULL,
	current_ma REAL NOT NULL,
	voltage_v REAL NOT NULL,
	power_w REAL NOT NULL,
	energy_kwh REAL NOT NULL,
	cost REAL NOT NULL,
	duration_min INTEGER NOT NULL
);
`

// Open opens (creating if needed) the SQLite database at dbPath and applies the schema.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dbConn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared across calls
	dbConn.SetMaxOpenConns(1)

	if err := ApplyMigrations(dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}

	log.Debug().Str("path", dbPath).Msg("Database opened")
	return dbConn, nil
}

func ApplyMigrations(dbConn *sql.DB) error {
	if _, err := dbConn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
