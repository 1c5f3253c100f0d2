// Package store keeps a SQLite history of converted containers and of the
// units that failed to convert.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mcz2osz/transcode"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	container  TEXT NOT NULL,
	output     TEXT NOT NULL,
	charts     INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS charts (
	conversion_id INTEGER NOT NULL REFERENCES conversions(id) ON DELETE CASCADE,
	title         TEXT NOT NULL,
	version       TEXT NOT NULL,
	columns       INTEGER NOT NULL,
	rating        REAL,
	length_ms     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS charts_conversion ON charts(conversion_id);
CREATE TABLE IF NOT EXISTS failures (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	category   TEXT NOT NULL,
	unit       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

type Store struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

type Conversion struct {
	ID        int64
	Container string
	Output    string
	Charts    []Chart
	CreatedAt time.Time
}

type Chart struct {
	Title   string
	Version string
	Columns int
	Rating  *float64
	Length  int
}

type Failure struct {
	Category  string
	Unit      string
	Reason    string
	CreatedAt time.Time
}

// Open creates the database file and its tables if needed.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	logger.Printf("history: %s", path)
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordConversion(container, output string, summaries []transcode.Summary) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.Exec(`INSERT INTO conversions (container, output, charts, created_at) VALUES (?, ?, ?, ?)`,
		container, output, len(summaries), s.now().UTC())
	if err != nil {
		return fmt.Errorf("record conversion %s: %w", container, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO charts (conversion_id, title, version, columns, rating, length_ms) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sum := range summaries {
		if _, err := stmt.Exec(id, sum.Title, sum.Version, sum.Columns, sum.Rating, sum.Length); err != nil {
			return fmt.Errorf("record chart %s [%s]: %w", sum.Title, sum.Version, err)
		}
	}
	return tx.Commit()
}

func (s *Store) RecordFailure(category, unit, reason string) error {
	_, err := s.db.Exec(`INSERT INTO failures (category, unit, reason, created_at) VALUES (?, ?, ?, ?)`,
		category, unit, reason, s.now().UTC())
	if err != nil {
		return fmt.Errorf("record failure %s: %w", unit, err)
	}
	return nil
}

// Recent returns the latest conversions, newest first.
func (s *Store) Recent(limit int) ([]Conversion, error) {
	rows, err := s.db.Query(`SELECT id, container, output, created_at FROM conversions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var out []Conversion
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(&c.ID, &c.Container, &c.Output, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		charts, err := s.charts(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Charts = charts
	}
	return out, nil
}

func (s *Store) charts(conversionID int64) ([]Chart, error) {
	rows, err := s.db.Query(`SELECT title, version, columns, rating, length_ms FROM charts WHERE conversion_id = ? ORDER BY rowid`, conversionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chart
	for rows.Next() {
		var c Chart
		var rating sql.NullFloat64
		if err := rows.Scan(&c.Title, &c.Version, &c.Columns, &rating, &c.Length); err != nil {
			return nil, err
		}
		if rating.Valid {
			c.Rating = &rating.Float64
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Failures returns the latest failures, newest first.
func (s *Store) Failures(limit int) ([]Failure, error) {
	rows, err := s.db.Query(`SELECT category, unit, reason, created_at FROM failures ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Category, &f.Unit, &f.Reason, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
