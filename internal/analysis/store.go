package analysis

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"chanwatch/internal/models"
)

// migrations are applied in order; schema_migrations records the last
// applied version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS classifications (
		comment_id  TEXT NOT NULL,
		dimension   TEXT NOT NULL,
		category    TEXT NOT NULL,
		analyzed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (comment_id, dimension)
	)`,
}

// ResultStore persists classification results in a SQLite database under
// the channel's analysis directory. Results survive interrupted runs and
// are merged, never replaced.
type ResultStore struct {
	db *sql.DB
}

// OpenResultStore opens (and migrates) the results database at path.
func OpenResultStore(path string) (*ResultStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for version := current; version < len(migrations); version++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", version+1, err)
		}
		if _, err := tx.Exec(migrations[version]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", version+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version+1, err)
		}
	}
	return nil
}

// SaveBatch merges records into the store in one transaction. Existing
// (comment, dimension) pairs keep their earlier category.
func (s *ResultStore) SaveBatch(records []models.ClassificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO classifications (comment_id, dimension, category) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare checkpoint insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.CommentID, string(r.Dimension), r.Category); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save result for comment %s: %w", r.CommentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// LoadAll returns every persisted result, keyed by comment id then
// dimension.
func (s *ResultStore) LoadAll() (map[string]map[models.Dimension]string, error) {
	rows, err := s.db.Query(`SELECT comment_id, dimension, category FROM classifications`)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	out := map[string]map[models.Dimension]string{}
	for rows.Next() {
		var commentID, dimension, category string
		if err := rows.Scan(&commentID, &dimension, &category); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		if out[commentID] == nil {
			out[commentID] = map[models.Dimension]string{}
		}
		out[commentID][models.Dimension(dimension)] = category
	}
	return out, rows.Err()
}

// Reset discards every persisted result (forced full reanalysis).
func (s *ResultStore) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM classifications`); err != nil {
		return fmt.Errorf("failed to reset results: %w", err)
	}
	return nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}
