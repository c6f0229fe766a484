package store

import (
	"database/sql"
)

// Store wraps the SQLite database holding observations and predictions.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
