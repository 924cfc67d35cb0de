package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
)

// MemoryDB is the filename of a shared in-memory sqlite database.
const MemoryDB = "file::memory:?cache=shared"

// SQLiteStorage keeps all buckets in one sqlite database file.
// The database is opened lazily, when the first bucket is opened.
type SQLiteStorage struct {
	filename string
	mutex    *sync.Mutex
	db       *sqlx.DB
	buckets  map[string]*SQLiteBucket
}

// NewSQLiteStorage creates a new storage with the given filename as the db.
// If file name is empty, a new in-memory db is used.
func NewSQLiteStorage(filename string) *SQLiteStorage {
	if filename == "" {
		filename = MemoryDB
	}
	return &SQLiteStorage{
		filename: filename,
		mutex:    &sync.Mutex{},
		buckets:  make(map[string]*SQLiteBucket),
	}
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (Bucket, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if b, ok := s.buckets[name]; ok {
		return b, nil
	}
	if s.db == nil {
		db, err := openSQLite(ctx, s.filename)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, s.filename, err)
		}
		s.db = db
	}
	b := &SQLiteBucket{
		name: name,
		db:   s.db,
	}
	s.buckets[name] = b
	return b, nil
}

func (s *SQLiteStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.buckets = make(map[string]*SQLiteBucket)
	return err
}

func openSQLite(ctx context.Context, filename string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers and keeps a shared memory db alive
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS cache (
			bucket TEXT NOT NULL,
			key TEXT NOT NULL,
			bytes BLOB,
			PRIMARY KEY (bucket, key)
		)`,
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// SQLiteBucket is a named bucket inside a SQLiteStorage.
type SQLiteBucket struct {
	name string
	db   *sqlx.DB
}

type sqliteRow struct {
	Bucket string `db:"bucket"`
	Key    string `db:"key"`
	Bytes  []byte `db:"bytes"`
}

func (s *SQLiteBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row sqliteRow
	err := s.db.GetContext(ctx, &row, "SELECT bucket, key, bytes FROM cache WHERE bucket = ? AND key = ?", s.name, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return row.Bytes, true, nil
}

func (s *SQLiteBucket) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.NamedExecContext(ctx,
		"INSERT OR REPLACE INTO cache (bucket, key, bytes) VALUES (:bucket, :key, :bytes)",
		sqliteRow{Bucket: s.name, Key: key, Bytes: value},
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
