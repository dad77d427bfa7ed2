package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Options selects and configures the backing database.
type Options struct {
	// SQLitePath is the catalog file used when DatabaseURL is empty.
	SQLitePath string
	// DatabaseURL is a PostgreSQL DSN.
	DatabaseURL string
}

// Store is the file-record repository. It is safe for concurrent use;
// every mutating operation is a single statement.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
	// postgresDSN is kept so Migrate can open its own connection.
	postgresDSN string
}

// NewStore wraps an already opened database. Call Migrate before use.
func NewStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, dialect: dialect, logger: logger, now: time.Now}
}

// Open connects to the database named by opts and brings its schema up
// to date.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	var (
		s   *Store
		err error
	)
	if opts.DatabaseURL != "" {
		s, err = openPostgres(ctx, opts.DatabaseURL, logger)
	} else {
		s, err = openSQLite(ctx, opts.SQLitePath, logger)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return s, nil
}

// Migrate creates or upgrades the schema. It is idempotent and never
// drops rows.
func (s *Store) Migrate(ctx context.Context) error {
	if s.dialect.numbered {
		return migratePostgres(s.postgresDSN, s.logger)
	}
	return s.migrateSQLite(ctx)
}

// Dialect returns the store's SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a record stamped with the current time and returns its
// id. When SizeBytes is nil the size is taken from the file on disk, if
// it exists.
func (s *Store) Create(ctx context.Context, nr NewRecord) (int64, error) {
	size := nr.SizeBytes
	if size == nil {
		if info, err := os.Stat(nr.FilePath); err == nil && info.Mode().IsRegular() {
			n := info.Size()
			size = &n
		}
	}

	query := s.dialect.rebind(`
		INSERT INTO files (filename, original_filename, upload_time, file_path, uploader_email, file_size)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		nr.StoredName,
		nr.OriginalName,
		s.dialect.encodeTime(s.now()),
		nr.FilePath,
		nullString(nr.OwnerEmail),
		nullInt64(size),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert file record: %w", err)
	}
	return id, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	query := s.dialect.rebind(`SELECT ` + s.dialect.selectColumns() + ` FROM files WHERE id = ?`)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file record %d: %w", id, err)
	}
	return rec, nil
}

// ListAll returns every record, newest upload first. Records uploaded in
// the same instant are ordered by id, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	return s.list(ctx, `SELECT `+s.dialect.selectColumns()+` FROM files ORDER BY upload_time DESC, id DESC`)
}

// ListOlderThan returns records uploaded before cutoff, oldest first.
// It backs a future expiry job; nothing schedules it today.
func (s *Store) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Record, error) {
	return s.list(ctx,
		`SELECT `+s.dialect.selectColumns()+` FROM files WHERE upload_time < ? ORDER BY upload_time ASC, id ASC`,
		s.dialect.encodeTime(cutoff))
}

// Delete removes the record unconditionally. Ownership and blob checks
// are the caller's job. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM files WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete file record %d: %w", id, err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec        Record
		uploadTime any
		owner      sql.NullString
		size       sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.StoredName, &rec.OriginalName, &uploadTime, &rec.FilePath, &owner, &size); err != nil {
		return nil, err
	}

	t, err := decodeTime(uploadTime)
	if err != nil {
		return nil, err
	}
	rec.UploadTime = t

	if owner.Valid {
		v := owner.String
		rec.OwnerEmail = &v
	}
	if size.Valid {
		v := size.Int64
		rec.SizeBytes = &v
	}
	return &rec, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
