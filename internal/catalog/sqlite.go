package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteCreateFiles = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	upload_time TIMESTAMP NOT NULL,
	file_path TEXT NOT NULL,
	uploader_email TEXT,
	file_size INTEGER
)`

const sqliteCreateReshaped = `
CREATE TABLE files_new (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	upload_time TIMESTAMP NOT NULL,
	file_path TEXT NOT NULL,
	uploader_email TEXT,
	file_size INTEGER
)`

const sqliteCreateListIndex = `CREATE INDEX IF NOT EXISTS idx_files_upload_time ON files (upload_time DESC, id DESC)`

// legacyColumn is a column some old catalogs still carry and that
// current inserts cannot satisfy.
const legacyColumn = "password_hash"

// additiveColumns are added in place when missing.
var additiveColumns = []struct {
	name string
	ddl  string
}{
	{"uploader_email", `ALTER TABLE files ADD COLUMN uploader_email TEXT`},
	{"file_size", `ALTER TABLE files ADD COLUMN file_size INTEGER`},
}

// OpenSQLite opens the catalog file at path without migrating it.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite catalog path is empty")
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	return db, nil
}

func openSQLite(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite catalog: %w", err)
	}
	return NewStore(db, SQLite, logger.With(zap.String("catalog", path))), nil
}

// migrateSQLite inspects the live table instead of tracking versions so
// that catalogs created by any earlier release are adopted as they are.
func (s *Store) migrateSQLite(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteCreateFiles); err != nil {
		return fmt.Errorf("create files table: %w", err)
	}

	cols, err := tableColumns(ctx, s.db, "files")
	if err != nil {
		return err
	}

	if cols[legacyColumn] {
		if err := s.reshapeLegacy(ctx, cols); err != nil {
			return fmt.Errorf("reshape legacy files table: %w", err)
		}
		s.logger.Info("migrated legacy files table", zap.String("dropped_column", legacyColumn))
		if cols, err = tableColumns(ctx, s.db, "files"); err != nil {
			return err
		}
	}

	for _, c := range additiveColumns {
		if cols[c.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("add column %s: %w", c.name, err)
		}
		s.logger.Info("added column to files table", zap.String("column", c.name))
	}

	if err := s.normalizeLegacyTimes(ctx); err != nil {
		return fmt.Errorf("normalize upload times: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, sqliteCreateListIndex); err != nil {
		return fmt.Errorf("create listing index: %w", err)
	}
	return nil
}

// normalizeLegacyTimes rewrites upload times stored without a zone into
// the UTC layout, so ORDER BY upload_time compares like with like.
func (s *Store) normalizeLegacyTimes(ctx context.Context) error {
	type stamp struct {
		id  int64
		raw string
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, CAST(upload_time AS TEXT) FROM files WHERE CAST(upload_time AS TEXT) NOT LIKE '%Z'`)
		if err != nil {
			return err
		}
		var stale []stamp
		for rows.Next() {
			var st stamp
			if err := rows.Scan(&st.id, &st.raw); err != nil {
				_ = rows.Close()
				return err
			}
			stale = append(stale, st)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, st := range stale {
			t, err := parseTimeText(st.raw)
			if err != nil {
				s.logger.Warn("upload time left as is", zap.Int64("id", st.id), zap.Error(err))
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE files SET upload_time = ? WHERE id = ?`,
				SQLite.encodeTime(t), st.id); err != nil {
				return err
			}
		}
		if len(stale) > 0 {
			s.logger.Info("normalized legacy upload times", zap.Int("rows", len(stale)))
		}
		return nil
	})
}

// reshapeLegacy copies every row, ids included, into a table without
// the legacy column and swaps it in. The AUTOINCREMENT high-water mark
// is carried over so ids of deleted rows are never handed out again.
func (s *Store) reshapeLegacy(ctx context.Context, cols map[string]bool) error {
	copyCols := []string{"id", "filename", "original_filename", "upload_time", "file_path"}
	for _, c := range additiveColumns {
		if cols[c.name] {
			copyCols = append(copyCols, c.name)
		}
	}
	colList := strings.Join(copyCols, ", ")

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var oldSeq sql.NullInt64
		// sqlite_sequence is absent when no AUTOINCREMENT table ever
		// existed; oldSeq then stays invalid.
		_ = tx.QueryRowContext(ctx, `SELECT seq FROM sqlite_sequence WHERE name = 'files'`).Scan(&oldSeq)

		stmts := []string{
			sqliteCreateReshaped,
			`INSERT INTO files_new (` + colList + `) SELECT ` + colList + ` FROM files`,
			`DROP TABLE files`,
			`ALTER TABLE files_new RENAME TO files`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}

		var maxID int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM files`).Scan(&maxID); err != nil {
			return err
		}
		seq := maxID
		if oldSeq.Valid && oldSeq.Int64 > seq {
			seq = oldSeq.Int64
		}
		if seq == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('files', 'files_new')`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO sqlite_sequence (name, seq) VALUES ('files', ?)`, seq)
		return err
	})
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(`+table+`)`)
	if err != nil {
		return nil, fmt.Errorf("inspect %s table: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("inspect %s table: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}
