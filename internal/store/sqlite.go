package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	d  dialect
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, d: sqliteDialect}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migrationSQL(s.d.types))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Select(ctx context.Context, table string, f Filter) ([]Record, error) {
	t, query, args, err := s.d.selectSQL(table, f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: select %s", table)
	}
	defer rows.Close() //nolint:errcheck

	names, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: columns %s", table)
	}

	var out []Record
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		rec, err := s.d.decodeRow(t, names, values)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate %s", table)
}

func (s *SQLiteStore) Insert(ctx context.Context, table string, rec Record) (string, error) {
	id, query, args, err := s.d.insertSQL(table, rec)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", eris.Wrapf(err, "sqlite: insert %s", table)
	}
	return id, nil
}

func (s *SQLiteStore) InsertMany(ctx context.Context, table string, recs []Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	_, columns, rows, err := s.d.manyRows(table, recs)
	if err != nil {
		return 0, err
	}

	q := s.d.sb().Insert(table).Columns(columns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: build insert %s", table)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert many %s", table)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Update(ctx context.Context, table string, f Filter, patch Record) (int64, error) {
	query, args, err := s.d.updateSQL(table, f, patch)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: update %s", table)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Upsert(ctx context.Context, table string, rec Record, conflictKeys ...string) (string, error) {
	query, args, err := s.d.upsertSQL(table, rec, conflictKeys)
	if err != nil {
		return "", err
	}
	var key string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&key); err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert %s", table)
	}
	return key, nil
}

func (s *SQLiteStore) UpsertMany(ctx context.Context, table string, recs []Record, conflictKeys ...string) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range recs {
		query, args, err := s.d.upsertSQL(table, rec, conflictKeys)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert %s", table)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return int64(len(recs)), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, table string, f Filter) (int64, error) {
	query, args, err := s.d.deleteSQL(table, f)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete %s", table)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}
