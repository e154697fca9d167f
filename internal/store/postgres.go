package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	d       dialect
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, d: postgresDialect}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL(s.d.types))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Select(ctx context.Context, table string, f Filter) ([]Record, error) {
	t, query, args, err := s.d.selectSQL(table, f)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: select %s", table)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, fd := range fields {
		names[i] = fd.Name
	}

	var out []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		rec, err := s.d.decodeRow(t, names, values)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate %s", table)
}

func (s *PostgresStore) Insert(ctx context.Context, table string, rec Record) (string, error) {
	id, query, args, err := s.d.insertSQL(table, rec)
	if err != nil {
		return "", err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return "", eris.Wrapf(err, "postgres: insert %s", table)
	}
	return id, nil
}

// InsertMany uses the COPY protocol.
func (s *PostgresStore) InsertMany(ctx context.Context, table string, recs []Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	_, columns, rows, err := s.d.manyRows(table, recs)
	if err != nil {
		return 0, err
	}
	return db.CopyFrom(ctx, s.pool, table, columns, rows)
}

func (s *PostgresStore) Update(ctx context.Context, table string, f Filter, patch Record) (int64, error) {
	query, args, err := s.d.updateSQL(table, f, patch)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update %s", table)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Upsert(ctx context.Context, table string, rec Record, conflictKeys ...string) (string, error) {
	query, args, err := s.d.upsertSQL(table, rec, conflictKeys)
	if err != nil {
		return "", err
	}
	var key string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&key); err != nil {
		return "", eris.Wrapf(err, "postgres: upsert %s", table)
	}
	return key, nil
}

// UpsertMany stages rows through a temp table and merges them in one
// statement.
func (s *PostgresStore) UpsertMany(ctx context.Context, table string, recs []Record, conflictKeys ...string) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	if _, err := lookup(table, conflictKeys...); err != nil {
		return 0, err
	}
	_, columns, rows, err := s.d.manyRows(table, recs)
	if err != nil {
		return 0, err
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        table,
		Columns:      columns,
		ConflictKeys: conflictKeys,
	}, rows)
}

func (s *PostgresStore) Delete(ctx context.Context, table string, f Filter) (int64, error) {
	query, args, err := s.d.deleteSQL(table, f)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %s", table)
	}
	return tag.RowsAffected(), nil
}
