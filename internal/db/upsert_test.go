package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "prospect_email_sequences",
		Columns:      []string{"id", "lead_id"},
		ConflictKeys: []string{"lead_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "prospect_email_sequences",
		ConflictKeys: []string{"lead_id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "prospect_email_sequences",
		Columns: []string{"id", "lead_id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "lead_id", "email_number", "ab_variant", "subject_line"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_prospect_email_sequences"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_prospect_email_sequences"}, cols).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("lead_id", "email_number", "ab_variant"\) DO UPDATE SET "subject_line" = EXCLUDED."subject_line"$`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "prospect_email_sequences",
		Columns:      cols,
		ConflictKeys: []string{"lead_id", "email_number", "ab_variant"},
	}, [][]any{{"i1", "l1", 1, "a", "s1"}, {"i2", "l1", 2, "a", "s2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_t"}, []string{"id", "k"}).WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "t",
		Columns:      []string{"id", "k"},
		ConflictKeys: []string{"k"},
	}, [][]any{{"1", "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for t")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultUpdateCols(t *testing.T) {
	got := defaultUpdateCols([]string{"id", "lead_id", "platform", "followers", "created_at", "updated_at"}, []string{"lead_id", "platform"})
	assert.Equal(t, []string{"followers", "updated_at"}, got)
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
