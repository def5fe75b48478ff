package rowstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

func newFakeManager(opts ...Option) (*Manager, *fakeDB) {
	db := &fakeDB{}
	return New(map[string]Database{"main": db}, opts...), db
}

func intPtr(n int) *int { return &n }

func TestRegistry(t *testing.T) {
	a, b := &fakeDB{}, &fakeDB{pingErr: errBoom}
	m := New(map[string]Database{"zeta": a, "alpha": b})

	assert.Equal(t, []string{"alpha", "zeta"}, m.ListInstances())

	got, ok := m.GetInstance("zeta")
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, ok = m.GetInstance("missing")
	assert.False(t, ok)

	names := m.ListInstances()
	names[0] = "mutated"
	assert.Equal(t, []string{"alpha", "zeta"}, m.ListInstances())

	failures := m.HealthCheck(context.Background())
	assert.Len(t, failures, 1)
	assert.ErrorIs(t, failures["alpha"], errBoom)

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestUnknownInstance(t *testing.T) {
	m, _ := newFakeManager()
	ctx := context.Background()

	_, err := m.Query(ctx, "nope", "SELECT 1", QueryOptions{})
	assert.ErrorIs(t, err, envelope.ErrInstanceNotFound)

	_, err = m.Execute(ctx, "nope", "DELETE FROM t", Params{})
	assert.ErrorIs(t, err, envelope.ErrInstanceNotFound)

	_, err = m.Batch(ctx, "nope", []Statement{{SQL: "DELETE FROM t"}})
	assert.ErrorIs(t, err, envelope.ErrInstanceNotFound)

	_, err = m.ExportData(ctx, "nope", ExportOptions{Format: FormatJSON})
	assert.ErrorIs(t, err, envelope.ErrInstanceNotFound)
}

func TestQueryGate(t *testing.T) {
	tests := []struct {
		sql     string
		allowed bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"\nPRAGMA table_info(t)", true},
		{"pragma index_list(t)", true},
		{"DELETE FROM t", false},
		{"INSERT INTO t VALUES (1)", false},
		{"WITH x AS (SELECT 1) SELECT * FROM x", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			m, db := newFakeManager()
			res, err := m.Query(context.Background(), "main", tt.sql, QueryOptions{})
			if tt.allowed {
				require.NoError(t, err)
				assert.True(t, res.Success)
				return
			}
			assert.ErrorIs(t, err, envelope.ErrInvalidOperation)
			assert.Nil(t, res)
			assert.Nil(t, db.last(), "rejected statements must not reach the backend")
		})
	}
}

func TestQueryPaging(t *testing.T) {
	m, db := newFakeManager()
	ctx := context.Background()

	_, err := m.Query(ctx, "main", "SELECT * FROM t", QueryOptions{Limit: intPtr(50000)})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t LIMIT 10000", db.last().sql)

	_, err = m.Query(ctx, "main", "SELECT * FROM t", QueryOptions{Limit: intPtr(5), Offset: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t LIMIT 5 OFFSET 10", db.last().sql)

	_, err = m.Query(ctx, "main", "SELECT * FROM t", QueryOptions{Limit: intPtr(-1)})
	assert.ErrorIs(t, err, envelope.ErrInvalidArgument)

	_, err = m.Query(ctx, "main", "SELECT * FROM t", QueryOptions{Offset: intPtr(-3)})
	assert.ErrorIs(t, err, envelope.ErrInvalidArgument)
}

func TestQueryResults(t *testing.T) {
	m, db := newFakeManager()
	db.rows = []Row{
		NewRow([]string{"id", "name"}, []any{int64(1), "a"}),
		NewRow([]string{"id", "name"}, []any{int64(2), "b"}),
	}

	res, err := m.Query(context.Background(), "main", "SELECT id, name FROM t", QueryOptions{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Len(t, res.Data.Results, 2)
	assert.Equal(t, 2, res.Data.Meta.RowsRead)
	assert.False(t, res.Data.Meta.HasMore)
	assert.GreaterOrEqual(t, res.Meta.DurationMs, 0.0)

	db.rows = nil
	res, err = m.Query(context.Background(), "main", "SELECT id FROM t", QueryOptions{})
	require.NoError(t, err)
	assert.NotNil(t, res.Data.Results)
	assert.Empty(t, res.Data.Results)
}

func TestQueryParamsAreBound(t *testing.T) {
	m, db := newFakeManager()
	ctx := context.Background()
	hostile := "x'; DROP TABLE users; --"

	_, err := m.Query(ctx, "main", "SELECT * FROM users WHERE name = ?", QueryOptions{Params: Positional(hostile)})
	require.NoError(t, err)
	last := db.last()
	assert.Equal(t, "SELECT * FROM users WHERE name = ?", last.sql)
	assert.Equal(t, []any{hostile}, last.args)

	_, err = m.Query(ctx, "main", "SELECT * FROM users WHERE name = :name", QueryOptions{Params: Named(map[string]any{"name": hostile})})
	require.NoError(t, err)
	last = db.last()
	assert.NotContains(t, last.sql, "DROP")
	assert.Equal(t, hostile, last.named["name"])
}

func TestQueryErrorClassification(t *testing.T) {
	tests := []struct {
		err  error
		code envelope.Code
	}{
		{errors.New(`SQL logic error: near "SELEC": syntax error (1)`), envelope.CodeInvalidSQL},
		{errors.New("no such table: users"), envelope.CodeDatabaseError},
		{errBoom, envelope.CodeDatabaseError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			m, db := newFakeManager()
			db.allErr = tt.err

			res, err := m.Query(context.Background(), "main", "SELECT * FROM users", QueryOptions{})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Nil(t, res.Data)
			assert.Equal(t, tt.code, res.Code())
			assert.Equal(t, tt.err.Error(), res.Error.Message)
			assert.Equal(t, "SELECT * FROM users", res.Error.Details["sql"])
			assert.Equal(t, "main", res.Error.Details["database"])
			require.NotNil(t, res.Meta)
		})
	}
}

func TestExecuteGate(t *testing.T) {
	m, db := newFakeManager()

	for _, sql := range []string{"SELECT 1", "  select * from t"} {
		_, err := m.Execute(context.Background(), "main", sql, Params{})
		assert.ErrorIs(t, err, envelope.ErrInvalidOperation, sql)
	}
	assert.Nil(t, db.last())

	// PRAGMA is not rejected by Execute.
	res, err := m.Execute(context.Background(), "main", "PRAGMA foreign_keys = ON", Params{})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestExecuteResult(t *testing.T) {
	m, db := newFakeManager()
	db.run = RunResult{RowsRead: 1, Changes: 3, LastRowID: 9}

	res, err := m.Execute(context.Background(), "main", "UPDATE t SET a = ?", Positional(1))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, ExecuteMeta{
		RowsRead:    1,
		RowsWritten: 3,
		LastRowID:   9,
		Changes:     3,
		DurationMs:  res.Meta.DurationMs,
	}, res.Data.Meta)
}

func TestExecuteErrorClassification(t *testing.T) {
	tests := []struct {
		msg  string
		code envelope.Code
	}{
		{"UNIQUE constraint failed: users.email", envelope.CodeConstraintViolation},
		{"constraint failed near syntax error", envelope.CodeConstraintViolation},
		{`near "INSRT": syntax error`, envelope.CodeInvalidSQL},
		{"database is locked", envelope.CodeDatabaseError},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			m, db := newFakeManager()
			db.runErr = errors.New(tt.msg)

			res, err := m.Execute(context.Background(), "main", "INSERT INTO users VALUES (1)", Params{})
			require.NoError(t, err)
			assert.Equal(t, tt.code, res.Code())
			assert.Equal(t, "INSERT INTO users VALUES (1)", res.Error.Details["sql"])
		})
	}
}

func TestBatch(t *testing.T) {
	m, db := newFakeManager()
	db.run = RunResult{Changes: 1, LastRowID: 4}

	res, err := m.Batch(context.Background(), "main", []Statement{
		{SQL: "INSERT INTO t (a) VALUES (?)", Params: Positional(1)},
		{SQL: "INSERT INTO t (a) VALUES (:a)", Params: Named(map[string]any{"a": 2})},
		{SQL: "DELETE FROM u"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Len(t, res.Data.Results, 3)
	assert.Equal(t, 3, res.Data.Meta.TotalStatements)
	assert.Equal(t, 3, res.Data.Meta.Successful)
	assert.Equal(t, 0, res.Data.Meta.Failed)
	assert.Equal(t, int64(3), res.Data.Meta.TotalRowsWritten)
	for _, r := range res.Data.Results {
		assert.True(t, r.Success)
		assert.Equal(t, int64(4), r.Meta.LastRowID)
	}

	require.Len(t, db.batches, 1)
	batch := db.batches[0]
	assert.Equal(t, []any{1}, batch[0].args)
	assert.Equal(t, map[string]any{"a": 2}, batch[1].named)
	assert.Nil(t, batch[2].args)
}

func TestBatchFailure(t *testing.T) {
	m, db := newFakeManager()
	db.batchErr = errors.New("UNIQUE constraint failed: t.a")

	res, err := m.Batch(context.Background(), "main", []Statement{
		{SQL: "INSERT INTO t (a) VALUES (1)"},
		{SQL: "INSERT INTO t (a) VALUES (1)"},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, res.Data)
	assert.Equal(t, envelope.CodeBatchTransactionFailed, res.Code())
	assert.True(t, strings.HasPrefix(res.Error.Message, "batch failed, all changes rolled back: "))
	assert.Equal(t, 2, res.Error.Details["statement_count"])
}

func TestBatchRejectsEmptySQL(t *testing.T) {
	m, db := newFakeManager()
	_, err := m.Batch(context.Background(), "main", []Statement{{SQL: "DELETE FROM t"}, {SQL: "  "}})
	assert.ErrorIs(t, err, envelope.ErrInvalidArgument)
	assert.Empty(t, db.batches)
}

func TestMetricsRecorded(t *testing.T) {
	rec := &fakeMetrics{}
	m, db := newFakeManager(WithMetrics(rec))
	ctx := context.Background()

	_, err := m.Query(ctx, "main", "SELECT 1", QueryOptions{})
	require.NoError(t, err)

	db.runErr = errors.New("CHECK constraint failed")
	_, err = m.Execute(ctx, "main", "INSERT INTO t VALUES (1)", Params{})
	require.NoError(t, err)

	// Gate rejections never reach the recorder.
	_, _ = m.Query(ctx, "main", "DELETE FROM t", QueryOptions{})

	require.Len(t, rec.obs, 2)
	assert.Equal(t, observation{"Query", "main", ""}, rec.obs[0])
	assert.Equal(t, observation{"Execute", "main", envelope.CodeConstraintViolation}, rec.obs[1])
}
