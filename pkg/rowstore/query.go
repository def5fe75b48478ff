package rowstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/cfmgr/internal/logger"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

// MaxQueryLimit caps the LIMIT appended by Query.
const MaxQueryLimit = 10000

// QueryOptions are the optional arguments of Query.
type QueryOptions struct {
	Params Params
	Limit  *int
	Offset *int
}

// QueryMeta is the per-query summary returned inside QueryData.
type QueryMeta struct {
	RowsRead   int     `json:"rows_read"`
	DurationMs float64 `json:"duration_ms"`
	HasMore    bool    `json:"has_more"`
}

// QueryData is the payload of a successful Query.
type QueryData struct {
	Results []Row     `json:"results"`
	Meta    QueryMeta `json:"meta"`
}

// ExecuteMeta is the write summary returned by Execute.
type ExecuteMeta struct {
	RowsRead    int64   `json:"rows_read"`
	RowsWritten int64   `json:"rows_written"`
	LastRowID   int64   `json:"last_row_id"`
	Changes     int64   `json:"changes"`
	DurationMs  float64 `json:"duration_ms"`
}

// ExecuteData is the payload of a successful Execute.
type ExecuteData struct {
	Meta ExecuteMeta `json:"meta"`
}

// StatementMeta summarizes one statement inside a batch.
type StatementMeta struct {
	RowsWritten int64 `json:"rows_written"`
	LastRowID   int64 `json:"last_row_id"`
	Changes     int64 `json:"changes"`
}

// StatementResult is the outcome of one statement inside a batch.
type StatementResult struct {
	Success bool          `json:"success"`
	Meta    StatementMeta `json:"meta"`
}

// BatchMeta aggregates a batch.
type BatchMeta struct {
	TotalStatements  int     `json:"total_statements"`
	Successful       int     `json:"successful"`
	Failed           int     `json:"failed"`
	TotalRowsWritten int64   `json:"total_rows_written"`
	DurationMs       float64 `json:"duration_ms"`
}

// BatchData is the payload of a successful Batch.
type BatchData struct {
	Results []StatementResult `json:"results"`
	Meta    BatchMeta         `json:"meta"`
}

// IsReadStatement reports whether sql, after trimming, starts with SELECT
// or PRAGMA (case-insensitive). It is a gate, not a parser.
func IsReadStatement(sql string) bool {
	u := strings.ToUpper(strings.TrimSpace(sql))
	return strings.HasPrefix(u, "SELECT") || strings.HasPrefix(u, "PRAGMA")
}

func isSelect(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT")
}

// Error classification matches on backend message text. Driver messages are
// not a stable contract, so the mapping is approximate.
func classifyQueryError(err error) envelope.Code {
	if strings.Contains(strings.ToLower(err.Error()), "syntax error") {
		return envelope.CodeInvalidSQL
	}
	return envelope.CodeDatabaseError
}

func classifyExecuteError(err error) envelope.Code {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "constraint"):
		return envelope.CodeConstraintViolation
	case strings.Contains(msg, "syntax error"):
		return envelope.CodeInvalidSQL
	default:
		return envelope.CodeDatabaseError
	}
}

// withPaging appends LIMIT and OFFSET clauses. Both values are integers
// validated here, so formatting them into the SQL text is safe.
func withPaging(sql string, limit, offset *int) (string, error) {
	if limit != nil {
		if *limit < 0 {
			return "", fmt.Errorf("%w: limit must be non-negative, got %d", envelope.ErrInvalidArgument, *limit)
		}
		sql += " LIMIT " + strconv.Itoa(min(*limit, MaxQueryLimit))
	}
	if offset != nil {
		if *offset < 0 {
			return "", fmt.Errorf("%w: offset must be non-negative, got %d", envelope.ErrInvalidArgument, *offset)
		}
		sql += " OFFSET " + strconv.Itoa(*offset)
	}
	return sql, nil
}

// Query runs a read-only statement (SELECT or PRAGMA) and returns its rows.
func (m *Manager) Query(ctx context.Context, database, sql string, opts QueryOptions) (*envelope.Result[QueryData], error) {
	db, err := m.lookup(database)
	if err != nil {
		return nil, err
	}
	if !IsReadStatement(sql) {
		return nil, fmt.Errorf("%w: only SELECT and PRAGMA queries are allowed in query", envelope.ErrInvalidOperation)
	}
	sql, err = withPaging(sql, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}

	ctx, done := m.begin(ctx, "Query", database)
	start := time.Now()

	res, qerr := opts.Params.bind(db.Prepare(sql)).All(ctx)
	meta := envelope.Timed(start)
	if qerr != nil {
		code := classifyQueryError(qerr)
		logger.WarnCtx(ctx, "query failed", logger.KeyDatabase, database, logger.KeyCode, string(code), logger.Err(qerr))
		done(code)
		return envelope.Fail[QueryData](code, qerr.Error(),
			map[string]any{"sql": sql, "database": database}, meta), nil
	}

	rows := []Row{}
	if res != nil && res.Rows != nil {
		rows = res.Rows
	}
	done("")
	return envelope.OK(QueryData{
		Results: rows,
		Meta:    QueryMeta{RowsRead: len(rows), DurationMs: meta.DurationMs},
	}, meta), nil
}

// Execute runs a write statement. SELECT statements must use Query.
func (m *Manager) Execute(ctx context.Context, database, sql string, params Params) (*envelope.Result[ExecuteData], error) {
	db, err := m.lookup(database)
	if err != nil {
		return nil, err
	}
	if isSelect(sql) {
		return nil, fmt.Errorf("%w: use query for SELECT statements", envelope.ErrInvalidOperation)
	}

	ctx, done := m.begin(ctx, "Execute", database)
	start := time.Now()

	res, xerr := params.bind(db.Prepare(sql)).Run(ctx)
	meta := envelope.Timed(start)
	if xerr != nil {
		code := classifyExecuteError(xerr)
		logger.WarnCtx(ctx, "execute failed", logger.KeyDatabase, database, logger.KeyCode, string(code), logger.Err(xerr))
		done(code)
		return envelope.Fail[ExecuteData](code, xerr.Error(),
			map[string]any{"sql": sql, "database": database}, meta), nil
	}
	if res == nil {
		res = &RunResult{}
	}

	done("")
	return envelope.OK(ExecuteData{Meta: ExecuteMeta{
		RowsRead:    res.RowsRead,
		RowsWritten: res.Changes,
		LastRowID:   res.LastRowID,
		Changes:     res.Changes,
		DurationMs:  meta.DurationMs,
	}}, meta), nil
}

// Batch prepares and binds every statement, then submits them together as
// one transaction. On failure nothing is committed and no per-statement
// results are returned.
func (m *Manager) Batch(ctx context.Context, database string, statements []Statement) (*envelope.Result[BatchData], error) {
	db, err := m.lookup(database)
	if err != nil {
		return nil, err
	}
	for i, s := range statements {
		if strings.TrimSpace(s.SQL) == "" {
			return nil, fmt.Errorf("%w: statement %d has empty sql", envelope.ErrInvalidArgument, i)
		}
	}

	ctx, done := m.begin(ctx, "Batch", database)
	start := time.Now()

	prepared := make([]PreparedStatement, len(statements))
	for i, s := range statements {
		prepared[i] = s.Params.bind(db.Prepare(s.SQL))
	}

	results, berr := db.Batch(ctx, prepared)
	meta := envelope.Timed(start)
	if berr != nil {
		logger.WarnCtx(ctx, "batch rolled back",
			logger.KeyDatabase, database, logger.KeyStatements, len(statements), logger.Err(berr))
		done(envelope.CodeBatchTransactionFailed)
		return envelope.Fail[BatchData](envelope.CodeBatchTransactionFailed,
			fmt.Sprintf("batch failed, all changes rolled back: %v", berr),
			map[string]any{"database": database, "statement_count": len(statements)}, meta), nil
	}

	data := BatchData{Results: make([]StatementResult, 0, len(results))}
	for _, r := range results {
		data.Results = append(data.Results, StatementResult{
			Success: true,
			Meta:    StatementMeta{RowsWritten: r.Changes, LastRowID: r.LastRowID, Changes: r.Changes},
		})
		data.Meta.TotalRowsWritten += r.Changes
	}
	data.Meta.TotalStatements = len(statements)
	data.Meta.Successful = len(data.Results)
	data.Meta.Failed = len(statements) - data.Meta.Successful
	data.Meta.DurationMs = meta.DurationMs

	done("")
	return envelope.OK(data, meta), nil
}
