package rowstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/cfmgr/pkg/envelope"
)

// fakeDB records every statement it sees and returns canned results.
type fakeDB struct {
	mu       sync.Mutex
	executed []*fakeStmt
	batches  [][]*fakeStmt

	rows     []Row
	run      RunResult
	allErr   error
	runErr   error
	batchErr error
	pingErr  error
	closed   bool
}

type fakeStmt struct {
	db    *fakeDB
	sql   string
	args  []any
	named map[string]any
}

func (f *fakeDB) Prepare(query string) PreparedStatement {
	return &fakeStmt{db: f, sql: query}
}

func (f *fakeDB) Batch(_ context.Context, stmts []PreparedStatement) ([]RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make([]*fakeStmt, 0, len(stmts))
	for _, s := range stmts {
		batch = append(batch, s.(*fakeStmt))
	}
	f.batches = append(f.batches, batch)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]RunResult, len(stmts))
	for i := range out {
		out[i] = f.run
	}
	return out, nil
}

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) Close() error {
	f.closed = true
	return nil
}

func (f *fakeDB) last() *fakeStmt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.executed) == 0 {
		return nil
	}
	return f.executed[len(f.executed)-1]
}

func (s *fakeStmt) Bind(args ...any) PreparedStatement {
	return &fakeStmt{db: s.db, sql: s.sql, args: args}
}

func (s *fakeStmt) BindNamed(args map[string]any) PreparedStatement {
	return &fakeStmt{db: s.db, sql: s.sql, named: args}
}

func (s *fakeStmt) All(context.Context) (*QueryResult, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.executed = append(s.db.executed, s)
	if s.db.allErr != nil {
		return nil, s.db.allErr
	}
	return &QueryResult{Rows: s.db.rows}, nil
}

func (s *fakeStmt) Run(context.Context) (*RunResult, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.executed = append(s.db.executed, s)
	if s.db.runErr != nil {
		return nil, s.db.runErr
	}
	r := s.db.run
	return &r, nil
}

type observation struct {
	operation string
	database  string
	code      envelope.Code
}

type fakeMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (m *fakeMetrics) ObserveOperation(operation, database string, code envelope.Code, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{operation, database, code})
}

var errBoom = errors.New("disk I/O error")
