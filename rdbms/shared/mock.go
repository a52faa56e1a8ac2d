package shared

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/relloyd/co2pipe/logger"
)

// MockConnection implements Connector for tests.
// Executed SQL is forwarded to a buffered channel so tests can assert on the
// statements a component generated. Query results are queued ahead of the
// run via QueueRows / QueueValue.
type MockConnection struct {
	Log               logger.Logger
	DbType            string
	Dml               DmlGenerator
	ExecSql           chan string
	LastTx            *MockTx // the most recent transaction handed out by Begin.
	queuedRows        []*MockRows
	queuedErrors      []queuedError
	queuedQueryErrors []error
	ExecCount         int
}

// queuedError fails an Exec. An empty substr fails the next Exec regardless
// of its statement text; otherwise only a statement containing substr fails.
type queuedError struct {
	substr string
	err    error
}

// NewMockConnectionWithMockTx creates a mock warehouse connection whose
// transactions simply record committed SQL like the connection itself.
func NewMockConnectionWithMockTx(log logger.Logger, dbType string) (*MockConnection, chan string) {
	c := make(chan string, 1000)
	return &MockConnection{
		Log:     log,
		DbType:  dbType,
		Dml:     &DmlGeneratorTxtBatch{},
		ExecSql: c,
	}, c
}

// QueueRows adds a result set to be returned by the next Query call.
func (m *MockConnection) QueueRows(cols []string, rows [][]interface{}) {
	m.queuedRows = append(m.queuedRows, &MockRows{cols: cols, rows: rows, idx: -1})
}

// QueueValue adds a single-column single-row result set, useful for COUNT(*)
// and SYSTEM$ function probes.
func (m *MockConnection) QueueValue(v interface{}) {
	m.QueueRows([]string{"V"}, [][]interface{}{{v}})
}

// QueueError makes the next Exec return the supplied error.
func (m *MockConnection) QueueError(err error) {
	m.queuedErrors = append(m.queuedErrors, queuedError{err: err})
}

// QueueErrorFor makes the next Exec whose statement contains substr return
// the supplied error. Statements without substr pass through untouched.
func (m *MockConnection) QueueErrorFor(substr string, err error) {
	m.queuedErrors = append(m.queuedErrors, queuedError{substr: substr, err: err})
}

// QueueQueryError fails the first Query that arrives after the queued result
// sets are exhausted.
func (m *MockConnection) QueueQueryError(err error) {
	m.queuedQueryErrors = append(m.queuedQueryErrors, err)
}

func (m *MockConnection) Begin() (Transacter, error) {
	m.LastTx = &MockTx{conn: m}
	return m.LastTx, nil
}

func (m *MockConnection) Exec(query string, args ...interface{}) (Result, error) {
	return m.ExecContext(context.Background(), query, args...)
}

func (m *MockConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	m.ExecCount++
	m.ExecSql <- query
	if len(m.queuedErrors) > 0 { // if the test wants a statement to fail...
		qe := m.queuedErrors[0]
		if qe.substr == "" || strings.Contains(query, qe.substr) {
			m.queuedErrors = m.queuedErrors[1:]
			return nil, qe.err
		}
	}
	return &MockResult{}, nil
}

func (m *MockConnection) Query(query string, args ...interface{}) (Rows, error) {
	return m.QueryContext(context.Background(), query, args...)
}

func (m *MockConnection) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	m.ExecSql <- query
	if len(m.queuedRows) == 0 { // if the test didn't queue a result set...
		if len(m.queuedQueryErrors) > 0 {
			err := m.queuedQueryErrors[0]
			m.queuedQueryErrors = m.queuedQueryErrors[1:]
			return nil, err
		}
		return &MockRows{idx: -1}, nil
	}
	r := m.queuedRows[0]
	m.queuedRows = m.queuedRows[1:]
	return r, nil
}

func (m *MockConnection) Close() {}

func (m *MockConnection) GetType() string {
	return m.DbType
}

func (m *MockConnection) GetDmlGenerator() DmlGenerator {
	return m.Dml
}

// MockTx records SQL like the connection and additionally keeps its own list
// of statements in Stmts, so tests can assert which work ran inside one
// transaction. Commit/Rollback outcomes are visible via the
// Committed/RolledBack flags.
type MockTx struct {
	conn       *MockConnection
	Stmts      []string
	Committed  bool
	RolledBack bool
}

func (t *MockTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *MockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	t.Stmts = append(t.Stmts, query)
	return t.conn.ExecContext(ctx, query, args...)
}

func (t *MockTx) Query(query string, args ...interface{}) (Rows, error) {
	return t.QueryContext(context.Background(), query, args...)
}

func (t *MockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	t.Stmts = append(t.Stmts, query)
	return t.conn.QueryContext(ctx, query, args...)
}

func (t *MockTx) Commit() error {
	t.Committed = true
	return nil
}

func (t *MockTx) Rollback() error {
	t.RolledBack = true
	return nil
}

type MockResult struct {
	NumRowsAffected int64
}

func (r *MockResult) LastInsertId() (int64, error) {
	return 0, nil
}

func (r *MockResult) RowsAffected() (int64, error) {
	return r.NumRowsAffected, nil
}

// MockRows implements Rows over an in-memory slice of rows.
type MockRows struct {
	cols []string
	rows [][]interface{}
	idx  int
}

func (r *MockRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *MockRows) Err() error {
	return nil
}

func (r *MockRows) Close() error {
	return nil
}

// Scan copies the current row into the supplied destinations, handling the
// destination types the pipeline actually scans into.
func (r *MockRows) Scan(dest ...interface{}) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return fmt.Errorf("mock rows: Scan called without Next")
	}
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("mock rows: expected %v destinations but got %v", len(row), len(dest))
	}
	for i, src := range row {
		switch d := dest[i].(type) {
		case *int:
			d2, ok := src.(int)
			if !ok {
				return fmt.Errorf("mock rows: column %v is not an int", i)
			}
			*d = d2
		case *int64:
			switch s := src.(type) {
			case int64:
				*d = s
			case int:
				*d = int64(s)
			default:
				return fmt.Errorf("mock rows: column %v is not an int64", i)
			}
		case *float64:
			d2, ok := src.(float64)
			if !ok {
				return fmt.Errorf("mock rows: column %v is not a float64", i)
			}
			*d = d2
		case *string:
			d2, ok := src.(string)
			if !ok {
				return fmt.Errorf("mock rows: column %v is not a string", i)
			}
			*d = d2
		case *bool:
			d2, ok := src.(bool)
			if !ok {
				return fmt.Errorf("mock rows: column %v is not a bool", i)
			}
			*d = d2
		case *time.Time:
			d2, ok := src.(time.Time)
			if !ok {
				return fmt.Errorf("mock rows: column %v is not a time.Time", i)
			}
			*d = d2
		case *sql.NullFloat64:
			if src == nil {
				*d = sql.NullFloat64{}
			} else {
				f, ok := src.(float64)
				if !ok {
					return fmt.Errorf("mock rows: column %v is not a nullable float64", i)
				}
				*d = sql.NullFloat64{Float64: f, Valid: true}
			}
		case *sql.NullTime:
			if src == nil {
				*d = sql.NullTime{}
			} else {
				t, ok := src.(time.Time)
				if !ok {
					return fmt.Errorf("mock rows: column %v is not a nullable time.Time", i)
				}
				*d = sql.NullTime{Time: t, Valid: true}
			}
		case *sql.NullString:
			if src == nil {
				*d = sql.NullString{}
			} else {
				s, ok := src.(string)
				if !ok {
					return fmt.Errorf("mock rows: column %v is not a nullable string", i)
				}
				*d = sql.NullString{String: s, Valid: true}
			}
		default:
			return fmt.Errorf("mock rows: unsupported destination type %T", dest[i])
		}
	}
	return nil
}
