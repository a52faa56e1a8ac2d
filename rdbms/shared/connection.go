package shared

import (
	"context"
	"database/sql"
	"errors"
)

// WhConnection is a wrapper around Go native sql.DB.
// It also adds the DmlGenerator interface for use in components that output records to the warehouse.
type WhConnection struct {
	DbSql  *sql.DB
	Dml    DmlGenerator
	DbType string
}

// Connector:

func (c *WhConnection) Begin() (Transacter, error) {
	if c.DbSql == nil {
		return nil, errors.New("WhConnection was not configured correctly: DbSql is missing")
	}
	tx, err := c.DbSql.Begin()
	return &WhTx{tx: tx}, err
}

func (c *WhConnection) Exec(query string, args ...interface{}) (Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

func (c *WhConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return c.DbSql.ExecContext(ctx, query, args...)
}

func (c *WhConnection) Query(query string, args ...interface{}) (Rows, error) {
	return c.QueryContext(context.Background(), query, args...)
}

func (c *WhConnection) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return c.DbSql.QueryContext(ctx, query, args...)
}

func (c *WhConnection) Close() {
	_ = c.DbSql.Close()
}

func (c *WhConnection) GetDmlGenerator() DmlGenerator {
	return c.Dml
}

func (c *WhConnection) GetType() string {
	return c.DbType
}

// Transacter:

type WhTx struct {
	tx *sql.Tx
}

func (t *WhTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *WhTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *WhTx) Query(query string, args ...interface{}) (Rows, error) {
	return t.QueryContext(context.Background(), query, args...)
}

func (t *WhTx) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *WhTx) Commit() error {
	return t.tx.Commit()
}

func (t *WhTx) Rollback() error {
	return t.tx.Rollback()
}
