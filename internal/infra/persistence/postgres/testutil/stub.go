// Package testutil provides a stub database/sql driver that emulates the
// Postgres state table for store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

var stubSeq atomic.Uint64

// StubConn records statements and keeps state rows keyed by bucket.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Rows       map[string]string
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
	FailPing   bool
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[string]string)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Statements returns a copy of every executed statement.
func (c *StubConn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Execs...)
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO STATE"):
		if len(args) != 2 {
			return nil, fmt.Errorf("insert expects 2 args, got %d", len(args))
		}
		c.Rows[fmt.Sprint(args[0].Value)] = fmt.Sprint(args[1].Value)
	case strings.HasPrefix(upper, "DELETE FROM STATE"):
		if len(args) != 1 {
			return nil, fmt.Errorf("delete expects 1 arg, got %d", len(args))
		}
		delete(c.Rows, fmt.Sprint(args[0].Value))
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for the single-bucket select.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT PAYLOAD FROM STATE") || len(args) != 1 {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	rows := &stubRows{cols: []string{"payload"}}
	if payload, ok := c.Rows[fmt.Sprint(args[0].Value)]; ok {
		rows.rows = [][]driver.Value{{payload}}
	}
	return rows, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
