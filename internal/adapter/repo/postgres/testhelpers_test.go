package postgres_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// rowStub implements pgx.Row.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over a fixed list of scan functions.
type rowsStub struct {
	rows   []func(dest ...any) error
	idx    int
	err    error
	closed bool
}

func (r *rowsStub) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *rowsStub) Scan(dest ...any) error { return r.rows[r.idx-1](dest...) }
func (r *rowsStub) Close()                 { r.closed = true }
func (r *rowsStub) Err() error             { return r.err }

func (r *rowsStub) CommandTag() pgconn.CommandTag               { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Values() ([]any, error)                      { return nil, nil }
func (r *rowsStub) RawValues() [][]byte                         { return nil }
func (r *rowsStub) Conn() *pgx.Conn                             { return nil }

// poolStub implements postgres.PgxPool. Exec arguments are recorded so tests
// can assert on defaults the repos fill in.
type poolStub struct {
	execTag  pgconn.CommandTag
	execErr  error
	execArgs [][]any

	row      pgx.Row
	rows     pgx.Rows
	queryErr error

	tx       pgx.Tx
	beginErr error
}

func (p *poolStub) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	p.execArgs = append(p.execArgs, args)
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if p.row == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	return p.rows, nil
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return p.tx, nil
}

// txStub implements pgx.Tx for the token repo's delete-and-insert flow.
type txStub struct {
	execErr   error
	commitErr error

	execs     [][]any
	commits   int
	rollbacks int
}

func (t *txStub) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	t.execs = append(t.execs, args)
	return pgconn.CommandTag{}, nil
}

func (t *txStub) Commit(context.Context) error {
	t.commits++
	return t.commitErr
}

func (t *txStub) Rollback(context.Context) error {
	t.rollbacks++
	return nil
}

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *txStub) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }

func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *txStub) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (t *txStub) Conn() *pgx.Conn { return nil }

func (t *txStub) QueryRow(context.Context, string, ...any) pgx.Row {
	return rowStub{scan: func(_ ...any) error { return pgx.ErrNoRows }}
}
