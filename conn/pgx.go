package conn

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shrek82/jpool/logger"
)

const pgxCloseTimeout = 5 * time.Second

func init() {
	Register("pgx", func(l logger.Logger) Dialer {
		return &pgxDialer{log: l}
	})
}

// pgxDialer speaks the PostgreSQL protocol natively through pgx, without
// database/sql in between.
type pgxDialer struct {
	log logger.Logger
}

func (d *pgxDialer) Dial(ctx context.Context, t Target) (Conn, error) {
	cfg, err := pgx.ParseConfig(t.keywordDSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, t, err)
	}
	c, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, t, err)
	}
	return &pgxConn{c: c, log: d.log}, nil
}

type pgxConn struct {
	c   *pgx.Conn
	log logger.Logger
}

func (p *pgxConn) Execute(ctx context.Context, statement string, params ...Param) error {
	args := bindArgs(params)
	start := time.Now()
	_, err := p.c.Exec(ctx, rebindDollar(statement), args...)
	p.log.SQL(statement, time.Since(start), err, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStatementFailed, err)
	}
	return nil
}

// Query starts the statement. pgx reports server errors raised while rows
// stream (a failing cast on a later row, say) through Rows.Err and
// Rows.Close instead, wrapped in ErrStatementFailed there as well.
func (p *pgxConn) Query(ctx context.Context, statement string, params ...Param) (Rows, error) {
	args := bindArgs(params)
	start := time.Now()
	rows, err := p.c.Query(ctx, rebindDollar(statement), args...)
	p.log.SQL(statement, time.Since(start), err, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatementFailed, err)
	}
	return pgxRows{rows}, nil
}

func (p *pgxConn) Ping(ctx context.Context) error {
	return p.c.Ping(ctx)
}

func (p *pgxConn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), pgxCloseTimeout)
	defer cancel()
	return p.c.Close(ctx)
}

// pgxRows adapts pgx.Rows to Rows.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Columns() ([]string, error) {
	fds := r.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	return cols, nil
}

func (r pgxRows) Err() error {
	if err := r.Rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStatementFailed, err)
	}
	return nil
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return r.Err()
}
