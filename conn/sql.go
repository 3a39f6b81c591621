package conn

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shrek82/jpool/logger"
)

func init() {
	Register("mysql", func(l logger.Logger) Dialer {
		return &sqlDialer{open: openMySQL, log: l}
	})
	Register("postgres", func(l logger.Logger) Dialer {
		return &sqlDialer{open: openPostgres, rebind: true, log: l}
	})
	Register("sqlite3", func(l logger.Logger) Dialer {
		return &sqlDialer{open: openSQLite, log: l}
	})
}

func openMySQL(t Target) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = t.Addr()
	cfg.DBName = t.DBName
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func openPostgres(t Target) (*sql.DB, error) {
	connector, err := pq.NewConnector(t.keywordDSN())
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// openSQLite treats DBName as the database file (or ":memory:").
func openSQLite(t Target) (*sql.DB, error) {
	return sql.Open("sqlite3", t.DBName)
}

// sqlDialer establishes sessions through database/sql. Each session owns a
// private *sql.DB limited to one connection, pinned with (*sql.DB).Conn so
// that every statement runs on the same backend session.
type sqlDialer struct {
	open   func(Target) (*sql.DB, error)
	rebind bool
	log    logger.Logger
}

func (d *sqlDialer) Dial(ctx context.Context, t Target) (Conn, error) {
	db, err := d.open(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, t, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	c, err := db.Conn(ctx)
	if err == nil {
		err = c.PingContext(ctx)
		if err != nil {
			c.Close()
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, t, err)
	}
	return &sqlConn{db: db, c: c, rebind: d.rebind, log: d.log}, nil
}

type sqlConn struct {
	db     *sql.DB
	c      *sql.Conn
	rebind bool
	log    logger.Logger
}

func (s *sqlConn) statement(statement string) string {
	if s.rebind {
		return rebindDollar(statement)
	}
	return statement
}

func (s *sqlConn) Execute(ctx context.Context, statement string, params ...Param) error {
	args := bindArgs(params)
	start := time.Now()
	_, err := s.c.ExecContext(ctx, s.statement(statement), args...)
	s.log.SQL(statement, time.Since(start), err, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStatementFailed, err)
	}
	return nil
}

func (s *sqlConn) Query(ctx context.Context, statement string, params ...Param) (Rows, error) {
	args := bindArgs(params)
	start := time.Now()
	rows, err := s.c.QueryContext(ctx, s.statement(statement), args...)
	s.log.SQL(statement, time.Since(start), err, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatementFailed, err)
	}
	return rows, nil
}

func (s *sqlConn) Ping(ctx context.Context) error {
	return s.c.PingContext(ctx)
}

func (s *sqlConn) Close() error {
	err := s.c.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
