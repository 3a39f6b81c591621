package conn

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/jpool/logger"
)

func TestRebindDollar(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"INSERT INTO people(peop_name, peop_sex) VALUES(?, ?)", "INSERT INTO people(peop_name, peop_sex) VALUES($1, $2)"},
		{"SELECT '?' , ? FROM t WHERE a = ?", "SELECT '?' , $1 FROM t WHERE a = $2"},
		{`SELECT "odd?col" FROM t WHERE a = ?`, `SELECT "odd?col" FROM t WHERE a = $1`},
		{"SELECT 'it''s?' WHERE x = ?", "SELECT 'it''s?' WHERE x = $1"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, rebindDollar(c.in), c.in)
	}
}

func TestParams(t *testing.T) {
	params := []Param{String("alice"), Uint32(42), Enum("female")}
	assert.Equal(t, []any{"alice", uint32(42), "female"}, bindArgs(params))
	assert.Equal(t, KindEnum, params[2].Kind())
	assert.Equal(t, "uint32", params[1].Kind().String())
	assert.Equal(t, `"alice"`, params[0].String())
	assert.Equal(t, "42", params[1].String())
}

func TestTarget(t *testing.T) {
	tg := Target{Host: "127.0.0.1", Port: 5432, User: "root", Password: "it's secret", DBName: "test_db"}
	assert.Equal(t, "root@127.0.0.1:5432/test_db", tg.String())
	assert.NotContains(t, tg.String(), "secret")
	assert.Equal(t, `host='127.0.0.1' port='5432' user='root' password='it\'s secret' dbname='test_db'`, tg.keywordDSN())
}

func TestRegistry(t *testing.T) {
	assert.Subset(t, Drivers(), []string{"mysql", "pgx", "postgres", "sqlite3"})

	_, err := Open("oracle", nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)

	assert.Panics(t, func() { Register("mysql", func(logger.Logger) Dialer { return nil }) })
	assert.Panics(t, func() { Register("nil-factory", nil) })
}

func openSQLiteConn(t *testing.T, l logger.Logger) Conn {
	t.Helper()
	d, err := Open("sqlite3", l)
	require.NoError(t, err)
	c, err := d.Dial(context.Background(), Target{DBName: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLiteConn(t *testing.T) {
	ctx := context.Background()
	c := openSQLiteConn(t, nil)

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Execute(ctx, "CREATE TABLE people (peop_id INTEGER PRIMARY KEY, peop_name TEXT, peop_sex TEXT, age INTEGER)"))
	require.NoError(t, c.Execute(ctx, "INSERT INTO people(peop_name, peop_sex, age) VALUES(?, ?, ?)",
		String("alice"), Enum("female"), Uint32(30)))
	require.NoError(t, c.Execute(ctx, "INSERT INTO people(peop_name, peop_sex, age) VALUES(?, ?, ?)",
		String("Robert'); DROP TABLE people;--"), Enum("male"), Uint32(31)))

	rows, err := c.Query(ctx, "SELECT peop_name, age FROM people WHERE peop_sex = ? ORDER BY peop_id", Enum("female"))
	require.NoError(t, err)
	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"peop_name", "age"}, cols)

	var names []string
	for rows.Next() {
		var name string
		var age uint32
		require.NoError(t, rows.Scan(&name, &age))
		names = append(names, name)
		assert.Equal(t, uint32(30), age)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"alice"}, names)

	rows, err = c.Query(ctx, "SELECT count(*) FROM people")
	require.NoError(t, err)
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	rows.Close()
	assert.Equal(t, 2, n, "injection attempt must be stored as data")
}

func TestStatementFailureKeepsConnUsable(t *testing.T) {
	ctx := context.Background()
	buf := &bytes.Buffer{}
	l := logger.NewStdLogger()
	l.SetOutput(buf)
	l.SetLevel(logger.LogLevelError)
	c := openSQLiteConn(t, l)

	err := c.Execute(ctx, "INSERT INTO missing VALUES(?)", String("x"))
	assert.ErrorIs(t, err, ErrStatementFailed)

	rows, err := c.Query(ctx, "SELECT * FROM missing")
	assert.ErrorIs(t, err, ErrStatementFailed)
	assert.Nil(t, rows)

	assert.Contains(t, buf.String(), "no such table: missing")
	assert.Contains(t, buf.String(), "sqlite3")

	require.NoError(t, c.Execute(ctx, "CREATE TABLE t (a INTEGER)"))
}

func TestSQLiteDialFailure(t *testing.T) {
	d, err := Open("sqlite3", nil)
	require.NoError(t, err)
	_, err = d.Dial(context.Background(), Target{DBName: filepath.Join(t.TempDir(), "no", "such", "dir", "x.db")})
	assert.ErrorIs(t, err, ErrConnectFailed)
}

func TestMySQLDialRefused(t *testing.T) {
	d, err := Open("mysql", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// port 1 on loopback is never a MySQL server
	_, err = d.Dial(ctx, Target{Host: "127.0.0.1", Port: 1, User: "root", DBName: "test_db"})
	assert.ErrorIs(t, err, ErrConnectFailed)
}

// backendTarget reads a live backend from the environment, as the
// postgres tests of the ORM did, and skips when it is not configured.
func backendTarget(t *testing.T, prefix string) Target {
	t.Helper()
	host := os.Getenv(prefix + "_HOST")
	if host == "" {
		t.Skipf("%s_HOST not set, skipping", prefix)
	}
	port, err := strconv.ParseUint(os.Getenv(prefix+"_PORT"), 10, 16)
	require.NoError(t, err)
	return Target{
		Host:     host,
		Port:     uint16(port),
		User:     os.Getenv(prefix + "_USER"),
		Password: os.Getenv(prefix + "_PASSWORD"),
		DBName:   os.Getenv(prefix + "_DB"),
	}
}

func TestLiveBackends(t *testing.T) {
	for _, tc := range []struct{ driver, env string }{
		{"mysql", "MYSQL_TEST"},
		{"postgres", "POSTGRES_TEST"},
		{"pgx", "POSTGRES_TEST"},
	} {
		t.Run(tc.driver, func(t *testing.T) {
			target := backendTarget(t, tc.env)
			d, err := Open(tc.driver, nil)
			require.NoError(t, err)

			ctx := context.Background()
			c, err := d.Dial(ctx, target)
			require.NoError(t, err)
			defer c.Close()

			stmt := "SELECT ?"
			if tc.driver != "mysql" {
				stmt = "SELECT ?::int"
			}
			rows, err := c.Query(ctx, stmt, Uint32(7))
			require.NoError(t, err)
			require.True(t, rows.Next())
			var v int
			require.NoError(t, rows.Scan(&v))
			require.NoError(t, rows.Close())
			assert.Equal(t, 7, v)
		})
	}
}
