package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"xorkevin.dev/ibu/config"
	"xorkevin.dev/ibu/cursor"
	"xorkevin.dev/ibu/writefs"
)

type (
	testEnv struct {
		t        *testing.T
		manifest string
		outfs    *writefs.FSMock
	}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yml")
	require.NoError(t, os.WriteFile(manifest, []byte(fmt.Sprintf(`
databases:
  src:
    driver: sqlite3
    dsn: %s
`, filepath.Join(dir, "src.db"))), 0o644))
	env := &testEnv{
		t:        t,
		manifest: manifest,
		outfs:    writefs.NewFSMock(),
	}
	_, err := env.run("", "exec", "CREATE TABLE events (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE, starts TIME)")
	require.NoError(t, err)
	return env
}

func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	stdout := &bytes.Buffer{}
	c := &Cmd{
		stdin:  strings.NewReader(stdin),
		stdout: stdout,
		stderr: &bytes.Buffer{},
		outfs:  e.outfs,
	}
	err := c.run(context.Background(), append([]string{"--manifest", e.manifest}, args...))
	return stdout.String(), err
}

func TestExecAndQuery(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	env := newTestEnv(t)

	out, err := env.run("", "exec", "INSERT INTO events (name, starts) VALUES (?, ?)", "launch", "13:05:07.125")
	assert.NoError(err)
	assert.Equal("1 rows affected\n", out)

	out, err = env.run("party\t\\N\nreview\t09:30:00\n\n", "exec", "--many", "INSERT INTO events (name, starts) VALUES (?, ?)")
	assert.NoError(err)
	assert.Equal("2 rows affected\n", out)

	out, err = env.run("", "query", "SELECT name, starts FROM events ORDER BY id")
	assert.NoError(err)
	assert.Equal("name\tstarts\nlaunch\t13:05:07.125000\nparty\tNULL\nreview\t09:30:00\n", out)

	out, err = env.run("", "query", "--null=-", "SELECT name, starts FROM events WHERE name = ?", "party")
	assert.NoError(err)
	assert.Equal("name\tstarts\nparty\t-\n", out)

	out, err = env.run("", "query", "SELECT COUNT(*) AS n FROM events")
	assert.NoError(err)
	assert.Equal("n\n3\n", out)

	out, err = env.run("", "query", "--places", "2", "SELECT 1.5 AS x")
	assert.NoError(err)
	assert.Equal("x\n1.50\n", out)

	out, err = env.run("", "query", "-o", "yaml", "SELECT name, starts FROM events WHERE name = ?", "launch")
	assert.NoError(err)
	assert.Equal("- name: launch\n  starts: 13:05:07.125000\n", out)
}

func TestQueryDates(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	env := newTestEnv(t)
	_, err := env.run("", "exec", "CREATE TABLE stamps (id INTEGER PRIMARY KEY, d DATE, ts TIMESTAMP)")
	assert.NoError(err)
	_, err = env.run("2005-07-29\t2005-07-29 15:48:00.590358-05\n2005-07-30\t2005-07-30 08:00:00\n", "exec", "--many", "INSERT INTO stamps (d, ts) VALUES (?, ?)")
	assert.NoError(err)

	out, err := env.run("", "query", "SELECT d, ts FROM stamps ORDER BY id")
	assert.NoError(err)
	assert.Equal("d\tts\n2005-07-29\t2005-07-29 15:48:00.590358\n2005-07-30\t2005-07-30 08:00:00\n", out)
}

func TestExecErrors(t *testing.T) {
	t.Parallel()

	t.Run("classifies integrity errors", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		env := newTestEnv(t)
		_, err := env.run("", "exec", "INSERT INTO events (name) VALUES (?)", "a")
		assert.NoError(err)
		_, err = env.run("", "exec", "INSERT INTO events (name) VALUES (?)", "a")
		assert.ErrorIs(err, cursor.ErrIntegrity)
		assert.ErrorIs(err, cursor.ErrDatabase)
	})

	t.Run("atomic execute many rolls back", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		env := newTestEnv(t)
		_, err := env.run("a\nb\na\n", "exec", "--many", "--atomic", "INSERT INTO events (name) VALUES (?)")
		assert.ErrorIs(err, cursor.ErrIntegrity)

		out, err := env.run("", "query", "SELECT COUNT(*) AS n FROM events")
		assert.NoError(err)
		assert.Equal("n\n0\n", out)
	})

	t.Run("rejects params with many", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		env := newTestEnv(t)
		_, err := env.run("", "exec", "--many", "INSERT INTO events (name) VALUES (?)", "a")
		assert.Error(err)
	})

	t.Run("rejects an unknown database alias", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		env := newTestEnv(t)
		_, err := env.run("", "-d", "missing", "query", "SELECT 1")
		assert.ErrorIs(err, config.ErrUnknownAlias)
	})

	t.Run("rejects a missing manifest", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		c := &Cmd{
			stdin:  strings.NewReader(""),
			stdout: &bytes.Buffer{},
			stderr: &bytes.Buffer{},
			outfs:  writefs.NewFSMock(),
		}
		err := c.run(context.Background(), []string{"--manifest", filepath.Join(t.TempDir(), "manifest.yml"), "query", "SELECT 1"})
		assert.ErrorIs(err, config.ErrInvalidConfig)
	})

	t.Run("rejects an unknown output format", func(t *testing.T) {
		t.Parallel()

		assert := require.New(t)

		env := newTestEnv(t)
		_, err := env.run("", "query", "-o", "csv", "SELECT 1")
		assert.Error(err)
	})
}

func TestQueryLog(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	env := newTestEnv(t)
	_, err := env.run("", "--querylog", "queries.log", "exec", "INSERT INTO events (name) VALUES (?)", "it's")
	assert.NoError(err)
	v, ok := env.outfs.File("queries.log")
	assert.True(ok)
	assert.Regexp(`^\(\d+\.\d{3}\) INSERT INTO events \(name\) VALUES \('it''s'\)\n$`, v)

	_, err = env.run("x\ny\n", "--querylog", "many.log", "exec", "--many", "INSERT INTO events (name) VALUES (?)")
	assert.NoError(err)
	v, ok = env.outfs.File("many.log")
	assert.True(ok)
	assert.Regexp(`^\(\d+\.\d{3}\) \? times: INSERT INTO events \(name\) VALUES \(\?\)\n$`, v)
}

func TestName(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	stdout := &bytes.Buffer{}
	c := &Cmd{
		stdin:  strings.NewReader(""),
		stdout: stdout,
		stderr: &bytes.Buffer{},
		outfs:  writefs.NewFSMock(),
	}
	assert.NoError(c.run(context.Background(), []string{"name", "--length", "10", "a_very_long_identifier", "short"}))
	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	assert.Len(lines, 2)
	assert.Len(lines[0], 10)
	assert.True(strings.HasPrefix(lines[0], "a_very"))
	assert.Equal("short", lines[1])
}

func TestReadParams(t *testing.T) {
	t.Parallel()

	assert := require.New(t)

	params, scanErr := readParams(strings.NewReader("a\tb\r\n\n\\N\tc\n"))
	var rows [][]any
	for i := range params {
		rows = append(rows, i)
	}
	assert.NoError(scanErr())
	assert.Equal([][]any{{"a", "b"}, {nil, "c"}}, rows)
	n, ok := cursor.ParamsLen(params)
	assert.False(ok)
	assert.Equal(0, n)
}
