//go:build !windows

package lib_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/kage/pkg/lib"
)

// newTestClient creates a client rooted on a temp dir.
func newTestClient(t *testing.T, mod func(*lib.Config)) *lib.Client {
	t.Helper()

	cfg := lib.Config{RootDir: filepath.Join(t.TempDir(), "jail")}
	if mod != nil {
		mod(&cfg)
	}

	client, err := lib.New(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    func(t *testing.T) lib.Config
		expErr error
	}{
		"A missing root should fail.": {
			cfg:    func(t *testing.T) lib.Config { return lib.Config{} },
			expErr: lib.ErrNotValid,
		},
		"A memory history should work.": {
			cfg: func(t *testing.T) lib.Config { return lib.Config{RootDir: t.TempDir()} },
		},
		"A SQLite history should work.": {
			cfg: func(t *testing.T) lib.Config {
				return lib.Config{RootDir: t.TempDir(), DBPath: filepath.Join(t.TempDir(), "kage.db")}
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, err := lib.New(context.Background(), test.cfg(t))
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func TestSubmitAndDecide(t *testing.T) {
	tests := map[string]struct {
		command   string
		approve   bool
		expStatus lib.ResultStatus
		expCode   *int
		expStdout string
		expError  string
	}{
		"An approved command should run in the root.": {
			command:   "basename \"$(pwd)\"",
			approve:   true,
			expStatus: lib.ResultStatusDone,
			expCode:   intPtr(0),
			expStdout: "jail\n",
		},
		"A rejected command should not run.": {
			command:   "echo hi",
			expStatus: lib.ResultStatusRejected,
		},
		"A failing command should return the exit code.": {
			command:   "echo err >&2; exit 3",
			approve:   true,
			expStatus: lib.ResultStatusError,
			expCode:   intPtr(3),
			expError:  "Exit 3",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()
			client := newTestClient(t, nil)

			p, err := client.Submit(ctx, test.command, &lib.SubmitOpts{Cwd: "/etc"})
			require.NoError(err)
			assert.Equal(client.Root(ctx), p.Cwd)
			assert.Len(client.ListPending(ctx), 1)

			var res lib.Result
			if test.approve {
				res = client.Approve(ctx, p.ID)
			} else {
				res = client.Reject(ctx, p.ID)
			}

			assert.Equal(test.expStatus, res.Status)
			assert.Equal(test.expCode, res.ExitCode)
			assert.Equal(test.expStdout, res.Stdout)
			assert.Equal(test.expError, res.Error)
			assert.Empty(client.ListPending(ctx))

			// A second decision is always unknown.
			again := client.Approve(ctx, p.ID)
			assert.Equal(lib.ResultStatusError, again.Status)
			assert.Equal("Unknown request id", again.Error)
		})
	}
}

func TestSubmitInvalid(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	_, err := client.Submit(ctx, "  ", nil)
	assert.ErrorIs(t, err, lib.ErrNotValid)

	_, err = client.Submit(ctx, "true", &lib.SubmitOpts{ID: "r1"})
	require.NoError(t, err)
	_, err = client.Submit(ctx, "true", &lib.SubmitOpts{ID: "r1"})
	assert.ErrorIs(t, err, lib.ErrAlreadyExists)
}

func TestSetRootWithPending(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	client := newTestClient(t, nil)

	p, err := client.Submit(ctx, "true", nil)
	require.NoError(err)

	newRoot := filepath.Join(t.TempDir(), "other")
	r, err := client.SetRoot(ctx, newRoot)
	require.NoError(err)
	assert.Equal(newRoot, r)
	assert.Equal(newRoot, client.Root(ctx))

	res := client.Approve(ctx, p.ID)
	assert.Equal(lib.ResultStatusError, res.Status)
	assert.Contains(res.Error, "path escapes jail")
}

func TestFiles(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	client := newTestClient(t, nil)

	rel, err := client.WriteFile(ctx, "a/../b/c.txt", []byte("hello"))
	require.NoError(err)
	assert.Equal(filepath.Join("b", "c.txt"), rel)

	got, err := client.ReadFile(ctx, rel, 0)
	require.NoError(err)
	assert.Equal(&lib.FileContent{Content: []byte("hello"), Size: 5}, got)

	got, err = client.ReadFile(ctx, rel, 2)
	require.NoError(err)
	assert.Equal(&lib.FileContent{Content: []byte("he"), Size: 5, Truncated: true}, got)

	entries, err := client.ListDir(ctx, "b")
	require.NoError(err)
	require.Len(entries, 1)
	assert.Equal("c.txt", entries[0].Name)

	_, err = client.WriteFile(ctx, "../escape.txt", []byte("x"))
	assert.ErrorIs(err, lib.ErrJailEscape)

	_, err = client.ReadFile(ctx, "missing.txt", 0)
	assert.ErrorIs(err, lib.ErrNotFound)
}

func TestHistory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	client := newTestClient(t, func(c *lib.Config) {
		c.DBPath = filepath.Join(t.TempDir(), "kage.db")
	})

	for _, cmd := range []string{"true", "false", "echo hi"} {
		p, err := client.Submit(ctx, cmd, nil)
		require.NoError(err)
		if cmd == "echo hi" {
			client.Reject(ctx, p.ID)
			continue
		}
		client.Approve(ctx, p.ID)
	}

	all, err := client.History(ctx, nil)
	require.NoError(err)
	require.Len(all, 3)
	assert.Equal("echo hi", all[0].Command)
	assert.Equal(lib.ResultStatusRejected, all[0].Status)

	status := lib.ResultStatusError
	failed, err := client.History(ctx, &lib.HistoryOpts{Status: &status})
	require.NoError(err)
	require.Len(failed, 1)
	assert.Equal("false", failed[0].Command)
	assert.Equal(intPtr(1), failed[0].ExitCode)

	_, err = client.History(ctx, &lib.HistoryOpts{Limit: -1})
	assert.True(errors.Is(err, lib.ErrNotValid))
}

type recordNotifier struct {
	mu       sync.Mutex
	pending  []lib.PendingCommand
	finished chan lib.Result
}

func (r *recordNotifier) CommandPending(_ context.Context, p lib.PendingCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, p)
	return nil
}

func (r *recordNotifier) CommandFinished(_ context.Context, _ string, res lib.Result) error {
	r.finished <- res
	return nil
}

func TestAutoApprove(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	n := &recordNotifier{finished: make(chan lib.Result, 1)}
	client := newTestClient(t, func(c *lib.Config) {
		c.AutoApprove = true
		c.Notifier = n
	})

	p, err := client.Submit(ctx, "echo auto", nil)
	require.NoError(err)

	select {
	case res := <-n.finished:
		assert.Equal(lib.ResultStatusDone, res.Status)
		assert.Equal("auto\n", res.Stdout)
	case <-time.After(10 * time.Second):
		t.Fatal("auto approved command didn't finish")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Len(n.pending, 1)
	assert.Equal(p.ID, n.pending[0].ID)
}

func intPtr(i int) *int { return &i }
