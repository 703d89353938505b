package fileops_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/kage/internal/app/fileops"
	"github.com/slok/kage/internal/jail"
	"github.com/slok/kage/internal/model"
)

func newService(t *testing.T) (*fileops.Service, string) {
	t.Helper()

	root := t.TempDir()
	j, err := jail.New(filepath.Join(root, "jail"))
	require.NoError(t, err)
	svc, err := fileops.NewService(fileops.ServiceConfig{Jail: j})
	require.NoError(t, err)

	return svc, j.Root()
}

func TestServiceWrite(t *testing.T) {
	tests := map[string]struct {
		rel     string
		expRel  string
		expPath string
		expErr  error
	}{
		"A simple file should be written.": {
			rel:     "notes.txt",
			expRel:  "notes.txt",
			expPath: "notes.txt",
		},
		"Missing parent directories should be created.": {
			rel:     "a/b/c.txt",
			expRel:  filepath.Join("a", "b", "c.txt"),
			expPath: filepath.Join("a", "b", "c.txt"),
		},
		"An absolute path should be written inside the root.": {
			rel:     "/etc/passwd",
			expRel:  filepath.Join("etc", "passwd"),
			expPath: filepath.Join("etc", "passwd"),
		},
		"A path escaping the root should fail.": {
			rel:    "../../outside.txt",
			expErr: model.ErrJailEscape,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			svc, root := newService(t)

			gotRel, err := svc.Write(context.TODO(), test.rel, []byte("hello"))

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "outside.txt"))
				assert.True(os.IsNotExist(statErr))
				return
			}
			require.NoError(err)
			assert.Equal(test.expRel, gotRel)
			got, err := os.ReadFile(filepath.Join(root, test.expPath))
			require.NoError(err)
			assert.Equal("hello", string(got))
		})
	}
}

func TestServiceRead(t *testing.T) {
	tests := map[string]struct {
		files        map[string]string
		rel          string
		max          int64
		expContent   string
		expTruncated bool
		expErr       error
	}{
		"A small file should be read completely.": {
			files:      map[string]string{"f.txt": "content"},
			rel:        "f.txt",
			expContent: "content",
		},
		"A file bigger than the limit should be truncated.": {
			files:        map[string]string{"f.txt": "0123456789"},
			rel:          "f.txt",
			max:          4,
			expContent:   "0123",
			expTruncated: true,
		},
		"A file with the exact limit size should not be truncated.": {
			files:      map[string]string{"f.txt": "0123"},
			rel:        "f.txt",
			max:        4,
			expContent: "0123",
		},
		"A missing file should fail.": {
			rel:    "missing.txt",
			expErr: model.ErrNotFound,
		},
		"A directory should fail.": {
			files:  map[string]string{"dir/f.txt": "x"},
			rel:    "dir",
			expErr: model.ErrNotValid,
		},
		"A path escaping the root should fail.": {
			rel:    "../../../etc/passwd",
			expErr: model.ErrJailEscape,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			svc, _ := newService(t)
			for p, c := range test.files {
				_, err := svc.Write(context.TODO(), p, []byte(c))
				require.NoError(err)
			}

			got, err := svc.Read(context.TODO(), test.rel, test.max)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(err)
			assert.Equal(test.expContent, string(got.Content))
			assert.Equal(test.expTruncated, got.Truncated)
			assert.Equal(int64(len(test.files[test.rel])), got.Size)
		})
	}
}

func TestServiceReadLimitIsCapped(t *testing.T) {
	tests := map[string]struct {
		content      string
		max          int64
		expLen       int
		expTruncated bool
	}{
		"No limit should use the default limit.": {
			content:      strings.Repeat("a", fileops.DefaultMaxReadBytes+10),
			max:          0,
			expLen:       fileops.DefaultMaxReadBytes,
			expTruncated: true,
		},
		"A negative limit should use the default limit.": {
			content: "hello",
			max:     -1,
			expLen:  5,
		},
		"A limit bigger than the default should be capped.": {
			content:      strings.Repeat("a", fileops.DefaultMaxReadBytes+10),
			max:          fileops.DefaultMaxReadBytes * 4,
			expLen:       fileops.DefaultMaxReadBytes,
			expTruncated: true,
		},
		"The biggest possible limit should read the file.": {
			content: "hello",
			max:     math.MaxInt64,
			expLen:  5,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			svc, _ := newService(t)
			_, err := svc.Write(context.TODO(), "f.txt", []byte(test.content))
			require.NoError(err)

			got, err := svc.Read(context.TODO(), "f.txt", test.max)
			require.NoError(err)
			assert.Equal(test.expTruncated, got.Truncated)
			assert.Equal(test.content[:test.expLen], string(got.Content))
			assert.Equal(int64(len(test.content)), got.Size)
		})
	}
}

func TestServiceList(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	svc, _ := newService(t)
	for _, p := range []string{"b.txt", "a.txt", "zdir/x", "adir/y"} {
		_, err := svc.Write(context.TODO(), p, []byte("12"))
		require.NoError(err)
	}

	entries, err := svc.List(context.TODO(), "")
	require.NoError(err)

	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal([]string{"adir", "zdir", "a.txt", "b.txt"}, names)
	assert.True(entries[0].Dir)
	assert.Equal(int64(2), entries[2].Size)

	_, err = svc.List(context.TODO(), "../")
	assert.ErrorIs(err, model.ErrJailEscape)

	_, err = svc.List(context.TODO(), "nope")
	assert.ErrorIs(err, model.ErrNotFound)
}
