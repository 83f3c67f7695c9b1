package cache

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m, err := New(t.TempDir(), opts)
	require.NoError(t, err)
	return m
}

func readEntry(t *testing.T, m *Manager, name string) string {
	t.Helper()
	r, err := m.Open(name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestPutAndGet(t *testing.T) {
	m := newManager(t, Options{})

	entry, err := m.Put("report", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.Size)
	assert.Equal(t, `{"a":1}`, readEntry(t, m, "report"))

	got, ok := m.Get("report")
	require.True(t, ok)
	assert.Equal(t, entry.Path, got.Path)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestPutReplacesEntry(t *testing.T) {
	m := newManager(t, Options{})

	_, err := m.Put("report", strings.NewReader("old"))
	require.NoError(t, err)
	_, err = m.Put("report", strings.NewReader("newer"))
	require.NoError(t, err)

	assert.Equal(t, "newer", readEntry(t, m, "report"))
	assert.Equal(t, int64(5), m.Used())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("upstream failed")
}

func TestPutDiscardsTempOnReadError(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, Options{})
	require.NoError(t, err)

	_, err = m.Put("report", failingReader{})
	require.Error(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files, "a failed put must not leave files behind")

	_, ok := m.Get("report")
	assert.False(t, ok)
}

func TestInvalidNames(t *testing.T) {
	m := newManager(t, Options{})
	for _, name := range []string{"", "a/b", `a\b`, ".", ".."} {
		_, err := m.Put(name, strings.NewReader("x"))
		assert.Error(t, err, "name %q", name)
	}
}

func TestScanRestoresIndex(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, Options{})
	require.NoError(t, err)
	_, err = m.Put("alpha", strings.NewReader("aaa"))
	require.NoError(t, err)
	_, err = m.Put("beta", strings.NewReader("bbbb"))
	require.NoError(t, err)

	// leftovers from an interrupted put are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.tmp"), []byte("x"), 0o644))

	reopened, err := New(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), reopened.Used())
	assert.Equal(t, "aaa", readEntry(t, reopened, "alpha"))
	assert.Equal(t, "bbbb", readEntry(t, reopened, "beta"))
}

func TestBudgetEviction(t *testing.T) {
	m := newManager(t, Options{Budget: 10})

	_, err := m.Put("a", strings.NewReader("aaaa"))
	require.NoError(t, err)
	_, err = m.Put("b", strings.NewReader("bbbb"))
	require.NoError(t, err)

	// touch "a" so "b" is the eviction candidate
	_, ok := m.Get("a")
	require.True(t, ok)

	_, err = m.Put("c", strings.NewReader("cccc"))
	require.NoError(t, err)

	_, ok = m.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = m.Get("a")
	assert.True(t, ok)
	_, ok = m.Get("c")
	assert.True(t, ok)
	assert.LessOrEqual(t, m.Used(), int64(10))
}

func TestBudgetKeepsNewEntry(t *testing.T) {
	m := newManager(t, Options{Budget: 5})

	_, err := m.Put("small", strings.NewReader("xx"))
	require.NoError(t, err)
	_, err = m.Put("huge", strings.NewReader("0123456789"))
	require.NoError(t, err)

	_, ok := m.Get("huge")
	assert.True(t, ok, "an entry larger than the whole budget is still kept")
	_, ok = m.Get("small")
	assert.False(t, ok)
}

func TestRemoveAndClear(t *testing.T) {
	m := newManager(t, Options{})
	_, err := m.Put("a", strings.NewReader("1"))
	require.NoError(t, err)
	entry, err := m.Put("b", strings.NewReader("2"))
	require.NoError(t, err)

	require.NoError(t, m.Remove("a"))
	assert.ErrorIs(t, m.Remove("a"), ErrNotFound)
	_, err = m.Open("a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Clear())
	assert.Zero(t, m.Used())
	_, statErr := os.Stat(entry.Path)
	assert.True(t, os.IsNotExist(statErr), "clear should delete entry files")
}

func TestEntriesOrder(t *testing.T) {
	m := newManager(t, Options{})
	_, err := m.Put("first", strings.NewReader("1"))
	require.NoError(t, err)
	_, err = m.Put("second", strings.NewReader("2"))
	require.NoError(t, err)
	m.Get("first")

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Name)
	assert.Equal(t, "first", entries[1].Name)
}

func TestGetOrCreate(t *testing.T) {
	m := newManager(t, Options{})
	calls := 0
	build := func() (io.Reader, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return strings.NewReader("built"), nil
	}

	entry, err := m.GetOrCreate(context.Background(), "report", build)
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "transient failures should be retried")
	assert.Equal(t, "built", readEntry(t, m, "report"))

	// cached now, the builder must not run again
	again, err := m.GetOrCreate(context.Background(), "report", build)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, entry.Path, again.Path)
}

func TestGetOrCreateHonorsContext(t *testing.T) {
	m := newManager(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.GetOrCreate(ctx, "report", func() (io.Reader, error) {
		return nil, errors.New("always failing")
	})
	assert.Error(t, err)
}
