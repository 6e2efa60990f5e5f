package output

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	id, name string
}

func (r testRecord) Columns() []string { return []string{"Id", "Name"} }
func (r testRecord) Row() []string     { return []string{r.id, r.name} }

type wideRecord struct{}

func (wideRecord) Columns() []string { return []string{"Id", "Name"} }
func (wideRecord) Row() []string     { return []string{"1", "2", "3"} }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestMaterialize_NoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	_, err := NewSink().Materialize(path)
	assert.ErrorIs(t, err, ErrNoData)
	var oe *OutputError
	assert.False(t, errors.As(err, &oe))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMaterialize_FileIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "out.csv")

	s := NewSink()
	s.Append(testRecord{"1", "Acme"})
	abs, err := s.Materialize(path)
	require.NoError(t, err)

	info, err := os.Stat(abs)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestMaterialize_HeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	s := NewSink()
	s.Append(testRecord{"1", "Acme, Inc."})
	s.Append(testRecord{"2", `Quote "Shop"`}, testRecord{"3", "Line\nBreak"})
	assert.Equal(t, 3, s.Len())

	abs, err := s.Materialize(path)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))

	assert.Equal(t, [][]string{
		{"Id", "Name"},
		{"1", "Acme, Inc."},
		{"2", `Quote "Shop"`},
		{"3", "Line\nBreak"},
	}, readCSV(t, abs))

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMaterialize_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	s := NewSink()
	s.Append(testRecord{"9", "Fresh"})
	_, err := s.Materialize(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Id", "Name"}, {"9", "Fresh"}}, readCSV(t, path))
}

func TestMaterialize_UnwritableDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.csv")

	s := NewSink()
	s.Append(testRecord{"1", "x"})
	_, err := s.Materialize(path)

	var oe *OutputError
	require.ErrorAs(t, err, &oe)
	assert.NotErrorIs(t, err, ErrNoData)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMaterialize_RowWidthMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	s := NewSink()
	s.Append(wideRecord{})
	_, err := s.Materialize(path)

	var oe *OutputError
	require.ErrorAs(t, err, &oe)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSink_ConcurrentAppend(t *testing.T) {
	s := NewSink()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Append(testRecord{"1", "x"})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, s.Len())
}
