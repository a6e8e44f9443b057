package results

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var header = []string{"author", "file_path", "start_timestamp", "end_timestamp", "language_proficiency"}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestEnsureLayout(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	resultPath := filepath.Join(root, "results", "result.csv")

	require.NoError(t, EnsureLayout(dataDir, resultPath, header))

	assert.DirExists(t, dataDir)
	assert.Equal(t, [][]string{header}, readCSV(t, resultPath))

	// A second call keeps existing rows.
	rec := NewRecorder(resultPath)
	require.NoError(t, rec.Record(context.Background(), Entry{Author: "a"}))
	require.NoError(t, EnsureLayout(dataDir, resultPath, header))
	assert.Len(t, readCSV(t, resultPath), 2)
}

func TestWriteBlob(t *testing.T) {
	dir := t.TempDir()

	first, err := WriteBlob(dir, "Foo bar baz.")
	require.NoError(t, err)
	second, err := WriteBlob(dir, "Foo bar qux.")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, dir, filepath.Dir(first))

	name := strings.TrimSuffix(filepath.Base(first), ".txt")
	_, err = uuid.Parse(name)
	assert.NoError(t, err, "expected a uuid file name, got %s", name)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "Foo bar baz.", string(data))
}

func TestEntryRow(t *testing.T) {
	start := time.Unix(1700000000, 250000000)
	e := Entry{
		Author:              "reader",
		FilePath:            "data/x.txt",
		Start:               start,
		End:                 start.Add(90 * time.Second),
		LanguageProficiency: 0.5,
	}

	assert.Equal(t, []string{"reader", "data/x.txt", "1700000000.250000", "1700000090.250000", "0.5"}, e.Row())
	assert.Equal(t, 90*time.Second, e.Duration())
}

func TestRecorderConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.csv")
	require.NoError(t, EnsureLayout(t.TempDir(), path, header))
	rec := NewRecorder(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rec.Record(context.Background(), Entry{Author: "reader, with comma", FilePath: "f"}))
		}()
	}
	wg.Wait()

	rows := readCSV(t, path)
	require.Len(t, rows, 21)
	for _, row := range rows[1:] {
		assert.Equal(t, "reader, with comma", row[0])
		assert.Len(t, row, 5)
	}
}
