package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogConcurrentAppendsAreNotLost(t *testing.T) {
	l := NewFileLog(filepath.Join(t.TempDir(), "log.json"))
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := l.Append(context.Background(), Record{Timestamp: time.Now(), Fields: map[string]string{"i": fmt.Sprint(i)}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	records, err := l.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, records, n)

	seen := map[string]bool{}
	for _, r := range records {
		seen[r.Fields["i"]] = true
	}
	assert.Len(t, seen, n)
}

func TestFileLogStartsOverOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	require.NoError(t, os.WriteFile(path, []byte("{not an array"), 0o644))

	l := NewFileLog(path)
	require.NoError(t, l.Append(context.Background(), Record{Fields: map[string]string{"a": "b"}}))

	records, err := l.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].Fields["a"])
}

func TestFileLogListLimit(t *testing.T) {
	l := NewFileLog(filepath.Join(t.TempDir(), "nested", "log.json"))
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Append(context.Background(), Record{Fields: map[string]string{"i": fmt.Sprint(i)}}))
	}
	records, err := l.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0", records[0].Fields["i"])
}

func TestFileLogAppendFailsOnUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	l := NewFileLog(filepath.Join(blocker, "log.json"))
	assert.Error(t, l.Append(context.Background(), Record{}))
}

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staged")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	path, err := LocalStore{Dir: filepath.Join(dir, "out")}.Put(context.Background(), "x.txt", src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "x.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestPostgresLog(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := newTestPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	l, err := NewPostgresLog(ctx, pool)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE upload_submissions`)
	require.NoError(t, err)

	desc := &FileDescriptor{Name: "n.png", OriginalName: "o.png", Size: 3, Path: "/tmp/n.png"}
	require.NoError(t, l.Append(ctx, Record{Timestamp: time.Now().UTC(), Fields: map[string]string{"note": "hi"}, File: desc}))
	require.NoError(t, l.Append(ctx, Record{Timestamp: time.Now().UTC(), Fields: map[string]string{}}))

	records, err := l.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, desc, records[0].File)
	assert.Nil(t, records[1].File)
}
