package logging

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move across midnight
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// TestLogRotator_NewLogRotator tests the creation of new log rotator
func TestLogRotator_NewLogRotator(t *testing.T) {
	tests := []struct {
		name   string
		subdir string
		useUTC bool
	}{
		{name: "Valid directory creation", subdir: "logs"},
		{name: "UTC timezone", subdir: "logs_utc", useUTC: true},
		{name: "Nested directory creation", subdir: filepath.Join("nested", "test", "logs")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), tt.subdir)

			rotator, err := NewLogRotator(Options{Dir: dir, UseUTC: tt.useUTC})
			require.NoError(t, err)
			require.NotNil(t, rotator)
			defer rotator.Close()

			assert.DirExists(t, dir)

			current := rotator.CurrentFile()
			assert.FileExists(t, current)
			assert.Contains(t, filepath.Base(current), "spotter_")
		})
	}
}

// TestLogRotator_Write tests that writes land in the current file
func TestLogRotator_Write(t *testing.T) {
	rotator, err := NewLogRotator(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer rotator.Close()

	testData := "Test log entry\n"
	n, err := rotator.Write([]byte(testData))
	assert.NoError(t, err)
	assert.Equal(t, len(testData), n)

	content, err := os.ReadFile(rotator.CurrentFile())
	require.NoError(t, err)
	assert.Equal(t, testData, string(content))
}

// TestLogRotator_DateRotation tests rotation and compression at midnight
func TestLogRotator_DateRotation(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{now: time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)}

	rotator, err := NewLogRotator(Options{Dir: dir, UseUTC: true, Now: clock.Now})
	require.NoError(t, err)

	_, err = rotator.Write([]byte("before midnight\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "spotter_2024-03-09.log"), rotator.CurrentFile())

	clock.Set(time.Date(2024, 3, 10, 0, 0, 1, 0, time.UTC))
	_, err = rotator.Write([]byte("after midnight\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "spotter_2024-03-10.log"), rotator.CurrentFile())

	// Close waits for the background compression
	require.NoError(t, rotator.Close())

	assert.NoFileExists(t, filepath.Join(dir, "spotter_2024-03-09.log"))
	compressed := filepath.Join(dir, "spotter_2024-03-09.log.gz")
	require.FileExists(t, compressed)

	gzFile, err := os.Open(compressed)
	require.NoError(t, err)
	defer gzFile.Close()

	gzReader, err := gzip.NewReader(gzFile)
	require.NoError(t, err)
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	require.NoError(t, err)
	assert.Equal(t, "before midnight\n", string(decompressed))

	content, err := os.ReadFile(filepath.Join(dir, "spotter_2024-03-10.log"))
	require.NoError(t, err)
	assert.Equal(t, "after midnight\n", string(content))
}

// TestLogRotator_LogFiles tests listing of plain and compressed files
func TestLogRotator_LogFiles(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewLogRotator(Options{Dir: dir})
	require.NoError(t, err)
	defer rotator.Close()

	testFiles := []string{
		"spotter_2023-01-01.log",
		"spotter_2023-01-02.log.gz",
		"spotter_2023-01-03.log",
	}
	for _, filename := range testFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte("test content"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0644))

	files, err := rotator.LogFiles()
	require.NoError(t, err)
	assert.Len(t, files, len(testFiles)+1)

	fileSet := make(map[string]bool)
	for _, file := range files {
		fileSet[filepath.Base(file)] = true
	}
	for _, testFile := range testFiles {
		assert.True(t, fileSet[testFile], "Expected file %s not found", testFile)
	}
	assert.False(t, fileSet["unrelated.txt"])
}

// TestLogRotator_CleanupOldLogs tests retention
func TestLogRotator_CleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewLogRotator(Options{Dir: dir})
	require.NoError(t, err)
	defer rotator.Close()

	oldFile := filepath.Join(dir, "spotter_2023-01-01.log.gz")
	require.NoError(t, os.WriteFile(oldFile, []byte("old content"), 0644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := filepath.Join(dir, "spotter_2023-12-31.log")
	require.NoError(t, os.WriteFile(recentFile, []byte("recent content"), 0644))

	// The current file is never removed even when old
	require.NoError(t, os.Chtimes(rotator.CurrentFile(), oldTime, oldTime))

	removed, err := rotator.CleanupOldLogs(5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, recentFile)
	assert.FileExists(t, rotator.CurrentFile())
}

// TestLogRotator_CleanupOldLogs_InvalidMaxDays tests error handling
func TestLogRotator_CleanupOldLogs_InvalidMaxDays(t *testing.T) {
	rotator, err := NewLogRotator(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer rotator.Close()

	for _, days := range []int{0, -1} {
		_, err = rotator.CleanupOldLogs(days)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "maxDays must be positive")
	}
}

// TestLogRotator_Start tests that retention runs on start and stops with the context
func TestLogRotator_Start(t *testing.T) {
	dir := t.TempDir()
	rotator, err := NewLogRotator(Options{Dir: dir, RetentionDays: 3})
	require.NoError(t, err)
	defer rotator.Close()

	oldFile := filepath.Join(dir, "spotter_2020-01-01.log.gz")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0644))
	oldTime := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rotator.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(oldFile)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

// TestLogRotator_Close tests the Close method
func TestLogRotator_Close(t *testing.T) {
	rotator, err := NewLogRotator(Options{Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = rotator.Write([]byte("test data"))
	require.NoError(t, err)

	assert.NoError(t, rotator.Close())
	assert.NoError(t, rotator.Close())

	_, err = rotator.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrClosed)
}

// TestLogRotator_ConcurrentAccess tests concurrent writers
func TestLogRotator_ConcurrentAccess(t *testing.T) {
	rotator, err := NewLogRotator(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer rotator.Close()

	numGoroutines := 10
	numOps := 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				data := fmt.Sprintf("goroutine-%d-op-%d\n", id, j)
				if _, err := rotator.Write([]byte(data)); err != nil {
					t.Errorf("Write failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	content, err := os.ReadFile(rotator.CurrentFile())
	require.NoError(t, err)

	contentStr := string(content)
	assert.Contains(t, contentStr, "goroutine-0-op-0\n")
	assert.Contains(t, contentStr, fmt.Sprintf("goroutine-%d-op-%d\n", numGoroutines-1, numOps-1))
}

// BenchmarkLogRotator_Write benchmarks writing performance
func BenchmarkLogRotator_Write(b *testing.B) {
	rotator, err := NewLogRotator(Options{Dir: b.TempDir()})
	require.NoError(b, err)
	defer rotator.Close()

	data := []byte("benchmark test data\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rotator.Write(data); err != nil {
			b.Fatal(err)
		}
	}
}
