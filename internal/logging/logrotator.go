// Package logging provides a daily-rotating log file sink.
package logging

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned when writing to a closed rotator
var ErrClosed = errors.New("log rotator closed")

const (
	filePrefix = "spotter_"
	dateLayout = "2006-01-02"
)

// Options configures a LogRotator
type Options struct {
	Dir    string
	UseUTC bool

	// RetentionDays removes rotated files older than this many days; 0
	// keeps everything
	RetentionDays int

	// Logger receives the rotator's own diagnostics. It must not write into
	// the rotator itself.
	Logger *logrus.Logger

	// Now is the clock; defaults to time.Now
	Now func() time.Time
}

// LogRotator is an io.Writer that appends to spotter_YYYY-MM-DD.log and
// switches to a new file when the date changes. The previous file is
// compressed to .log.gz in the background.
type LogRotator struct {
	dir           string
	useUTC        bool
	retentionDays int
	logger        *logrus.Logger
	now           func() time.Time

	mu          sync.Mutex
	currentFile *os.File
	currentDate string
	closed      bool

	compressions sync.WaitGroup
}

// NewLogRotator creates the log directory and opens today's file
func NewLogRotator(opts Options) (*LogRotator, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}

	r := &LogRotator{
		dir:           opts.Dir,
		useUTC:        opts.UseUTC,
		retentionDays: opts.RetentionDays,
		logger:        opts.Logger,
		now:           opts.Now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotateLocked(r.today()); err != nil {
		return nil, fmt.Errorf("failed to initialize log file: %w", err)
	}

	return r, nil
}

func (r *LogRotator) today() string {
	now := r.now()
	if r.useUTC {
		now = now.UTC()
	}
	return now.Format(dateLayout)
}

func (r *LogRotator) pathFor(date string) string {
	return filepath.Join(r.dir, filePrefix+date+".log")
}

// Write appends p to the current day's file, rotating first if the date
// has changed
func (r *LogRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	if date := r.today(); date != r.currentDate {
		if err := r.rotateLocked(date); err != nil {
			return 0, err
		}
	}

	return r.currentFile.Write(p)
}

// Start removes expired files once a day until ctx is done. It returns
// immediately when retention is disabled.
func (r *LogRotator) Start(ctx context.Context) {
	if r.retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		if _, err := r.CleanupOldLogs(r.retentionDays); err != nil {
			r.logger.WithError(err).Warn("Log cleanup failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// rotateLocked closes the current file, schedules its compression and
// opens the file for date. r.mu must be held.
func (r *LogRotator) rotateLocked(date string) error {
	if r.currentFile != nil {
		oldDate := r.currentDate
		if err := r.currentFile.Close(); err != nil {
			r.logger.WithError(err).Error("Failed to close old log file")
		}
		r.currentFile = nil

		r.compressions.Add(1)
		go func() {
			defer r.compressions.Done()
			if err := r.compressLogFile(oldDate); err != nil {
				r.logger.WithError(err).WithField("date", oldDate).Error("Failed to compress log file")
			}
		}()
	}

	path := r.pathFor(date)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	r.currentFile = file
	r.currentDate = date
	r.logger.WithField("file", path).Debug("Opened log file")
	return nil
}

// compressLogFile gzips the file for date and removes the original
func (r *LogRotator) compressLogFile(date string) error {
	logFile := r.pathFor(date)
	gzipFile := logFile + ".gz"

	src, err := os.Open(logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	dst, err := os.Create(gzipFile)
	if err != nil {
		return err
	}
	defer dst.Close()

	gz := gzip.NewWriter(dst)
	gz.Name = filepath.Base(logFile)
	gz.ModTime = r.now()

	if _, err := io.Copy(gz, src); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	if err := os.Remove(logFile); err != nil {
		return err
	}

	r.logger.WithField("file", gzipFile).Debug("Log file compressed")
	return nil
}

// Close closes the current file and waits for pending compressions
func (r *LogRotator) Close() error {
	r.mu.Lock()
	var err error
	if !r.closed {
		r.closed = true
		if r.currentFile != nil {
			err = r.currentFile.Close()
			r.currentFile = nil
		}
	}
	r.mu.Unlock()

	r.compressions.Wait()
	return err
}

// CurrentFile returns the path being written to
func (r *LogRotator) CurrentFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pathFor(r.currentDate)
}

// LogFiles lists all log files, compressed or not
func (r *LogRotator) LogFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, filePrefix+"*.log*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

// CleanupOldLogs removes files last modified more than maxDays ago, never
// touching the current file. It returns how many were removed.
func (r *LogRotator) CleanupOldLogs(maxDays int) (int, error) {
	if maxDays <= 0 {
		return 0, fmt.Errorf("maxDays must be positive, got %d", maxDays)
	}

	files, err := r.LogFiles()
	if err != nil {
		return 0, err
	}

	cutoff := r.now().AddDate(0, 0, -maxDays)
	current := r.CurrentFile()

	removed := 0
	for _, file := range files {
		if file == current {
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			r.logger.WithError(err).WithField("file", file).Warn("Failed to stat log file")
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				r.logger.WithError(err).WithField("file", file).Error("Failed to remove old log file")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		r.logger.WithField("count", removed).Info("Removed old log files")
	}
	return removed, nil
}
