package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// rotatingWriter appends to the configured log file and rotates it
// once it would grow past the size limit. Backups carry numeric
// suffixes, newest first: pipeline.log.1 is the most recent.
type rotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	limit   int64
	backups int
	written int64
}

// newRotatingWriter opens or creates the log file named in cfg.
func newRotatingWriter(cfg Config) (*rotatingWriter, error) {
	w := &rotatingWriter{
		path:    cfg.FilePath,
		limit:   cfg.MaxSizeMB * 1024 * 1024,
		backups: cfg.MaxBackups,
	}
	if w.limit <= 0 {
		w.limit = DefaultConfig().MaxSizeMB * 1024 * 1024
	}
	if w.backups < 0 {
		w.backups = 0
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = file
	w.written = info.Size()
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate shifts each backup one slot down, dropping the oldest, then
// archives the live file as .1 and starts a fresh one. With no backup
// slots configured the live file is simply discarded.
func (w *rotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	if w.backups == 0 {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to discard log file: %w", err)
		}
		return w.open()
	}

	_ = os.Remove(w.backupPath(w.backups))
	for i := w.backups - 1; i >= 1; i-- {
		if _, err := os.Stat(w.backupPath(i)); err == nil {
			if err := os.Rename(w.backupPath(i), w.backupPath(i+1)); err != nil {
				return fmt.Errorf("failed to shift log backup: %w", err)
			}
		}
	}
	if err := os.Rename(w.path, w.backupPath(1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to archive log file: %w", err)
	}

	return w.open()
}

func (w *rotatingWriter) backupPath(index int) string {
	return fmt.Sprintf("%s.%d", w.path, index)
}

var _ io.WriteCloser = (*rotatingWriter)(nil)
