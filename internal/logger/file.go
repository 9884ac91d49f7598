package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyFile is an io.Writer that appends to <dir>/<name>_YYYY-MM-DD.log,
// switching to a new file when the local date changes.
type DailyFile struct {
	mu   sync.Mutex
	dir  string
	name string
	day  string
	f    *os.File
	now  func() time.Time
}

// OpenDailyFile creates dir if needed and opens today's file.
func OpenDailyFile(dir, name string) (*DailyFile, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	d := &DailyFile{dir: dir, name: name, now: time.Now}
	if err := d.rotate(d.now().Format(time.DateOnly)); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the file currently written to.
func (d *DailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pathFor(d.day)
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if day := d.now().Format(time.DateOnly); day != d.day || d.f == nil {
		if err := d.rotate(day); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

// Close closes the current file.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *DailyFile) pathFor(day string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s_%s.log", d.name, day))
}

// rotate must be called with mu held.
func (d *DailyFile) rotate(day string) error {
	f, err := os.OpenFile(d.pathFor(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //#nosec G304 -- path built from configured log dir
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if d.f != nil {
		_ = d.f.Close()
	}
	d.f = f
	d.day = day
	return nil
}
