// pkg/output/output.go - output layout, persistence gate and CSV sink

package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

var (
	ErrLocked = errors.New("output is being written by another run")
)

// Layout maps (subject, name) pairs onto deterministic output paths
type Layout struct {
	Root string
}

// Dir returns the output directory of a subject
func (l Layout) Dir(subject string) string {
	return filepath.Join(l.Root, subject)
}

// CSV returns <root>/<subject>/<name>.csv
func (l Layout) CSV(subject, name string) string {
	return filepath.Join(l.Dir(subject), name+".csv")
}

// Snapshot returns <root>/<subject>/<name>.lookup.json
func (l Layout) Snapshot(subject, name string) string {
	return filepath.Join(l.Dir(subject), name+".lookup.json")
}

// Gate decides whether an enrichment run is needed at all
type Gate struct {
	Fs afero.Fs
	// LockDir holds the run lock files; empty disables locking
	LockDir string
}

// ShouldRun is false iff the output at path already exists
func (g Gate) ShouldRun(path string) bool {
	exists, err := afero.Exists(g.Fs, path)
	if err != nil {
		// unreadable state is treated as absent; the write will surface the problem
		return true
	}
	return !exists
}

// Acquire takes an exclusive lock for path so two invocations cannot
// enrich the same output at once. The returned func releases it.
// Locks are OS file locks: they are only taken when Fs is the OS
// filesystem, other filesystems are private to one process.
func (g Gate) Acquire(path string) (func() error, error) {
	noop := func() error { return nil }
	if g.LockDir == "" {
		return noop, nil
	}
	if _, ok := g.Fs.(*afero.OsFs); !ok {
		return noop, nil
	}
	if err := g.Fs.MkdirAll(g.LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	lockPath := filepath.Join(g.LockDir, lockName(path))
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return lock.Unlock, nil
}

func lockName(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	clean = strings.TrimLeft(clean, "./")
	return strings.ReplaceAll(clean, "/", "_") + ".lock"
}

// WriteCSV writes header and rows to path. The file appears atomically.
func WriteCSV(fs afero.Fs, path string, header []string, rows [][]string) error {
	return writeAtomic(fs, path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		return nil
	})
}

// writeAtomic streams write's output to a temp file in the directory of
// path and renames it into place. On failure path is left as it was.
func writeAtomic(fs afero.Fs, path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("move %s into place: %w", path, err)
	}
	return nil
}

// ReadCSV reads a CSV written by WriteCSV
func ReadCSV(fs afero.Fs, path string) ([]string, [][]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	return records[0], records[1:], nil
}

// SaveSnapshot persists a lookup table as JSON next to its CSV. Like
// WriteCSV it replaces an earlier snapshot atomically.
func SaveSnapshot(fs afero.Fs, path string, table *enricher.LookupTable) error {
	if table == nil {
		table = enricher.NewLookupTable()
	}
	return writeAtomic(fs, path, func(w io.Writer) error {
		if err := table.WriteSnapshot(w); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		return nil
	})
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. A missing file
// yields a nil table and no error.
func LoadSnapshot(fs afero.Fs, path string) (*enricher.LookupTable, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	table, err := enricher.ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return table, nil
}
