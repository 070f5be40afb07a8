package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LoadOptions controls how a source file is read.
type LoadOptions struct {
	ParseOptions
	// MaxRows limits records materialized; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffed among ',', ';', '\t', '|'.
	Delimiter rune
	// Encoding forces a text encoding for CSV ("utf-8", "latin-1",
	// "windows-1252"). Empty means detect.
	Encoding string
	// Sheet selects an XLSX worksheet by name; SheetIndex (1-based) is used
	// when Sheet is empty.
	Sheet      string
	SheetIndex int
	// Table selects a SQLite table; empty means the first user table.
	Table string
}

// DefaultLoadOptions mirrors the CLI defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{MaxRows: 100000, SheetIndex: 1}
}

// LoadError reports a source that could not be materialized. It is fatal
// for the run that requested it.
type LoadError struct {
	Path string
	Op   string
	Err  error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "load error"
	}
	return fmt.Sprintf("load %s: %s: %v", filepath.Base(e.Path), e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrUnsupported indicates no registered loader accepts the file.
var ErrUnsupported = errors.New("unsupported dataset format")

// ErrEmpty indicates a source without a header row.
var ErrEmpty = errors.New("no header row")

// Loader materializes one family of source formats.
type Loader interface {
	CanLoad(path string) bool
	Load(ctx context.Context, path string, opt LoadOptions) (*Dataset, error)
}

var registry []Loader

// Register adds a loader; earlier registrations win.
func Register(l Loader) {
	registry = append(registry, l)
}

func init() {
	Register(xlsxLoader{})
	Register(sqliteLoader{})
	Register(csvLoader{})
}

// Load picks a loader by file name, materializes the dataset and stamps
// its Source with the file's fingerprint. Every failure is a *LoadError.
func Load(ctx context.Context, path string, opt LoadOptions) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Path: path, Op: "stat", Err: err}
	}
	var l Loader
	for _, cand := range registry {
		if cand.CanLoad(path) {
			l = cand
			break
		}
	}
	if l == nil {
		return nil, &LoadError{Path: path, Op: "detect format", Err: ErrUnsupported}
	}
	ds, err := l.Load(ctx, path, opt)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &LoadError{Path: path, Op: "read", Err: err}
	}
	src, err := Fingerprint(path)
	if err != nil {
		return nil, &LoadError{Path: path, Op: "fingerprint", Err: err}
	}
	src.Format = ds.Source.Format
	src.Encoding = ds.Source.Encoding
	src.Delimiter = ds.Source.Delimiter
	src.Table = ds.Source.Table
	ds.Source = src
	if ds.Name == "" {
		ds.Name = filepath.Base(path)
	}
	return ds, nil
}

func truncationNote(kept, total int) string {
	return fmt.Sprintf("processed only %d/%d rows due to MaxRows", kept, total)
}
