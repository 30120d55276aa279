// Package logging builds the process loggers. The TUI owns the terminal, so
// when a log file is configured everything goes to a rotating file instead.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	File       string // empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
}

// Output returns the writer loggers should write to. The returned closer
// must be closed on exit; it is a no-op for stderr.
func Output(opts Options) (io.Writer, io.Closer) {
	if opts.File == "" {
		return os.Stderr, nopCloser{}
	}
	_ = os.MkdirAll(filepath.Dir(opts.File), 0o755)
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
	return lj, lj
}

// New returns a logger with a bracketed component prefix, e.g. "[tokaido] ".
func New(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
