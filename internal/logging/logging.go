// Package logging builds the process logger. Components receive a
// *log.Logger with their own bracketed prefix; all of them share one output.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	// File, when set, receives log output with size-based rotation.
	File string

	// MaxSizeMB, MaxBackups and MaxAgeDays tune rotation. Zero values use
	// 10 MB, 3 backups and 28 days.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Verbose also copies output to stderr when logging to a file.
	Verbose bool
}

// Output is where component loggers write.
type Output struct {
	w      io.Writer
	closer io.Closer
}

// Setup returns the shared output. Without a file, logs go to stderr.
func Setup(opts Options) (*Output, error) {
	if opts.File == "" {
		return &Output{w: os.Stderr}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, 10),
		MaxBackups: orDefault(opts.MaxBackups, 3),
		MaxAge:     orDefault(opts.MaxAgeDays, 28),
		Compress:   true,
	}
	var w io.Writer = rotator
	if opts.Verbose {
		w = io.MultiWriter(rotator, os.Stderr)
	}
	return &Output{w: w, closer: rotator}, nil
}

// Discard returns an output that drops everything.
func Discard() *Output {
	return &Output{w: io.Discard}
}

// Logger returns a logger writing to the shared output with the prefix
// "[component] ".
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Close flushes and closes the log file, if any.
func (o *Output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
