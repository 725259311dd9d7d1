package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// badgerLogger routes badger's printf-style logging through a named zap
// logger. Debug output is dropped unless verbose is set.
type badgerLogger struct {
	log     *zap.SugaredLogger
	verbose bool
}

func newBadgerLogger(verbose bool) badgerLogger {
	return badgerLogger{log: zap.L().Named("badger").Sugar(), verbose: verbose}
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warnf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Infof(f, v...) }

func (l badgerLogger) Debugf(f string, v ...interface{}) {
	if l.verbose {
		l.log.Debugf(f, v...)
	}
}

type BadgerOption func(*badger.Options)

// WithVerboseLogging forwards badger's debug logs.
func WithVerboseLogging() BadgerOption {
	return func(o *badger.Options) { o.Logger = newBadgerLogger(true) }
}

// OpenBadger opens the key-value store at path with synchronous writes. The
// parent directory is created if needed. Badger locks the directory, so a
// second open of the same path fails until the first is closed.
func OpenBadger(path string, opts ...BadgerOption) (*badger.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BadgerDB: %w", err)
	}
	options := badger.DefaultOptions(path).WithSyncWrites(true)
	return openBadger(options, "failed to open BadgerDB", opts)
}

// OpenBadgerInMemory opens a non-persistent instance.
func OpenBadgerInMemory(opts ...BadgerOption) (*badger.DB, error) {
	options := badger.DefaultOptions("").WithInMemory(true)
	return openBadger(options, "failed to open in-memory BadgerDB", opts)
}

func openBadger(options badger.Options, failure string, opts []BadgerOption) (*badger.DB, error) {
	options.Logger = newBadgerLogger(false)
	for _, opt := range opts {
		opt(&options)
	}
	kv, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", failure, err)
	}
	return kv, nil
}
