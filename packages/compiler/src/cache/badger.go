package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures the persistent unit and fragment stores
type BadgerConfig struct {
	// Path is the database directory, ignored when InMemory is set
	Path string
	// InMemory keeps the database off disk
	InMemory bool
	// SyncWrites forces synchronous writes
	SyncWrites bool
	// Logger receives the database's own log output; nil disables it
	Logger *slog.Logger
}

// badgerLogger adapts slog to badger's logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// openBadger opens a database per the config
func openBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent cache")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	return db, nil
}

// BadgerStore is the persistent unit store: compiled units survive process
// restarts and warm the next boot.
type BadgerStore struct {
	db      *badger.DB
	checker FreshnessChecker
	logger  *slog.Logger
}

// NewBadgerStore opens a persistent unit store; the checker may be nil,
// disabling staleness checks.
func NewBadgerStore(cfg BadgerConfig, checker FreshnessChecker) (*BadgerStore, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BadgerStore{db: db, checker: checker, logger: logger}, nil
}

// Close closes the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func unitKey(key string) []byte {
	return []byte("unit:" + key)
}

// Get implements Store
func (s *BadgerStore) Get(key string, debug bool) (*Entry, bool) {
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(unitKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("unit cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	if debug && s.checker != nil && !s.checker.Fresh(key, entry.Metadata) {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(unitKey(key))
		}); err != nil {
			s.logger.Warn("stale unit eviction failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}
	return &entry, true
}

// Put implements Store
func (s *BadgerStore) Put(key, source string, meta Metadata) *Entry {
	entry := &Entry{Source: source, Metadata: meta}
	raw, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("unit cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return entry
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(unitKey(key), raw)
	}); err != nil {
		s.logger.Warn("unit cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return entry
}

// BadgerFragmentCache is the persistent fragment cache; entry expiry is
// delegated to the database's own TTL handling.
type BadgerFragmentCache struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerFragmentCache opens a persistent fragment cache
func NewBadgerFragmentCache(cfg BadgerConfig) (*BadgerFragmentCache, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BadgerFragmentCache{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (c *BadgerFragmentCache) Close() error {
	return c.db.Close()
}

func fragmentKey(key string) []byte {
	return []byte("fragment:" + key)
}

// Get returns the fragment stored under the key if it has not expired
func (c *BadgerFragmentCache) Get(key string) (string, bool) {
	var value string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fragmentKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("fragment cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return "", false
	}
	return value, true
}

// Set stores a fragment; a zero TTL never expires
func (c *BadgerFragmentCache) Set(key, value string, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(fragmentKey(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn("fragment cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
