package cache

import (
	"github.com/alphadose/haxmap"
)

// Entry is one stored compiled unit: the serialized program plus the
// metadata freshness checks compare against.
type Entry struct {
	Source   string   `json:"source"`
	Metadata Metadata `json:"metadata"`
}

// FreshnessChecker decides whether a stored entry still matches the current
// file state. Checking runs only in debug mode.
type FreshnessChecker interface {
	Fresh(key string, meta Metadata) bool
}

// Store is the compiled-unit cache. A hit outside debug mode returns
// unconditionally; in debug mode a stale entry is treated as a miss.
type Store interface {
	// Get returns the entry stored under the key. In debug mode a stale
	// entry is invalidated and reported as a miss.
	Get(key string, debug bool) (*Entry, bool)
	// Put persists a compiled unit and returns its entry
	Put(key, source string, meta Metadata) *Entry
}

// MemoryStore is the in-process unit store
type MemoryStore struct {
	entries *haxmap.Map[string, *Entry]
	checker FreshnessChecker
}

// NewMemoryStore creates a memory store; the checker may be nil, disabling
// staleness checks.
func NewMemoryStore(checker FreshnessChecker) *MemoryStore {
	return &MemoryStore{
		entries: haxmap.New[string, *Entry](),
		checker: checker,
	}
}

// Get implements Store
func (s *MemoryStore) Get(key string, debug bool) (*Entry, bool) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	if debug && s.checker != nil && !s.checker.Fresh(key, entry.Metadata) {
		s.entries.Del(key)
		return nil, false
	}
	return entry, true
}

// Put implements Store
func (s *MemoryStore) Put(key, source string, meta Metadata) *Entry {
	entry := &Entry{Source: source, Metadata: meta}
	s.entries.Set(key, entry)
	return entry
}

// Len returns the number of stored entries
func (s *MemoryStore) Len() int {
	return int(s.entries.Len())
}
