package cache_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"stencil-go/packages/compiler/src/cache"
)

// fakeChecker reports a fixed freshness verdict and records the checks
type fakeChecker struct {
	fresh  bool
	checks int
}

func (f *fakeChecker) Fresh(key string, meta cache.Metadata) bool {
	f.checks++
	return f.fresh
}

func TestMemoryStore(t *testing.T) {
	t.Run("should miss on an unknown key", func(t *testing.T) {
		store := cache.NewMemoryStore(nil)
		if _, ok := store.Get("missing", false); ok {
			t.Error("Get() = hit, want miss")
		}
	})

	t.Run("should return a stored entry", func(t *testing.T) {
		store := cache.NewMemoryStore(nil)
		meta := cache.Metadata{SourceTimestamp: 100}
		store.Put("k", "program", meta)
		entry, ok := store.Get("k", false)
		if !ok {
			t.Fatal("Get() = miss, want hit")
		}
		if entry.Source != "program" || entry.Metadata.SourceTimestamp != 100 {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("should skip the freshness check outside debug mode", func(t *testing.T) {
		checker := &fakeChecker{fresh: false}
		store := cache.NewMemoryStore(checker)
		store.Put("k", "program", cache.Metadata{})
		if _, ok := store.Get("k", false); !ok {
			t.Error("Get() = miss, want hit")
		}
		if checker.checks != 0 {
			t.Errorf("checks = %d, want 0", checker.checks)
		}
	})

	t.Run("should invalidate a stale entry in debug mode", func(t *testing.T) {
		checker := &fakeChecker{fresh: false}
		store := cache.NewMemoryStore(checker)
		store.Put("k", "program", cache.Metadata{})
		if _, ok := store.Get("k", true); ok {
			t.Error("Get() = hit, want miss")
		}
		if store.Len() != 0 {
			t.Errorf("Len() = %d, want 0 after invalidation", store.Len())
		}
	})

	t.Run("should serve a fresh entry in debug mode", func(t *testing.T) {
		checker := &fakeChecker{fresh: true}
		store := cache.NewMemoryStore(checker)
		store.Put("k", "program", cache.Metadata{})
		if _, ok := store.Get("k", true); !ok {
			t.Error("Get() = miss, want hit")
		}
		if checker.checks != 1 {
			t.Errorf("checks = %d, want 1", checker.checks)
		}
	})
}

func TestMemoryFragmentCache(t *testing.T) {
	t.Run("should round-trip a fragment", func(t *testing.T) {
		fragments := cache.NewMemoryFragmentCache()
		fragments.Set("k", "<div>x</div>", 0)
		value, ok := fragments.Get("k")
		if !ok || value != "<div>x</div>" {
			t.Errorf("Get() = %q, %v", value, ok)
		}
	})

	t.Run("should miss on an unknown key", func(t *testing.T) {
		fragments := cache.NewMemoryFragmentCache()
		if _, ok := fragments.Get("missing"); ok {
			t.Error("Get() = hit, want miss")
		}
	})

	t.Run("should keep a zero-lifetime fragment alive", func(t *testing.T) {
		fragments := cache.NewMemoryFragmentCache()
		fragments.Set("k", "v", 0)
		time.Sleep(10 * time.Millisecond)
		if _, ok := fragments.Get("k"); !ok {
			t.Error("Get() = miss, want hit")
		}
	})

	t.Run("should overwrite an existing fragment", func(t *testing.T) {
		fragments := cache.NewMemoryFragmentCache()
		fragments.Set("k", "old", 0)
		fragments.Set("k", "new", time.Minute)
		value, _ := fragments.Get("k")
		if value != "new" {
			t.Errorf("Get() = %q, want %q", value, "new")
		}
	})
}

func TestDependencyTracker(t *testing.T) {
	t.Run("should deduplicate and sort recorded dependencies", func(t *testing.T) {
		tracker := cache.NewDependencyTracker()
		tracker.AddComponent("card")
		tracker.AddComponent("card")
		tracker.AddComponent("avatar")
		tracker.AddTemplate("layouts/base.stencil")

		if diff := cmp.Diff([]string{"avatar", "card"}, tracker.Components()); diff != "" {
			t.Errorf("Components() mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"layouts/base.stencil"}, tracker.Templates()); diff != "" {
			t.Errorf("Templates() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should build prefixed metadata", func(t *testing.T) {
		tracker := cache.NewDependencyTracker()
		tracker.AddComponent("card")
		tracker.AddTemplate("base.stencil")
		meta := tracker.Metadata(1234)

		expected := cache.Metadata{
			SourceTimestamp: 1234,
			Dependencies:    []string{"component:card", "template:base.stencil"},
		}
		if diff := cmp.Diff(expected, meta); diff != "" {
			t.Errorf("Metadata() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should parse dependency identifiers back", func(t *testing.T) {
		if name, ok := cache.ComponentDependency("component:card"); !ok || name != "card" {
			t.Errorf("ComponentDependency() = %q, %v", name, ok)
		}
		if path, ok := cache.TemplateDependency("template:base.stencil"); !ok || path != "base.stencil" {
			t.Errorf("TemplateDependency() = %q, %v", path, ok)
		}
		if _, ok := cache.ComponentDependency("template:x"); ok {
			t.Error("ComponentDependency() matched a template identifier")
		}
	})
}
