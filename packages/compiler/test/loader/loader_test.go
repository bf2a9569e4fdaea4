package loader_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/loader"
)

func newLoader(t *testing.T, files map[string]string) (*loader.FilesystemLoader, string) {
	t.Helper()
	root := t.TempDir()
	for name, source := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return loader.NewFilesystemLoader(root, config.Default()), root
}

func TestResolve(t *testing.T) {
	t.Run("should resolve relative paths against the root", func(t *testing.T) {
		l, root := newLoader(t, nil)
		got := l.Resolve("pages/home.stencil", "")
		if want := filepath.Join(root, "pages", "home.stencil"); got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
	})

	t.Run("should resolve relative paths against the referrer's directory", func(t *testing.T) {
		l, root := newLoader(t, nil)
		referrer := filepath.Join(root, "pages", "home.stencil")
		got := l.Resolve("../layouts/base.stencil", referrer)
		if want := filepath.Join(root, "layouts", "base.stencil"); got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
	})

	t.Run("should keep absolute paths", func(t *testing.T) {
		l, _ := newLoader(t, nil)
		got := l.Resolve("/srv/templates//home.stencil", "ignored")
		if want := filepath.Clean("/srv/templates/home.stencil"); got != want {
			t.Errorf("Resolve() = %q, want %q", got, want)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("should read a template by path", func(t *testing.T) {
		l, _ := newLoader(t, map[string]string{"home.stencil": "<h1>hi</h1>"})
		source, _, err := l.Load("home.stencil")
		if err != nil {
			t.Fatal(err)
		}
		if source != "<h1>hi</h1>" {
			t.Errorf("Load() = %q", source)
		}
	})

	t.Run("should retry with the default suffix", func(t *testing.T) {
		l, _ := newLoader(t, map[string]string{"home.stencil": "<h1>hi</h1>"})
		source, resolved, err := l.Load("home")
		if err != nil {
			t.Fatal(err)
		}
		if source != "<h1>hi</h1>" {
			t.Errorf("Load() = %q", source)
		}
		if filepath.Base(resolved) != "home.stencil" {
			t.Errorf("Load() resolved %q, want the suffixed path", resolved)
		}
	})

	t.Run("should prefer the exact path over the suffixed one", func(t *testing.T) {
		l, _ := newLoader(t, map[string]string{
			"home":         "bare",
			"home.stencil": "suffixed",
		})
		source, resolved, err := l.Load("home")
		if err != nil {
			t.Fatal(err)
		}
		if source != "bare" {
			t.Errorf("Load() = %q, want %q", source, "bare")
		}
		if filepath.Base(resolved) != "home" {
			t.Errorf("Load() resolved %q, want the bare path", resolved)
		}
	})

	t.Run("should fail on a missing template", func(t *testing.T) {
		l, _ := newLoader(t, nil)
		if _, _, err := l.Load("ghost"); err == nil {
			t.Error("Load() = nil error, want failure")
		}
	})
}

func TestExists(t *testing.T) {
	l, _ := newLoader(t, map[string]string{"home.stencil": "x"})

	t.Run("should report suffixed sources", func(t *testing.T) {
		if !l.Exists("home") {
			t.Error("Exists() = false, want true")
		}
	})

	t.Run("should not report directories", func(t *testing.T) {
		l, root := newLoader(t, nil)
		if err := os.Mkdir(filepath.Join(root, "pages"), 0o755); err != nil {
			t.Fatal(err)
		}
		if l.Exists("pages") {
			t.Error("Exists() = true for a directory")
		}
	})

	t.Run("should not report missing sources", func(t *testing.T) {
		if l.Exists("ghost") {
			t.Error("Exists() = true, want false")
		}
	})
}

func TestModTime(t *testing.T) {
	t.Run("should report the source timestamp", func(t *testing.T) {
		l, root := newLoader(t, map[string]string{"home.stencil": "x"})
		stamp := int64(1700000000)
		when := time.Unix(stamp, 0)
		if err := os.Chtimes(filepath.Join(root, "home.stencil"), when, when); err != nil {
			t.Fatal(err)
		}
		got, err := l.ModTime("home")
		if err != nil {
			t.Fatal(err)
		}
		if got != stamp {
			t.Errorf("ModTime() = %d, want %d", got, stamp)
		}
	})

	t.Run("should fail on a missing source", func(t *testing.T) {
		l, _ := newLoader(t, nil)
		if _, err := l.ModTime("ghost"); err == nil {
			t.Error("ModTime() = nil error, want failure")
		}
	})
}

func TestLoadComponent(t *testing.T) {
	t.Run("should locate a component in the configured directory", func(t *testing.T) {
		l, root := newLoader(t, map[string]string{
			"components/card.stencil": "<div>card</div>",
		})
		source, path, err := l.LoadComponent("card")
		if err != nil {
			t.Fatal(err)
		}
		if source != "<div>card</div>" {
			t.Errorf("source = %q", source)
		}
		if want := filepath.Join(root, "components", "card.stencil"); path != want {
			t.Errorf("path = %q, want %q", path, want)
		}
	})

	t.Run("should search component directories in order", func(t *testing.T) {
		root := t.TempDir()
		for dir, source := range map[string]string{"widgets": "first", "shared": "second"} {
			path := filepath.Join(root, dir, "card.stencil")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		opts := config.Default()
		opts.ComponentDirs = []string{"widgets", "shared"}
		l := loader.NewFilesystemLoader(root, opts)
		source, _, err := l.LoadComponent("card")
		if err != nil {
			t.Fatal(err)
		}
		if source != "first" {
			t.Errorf("source = %q, want %q", source, "first")
		}
	})

	t.Run("should fail when no directory holds the component", func(t *testing.T) {
		l, _ := newLoader(t, nil)
		if _, _, err := l.LoadComponent("ghost"); err == nil {
			t.Error("LoadComponent() = nil error, want failure")
		}
	})
}
