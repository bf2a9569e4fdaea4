package directives_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/cache"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/directives"
	"stencil-go/packages/compiler/src/loader"
	"stencil-go/packages/compiler/src/parser"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// inherit parses the entry template from a temp-dir template set and runs
// inheritance resolution over it.
func inherit(t *testing.T, entry string, files map[string]string) (*ast.Document, *cache.DependencyTracker, error) {
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
	opts := config.Default()
	l := loader.NewFilesystemLoader(root, opts)
	psr := parser.NewParser(opts)

	resolved := l.Resolve(entry, "")
	source, _, err := l.Load(resolved)
	if err != nil {
		t.Fatal(err)
	}
	result := psr.Parse(source, resolved)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected parse errors: %v", result.Errors)
	}
	tracker := cache.NewDependencyTracker()
	cctx := pipeline.NewContext(resolved, source, opts, tracker)
	runErr := pipeline.NewPipeline(directives.NewInheritancePass(l, psr)).Run(result.Document, cctx)
	return result.Document, tracker, runErr
}

func inheritAndHumanize(t *testing.T, entry string, files map[string]string) []interface{} {
	t.Helper()
	doc, _, err := inherit(t, entry, files)
	if err != nil {
		t.Fatalf("unexpected inheritance error: %v", err)
	}
	return humanizeNodes(doc.Children)
}

func TestInclude(t *testing.T) {
	t.Run("should splice the included template in place", func(t *testing.T) {
		result := inheritAndHumanize(t, "page.stencil", map[string]string{
			"page.stencil": `<div><s-template s:include="nav"></s-template></div>`,
			"nav.stencil":  `<a>Home</a>`,
		})
		expected := []interface{}{
			[]interface{}{"Element", "div", []interface{}{
				[]interface{}{"Element", "a", []interface{}{
					[]interface{}{"Text", "Home"},
				}},
			}},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should resolve includes relative to the including template", func(t *testing.T) {
		result := inheritAndHumanize(t, "pages/about.stencil", map[string]string{
			"pages/about.stencil": `<s-template s:include="../shared/nav"></s-template>`,
			"shared/nav.stencil":  `<a>Home</a>`,
		})
		expected := []interface{}{
			[]interface{}{"Element", "a", []interface{}{
				[]interface{}{"Text", "Home"},
			}},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should resolve nested includes", func(t *testing.T) {
		result := inheritAndHumanize(t, "page.stencil", map[string]string{
			"page.stencil":  `<s-template s:include="outer"></s-template>`,
			"outer.stencil": `<div><s-template s:include="inner"></s-template></div>`,
			"inner.stencil": `deep`,
		})
		expected := []interface{}{
			[]interface{}{"Element", "div", []interface{}{
				[]interface{}{"Text", "deep"},
			}},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should record included templates as dependencies", func(t *testing.T) {
		_, tracker, err := inherit(t, "page.stencil", map[string]string{
			"page.stencil": `<s-template s:include="nav"></s-template>`,
			"nav.stencil":  `<a>Home</a>`,
		})
		if err != nil {
			t.Fatal(err)
		}
		templates := tracker.Templates()
		if len(templates) != 1 || filepath.Base(templates[0]) != "nav.stencil" {
			t.Errorf("Templates() = %v", templates)
		}
	})

	t.Run("should fail on a missing include target", func(t *testing.T) {
		_, _, err := inherit(t, "page.stencil", map[string]string{
			"page.stencil": `<s-template s:include="ghost"></s-template>`,
		})
		var notFound *util.TemplateNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("err = %v, want TemplateNotFoundError", err)
		}
	})

	t.Run("should reject a template including itself", func(t *testing.T) {
		_, _, err := inherit(t, "page.stencil", map[string]string{
			"page.stencil": `<s-template s:include="page"></s-template>`,
		})
		if err == nil || !strings.Contains(err.Error(), "nested too deeply") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("should reject an include with an expression path", func(t *testing.T) {
		_, _, err := inherit(t, "page.stencil", map[string]string{
			"page.stencil": `<s-template s:include="<?= $path ?>"></s-template>`,
		})
		if err == nil || !strings.Contains(err.Error(), "must have a static value") {
			t.Errorf("err = %v", err)
		}
	})
}

func TestExtends(t *testing.T) {
	t.Run("should substitute overridden blocks into the parent", func(t *testing.T) {
		result := inheritAndHumanize(t, "child.stencil", map[string]string{
			"child.stencil": `<s-template s:extends="base"><div s:block="content">New body</div></s-template>`,
			"base.stencil":  `<main><div s:block="content">Default body</div></main>`,
		})
		expected := []interface{}{
			[]interface{}{"Element", "main", []interface{}{
				[]interface{}{"Element", "div", []interface{}{
					[]interface{}{"Text", "New body"},
				}},
			}},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should keep parent defaults for unoverridden blocks", func(t *testing.T) {
		result := inheritAndHumanize(t, "child.stencil", map[string]string{
			"child.stencil": `<s-template s:extends="base"><div s:block="title">Hi</div></s-template>`,
			"base.stencil":  `<h1 s:block="title">T</h1><p s:block="body">Default</p>`,
		})
		expected := []interface{}{
			[]interface{}{"Element", "h1", []interface{}{
				[]interface{}{"Text", "Hi"},
			}},
			[]interface{}{"Element", "p", []interface{}{
				[]interface{}{"Text", "Default"},
			}},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should resolve a chained extends through the grandparent", func(t *testing.T) {
		result := inheritAndHumanize(t, "page.stencil", map[string]string{
			"page.stencil":   `<s-template s:extends="layout"><div s:block="content">Page</div></s-template>`,
			"layout.stencil": `<s-template s:extends="root"><section s:block="main"><div s:block="content">Layout</div></section></s-template>`,
			"root.stencil":   `<body><div s:block="main">Root</div></body>`,
		})
		expected := []interface{}{
			[]interface{}{"Element", "body", []interface{}{
				[]interface{}{"Element", "div", []interface{}{
					[]interface{}{"Element", "div", []interface{}{
						[]interface{}{"Text", "Page"},
					}},
				}},
			}},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should substitute into nested parent blocks", func(t *testing.T) {
		result := inheritAndHumanize(t, "child.stencil", map[string]string{
			"child.stencil": `<s-template s:extends="base"><div s:block="inner">X</div></s-template>`,
			"base.stencil":  `<div s:block="outer"><span s:block="inner">Y</span></div>`,
		})
		expected := []interface{}{
			[]interface{}{"Element", "div", []interface{}{
				[]interface{}{"Element", "span", []interface{}{
					[]interface{}{"Text", "X"},
				}},
			}},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should reject a nameless block under extends", func(t *testing.T) {
		_, _, err := inherit(t, "child.stencil", map[string]string{
			"child.stencil": `<s-template s:extends="base"><div s:block>X</div></s-template>`,
			"base.stencil":  `<main></main>`,
		})
		if err == nil || !strings.Contains(err.Error(), "block directive needs a name") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("should fail on a missing parent template", func(t *testing.T) {
		_, _, err := inherit(t, "child.stencil", map[string]string{
			"child.stencil": `<s-template s:extends="ghost"></s-template>`,
		})
		var notFound *util.TemplateNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("err = %v, want TemplateNotFoundError", err)
		}
	})
}

func TestLoneBlock(t *testing.T) {
	t.Run("should render a block's default children outside inheritance", func(t *testing.T) {
		doc, _, err := inherit(t, "page.stencil", map[string]string{
			"page.stencil": `<div s:block="content">Default</div>`,
		})
		if err != nil {
			t.Fatal(err)
		}
		expected := []interface{}{
			[]interface{}{"Element", "div", []interface{}{
				[]interface{}{"Text", "Default"},
			}},
		}
		if diff := cmp.Diff(expected, humanizeNodes(doc.Children)); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
		el := doc.Children[0].(*ast.Element)
		if len(el.Attributes) != 0 {
			t.Errorf("block directive survived: %v", el.Attributes)
		}
	})
}
