package directives_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/cache"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/directives"
	"stencil-go/packages/compiler/src/parser"
	"stencil-go/packages/compiler/src/pipeline"
)

func compile(t *testing.T, source string, opts *config.Options) (*ast.Document, error) {
	t.Helper()
	if opts == nil {
		opts = config.Default()
	}
	result := parser.NewParser(opts).Parse(source, "test.stencil")
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected parse errors: %v", result.Errors)
	}
	p := pipeline.NewPipeline(
		directives.NewExtractionPass(),
		directives.NewPairingPass(),
		directives.NewCompilationPass(),
	)
	cctx := pipeline.NewContext("test.stencil", source, opts, cache.NewDependencyTracker())
	err := p.Run(result.Document, cctx)
	return result.Document, err
}

func compileAndHumanize(t *testing.T, source string) []interface{} {
	t.Helper()
	doc, err := compile(t, source, nil)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return humanizeNodes(doc.Children)
}

func humanizeNodes(nodes []ast.Node) []interface{} {
	result := []interface{}{}
	for _, n := range nodes {
		result = append(result, humanizeNode(n))
	}
	return result
}

func humanizeNode(n ast.Node) []interface{} {
	switch node := n.(type) {
	case *ast.Text:
		return []interface{}{"Text", node.Value}
	case *ast.Output:
		return []interface{}{"Output", node.Expr}
	case *ast.Element:
		return []interface{}{"Element", node.Tag, humanizeNodes(node.Children)}
	case *ast.Fragment:
		return []interface{}{"Fragment", humanizeNodes(node.Children)}
	case *ast.Cond:
		branches := []interface{}{}
		for _, br := range node.Branches {
			branches = append(branches, []interface{}{br.Expr, humanizeNodes(br.Body)})
		}
		return []interface{}{"Cond", branches, humanizeNodes(node.Else)}
	case *ast.Loop:
		kind := "foreach"
		if node.Kind == ast.LoopKindWhile {
			kind = "while"
		}
		return []interface{}{"Loop", kind, node.IterExpr, node.KeyVar, node.ItemVar, humanizeNodes(node.Body)}
	case *ast.RawBlock:
		return []interface{}{"RawBlock", node.Text}
	case *ast.CacheBlock:
		return []interface{}{"CacheBlock", node.KeyExpr, node.TTLSeconds, humanizeNodes(node.Body)}
	case *ast.Directive:
		return []interface{}{"Directive", node.Name}
	}
	return []interface{}{"Unknown"}
}

func TestDirectives_Conditionals(t *testing.T) {
	t.Run("should lower a lone if", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"Cond", []interface{}{
				[]interface{}{"$ok", []interface{}{
					[]interface{}{"Element", "div", []interface{}{
						[]interface{}{"Text", "yes"},
					}},
				}},
			}, []interface{}{}},
		}
		result := compileAndHumanize(t, `<div s:if="$ok">yes</div>`)
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("compileAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should chain if, else-if and else siblings", func(t *testing.T) {
		source := `<p s:if="$a">A</p>` + "\n" +
			`<p s:else-if="$b">B</p>` + "\n" +
			`<p s:else>C</p>`
		expected := []interface{}{
			[]interface{}{"Cond", []interface{}{
				[]interface{}{"$a", []interface{}{
					[]interface{}{"Element", "p", []interface{}{[]interface{}{"Text", "A"}}},
				}},
				[]interface{}{"$b", []interface{}{
					[]interface{}{"Element", "p", []interface{}{[]interface{}{"Text", "B"}}},
				}},
			}, []interface{}{
				[]interface{}{"Element", "p", []interface{}{[]interface{}{"Text", "C"}}},
			}},
		}
		result := compileAndHumanize(t, source)
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("compileAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should stop the chain at non-whitespace text", func(t *testing.T) {
		source := `<p s:if="$a">A</p>between<p s:if="$b">B</p>`
		result := compileAndHumanize(t, source)
		if len(result) != 3 {
			t.Fatalf("got %d siblings, want 3: %v", len(result), result)
		}
	})

	t.Run("should report an else with no preceding if", func(t *testing.T) {
		_, err := compile(t, `<p s:else>C</p>`, nil)
		if err == nil {
			t.Fatal("expected an error")
		}
		if !strings.Contains(err.Error(), "no preceding if") {
			t.Errorf("error = %q, want it to mention the missing if", err)
		}
	})

	t.Run("should pair a chain nested inside an element", func(t *testing.T) {
		source := `<div><p s:if="$a">A</p><p s:else>B</p></div>`
		expected := []interface{}{
			[]interface{}{"Element", "div", []interface{}{
				[]interface{}{"Cond", []interface{}{
					[]interface{}{"$a", []interface{}{
						[]interface{}{"Element", "p", []interface{}{[]interface{}{"Text", "A"}}},
					}},
				}, []interface{}{
					[]interface{}{"Element", "p", []interface{}{[]interface{}{"Text", "B"}}},
				}},
			}},
		}
		result := compileAndHumanize(t, source)
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("compileAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDirectives_Loops(t *testing.T) {
	t.Run("should lower a foreach with an item variable", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"Loop", "foreach", "$items", "", "item", []interface{}{
				[]interface{}{"Element", "li", []interface{}{
					[]interface{}{"Output", "$item"},
				}},
			}},
		}
		result := compileAndHumanize(t, `<li s:foreach="$items as $item"><?= $item ?></li>`)
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("compileAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should lower a foreach with key and item variables", func(t *testing.T) {
		result := compileAndHumanize(t, `<li s:foreach="$m as $k => $v">x</li>`)
		loop := result[0].([]interface{})
		expected := []interface{}{"Loop", "foreach", "$m", "k", "v"}
		if diff := cmp.Diff(expected, loop[:5]); diff != "" {
			t.Errorf("loop header mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should report a foreach header without as", func(t *testing.T) {
		_, err := compile(t, `<li s:foreach="$items">x</li>`, nil)
		if err == nil || !strings.Contains(err.Error(), "foreach header") {
			t.Errorf("error = %v, want a foreach header error", err)
		}
	})

	t.Run("should report a loop variable without its sigil", func(t *testing.T) {
		_, err := compile(t, `<li s:foreach="$items as item">x</li>`, nil)
		if err == nil || !strings.Contains(err.Error(), "invalid loop variable") {
			t.Errorf("error = %v, want an invalid loop variable error", err)
		}
	})

	t.Run("should lower a while loop", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"Loop", "while", "$more", "", "", []interface{}{
				[]interface{}{"Element", "div", []interface{}{
					[]interface{}{"Text", "x"},
				}},
			}},
		}
		result := compileAndHumanize(t, `<div s:while="$more">x</div>`)
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("compileAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDirectives_Raw(t *testing.T) {
	t.Run("should capture the body bytes verbatim", func(t *testing.T) {
		source := `<div s:raw><?= $x ?> & <b>bold</b></div>`
		doc, err := compile(t, source, nil)
		if err != nil {
			t.Fatalf("unexpected compile error: %v", err)
		}
		div := doc.Children[0].(*ast.Element)
		raw, ok := div.Children[0].(*ast.RawBlock)
		if !ok {
			t.Fatalf("child = %T, want *ast.RawBlock", div.Children[0])
		}
		if raw.Text != "<?= $x ?> & <b>bold</b>" {
			t.Errorf("Text = %q", raw.Text)
		}
	})

	t.Run("should win over control flow on the same node", func(t *testing.T) {
		source := `<div s:raw s:if="$ok">x</div>`
		doc, err := compile(t, source, nil)
		if err != nil {
			t.Fatalf("unexpected compile error: %v", err)
		}
		if _, ok := doc.Children[0].(*ast.Element); !ok {
			t.Fatalf("root = %T, want the element itself", doc.Children[0])
		}
	})
}

func TestDirectives_Cache(t *testing.T) {
	t.Run("should lower a cache directive with a TTL", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"CacheBlock", "$key", 60, []interface{}{
				[]interface{}{"Element", "div", []interface{}{
					[]interface{}{"Text", "x"},
				}},
			}},
		}
		result := compileAndHumanize(t, `<div s:cache="$key" s:cache-ttl="60">x</div>`)
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("compileAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should quote a literal cache key", func(t *testing.T) {
		result := compileAndHumanize(t, `<div s:cache="sidebar">x</div>`)
		block := result[0].([]interface{})
		if block[1] != `"sidebar"` {
			t.Errorf("KeyExpr = %v, want %q", block[1], `"sidebar"`)
		}
	})

	t.Run("should report an invalid TTL", func(t *testing.T) {
		_, err := compile(t, `<div s:cache="$k" s:cache-ttl="soon">x</div>`, nil)
		if err == nil || !strings.Contains(err.Error(), "invalid cache TTL") {
			t.Errorf("error = %v, want an invalid TTL error", err)
		}
	})
}

func TestDirectives_Nesting(t *testing.T) {
	t.Run("should nest loop inside conditional on the same node", func(t *testing.T) {
		source := `<li s:if="$show" s:foreach="$items as $item">x</li>`
		expected := []interface{}{
			[]interface{}{"Cond", []interface{}{
				[]interface{}{"$show", []interface{}{
					[]interface{}{"Loop", "foreach", "$items", "", "item", []interface{}{
						[]interface{}{"Element", "li", []interface{}{
							[]interface{}{"Text", "x"},
						}},
					}},
				}},
			}, []interface{}{}},
		}
		result := compileAndHumanize(t, source)
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("compileAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDirectives_ErrorsAndModes(t *testing.T) {
	t.Run("should report an unknown directive in strict mode", func(t *testing.T) {
		_, err := compile(t, `<div s:unknown="x">y</div>`, nil)
		if err == nil || !strings.Contains(err.Error(), "unknown directive") {
			t.Errorf("error = %v, want an unknown directive error", err)
		}
	})

	t.Run("should pass an unknown directive through in lax mode", func(t *testing.T) {
		opts := config.Default()
		opts.StrictDirectives = false
		doc, err := compile(t, `<div s:unknown="x">y</div>`, opts)
		if err != nil {
			t.Fatalf("unexpected compile error: %v", err)
		}
		div := doc.Children[0].(*ast.Element)
		if len(div.Attributes) != 1 || div.Attributes[0].Name != "s:unknown" {
			t.Errorf("attributes = %v, want the literal attribute kept", div.Attributes)
		}
	})

	t.Run("should report a directive value that is not static", func(t *testing.T) {
		_, err := compile(t, `<div s:if="<?= $x ?>">y</div>`, nil)
		if err == nil || !strings.Contains(err.Error(), "static value") {
			t.Errorf("error = %v, want a static value error", err)
		}
	})

	t.Run("should keep mutation directives off the attribute list", func(t *testing.T) {
		doc, err := compile(t, `<div s:class="$cls" class="base">x</div>`, nil)
		if err != nil {
			t.Fatalf("unexpected compile error: %v", err)
		}
		div := doc.Children[0].(*ast.Element)
		if len(div.Mutations) != 1 || div.Mutations[0].Name != "class" {
			t.Fatalf("Mutations = %v, want one class mutation", div.Mutations)
		}
		if len(div.Attributes) != 1 || div.Attributes[0].Name != "class" {
			t.Errorf("Attributes = %v, want only the plain class attribute", div.Attributes)
		}
	})

	t.Run("should record binding and invocation directives on the node", func(t *testing.T) {
		doc, err := compile(t, `<div s:component="card" s:bind="{'a': 1}">x</div>`, nil)
		if err != nil {
			t.Fatalf("unexpected compile error: %v", err)
		}
		div := doc.Children[0].(*ast.Element)
		if div.Invocation == nil || div.Invocation.Expr != "card" {
			t.Errorf("Invocation = %v, want card", div.Invocation)
		}
		if div.Binding == nil || div.Binding.Expr != "{'a': 1}" {
			t.Errorf("Binding = %v, want the binding map", div.Binding)
		}
	})
}
