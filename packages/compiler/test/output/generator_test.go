package output_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stencil-go/packages/compiler/src/analysis"
	"stencil-go/packages/compiler/src/cache"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/directives"
	"stencil-go/packages/compiler/src/output"
	"stencil-go/packages/compiler/src/parser"
	"stencil-go/packages/compiler/src/pipeline"
)

func generate(t *testing.T, source string) (*output.Program, error) {
	t.Helper()
	opts := config.Default()
	result := parser.NewParser(opts).Parse(source, "test.stencil")
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected parse errors: %v", result.Errors)
	}
	p := pipeline.NewPipeline(
		directives.NewExtractionPass(),
		directives.NewPairingPass(),
		directives.NewCompilationPass(),
		analysis.NewContextPass(),
	)
	cctx := pipeline.NewContext("test.stencil", source, opts, cache.NewDependencyTracker())
	if err := p.Run(result.Document, cctx); err != nil {
		t.Fatalf("unexpected pipeline error: %v", err)
	}
	return output.NewGenerator(opts).Generate(result.Document, "test.stencil")
}

func generateAndHumanize(t *testing.T, source string) []interface{} {
	t.Helper()
	program, err := generate(t, source)
	if err != nil {
		t.Fatalf("unexpected generate error: %v", err)
	}
	return humanizeOps(program.Ops)
}

func humanizeOps(ops []*output.Op) []interface{} {
	result := []interface{}{}
	for _, op := range ops {
		result = append(result, humanizeOp(op))
	}
	return result
}

func humanizeOp(op *output.Op) []interface{} {
	switch op.Kind {
	case output.OpText:
		return []interface{}{"text", op.Text}
	case output.OpOut:
		names := []string{}
		for _, t := range op.Transforms {
			names = append(names, t.Name)
		}
		return []interface{}{"out", op.Expr, op.Context, op.Escape, strings.Join(names, ",")}
	case output.OpCode:
		return []interface{}{"code", op.Expr}
	case output.OpIf:
		branches := []interface{}{}
		for _, br := range op.Branches {
			branches = append(branches, []interface{}{br.Expr, humanizeOps(br.Body)})
		}
		return []interface{}{"if", branches, humanizeOps(op.Else)}
	case output.OpFor:
		return []interface{}{"for", op.Expr, op.KeyVar, op.ItemVar, humanizeOps(op.Body)}
	case output.OpWhile:
		return []interface{}{"while", op.Expr, humanizeOps(op.Body)}
	case output.OpCache:
		return []interface{}{"cache", op.Expr, op.TTL, humanizeOps(op.Body)}
	}
	return []interface{}{string(op.Kind)}
}

func TestGenerator_TextAndOutput(t *testing.T) {
	t.Run("should merge adjacent literal chunks into one instruction", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", "<p>a</p><p>b</p>"},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, "<p>a</p><p>b</p>")); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should place output instructions between text chunks", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", "<p>"},
			[]interface{}{"out", "$x", "html", true, ""},
			[]interface{}{"text", "</p>"},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, "<p><?= $x ?></p>")); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should keep the pipe chain on the instruction", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"out", "$x", "html", true, "trim,upper"},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, "<?= $x |> trim |> upper ?>")); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should emit raw output with escaping disabled", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"out", "$html", "raw", false, ""},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, "<?= $html |> raw ?>")); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should emit a code block as a statement instruction", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"code", " $x = 1 "},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, "<? $x = 1 ?>")); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should record one-based source lines on output instructions", func(t *testing.T) {
		program, err := generate(t, "line one\n<?= $x ?>")
		if err != nil {
			t.Fatalf("unexpected generate error: %v", err)
		}
		out := program.Ops[1]
		if out.Line != 2 {
			t.Errorf("Line = %d, want 2", out.Line)
		}
	})
}

func TestGenerator_Elements(t *testing.T) {
	t.Run("should serialize attributes around embedded outputs", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<a href="`},
			[]interface{}{"out", "$url", "html_attr", true, ""},
			[]interface{}{"text", `" title="x">y</a>`},
		}
		source := `<a href="<?= $url ?>" title="x">y</a>`
		if diff := cmp.Diff(expected, generateAndHumanize(t, source)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should escape static attribute values", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<div title="a&#34;b">x</div>`},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, `<div title='a"b'>x</div>`)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should render a boolean attribute bare", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<input type="text" required>`},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, `<input type="text" required>`)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should not emit children or a close tag for a void tag", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<br>after`},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, "<br>after")); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should keep an explicit self-close on a non-void tag", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<widget/>`},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, "<widget/>")); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestGenerator_Mutations(t *testing.T) {
	t.Run("should merge a computed class with the static class attribute", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<div class="base `},
			[]interface{}{"out", "$cls", "html_attr", true, "class"},
			[]interface{}{"text", `">x</div>`},
		}
		source := `<div class="base" s:class="$cls">x</div>`
		if diff := cmp.Diff(expected, generateAndHumanize(t, source)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should emit a computed class without a static class", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<div class="`},
			[]interface{}{"out", "$cls", "html_attr", true, "class"},
			[]interface{}{"text", `">x</div>`},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, `<div s:class="$cls">x</div>`)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should emit an attribute spread after the attributes", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", `<div id="main"`},
			[]interface{}{"out", "$extra", "raw", false, "attrs"},
			[]interface{}{"text", `>x</div>`},
		}
		source := `<div id="main" s:attrs="$extra">x</div>`
		if diff := cmp.Diff(expected, generateAndHumanize(t, source)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestGenerator_ControlFlow(t *testing.T) {
	t.Run("should nest the branch bodies of a conditional", func(t *testing.T) {
		source := `<p s:if="$a">A</p><p s:else>B</p>`
		expected := []interface{}{
			[]interface{}{"if",
				[]interface{}{
					[]interface{}{"$a", []interface{}{
						[]interface{}{"text", "<p>A</p>"},
					}},
				},
				[]interface{}{
					[]interface{}{"text", "<p>B</p>"},
				},
			},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, source)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should nest a loop body", func(t *testing.T) {
		source := `<li s:foreach="$items as $i => $item"><?= $item ?></li>`
		expected := []interface{}{
			[]interface{}{"for", "$items", "i", "item", []interface{}{
				[]interface{}{"text", "<li>"},
				[]interface{}{"out", "$item", "html", true, ""},
				[]interface{}{"text", "</li>"},
			}},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, source)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should nest a cache body with its key and lifetime", func(t *testing.T) {
		source := `<div s:cache="$key" s:cache-ttl="30">x</div>`
		expected := []interface{}{
			[]interface{}{"cache", "$key", 30, []interface{}{
				[]interface{}{"text", "<div>x</div>"},
			}},
		}
		if diff := cmp.Diff(expected, generateAndHumanize(t, source)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("should emit a raw region as literal text", func(t *testing.T) {
		expected := []interface{}{
			[]interface{}{"text", "<div><?= $x ?> & <b>bold</b></div>"},
		}
		source := `<div s:raw><?= $x ?> & <b>bold</b></div>`
		if diff := cmp.Diff(expected, generateAndHumanize(t, source)); diff != "" {
			t.Errorf("generateAndHumanize() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestGenerator_Unlowered(t *testing.T) {
	t.Run("should reject a component that was never expanded", func(t *testing.T) {
		_, err := generate(t, "<s-card>x</s-card>")
		if err == nil || !strings.Contains(err.Error(), "was not expanded") {
			t.Errorf("error = %v, want an unexpanded component error", err)
		}
	})
}
