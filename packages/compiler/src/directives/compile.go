package directives

import (
	"strconv"
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// CompilationPass lowers each remaining directive wrapper to its concrete
// code-emission shape: loop constructs, the raw-passthrough block and the
// fragment-cache block. Conditional chains were already lowered by pairing.
type CompilationPass struct {
	pipeline.BasePass
}

// NewCompilationPass creates a new CompilationPass
func NewCompilationPass() *CompilationPass {
	return &CompilationPass{}
}

// Name identifies the pass
func (p *CompilationPass) Name() string { return "directive-compilation" }

// Priority orders the pass
func (p *CompilationPass) Priority() int { return PriorityCompilation }

// After lowers a directive wrapper once its body has been processed
func (p *CompilationPass) After(node ast.Node, cctx *pipeline.Context) (pipeline.Result, error) {
	d, ok := node.(*ast.Directive)
	if !ok {
		return pipeline.Keep, nil
	}

	switch d.Name {
	case DirForeach:
		loop, err := lowerForeach(d)
		if err != nil {
			return pipeline.Keep, err
		}
		return pipeline.Result{Replace: loop}, nil
	case DirWhile:
		return pipeline.Result{Replace: ast.NewLoop(
			ast.LoopKindWhile, d.Expr, "", "", bodyNodes(d), d.SourceSpan())}, nil
	case DirRaw:
		return lowerRaw(d)
	case DirCache:
		return lowerCache(d)
	case DirIf:
		// A lone if that pairing did not reach (e.g. a directive body).
		return pipeline.Result{Replace: ast.NewCond(
			[]*ast.CondBranch{{Expr: d.Expr, Body: bodyNodes(d)}}, nil, d.SourceSpan())}, nil
	case DirElseIf, DirElse:
		return pipeline.Keep, util.NewSyntaxError(
			d.Name+" directive has no preceding if", d.SourceSpan())
	}
	return pipeline.Keep, util.NewSyntaxError("unhandled directive "+d.Name, d.SourceSpan())
}

// lowerForeach parses the loop header "$items as $item" or
// "$items as $key => $item" and builds a foreach loop.
func lowerForeach(d *ast.Directive) (*ast.Loop, error) {
	parts := strings.SplitN(d.Expr, " as ", 2)
	if len(parts) != 2 {
		return nil, util.NewSyntaxError(
			"foreach header must be \"<expr> as $item\"", d.SourceSpan())
	}
	iterExpr := strings.TrimSpace(parts[0])
	binding := strings.TrimSpace(parts[1])

	keyVar := ""
	itemVar := binding
	if arrow := strings.Index(binding, "=>"); arrow >= 0 {
		keyVar = strings.TrimSpace(binding[:arrow])
		itemVar = strings.TrimSpace(binding[arrow+2:])
	}

	key, err := loopVar(keyVar, d.SourceSpan(), true)
	if err != nil {
		return nil, err
	}
	item, err := loopVar(itemVar, d.SourceSpan(), false)
	if err != nil {
		return nil, err
	}
	return ast.NewLoop(ast.LoopKindForeach, iterExpr, key, item, bodyNodes(d), d.SourceSpan()), nil
}

// loopVar validates a loop variable and strips its sigil
func loopVar(v string, span *util.ParseSourceSpan, optional bool) (string, error) {
	if v == "" {
		if optional {
			return "", nil
		}
		return "", util.NewSyntaxError("foreach header is missing the item variable", span)
	}
	if !strings.HasPrefix(v, "$") || len(v) == 1 {
		return "", util.NewSyntaxError("invalid loop variable "+strconv.Quote(v), span)
	}
	return v[1:], nil
}

// lowerRaw replaces the body's children with their original source bytes.
// Everything inside is emitted byte for byte, bypassing all further
// analysis: a deliberate trusted-content escape hatch.
func lowerRaw(d *ast.Directive) (pipeline.Result, error) {
	if d.Body == nil {
		return pipeline.Result{Remove: true}, nil
	}
	children := ast.ChildrenOf(d.Body)
	if len(children) > 0 {
		start := children[0].SourceSpan().Start
		end := maxEnd(children)
		text := start.File.Content[start.Offset:end.Offset]
		raw := ast.NewRawBlock(text, util.NewParseSourceSpan(start, end, nil))
		ast.SetChildrenOf(d.Body, []ast.Node{raw})
	}
	d.Body.MarkFinal()
	return pipeline.Result{Replace: d.Body}, nil
}

// maxEnd returns the latest end location covered by the node list, descending
// into containers in case a close tag was never found.
func maxEnd(nodes []ast.Node) *util.ParseLocation {
	var end *util.ParseLocation
	for _, n := range nodes {
		if span := n.SourceSpan(); span != nil {
			if end == nil || span.End.Offset > end.Offset {
				end = span.End
			}
		}
		if nested := maxEnd(ast.ChildrenOf(n)); nested != nil {
			if end == nil || nested.Offset > end.Offset {
				end = nested
			}
		}
	}
	return end
}

// lowerCache wraps the body in get/compute/store calls against the injected
// fragment cache.
func lowerCache(d *ast.Directive) (pipeline.Result, error) {
	ttl, err := parseCacheTTL(d.Arg, d.SourceSpan())
	if err != nil {
		return pipeline.Keep, err
	}
	key := strings.TrimSpace(d.Expr)
	if key == "" {
		return pipeline.Keep, util.NewSyntaxError("cache directive needs a key", d.SourceSpan())
	}
	if !strings.Contains(key, "$") {
		key = strconv.Quote(key)
	}
	return pipeline.Result{Replace: ast.NewCacheBlock(key, ttl, bodyNodes(d), d.SourceSpan())}, nil
}
