// Package directives implements the directive passes of the compiler
// pipeline: extraction of reserved-prefixed attributes, pairing of
// conditional chains, lowering to code-emission shape, and template
// inheritance resolution.
package directives

import (
	"strconv"
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// Pass priorities; inheritance resolves before anything else sees the tree.
const (
	PriorityInheritance = 10
	PriorityExtraction  = 20
	PriorityPairing     = 30
	PriorityCompilation = 40
)

// Directive name constants
const (
	DirIf        = "if"
	DirElseIf    = "else-if"
	DirElse      = "else"
	DirForeach   = "foreach"
	DirWhile     = "while"
	DirRaw       = "raw"
	DirCache     = "cache"
	DirCacheTTL  = "cache-ttl"
	DirClass     = "class"
	DirAttrs     = "attrs"
	DirComponent = "component"
	DirBind      = "bind"
	DirExtends   = "extends"
	DirInclude   = "include"
	DirBlock     = "block"
)

var controlFlowOrder = []string{DirRaw, DirCache, DirIf, DirElseIf, DirElse, DirForeach, DirWhile}

var knownDirectives = map[string]bool{
	DirIf: true, DirElseIf: true, DirElse: true,
	DirForeach: true, DirWhile: true,
	DirRaw: true, DirCache: true, DirCacheTTL: true,
	DirClass: true, DirAttrs: true,
	DirComponent: true, DirBind: true,
	DirExtends: true, DirInclude: true, DirBlock: true,
}

// ExtractionPass recognizes reserved-prefixed attributes on element,
// fragment and component nodes and classifies them into control-flow,
// attribute-mutating, component-invocation and binding-map directives.
type ExtractionPass struct {
	pipeline.BasePass
}

// NewExtractionPass creates a new ExtractionPass
func NewExtractionPass() *ExtractionPass {
	return &ExtractionPass{}
}

// Name identifies the pass
func (p *ExtractionPass) Name() string { return "directive-extraction" }

// Priority orders the pass
func (p *ExtractionPass) Priority() int { return PriorityExtraction }

// extracted groups the directives found on one node
type extracted struct {
	control    []*ast.DirectiveAttr
	mutations  []*ast.DirectiveAttr
	invocation *ast.DirectiveAttr
	binding    *ast.DirectiveAttr
	cacheTTL   string
}

// Before extracts and classifies directives on the visited node
func (p *ExtractionPass) Before(node ast.Node, cctx *pipeline.Context) (pipeline.Result, error) {
	switch n := node.(type) {
	case *ast.Element:
		ex, rest, err := p.extract(n.Attributes, cctx)
		if err != nil {
			return pipeline.Keep, err
		}
		if ex == nil {
			return pipeline.Keep, nil
		}
		n.Attributes = rest
		n.Mutations = ex.mutations
		n.Invocation = ex.invocation
		n.Binding = ex.binding
		return p.wrap(n, ex, n.SourceSpan())
	case *ast.Fragment:
		ex, rest, err := p.extract(n.Attributes, cctx)
		if err != nil {
			return pipeline.Keep, err
		}
		if ex == nil {
			return pipeline.Keep, nil
		}
		n.Attributes = rest
		n.Mutations = ex.mutations
		n.Invocation = ex.invocation
		n.Binding = ex.binding
		return p.wrap(n, ex, n.SourceSpan())
	case *ast.Component:
		ex, rest, err := p.extract(n.Attributes, cctx)
		if err != nil {
			return pipeline.Keep, err
		}
		if ex == nil {
			return pipeline.Keep, nil
		}
		if ex.invocation != nil {
			return pipeline.Keep, util.NewSyntaxError(
				"component-invocation directive is not allowed on a component tag", n.SourceSpan())
		}
		n.Attributes = rest
		n.Mutations = ex.mutations
		n.Binding = ex.binding
		return p.wrap(n, ex, n.SourceSpan())
	}
	return pipeline.Keep, nil
}

// extract removes recognized directive attributes from the attribute list.
// It returns nil when the node carries no directives.
func (p *ExtractionPass) extract(attrs []*ast.Attribute, cctx *pipeline.Context) (*extracted, []*ast.Attribute, error) {
	opts := cctx.Options
	var ex *extracted
	rest := make([]*ast.Attribute, 0, len(attrs))

	for _, attr := range attrs {
		if !opts.IsDirectiveAttr(attr.Name) {
			rest = append(rest, attr)
			continue
		}
		name := opts.DirectiveName(attr.Name)
		if !knownDirectives[name] {
			if cctx.Options.StrictDirectives {
				return nil, nil, util.NewUnknownDirectiveError(attr.Name, attr.SourceSpan)
			}
			// Pass-through: the attribute renders literally.
			rest = append(rest, attr)
			continue
		}
		expr, err := directiveExpr(attr)
		if err != nil {
			return nil, nil, err
		}
		if ex == nil {
			ex = &extracted{}
		}
		da := &ast.DirectiveAttr{Name: name, Expr: expr, SourceSpan: attr.SourceSpan}
		switch name {
		case DirClass, DirAttrs:
			ex.mutations = append(ex.mutations, da)
		case DirComponent:
			ex.invocation = da
		case DirBind:
			ex.binding = da
		case DirCacheTTL:
			ex.cacheTTL = expr
		default:
			ex.control = append(ex.control, da)
		}
	}
	if ex == nil {
		return nil, attrs, nil
	}
	return ex, rest, nil
}

// directiveExpr returns a directive attribute's expression text. Directive
// values must be static: an embedded output inside a directive value has no
// meaning.
func directiveExpr(attr *ast.Attribute) (string, error) {
	switch v := attr.Value.(type) {
	case *ast.StaticValue:
		return strings.TrimSpace(v.Text), nil
	case *ast.BooleanValue:
		return "", nil
	}
	return "", util.NewSyntaxError(
		"directive "+attr.Name+" must have a static value", attr.SourceSpan)
}

// wrap nests the node inside control-flow directive wrappers, outermost
// first in a fixed precedence: raw, cache, conditionals, loops.
func (p *ExtractionPass) wrap(node ast.Node, ex *extracted, span *util.ParseSourceSpan) (pipeline.Result, error) {
	if len(ex.control) == 0 {
		return pipeline.Keep, nil
	}

	// Raw passthrough wins over any other control flow on the same node:
	// its content bypasses all further analysis, so the body is sealed here.
	for _, da := range ex.control {
		if da.Name == DirRaw {
			node.MarkFinal()
			d := ast.NewDirective(DirRaw, da.Expr, node, da.SourceSpan)
			return pipeline.Result{Replace: d, SkipChildren: true}, nil
		}
	}

	ordered := make([]*ast.DirectiveAttr, 0, len(ex.control))
	for _, name := range controlFlowOrder {
		for _, da := range ex.control {
			if da.Name == name {
				ordered = append(ordered, da)
			}
		}
	}

	wrapped := node
	for i := len(ordered) - 1; i >= 0; i-- {
		da := ordered[i]
		d := ast.NewDirective(da.Name, da.Expr, wrapped, da.SourceSpan)
		if da.Name == DirCache {
			d.Arg = ex.cacheTTL
		}
		wrapped = d
	}
	return pipeline.Result{Replace: wrapped}, nil
}

// parseCacheTTL parses a fragment-cache TTL in seconds
func parseCacheTTL(arg string, span *util.ParseSourceSpan) (int, error) {
	if arg == "" {
		return 0, nil
	}
	ttl, err := strconv.Atoi(arg)
	if err != nil || ttl < 0 {
		return 0, util.NewSyntaxError("invalid cache TTL "+strconv.Quote(arg), span)
	}
	return ttl, nil
}
