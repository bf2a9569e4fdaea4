package directives

import (
	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/loader"
	"stencil-go/packages/compiler/src/parser"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// InheritancePass resolves template inheritance before any other pass sees
// the tree: include directives splice another template's content in place,
// extends directives render the parent template with the child's same-named
// blocks substituted. Every touched template path is recorded in the
// dependency tracker.
type InheritancePass struct {
	pipeline.BasePass
	loader loader.SourceLoader
	parser *parser.Parser
}

// NewInheritancePass creates a new InheritancePass
func NewInheritancePass(l loader.SourceLoader, p *parser.Parser) *InheritancePass {
	return &InheritancePass{loader: l, parser: p}
}

// Name identifies the pass
func (p *InheritancePass) Name() string { return "inheritance" }

// Priority orders the pass
func (p *InheritancePass) Priority() int { return PriorityInheritance }

// Before resolves extends/include/block directives on the visited node
func (p *InheritancePass) Before(node ast.Node, cctx *pipeline.Context) (pipeline.Result, error) {
	if attr := takeDirective(node, DirExtends, cctx); attr != nil {
		return p.resolveExtends(node, attr, cctx)
	}
	if attr := takeDirective(node, DirInclude, cctx); attr != nil {
		return p.resolveInclude(attr, cctx)
	}
	// A block outside an inheritance chain renders its default children.
	takeDirective(node, DirBlock, cctx)
	return pipeline.Keep, nil
}

// resolveInclude splices the included template's resolved content in place
// of the node carrying the directive.
func (p *InheritancePass) resolveInclude(attr *ast.Attribute, cctx *pipeline.Context) (pipeline.Result, error) {
	path, err := directiveExpr(attr)
	if err != nil {
		return pipeline.Keep, err
	}
	doc, resolved, source, err := p.parseResolved(path, attr.SourceSpan, cctx)
	if err != nil {
		return pipeline.Keep, err
	}
	if err := p.resolveNested(doc, resolved, source, cctx); err != nil {
		return pipeline.Keep, err
	}
	return pipeline.Result{ReplaceMany: doc.Children}, nil
}

// resolveExtends renders the parent template with this node's same-named
// blocks substituted.
func (p *InheritancePass) resolveExtends(node ast.Node, attr *ast.Attribute, cctx *pipeline.Context) (pipeline.Result, error) {
	path, err := directiveExpr(attr)
	if err != nil {
		return pipeline.Keep, err
	}

	overrides := map[string][]ast.Node{}
	for _, child := range ast.ChildrenOf(node) {
		blockAttr := takeDirective(child, DirBlock, cctx)
		if blockAttr == nil {
			continue
		}
		name, err := directiveExpr(blockAttr)
		if err != nil {
			return pipeline.Keep, err
		}
		if name == "" {
			return pipeline.Keep, util.NewSyntaxError("block directive needs a name", blockAttr.SourceSpan)
		}
		overrides[name] = ast.ChildrenOf(child)
	}

	parent, resolved, source, err := p.parseResolved(path, attr.SourceSpan, cctx)
	if err != nil {
		return pipeline.Keep, err
	}
	// Substitution runs on the freshly parsed parent: the nested run strips
	// block attributes, and a parent that itself extends passes the
	// substituted blocks on as its own overrides.
	substituteBlocks(parent.Children, overrides, cctx)
	if err := p.resolveNested(parent, resolved, source, cctx); err != nil {
		return pipeline.Keep, err
	}
	return pipeline.Result{ReplaceMany: parent.Children}, nil
}

// maxNestingDepth bounds inheritance recursion, catching templates that
// include or extend themselves.
const maxNestingDepth = 64

// parseResolved resolves, loads and parses a referenced template, recording
// the path actually read in the dependency tracker.
func (p *InheritancePass) parseResolved(path string, span *util.ParseSourceSpan, cctx *pipeline.Context) (*ast.Document, string, string, error) {
	resolved := p.loader.Resolve(path, cctx.TemplatePath)
	source, actual, err := p.loader.Load(resolved)
	if err != nil {
		return nil, "", "", util.NewTemplateNotFoundError(path, span)
	}
	cctx.Tracker.AddTemplate(actual)

	result := p.parser.Parse(source, actual)
	if len(result.Errors) > 0 {
		return nil, "", "", result.Errors[0]
	}
	return result.Document, actual, source, nil
}

// resolveNested recursively resolves a loaded template's own inheritance
func (p *InheritancePass) resolveNested(doc *ast.Document, path, source string, cctx *pipeline.Context) error {
	sub := cctx.Nested(path, source)
	if sub.Depth > maxNestingDepth {
		return util.NewSyntaxError("template inheritance nested too deeply at "+path, nil)
	}
	return pipeline.NewPipeline(p).Run(doc, sub)
}

// substituteBlocks walks a parent tree replacing the children of every
// overridden block. Block attributes stay in place for the nested run to
// collect or strip; an override applies only to the outermost block of its
// name.
func substituteBlocks(nodes []ast.Node, overrides map[string][]ast.Node, cctx *pipeline.Context) {
	for _, node := range nodes {
		if blockAttr := peekDirective(node, DirBlock, cctx); blockAttr != nil {
			name, err := directiveExpr(blockAttr)
			if err == nil && name != "" && !blockOpen(cctx, name) {
				if override, ok := overrides[name]; ok {
					ast.SetChildrenOf(node, override)
					continue
				}
				cctx.PushBlock(name)
				substituteBlocks(ast.ChildrenOf(node), overrides, cctx)
				cctx.PopBlock()
				continue
			}
		}
		substituteBlocks(ast.ChildrenOf(node), overrides, cctx)
	}
}

// blockOpen reports whether a block of the given name is already open
func blockOpen(cctx *pipeline.Context, name string) bool {
	for _, open := range cctx.OpenBlocks() {
		if open == name {
			return true
		}
	}
	return false
}

// peekDirective returns the named directive attribute without removing it,
// or nil when absent.
func peekDirective(node ast.Node, name string, cctx *pipeline.Context) *ast.Attribute {
	full := cctx.Options.DirectivePrefix + name
	var attrs []*ast.Attribute
	switch n := node.(type) {
	case *ast.Element:
		attrs = n.Attributes
	case *ast.Fragment:
		attrs = n.Attributes
	default:
		return nil
	}
	for _, attr := range attrs {
		if attr.Name == full {
			return attr
		}
	}
	return nil
}

// takeDirective removes and returns the named directive attribute from a
// node, or nil when absent.
func takeDirective(node ast.Node, name string, cctx *pipeline.Context) *ast.Attribute {
	full := cctx.Options.DirectivePrefix + name
	var attrs []*ast.Attribute
	switch n := node.(type) {
	case *ast.Element:
		attrs = n.Attributes
	case *ast.Fragment:
		attrs = n.Attributes
	default:
		return nil
	}
	for i, attr := range attrs {
		if attr.Name == full {
			rest := append(append([]*ast.Attribute{}, attrs[:i]...), attrs[i+1:]...)
			switch n := node.(type) {
			case *ast.Element:
				n.Attributes = rest
			case *ast.Fragment:
				n.Attributes = rest
			}
			return attr
		}
	}
	return nil
}
