// Package components implements component expansion: resolving custom-tag
// and directive component invocations into inline scoped units, or into
// render-time calls when the name is only known at render time.
package components

import (
	"github.com/alphadose/haxmap"

	"stencil-go/packages/compiler/src/analysis"
	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/cache"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/directives"
	"stencil-go/packages/compiler/src/loader"
	"stencil-go/packages/compiler/src/parser"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// entry is one memoized component: its lowered AST, resolved path, and the
// template paths its inheritance chain touched.
type entry struct {
	doc       *ast.Document
	path      string
	templates []string
}

// Registry memoizes component ASTs by logical name for the lifetime of the
// owning compiler instance. A component is loaded and lowered once; every
// usage site works on a deep copy of the memoized tree.
type Registry struct {
	loader  loader.SourceLoader
	parser  *parser.Parser
	opts    *config.Options
	entries *haxmap.Map[string, *entry]
}

// NewRegistry creates a new Registry
func NewRegistry(l loader.SourceLoader, p *parser.Parser, opts *config.Options) *Registry {
	return &Registry{
		loader:  l,
		parser:  p,
		opts:    opts,
		entries: haxmap.New[string, *entry](),
	}
}

// Resolve returns a deep copy of the named component's lowered AST. The
// component's own template dependencies are recorded in the compile's
// tracker on every use, memoized or not.
func (r *Registry) Resolve(name string, cctx *pipeline.Context, span *util.ParseSourceSpan) (*ast.Document, error) {
	e, ok := r.entries.Get(name)
	if !ok {
		loaded, err := r.load(name, span)
		if err != nil {
			return nil, err
		}
		e, _ = r.entries.GetOrSet(name, loaded)
	}

	cctx.Tracker.AddComponent(name)
	for _, path := range e.templates {
		cctx.Tracker.AddTemplate(path)
	}
	copied := ast.CloneNode(e.doc).(*ast.Document)
	return copied, nil
}

// Invalidate drops the memoized AST for a component so the next use reloads
// it from source.
func (r *Registry) Invalidate(name string) {
	r.entries.Del(name)
}

// load parses a component and runs its inheritance, directive and
// context-resolution sub-pipeline. Contexts must resolve here: the usage
// site's own resolution pass has already run by the time the body is
// spliced in. Expansion of nested components is left to the usage site.
func (r *Registry) load(name string, span *util.ParseSourceSpan) (*entry, error) {
	source, path, err := r.loader.LoadComponent(name)
	if err != nil {
		return nil, util.NewComponentNotFoundError(name, span)
	}

	result := r.parser.Parse(source, path)
	if len(result.Errors) > 0 {
		return nil, result.Errors[0]
	}

	tracker := cache.NewDependencyTracker()
	sub := pipeline.NewContext(path, source, r.opts, tracker)
	pl := pipeline.NewPipeline(
		directives.NewInheritancePass(r.loader, r.parser),
		directives.NewExtractionPass(),
		directives.NewPairingPass(),
		directives.NewCompilationPass(),
		analysis.NewContextPass(),
	)
	if err := pl.Run(result.Document, sub); err != nil {
		return nil, err
	}
	return &entry{doc: result.Document, path: path, templates: tracker.Templates()}, nil
}
