// Package engine wires the compiler front end, the pass pipeline, the code
// generator and the caches into one facade. An Engine compiles template
// paths into callable units and renders them, serving as the render-time
// component service for its own units.
package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"stencil-go/packages/compiler/src/analysis"
	"stencil-go/packages/compiler/src/cache"
	"stencil-go/packages/compiler/src/components"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/directives"
	"stencil-go/packages/compiler/src/loader"
	"stencil-go/packages/compiler/src/output"
	"stencil-go/packages/compiler/src/parser"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/runtime"
	"stencil-go/packages/compiler/src/util"
)

// Engine is a compiler instance. It owns the component registry, the unit
// store and the fragment cache; component ASTs memoized in the registry
// live as long as the engine.
type Engine struct {
	opts       *config.Options
	loader     loader.SourceLoader
	parser     *parser.Parser
	registry   *components.Registry
	store      cache.Store
	fragments  runtime.FragmentCache
	transforms *runtime.Registry
	receiver   interface{}
	logger     *slog.Logger
	cacheDir   string
}

// Option configures an Engine
type Option func(*Engine)

// WithLoader replaces the default filesystem loader
func WithLoader(l loader.SourceLoader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithStore replaces the default in-memory unit store
func WithStore(s cache.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithFragmentCache replaces the default in-memory fragment cache
func WithFragmentCache(c runtime.FragmentCache) Option {
	return func(e *Engine) { e.fragments = c }
}

// WithTransforms replaces the default transform registry
func WithTransforms(r *runtime.Registry) Option {
	return func(e *Engine) { e.transforms = r }
}

// WithReceiver binds an external receiver object to every rendered unit
func WithReceiver(receiver interface{}) Option {
	return func(e *Engine) { e.receiver = receiver }
}

// WithLogger replaces the default logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithCacheDir backs the unit store and the fragment cache with a persistent
// database under the directory, so compiled units survive process restarts.
// Explicit WithStore/WithFragmentCache options take precedence.
func WithCacheDir(dir string) Option {
	return func(e *Engine) { e.cacheDir = dir }
}

// New creates an engine rooted at the given template directory
func New(root string, opts *config.Options, engineOpts ...Option) (*Engine, error) {
	normalized, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		opts:       normalized,
		parser:     parser.NewParser(normalized),
		transforms: runtime.NewRegistry(),
		logger:     slog.Default(),
	}
	for _, opt := range engineOpts {
		opt(e)
	}
	if e.loader == nil {
		e.loader = loader.NewFilesystemLoader(root, normalized)
	}
	if e.store == nil {
		if e.cacheDir != "" {
			store, err := cache.NewBadgerStore(cache.BadgerConfig{Path: filepath.Join(e.cacheDir, "units")}, e)
			if err != nil {
				return nil, err
			}
			e.store = store
		} else {
			e.store = cache.NewMemoryStore(e)
		}
	}
	if e.fragments == nil {
		if e.cacheDir != "" {
			fragments, err := cache.NewBadgerFragmentCache(cache.BadgerConfig{Path: filepath.Join(e.cacheDir, "fragments")})
			if err != nil {
				return nil, err
			}
			e.fragments = fragments
		} else {
			e.fragments = cache.NewMemoryFragmentCache()
		}
	}
	e.registry = components.NewRegistry(e.loader, e.parser, normalized)
	return e, nil
}

// Close releases the persistent caches, when any are open
func (e *Engine) Close() error {
	var first error
	if closer, ok := e.store.(io.Closer); ok {
		first = closer.Close()
	}
	if closer, ok := e.fragments.(io.Closer); ok {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Compile compiles a template path into a callable unit, serving from the
// unit store when possible.
func (e *Engine) Compile(ctx context.Context, path string) (*runtime.Unit, error) {
	key := e.loader.Resolve(path, "")
	if entry, ok := e.store.Get(key, e.opts.Debug); ok {
		e.logger.Debug("unit cache hit", slog.String("template", key))
		return e.loadUnit(entry.Source)
	}

	start := time.Now()
	source, _, err := e.loader.Load(key)
	if err != nil {
		return nil, util.NewTemplateNotFoundError(path, nil)
	}
	program, tracker, err := e.compile(source, key)
	if err != nil {
		return nil, err
	}
	serialized, err := program.Marshal()
	if err != nil {
		return nil, err
	}
	ts, _ := e.loader.ModTime(key)
	entry := e.store.Put(key, serialized, tracker.Metadata(ts))
	e.logger.Debug("template compiled",
		slog.String("template", key),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("dependencies", len(entry.Metadata.Dependencies)))
	return e.newUnit(program), nil
}

// CompileSource compiles template source directly, bypassing the loader and
// the unit store.
func (e *Engine) CompileSource(source, name string) (*runtime.Unit, error) {
	program, _, err := e.compile(source, name)
	if err != nil {
		return nil, err
	}
	return e.newUnit(program), nil
}

// Render compiles a template path and renders it against a bindings map
func (e *Engine) Render(ctx context.Context, path string, bindings map[string]interface{}) (string, error) {
	unit, err := e.Compile(ctx, path)
	if err != nil {
		return "", err
	}
	return unit.Render(ctx, bindings)
}

// compile parses a source, runs the full pass pipeline and generates the
// program.
func (e *Engine) compile(source, path string) (*output.Program, *cache.DependencyTracker, error) {
	result := e.parser.Parse(source, path)
	if len(result.Errors) > 0 {
		return nil, nil, result.Errors[0]
	}

	tracker := cache.NewDependencyTracker()
	cctx := pipeline.NewContext(path, source, e.opts, tracker)
	if err := e.pipeline().Run(result.Document, cctx); err != nil {
		return nil, nil, err
	}

	program, err := output.NewGenerator(e.opts).Generate(result.Document, path)
	if err != nil {
		return nil, nil, err
	}
	if e.opts.ValidateGenerated {
		if err := runtime.Validate(program); err != nil {
			return nil, nil, util.NewSyntaxError(err.Error(), nil)
		}
	}
	return program, tracker, nil
}

// pipeline builds the full pass list; expansion carries per-compile state,
// so the pipeline is rebuilt per compile.
func (e *Engine) pipeline() *pipeline.Pipeline {
	return pipeline.NewPipeline(
		directives.NewInheritancePass(e.loader, e.parser),
		directives.NewExtractionPass(),
		directives.NewPairingPass(),
		directives.NewCompilationPass(),
		analysis.NewContextPass(),
		components.NewExpansionPass(e.registry, e.opts),
	)
}

func (e *Engine) newUnit(program *output.Program) *runtime.Unit {
	unit := runtime.NewUnit(program,
		runtime.WithComponentRenderer(e),
		runtime.WithFragmentCache(e.fragments),
		runtime.WithTransforms(e.transforms),
	)
	if e.receiver != nil {
		unit.Bind(e.receiver)
	}
	return unit
}

func (e *Engine) loadUnit(source string) (*runtime.Unit, error) {
	program, err := output.UnmarshalProgram(source)
	if err != nil {
		return nil, err
	}
	return e.newUnit(program), nil
}

// RenderComponent implements the render-time component service: it builds
// the invocation document for the dynamically named component, compiles it
// and renders with the evaluated arguments.
func (e *Engine) RenderComponent(ctx context.Context, name string, bindings map[string]interface{}, slots map[string]string, attrs map[string]string) (string, error) {
	tracker := cache.NewDependencyTracker()
	cctx := pipeline.NewContext(name, "", e.opts, tracker)

	slotNames := make([]string, 0, len(slots))
	for slotName := range slots {
		slotNames = append(slotNames, slotName)
	}
	doc, err := e.registry.RuntimeDocument(name, slotNames, attrs, cctx, nil)
	if err != nil {
		return "", err
	}
	if err := e.pipeline().Run(doc, cctx); err != nil {
		return "", err
	}
	program, err := output.NewGenerator(e.opts).Generate(doc, name)
	if err != nil {
		return "", err
	}

	env := map[string]interface{}{components.BindingsVar: bindings}
	for slotName, value := range slots {
		env[components.SlotVarPrefix+slotName] = value
	}
	return e.newUnit(program).Render(ctx, env)
}

// Fresh implements the store's freshness check: a stored unit is fresh when
// neither its own source nor any tracked dependency changed after it was
// compiled. A stale component dependency also drops the registry's memoized
// AST so the recompile reloads it.
func (e *Engine) Fresh(key string, meta cache.Metadata) bool {
	ts, err := e.loader.ModTime(key)
	if err != nil || ts > meta.SourceTimestamp {
		return false
	}
	fresh := true
	for _, dep := range meta.Dependencies {
		path, ok := e.dependencyPath(dep)
		depTS := int64(0)
		if ok {
			depTS, err = e.loader.ModTime(path)
			ok = err == nil
		}
		if !ok || depTS > meta.SourceTimestamp {
			if name, isComponent := cache.ComponentDependency(dep); isComponent {
				e.registry.Invalidate(name)
			}
			fresh = false
		}
	}
	return fresh
}

// dependencyPath resolves a tracked dependency identifier to a source path
func (e *Engine) dependencyPath(dep string) (string, bool) {
	if name, ok := cache.ComponentDependency(dep); ok {
		_, path, err := e.loader.LoadComponent(name)
		if err != nil {
			return "", false
		}
		return path, true
	}
	if path, ok := cache.TemplateDependency(dep); ok {
		return path, true
	}
	return "", false
}
