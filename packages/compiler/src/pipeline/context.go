package pipeline

import (
	"stencil-go/packages/compiler/src/cache"
	"stencil-go/packages/compiler/src/config"
)

// Context is the per-compile transient state threaded through every pass.
// One Context exists per top-level compile and one per nested component
// sub-compile; nested contexts share the top-level dependency tracker.
type Context struct {
	// TemplatePath is the canonical path of the template being compiled
	TemplatePath string
	// Source is the raw template source
	Source string
	// Debug mirrors the engine debug flag
	Debug bool
	// Options is the engine's compile-time configuration
	Options *config.Options
	// Tracker records every component and template touched during the
	// top-level compile this context belongs to.
	Tracker *cache.DependencyTracker
	// blockStack tracks the named inheritance blocks currently open
	blockStack []string
	// Depth is zero at top level and increments per nested sub-compile
	Depth int
}

// NewContext creates a compile context for a top-level compile
func NewContext(templatePath, source string, opts *config.Options, tracker *cache.DependencyTracker) *Context {
	return &Context{
		TemplatePath: templatePath,
		Source:       source,
		Debug:        opts.Debug,
		Options:      opts,
		Tracker:      tracker,
	}
}

// Nested creates a context for a sub-compile, an inherited parent or a
// component body, sharing this context's tracker.
func (c *Context) Nested(templatePath, source string) *Context {
	return &Context{
		TemplatePath: templatePath,
		Source:       source,
		Debug:        c.Debug,
		Options:      c.Options,
		Tracker:      c.Tracker,
		Depth:        c.Depth + 1,
	}
}

// PushBlock opens a named inheritance block
func (c *Context) PushBlock(name string) {
	c.blockStack = append(c.blockStack, name)
}

// PopBlock closes the innermost open block
func (c *Context) PopBlock() {
	if len(c.blockStack) > 0 {
		c.blockStack = c.blockStack[:len(c.blockStack)-1]
	}
}

// OpenBlocks returns the names of the currently open blocks
func (c *Context) OpenBlocks() []string {
	return c.blockStack
}
