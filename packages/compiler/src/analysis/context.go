// Package analysis implements the context-resolution pass. It runs after
// directive lowering and assigns every output expression its escaping
// context based on where the output sits in the document.
package analysis

import (
	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/pipeline"
)

// PriorityAnalysis orders context resolution after directive compilation and
// before component expansion.
const PriorityAnalysis = 50

// ContextPass resolves the escaping context of every output expression.
// Outputs in markup position escape for HTML, outputs inside attribute
// values escape for attribute position; an explicitly requested JSON context
// is upgraded to its attribute variant when the output sits in an attribute.
// Raw outputs are left untouched.
type ContextPass struct {
	pipeline.BasePass
}

// NewContextPass creates a new ContextPass
func NewContextPass() *ContextPass {
	return &ContextPass{}
}

// Name identifies the pass
func (p *ContextPass) Name() string { return "context-resolution" }

// Priority orders the pass
func (p *ContextPass) Priority() int { return PriorityAnalysis }

// Before resolves the context of the visited node's outputs
func (p *ContextPass) Before(node ast.Node, cctx *pipeline.Context) (pipeline.Result, error) {
	switch n := node.(type) {
	case *ast.Output:
		resolve(n, false)
	case *ast.Element:
		resolveAttrs(n.Attributes)
	case *ast.Fragment:
		resolveAttrs(n.Attributes)
	case *ast.Component:
		resolveAttrs(n.Attributes)
	}
	return pipeline.Keep, nil
}

// resolveAttrs resolves every output embedded in an attribute list
func resolveAttrs(attrs []*ast.Attribute) {
	for _, attr := range attrs {
		resolveValue(attr.Value)
	}
}

func resolveValue(v ast.AttributeValue) {
	switch val := v.(type) {
	case *ast.OutputValue:
		resolve(val.Output, true)
	case *ast.PartsValue:
		for _, part := range val.Parts {
			resolveValue(part)
		}
	}
}

// resolve assigns the final context of one output. A context forced at
// parse time (raw or JSON) is kept, except that JSON moves to its attribute
// variant in attribute position.
func resolve(out *ast.Output, inAttribute bool) {
	switch out.Context {
	case ast.ContextRaw:
		return
	case ast.ContextJSON:
		if inAttribute {
			out.Context = ast.ContextJSONAttr
		}
		return
	case ast.ContextNone:
		if inAttribute {
			out.Context = ast.ContextHTMLAttr
		} else {
			out.Context = ast.ContextHTML
		}
	}
}
