// Package pipeline runs the ordered multi-pass AST transformation: each pass
// visits the document pre- and post-order and may replace a node, delete it,
// or mark a subtree as already-final so later passes skip it.
package pipeline

import (
	"sort"

	"stencil-go/packages/compiler/src/ast"
)

// Result is the explicit outcome of one pass step on one node
type Result struct {
	// Replace substitutes the node; nil keeps it. Replacing in Before still
	// descends into the replacement unless SkipChildren is set.
	Replace ast.Node
	// ReplaceMany substitutes the node with several siblings; they are not
	// descended into during this visit.
	ReplaceMany []ast.Node
	// Remove deletes the node
	Remove bool
	// SkipChildren suppresses descending into the node's children
	SkipChildren bool
}

// Keep is the zero Result: keep the node and descend
var Keep = Result{}

// Pass is one transformation step of the compiler pipeline
type Pass interface {
	// Name identifies the pass in diagnostics
	Name() string
	// Priority orders passes; lower runs first
	Priority() int
	// Before is called pre-order
	Before(node ast.Node, cctx *Context) (Result, error)
	// After is called post-order, when the node's children have been
	// rebuilt
	After(node ast.Node, cctx *Context) (Result, error)
}

// BasePass provides no-op hooks for passes that only need one of them
type BasePass struct{}

// Before keeps the node and descends
func (BasePass) Before(node ast.Node, cctx *Context) (Result, error) {
	return Keep, nil
}

// After keeps the node
func (BasePass) After(node ast.Node, cctx *Context) (Result, error) {
	return Keep, nil
}

// Pipeline is an ordered, fixed-priority list of passes
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a pipeline from the given passes, ordered by priority
func NewPipeline(passes ...Pass) *Pipeline {
	sorted := make([]Pass, len(passes))
	copy(sorted, passes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Pipeline{passes: sorted}
}

// Run applies every pass, in order, to the document
func (p *Pipeline) Run(doc *ast.Document, cctx *Context) error {
	for _, pass := range p.passes {
		children, err := p.transformList(doc.Children, cctx, pass)
		if err != nil {
			return err
		}
		doc.Children = children
		if _, err := pass.After(doc, cctx); err != nil {
			return err
		}
	}
	return nil
}

// transformList rebuilds a child list bottom-up under one pass. Children are
// collected into a fresh slice; nodes are never spliced in place.
func (p *Pipeline) transformList(nodes []ast.Node, cctx *Context, pass Pass) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(nodes))
	for _, node := range nodes {
		replaced, err := p.transformNode(node, cctx, pass)
		if err != nil {
			return nil, err
		}
		out = append(out, replaced...)
	}
	return out, nil
}

// transformNode applies one pass to one node and returns its replacement
// list: the node itself, a substitute, several siblings, or nothing.
func (p *Pipeline) transformNode(node ast.Node, cctx *Context, pass Pass) ([]ast.Node, error) {
	if node.IsFinal() {
		return []ast.Node{node}, nil
	}

	res, err := pass.Before(node, cctx)
	if err != nil {
		return nil, err
	}
	if res.Remove {
		return nil, nil
	}
	if res.ReplaceMany != nil {
		return res.ReplaceMany, nil
	}
	if res.Replace != nil {
		node = res.Replace
	}

	if !res.SkipChildren && !node.IsFinal() {
		if err := p.descend(node, cctx, pass); err != nil {
			return nil, err
		}
	}

	res, err = pass.After(node, cctx)
	if err != nil {
		return nil, err
	}
	if res.Remove {
		return nil, nil
	}
	if res.ReplaceMany != nil {
		return res.ReplaceMany, nil
	}
	if res.Replace != nil {
		node = res.Replace
	}
	return []ast.Node{node}, nil
}

// descend rebuilds the child collections of a container node
func (p *Pipeline) descend(node ast.Node, cctx *Context, pass Pass) error {
	switch n := node.(type) {
	case *ast.Element:
		children, err := p.transformList(n.Children, cctx, pass)
		if err != nil {
			return err
		}
		n.Children = children
	case *ast.Fragment:
		children, err := p.transformList(n.Children, cctx, pass)
		if err != nil {
			return err
		}
		n.Children = children
	case *ast.Component:
		children, err := p.transformList(n.Children, cctx, pass)
		if err != nil {
			return err
		}
		n.Children = children
	case *ast.Directive:
		if n.Body != nil {
			body, err := p.transformNode(n.Body, cctx, pass)
			if err != nil {
				return err
			}
			switch len(body) {
			case 0:
				n.Body = nil
			case 1:
				n.Body = body[0]
			default:
				// Multiple replacements under a directive wrap in a fragment.
				n.Body = ast.NewFragment(nil, body, false, n.SourceSpan())
			}
		}
	case *ast.Cond:
		for _, br := range n.Branches {
			body, err := p.transformList(br.Body, cctx, pass)
			if err != nil {
				return err
			}
			br.Body = body
		}
		elseBody, err := p.transformList(n.Else, cctx, pass)
		if err != nil {
			return err
		}
		n.Else = elseBody
	case *ast.Loop:
		body, err := p.transformList(n.Body, cctx, pass)
		if err != nil {
			return err
		}
		n.Body = body
	case *ast.CacheBlock:
		body, err := p.transformList(n.Body, cctx, pass)
		if err != nil {
			return err
		}
		n.Body = body
	case *ast.ScopedUnit:
		for name, slot := range n.Slots {
			rebuilt, err := p.transformList(slot, cctx, pass)
			if err != nil {
				return err
			}
			n.Slots[name] = rebuilt
		}
		body, err := p.transformList(n.Body, cctx, pass)
		if err != nil {
			return err
		}
		n.Body = body
	}
	return nil
}
