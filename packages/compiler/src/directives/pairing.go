package directives

import (
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// PairingPass chains consecutive sibling if/else-if/else directives into one
// conditional construct with an ordered branch list and an optional default
// branch. Only whitespace-only text may sit between chain members.
type PairingPass struct {
	pipeline.BasePass
}

// NewPairingPass creates a new PairingPass
func NewPairingPass() *PairingPass {
	return &PairingPass{}
}

// Name identifies the pass
func (p *PairingPass) Name() string { return "directive-pairing" }

// Priority orders the pass
func (p *PairingPass) Priority() int { return PriorityPairing }

// After rewrites the child list of container nodes, merging conditional
// chains.
func (p *PairingPass) After(node ast.Node, cctx *pipeline.Context) (pipeline.Result, error) {
	switch n := node.(type) {
	case *ast.Document:
		children, err := pairChildren(n.Children)
		if err != nil {
			return pipeline.Keep, err
		}
		n.Children = children
	case *ast.Element:
		children, err := pairChildren(n.Children)
		if err != nil {
			return pipeline.Keep, err
		}
		n.Children = children
	case *ast.Fragment:
		children, err := pairChildren(n.Children)
		if err != nil {
			return pipeline.Keep, err
		}
		n.Children = children
	case *ast.Component:
		children, err := pairChildren(n.Children)
		if err != nil {
			return pipeline.Keep, err
		}
		n.Children = children
	}
	return pipeline.Keep, nil
}

// pairChildren merges conditional chains in one sibling list. Whitespace-only
// text between chain members is dropped with the chain.
func pairChildren(children []ast.Node) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(children))
	i := 0
	for i < len(children) {
		d, ok := children[i].(*ast.Directive)
		if !ok {
			out = append(out, children[i])
			i++
			continue
		}

		switch d.Name {
		case DirElseIf, DirElse:
			return nil, util.NewSyntaxError(
				d.Name+" directive has no preceding if", d.SourceSpan())
		case DirIf:
			cond, next, err := collectChain(children, i)
			if err != nil {
				return nil, err
			}
			out = append(out, cond)
			i = next
		default:
			out = append(out, d)
			i++
		}
	}
	return out, nil
}

// collectChain builds one Cond from the chain starting at the if directive
// at index i, returning the index after the chain.
func collectChain(children []ast.Node, i int) (*ast.Cond, int, error) {
	head := children[i].(*ast.Directive)
	branches := []*ast.CondBranch{{Expr: head.Expr, Body: bodyNodes(head)}}
	var elseBody []ast.Node
	span := head.SourceSpan()
	i++

	for i < len(children) {
		j := skipWhitespace(children, i)
		if j >= len(children) {
			break
		}
		d, ok := children[j].(*ast.Directive)
		if !ok {
			break
		}
		if d.Name == DirElseIf {
			branches = append(branches, &ast.CondBranch{Expr: d.Expr, Body: bodyNodes(d)})
			i = j + 1
			continue
		}
		if d.Name == DirElse {
			elseBody = bodyNodes(d)
			i = j + 1
		}
		break
	}
	return ast.NewCond(branches, elseBody, span), i, nil
}

// skipWhitespace returns the index of the next node that is not
// whitespace-only text.
func skipWhitespace(children []ast.Node, i int) int {
	for i < len(children) {
		t, ok := children[i].(*ast.Text)
		if !ok || strings.TrimSpace(t.Value) != "" {
			return i
		}
		i++
	}
	return i
}

func bodyNodes(d *ast.Directive) []ast.Node {
	if d.Body == nil {
		return nil
	}
	return []ast.Node{d.Body}
}
