package components

import (
	"strconv"
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/escape"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// lowerRuntimeCall lowers a dynamically named invocation to a render-time
// call: name, binding map, slot map and attribute map all evaluate at
// render time. Attribute and slot values lower to single expressions.
func (p *ExpansionPass) lowerRuntimeCall(nameExpr string, u usage) (pipeline.Result, error) {
	bindings := ""
	if u.binding != nil {
		if err := validateBindingExpr(u.binding.Expr, u.binding.SourceSpan); err != nil {
			return pipeline.Keep, err
		}
		bindings = u.binding.Expr
	}

	attrs := make(map[string]string, len(u.attrs))
	for _, attr := range u.attrs {
		expr, err := attrValueExpr(attr)
		if err != nil {
			return pipeline.Keep, err
		}
		attrs[attr.Name] = expr
	}

	slotNodes, order := extractSlots(u.children)
	slots := make(map[string]string, len(order))
	for _, name := range order {
		expr, err := slotExpr(slotNodes[name], p.opts)
		if err != nil {
			return pipeline.Keep, err
		}
		slots[name] = expr
	}

	call := ast.NewRuntimeCall(nameExpr, bindings, slots, attrs, u.span)
	return pipeline.Result{Replace: call, SkipChildren: true}, nil
}

// attrValueExpr lowers one attribute value to a render-time expression. A
// boolean attribute lowers to the explicit absent marker.
func attrValueExpr(attr *ast.Attribute) (string, error) {
	switch v := attr.Value.(type) {
	case *ast.BooleanValue:
		return "nil", nil
	case *ast.StaticValue:
		return strconv.Quote(v.Text), nil
	case *ast.OutputValue:
		return "string(" + v.Output.Expr + ")", nil
	case *ast.PartsValue:
		segs := make([]string, 0, len(v.Parts))
		for _, part := range v.Parts {
			switch pv := part.(type) {
			case *ast.StaticValue:
				segs = append(segs, strconv.Quote(pv.Text))
			case *ast.OutputValue:
				segs = append(segs, "string("+pv.Output.Expr+")")
			}
		}
		return strings.Join(segs, " + "), nil
	}
	return "", util.NewSyntaxError("attribute "+attr.Name+" cannot be passed to a dynamic component", attr.SourceSpan)
}

// slotExpr lowers slot content to one concatenation expression. Output
// segments are escaped at evaluation so the receiving component can treat
// slot content as already escaped; control flow inside a dynamic slot has
// no render-time lowering and is rejected.
func slotExpr(nodes []ast.Node, opts *config.Options) (string, error) {
	var segs []string
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, strconv.Quote(lit.String()))
			lit.Reset()
		}
	}
	var walk func(nodes []ast.Node) error
	walk = func(nodes []ast.Node) error {
		for _, node := range nodes {
			switch n := node.(type) {
			case *ast.Text:
				lit.WriteString(n.Value)
			case *ast.RawBlock:
				lit.WriteString(n.Text)
			case *ast.Output:
				if len(n.Transforms) > 0 {
					return util.NewSyntaxError("transforms are not supported in dynamic component slots", n.SourceSpan())
				}
				flush()
				if n.Escape {
					segs = append(segs, "escape("+n.Expr+")")
				} else {
					segs = append(segs, "string("+n.Expr+")")
				}
			case *ast.Element:
				if err := writeElement(n, &lit, flush, &segs, opts, walk); err != nil {
					return err
				}
			case *ast.Fragment:
				if err := walk(n.Children); err != nil {
					return err
				}
			default:
				return util.NewSyntaxError("dynamic component slots support only markup and output content", node.SourceSpan())
			}
		}
		return nil
	}
	if err := walk(nodes); err != nil {
		return "", err
	}
	flush()
	if len(segs) == 0 {
		return `""`, nil
	}
	return strings.Join(segs, " + "), nil
}

// writeElement lowers one element of a dynamic slot
func writeElement(n *ast.Element, lit *strings.Builder, flush func(), segs *[]string, opts *config.Options, walk func([]ast.Node) error) error {
	lit.WriteString("<" + n.Tag)
	for _, attr := range n.Attributes {
		lit.WriteString(" " + attr.Name)
		switch v := attr.Value.(type) {
		case *ast.BooleanValue:
		case *ast.StaticValue:
			lit.WriteString(`="` + escape.HTMLAttr(v.Text) + `"`)
		case *ast.OutputValue:
			lit.WriteString(`="`)
			flush()
			*segs = append(*segs, "string("+v.Output.Expr+")")
			lit.WriteString(`"`)
		case *ast.PartsValue:
			lit.WriteString(`="`)
			for _, part := range v.Parts {
				switch pv := part.(type) {
				case *ast.StaticValue:
					lit.WriteString(escape.HTMLAttr(pv.Text))
				case *ast.OutputValue:
					flush()
					*segs = append(*segs, "string("+pv.Output.Expr+")")
				}
			}
			lit.WriteString(`"`)
		}
	}
	void := opts.IsVoidTag(n.Tag)
	if n.SelfClosing && !void {
		lit.WriteString("/>")
		return nil
	}
	lit.WriteString(">")
	if void {
		return nil
	}
	if err := walk(n.Children); err != nil {
		return err
	}
	lit.WriteString("</" + n.Tag + ">")
	return nil
}
