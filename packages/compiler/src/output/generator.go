package output

import (
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/escape"
	"stencil-go/packages/compiler/src/util"
)

// Generator serializes a fully lowered AST into a compiled program. It
// expects the pipeline to have run to completion: component and directive
// nodes reaching the generator are compile errors.
type Generator struct {
	opts *config.Options
}

// NewGenerator creates a new Generator
func NewGenerator(opts *config.Options) *Generator {
	return &Generator{opts: opts}
}

// Generate serializes a document into a program
func (g *Generator) Generate(doc *ast.Document, path string) (*Program, error) {
	e := newEmitter(g.opts)
	if err := e.emitNodes(doc.Children); err != nil {
		return nil, err
	}
	return &Program{Path: path, Ops: e.finish()}, nil
}

// emitter accumulates instructions, merging adjacent text chunks
type emitter struct {
	opts *config.Options
	ops  []*Op
	text strings.Builder
}

func newEmitter(opts *config.Options) *emitter {
	return &emitter{opts: opts}
}

// writeText buffers verbatim output text
func (e *emitter) writeText(s string) {
	e.text.WriteString(s)
}

// push flushes buffered text and appends an instruction
func (e *emitter) push(op *Op) {
	e.flushText()
	e.ops = append(e.ops, op)
}

func (e *emitter) flushText() {
	if e.text.Len() > 0 {
		e.ops = append(e.ops, &Op{Kind: OpText, Text: e.text.String()})
		e.text.Reset()
	}
}

func (e *emitter) finish() []*Op {
	e.flushText()
	if e.ops == nil {
		return []*Op{}
	}
	return e.ops
}

func (e *emitter) emitNodes(nodes []ast.Node) error {
	for _, node := range nodes {
		if err := e.emitNode(node); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) emitNode(node ast.Node) error {
	switch n := node.(type) {
	case *ast.Text:
		e.writeText(n.Value)
	case *ast.RawBlock:
		e.writeText(n.Text)
	case *ast.Output:
		e.push(outputOp(n))
	case *ast.RawCode:
		e.push(&Op{Kind: OpCode, Expr: n.Code, Line: lineOf(n.SourceSpan())})
	case *ast.Element:
		return e.emitElement(n)
	case *ast.Fragment:
		return e.emitNodes(n.Children)
	case *ast.Document:
		return e.emitNodes(n.Children)
	case *ast.Cond:
		return e.emitCond(n)
	case *ast.Loop:
		return e.emitLoop(n)
	case *ast.CacheBlock:
		return e.emitCache(n)
	case *ast.ScopedUnit:
		return e.emitScope(n)
	case *ast.RuntimeCall:
		e.push(&Op{
			Kind:      OpComponent,
			Expr:      n.NameExpr,
			Bindings:  n.BindingsExpr,
			Attrs:     n.Attrs,
			SlotExprs: n.Slots,
			Line:      lineOf(n.SourceSpan()),
		})
	case *ast.Component:
		return util.NewSyntaxError("component "+n.Name+" was not expanded", n.SourceSpan())
	case *ast.Directive:
		return util.NewSyntaxError("directive "+n.Name+" was not lowered", n.SourceSpan())
	}
	return nil
}

// outputOp lowers one output expression
func outputOp(n *ast.Output) *Op {
	op := &Op{
		Kind:    OpOut,
		Expr:    n.Expr,
		Context: string(n.Context),
		Escape:  n.Escape,
		Line:    lineOf(n.SourceSpan()),
	}
	for _, t := range n.Transforms {
		op.Transforms = append(op.Transforms, &Transform{Name: t.Name, Args: t.Args})
	}
	return op
}

func (e *emitter) emitElement(n *ast.Element) error {
	e.writeText("<" + n.Tag)

	classExpr := ""
	var spreads []string
	for _, m := range n.Mutations {
		switch m.Name {
		case "class":
			classExpr = m.Expr
		case "attrs":
			spreads = append(spreads, m.Expr)
		}
	}

	for _, attr := range n.Attributes {
		if attr.Name == "class" && classExpr != "" {
			continue
		}
		if err := e.emitAttribute(attr); err != nil {
			return err
		}
	}
	if classExpr != "" {
		e.writeText(` class="`)
		if static := findStaticAttr(n.Attributes, "class"); static != "" {
			e.writeText(escape.HTMLAttr(static) + " ")
		}
		e.push(&Op{
			Kind:       OpOut,
			Expr:       classExpr,
			Context:    string(ast.ContextHTMLAttr),
			Escape:     true,
			Transforms: []*Transform{{Name: "class"}},
			Line:       lineOf(n.SourceSpan()),
		})
		e.writeText(`"`)
	}
	for _, expr := range spreads {
		// The spread transform renders fully formed attribute text.
		e.push(&Op{
			Kind:       OpOut,
			Expr:       expr,
			Context:    string(ast.ContextRaw),
			Transforms: []*Transform{{Name: "attrs"}},
			Line:       lineOf(n.SourceSpan()),
		})
	}

	void := e.opts.IsVoidTag(n.Tag)
	if n.SelfClosing && !void {
		e.writeText("/>")
		return nil
	}
	e.writeText(">")
	if void {
		return nil
	}
	if err := e.emitNodes(n.Children); err != nil {
		return err
	}
	e.writeText("</" + n.Tag + ">")
	return nil
}

func (e *emitter) emitAttribute(attr *ast.Attribute) error {
	e.writeText(" " + attr.Name)
	switch v := attr.Value.(type) {
	case *ast.BooleanValue:
		return nil
	case *ast.StaticValue:
		e.writeText(`="` + escape.HTMLAttr(v.Text) + `"`)
	case *ast.OutputValue:
		e.writeText(`="`)
		e.push(outputOp(v.Output))
		e.writeText(`"`)
	case *ast.PartsValue:
		e.writeText(`="`)
		for _, part := range v.Parts {
			switch p := part.(type) {
			case *ast.StaticValue:
				e.writeText(escape.HTMLAttr(p.Text))
			case *ast.OutputValue:
				e.push(outputOp(p.Output))
			}
		}
		e.writeText(`"`)
	}
	return nil
}

func (e *emitter) emitCond(n *ast.Cond) error {
	op := &Op{Kind: OpIf, Line: lineOf(n.SourceSpan())}
	for _, branch := range n.Branches {
		body, err := e.emitNested(branch.Body)
		if err != nil {
			return err
		}
		op.Branches = append(op.Branches, &Branch{Expr: branch.Expr, Body: body})
	}
	if n.Else != nil {
		body, err := e.emitNested(n.Else)
		if err != nil {
			return err
		}
		op.Else = body
	}
	e.push(op)
	return nil
}

func (e *emitter) emitLoop(n *ast.Loop) error {
	body, err := e.emitNested(n.Body)
	if err != nil {
		return err
	}
	kind := OpFor
	if n.Kind == ast.LoopKindWhile {
		kind = OpWhile
	}
	e.push(&Op{
		Kind:    kind,
		Expr:    n.IterExpr,
		KeyVar:  n.KeyVar,
		ItemVar: n.ItemVar,
		Body:    body,
		Line:    lineOf(n.SourceSpan()),
	})
	return nil
}

func (e *emitter) emitCache(n *ast.CacheBlock) error {
	body, err := e.emitNested(n.Body)
	if err != nil {
		return err
	}
	e.push(&Op{Kind: OpCache, Expr: n.KeyExpr, TTL: n.TTLSeconds, Body: body, Line: lineOf(n.SourceSpan())})
	return nil
}

func (e *emitter) emitScope(n *ast.ScopedUnit) error {
	body, err := e.emitNested(n.Body)
	if err != nil {
		return err
	}
	op := &Op{Kind: OpScope, Expr: n.BindExpr, Body: body, SlotOrder: n.SlotOrder, Line: lineOf(n.SourceSpan())}
	if len(n.Slots) > 0 {
		op.Slots = make(map[string][]*Op, len(n.Slots))
		for name, slot := range n.Slots {
			ops, err := e.emitNested(slot)
			if err != nil {
				return err
			}
			op.Slots[name] = ops
		}
	}
	e.push(op)
	return nil
}

// emitNested serializes a child node list with a fresh emitter
func (e *emitter) emitNested(nodes []ast.Node) ([]*Op, error) {
	sub := newEmitter(e.opts)
	if err := sub.emitNodes(nodes); err != nil {
		return nil, err
	}
	return sub.finish(), nil
}

// findStaticAttr returns the static text of a named attribute, or empty
func findStaticAttr(attrs []*ast.Attribute, name string) string {
	for _, attr := range attrs {
		if attr.Name == name {
			if text, ok := ast.StaticText(attr.Value); ok {
				return text
			}
		}
	}
	return ""
}

func lineOf(span *util.ParseSourceSpan) int {
	if span == nil || span.Start == nil {
		return 0
	}
	return span.Start.Line + 1
}
