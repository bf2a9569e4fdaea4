// Package ast defines the template AST: a closed set of node variants with
// positional metadata for diagnostics. Nodes are built by the parser,
// rewritten by the compiler pipeline and serialized by the code generator.
package ast

import "stencil-go/packages/compiler/src/util"

// EscapeContext represents the escaping context resolved for an output
// expression from its syntactic position.
type EscapeContext string

const (
	// ContextNone marks an output whose context has not been resolved yet
	ContextNone EscapeContext = ""
	// ContextHTML escapes for element content
	ContextHTML EscapeContext = "html"
	// ContextHTMLAttr escapes for an attribute value
	ContextHTMLAttr EscapeContext = "html_attr"
	// ContextJSON serializes the value as JSON
	ContextJSON EscapeContext = "json"
	// ContextJSONAttr serializes as JSON inside an attribute value
	ContextJSONAttr EscapeContext = "json_attr"
	// ContextRaw disables escaping
	ContextRaw EscapeContext = "raw"
)

// Node represents a node in the template AST
type Node interface {
	SourceSpan() *util.ParseSourceSpan
	Visit(visitor Visitor) interface{}
	// IsFinal reports whether the subtree rooted here has been marked
	// already-final; passes must not descend into or rewrite it.
	IsFinal() bool
	// MarkFinal marks the node as already-final
	MarkFinal()
	// ExtendSpanTo widens the span to a later end location
	ExtendSpanTo(end *util.ParseLocation)
}

// NodeBase carries the metadata shared by every node variant
type NodeBase struct {
	sourceSpan *util.ParseSourceSpan
	final      bool
}

// NewNodeBase creates a new NodeBase
func NewNodeBase(sourceSpan *util.ParseSourceSpan) NodeBase {
	return NodeBase{sourceSpan: sourceSpan}
}

// SourceSpan returns the source span
func (n *NodeBase) SourceSpan() *util.ParseSourceSpan {
	return n.sourceSpan
}

// ExtendSpanTo widens the span to a later end location. The parser calls it
// when a container's close tag is found, so container spans cover the whole
// construct rather than just the open tag.
func (n *NodeBase) ExtendSpanTo(end *util.ParseLocation) {
	if n.sourceSpan == nil || end == nil || end.Offset <= n.sourceSpan.End.Offset {
		return
	}
	n.sourceSpan = util.NewParseSourceSpan(n.sourceSpan.Start, end, nil)
}

// IsFinal reports whether the node is marked already-final
func (n *NodeBase) IsFinal() bool {
	return n.final
}

// MarkFinal marks the node as already-final
func (n *NodeBase) MarkFinal() {
	n.final = true
}

// Document represents the root of a parsed template
type Document struct {
	NodeBase
	Children []Node
}

// NewDocument creates a new Document node
func NewDocument(children []Node, sourceSpan *util.ParseSourceSpan) *Document {
	return &Document{NodeBase: NewNodeBase(sourceSpan), Children: children}
}

// Visit visits the node with a visitor
func (d *Document) Visit(visitor Visitor) interface{} {
	return visitor.VisitDocument(d)
}

// Text represents a run of literal markup emitted verbatim
type Text struct {
	NodeBase
	Value string
}

// NewText creates a new Text node
func NewText(value string, sourceSpan *util.ParseSourceSpan) *Text {
	return &Text{NodeBase: NewNodeBase(sourceSpan), Value: value}
}

// Visit visits the node with a visitor
func (t *Text) Visit(visitor Visitor) interface{} {
	return visitor.VisitText(t)
}

// TransformCall represents one call of an output expression's pipe chain
type TransformCall struct {
	Name string
	// Args is the raw argument text between the parentheses, empty when the
	// transform is written without a call.
	Args string
}

// Output represents an embedded expression whose value is written to the
// rendered output, escaped according to its resolved context.
type Output struct {
	NodeBase
	// Expr is the base expression text, trimmed, without a trailing
	// statement terminator.
	Expr string
	// Escape is false when escaping is disabled: an explicit raw transform,
	// or the slot-unescape rule during component expansion.
	Escape bool
	// Context is the resolved escaping context
	Context EscapeContext
	// Transforms is the ordered left-to-right pipe chain
	Transforms []TransformCall
}

// NewOutput creates a new Output node; escaping starts enabled with no
// resolved context.
func NewOutput(expr string, sourceSpan *util.ParseSourceSpan) *Output {
	return &Output{NodeBase: NewNodeBase(sourceSpan), Expr: expr, Escape: true, Context: ContextNone}
}

// Visit visits the node with a visitor
func (o *Output) Visit(visitor Visitor) interface{} {
	return visitor.VisitOutput(o)
}

// RawCode represents a non-output embedded code block passed through to the
// execution environment verbatim, unescaped and unanalyzed.
type RawCode struct {
	NodeBase
	Code string
}

// NewRawCode creates a new RawCode node
func NewRawCode(code string, sourceSpan *util.ParseSourceSpan) *RawCode {
	return &RawCode{NodeBase: NewNodeBase(sourceSpan), Code: code}
}

// Visit visits the node with a visitor
func (r *RawCode) Visit(visitor Visitor) interface{} {
	return visitor.VisitRawCode(r)
}

// Element represents a plain markup element
type Element struct {
	NodeBase
	Tag         string
	Attributes  []*Attribute
	Children    []Node
	SelfClosing bool
	// Mutations holds the attribute-mutating directives extracted from this
	// element (computed class lists, attribute spreads), applied after any
	// attribute merging.
	Mutations []*DirectiveAttr
	// Invocation holds a component-invocation directive redirecting this
	// element's rendering to a named or dynamically named component.
	Invocation *DirectiveAttr
	// Binding holds the binding-map directive when present
	Binding *DirectiveAttr
}

// NewElement creates a new Element node
func NewElement(tag string, attributes []*Attribute, children []Node, selfClosing bool, sourceSpan *util.ParseSourceSpan) *Element {
	return &Element{
		NodeBase:    NewNodeBase(sourceSpan),
		Tag:         tag,
		Attributes:  attributes,
		Children:    children,
		SelfClosing: selfClosing,
	}
}

// Visit visits the node with a visitor
func (e *Element) Visit(visitor Visitor) interface{} {
	return visitor.VisitElement(e)
}

// Fragment represents the non-emitting grouping wrapper used to host
// directives without a real element tag.
type Fragment struct {
	NodeBase
	Attributes  []*Attribute
	Children    []Node
	SelfClosing bool
	Mutations   []*DirectiveAttr
	Invocation  *DirectiveAttr
	Binding     *DirectiveAttr
}

// NewFragment creates a new Fragment node
func NewFragment(attributes []*Attribute, children []Node, selfClosing bool, sourceSpan *util.ParseSourceSpan) *Fragment {
	return &Fragment{
		NodeBase:    NewNodeBase(sourceSpan),
		Attributes:  attributes,
		Children:    children,
		SelfClosing: selfClosing,
	}
}

// Visit visits the node with a visitor
func (f *Fragment) Visit(visitor Visitor) interface{} {
	return visitor.VisitFragment(f)
}

// Component represents a component invocation written as a custom tag
type Component struct {
	NodeBase
	Name        string
	Attributes  []*Attribute
	Children    []Node
	SelfClosing bool
	Mutations   []*DirectiveAttr
	Binding     *DirectiveAttr
}

// NewComponent creates a new Component node
func NewComponent(name string, attributes []*Attribute, children []Node, selfClosing bool, sourceSpan *util.ParseSourceSpan) *Component {
	return &Component{
		NodeBase:    NewNodeBase(sourceSpan),
		Name:        name,
		Attributes:  attributes,
		Children:    children,
		SelfClosing: selfClosing,
	}
}

// Visit visits the node with a visitor
func (c *Component) Visit(visitor Visitor) interface{} {
	return visitor.VisitComponent(c)
}

// DirectiveAttr represents one recognized reserved-prefixed attribute after
// extraction: its bare name (prefix stripped) and expression text.
type DirectiveAttr struct {
	Name       string
	Expr       string
	SourceSpan *util.ParseSourceSpan
}

// Directive wraps the node owning a control-flow directive until the
// pairing and compilation passes lower it to its final shape.
type Directive struct {
	NodeBase
	Name string
	Expr string
	// Arg carries a directive's secondary argument, e.g. the TTL of a
	// fragment-cache directive.
	Arg  string
	Body Node
}

// NewDirective creates a new Directive wrapper
func NewDirective(name, expr string, body Node, sourceSpan *util.ParseSourceSpan) *Directive {
	return &Directive{NodeBase: NewNodeBase(sourceSpan), Name: name, Expr: expr, Body: body}
}

// Visit visits the node with a visitor
func (d *Directive) Visit(visitor Visitor) interface{} {
	return visitor.VisitDirective(d)
}

// CondBranch represents one conditional branch with its condition expression
type CondBranch struct {
	Expr string
	Body []Node
}

// Cond represents a lowered conditional construct: an ordered branch list
// plus an optional default branch.
type Cond struct {
	NodeBase
	Branches []*CondBranch
	Else     []Node
}

// NewCond creates a new Cond node
func NewCond(branches []*CondBranch, elseBody []Node, sourceSpan *util.ParseSourceSpan) *Cond {
	return &Cond{NodeBase: NewNodeBase(sourceSpan), Branches: branches, Else: elseBody}
}

// Visit visits the node with a visitor
func (c *Cond) Visit(visitor Visitor) interface{} {
	return visitor.VisitCond(c)
}

// LoopKind represents the kind of a lowered loop construct
type LoopKind int

const (
	// LoopKindForeach iterates a collection
	LoopKindForeach LoopKind = iota
	// LoopKindWhile repeats while a condition holds
	LoopKindWhile
)

// Loop represents a lowered loop construct
type Loop struct {
	NodeBase
	Kind LoopKind
	// IterExpr is the iterated collection (foreach) or the condition (while)
	IterExpr string
	// KeyVar and ItemVar are the loop variable names, sigils stripped.
	// KeyVar is empty when the header binds no key.
	KeyVar  string
	ItemVar string
	Body    []Node
}

// NewLoop creates a new Loop node
func NewLoop(kind LoopKind, iterExpr, keyVar, itemVar string, body []Node, sourceSpan *util.ParseSourceSpan) *Loop {
	return &Loop{NodeBase: NewNodeBase(sourceSpan), Kind: kind, IterExpr: iterExpr, KeyVar: keyVar, ItemVar: itemVar, Body: body}
}

// Visit visits the node with a visitor
func (l *Loop) Visit(visitor Visitor) interface{} {
	return visitor.VisitLoop(l)
}

// RawBlock represents a raw-passthrough region: its original source bytes
// are emitted unmodified, bypassing all further analysis.
type RawBlock struct {
	NodeBase
	Text string
}

// NewRawBlock creates a new RawBlock node
func NewRawBlock(text string, sourceSpan *util.ParseSourceSpan) *RawBlock {
	rb := &RawBlock{NodeBase: NewNodeBase(sourceSpan), Text: text}
	rb.MarkFinal()
	return rb
}

// Visit visits the node with a visitor
func (r *RawBlock) Visit(visitor Visitor) interface{} {
	return visitor.VisitRawBlock(r)
}

// CacheBlock wraps a subtree in get/compute/store calls against the injected
// fragment cache, keyed by identity and TTL.
type CacheBlock struct {
	NodeBase
	KeyExpr string
	// TTLSeconds is zero when the entry does not expire
	TTLSeconds int
	Body       []Node
}

// NewCacheBlock creates a new CacheBlock node
func NewCacheBlock(keyExpr string, ttlSeconds int, body []Node, sourceSpan *util.ParseSourceSpan) *CacheBlock {
	return &CacheBlock{NodeBase: NewNodeBase(sourceSpan), KeyExpr: keyExpr, TTLSeconds: ttlSeconds, Body: body}
}

// Visit visits the node with a visitor
func (c *CacheBlock) Visit(visitor Visitor) interface{} {
	return visitor.VisitCacheBlock(c)
}

// ScopedUnit wraps an expanded component body. Its only bindings at render
// time are the spread of the binding-map expression followed by one variable
// per slot.
type ScopedUnit struct {
	NodeBase
	// BindExpr is the validated binding-map expression, empty when the usage
	// site bound nothing.
	BindExpr string
	// Slots maps slot variable names to the caller-supplied content
	Slots map[string][]Node
	// SlotOrder preserves a stable ordering of slot names
	SlotOrder []string
	Body      []Node
}

// NewScopedUnit creates a new ScopedUnit node
func NewScopedUnit(bindExpr string, slots map[string][]Node, slotOrder []string, body []Node, sourceSpan *util.ParseSourceSpan) *ScopedUnit {
	return &ScopedUnit{NodeBase: NewNodeBase(sourceSpan), BindExpr: bindExpr, Slots: slots, SlotOrder: slotOrder, Body: body}
}

// Visit visits the node with a visitor
func (s *ScopedUnit) Visit(visitor Visitor) interface{} {
	return visitor.VisitScopedUnit(s)
}

// RuntimeCall defers a dynamically named component invocation to render
// time: the injected component-rendering service is invoked with the four
// evaluated arguments.
type RuntimeCall struct {
	NodeBase
	// NameExpr evaluates to the component name
	NameExpr string
	// BindingsExpr evaluates to the binding map, empty for none
	BindingsExpr string
	// Slots maps slot names to value expressions
	Slots map[string]string
	// Attrs maps attribute names to value expressions; a boolean attribute
	// maps to the explicit absent marker "nil".
	Attrs map[string]string
}

// NewRuntimeCall creates a new RuntimeCall node
func NewRuntimeCall(nameExpr, bindingsExpr string, slots, attrs map[string]string, sourceSpan *util.ParseSourceSpan) *RuntimeCall {
	return &RuntimeCall{NodeBase: NewNodeBase(sourceSpan), NameExpr: nameExpr, BindingsExpr: bindingsExpr, Slots: slots, Attrs: attrs}
}

// Visit visits the node with a visitor
func (r *RuntimeCall) Visit(visitor Visitor) interface{} {
	return visitor.VisitRuntimeCall(r)
}

// Visitor visits every node variant of the template AST
type Visitor interface {
	VisitDocument(document *Document) interface{}
	VisitText(text *Text) interface{}
	VisitOutput(output *Output) interface{}
	VisitRawCode(rawCode *RawCode) interface{}
	VisitElement(element *Element) interface{}
	VisitFragment(fragment *Fragment) interface{}
	VisitComponent(component *Component) interface{}
	VisitDirective(directive *Directive) interface{}
	VisitCond(cond *Cond) interface{}
	VisitLoop(loop *Loop) interface{}
	VisitRawBlock(rawBlock *RawBlock) interface{}
	VisitCacheBlock(cacheBlock *CacheBlock) interface{}
	VisitScopedUnit(scopedUnit *ScopedUnit) interface{}
	VisitRuntimeCall(runtimeCall *RuntimeCall) interface{}
}

// VisitAll visits a list of nodes and collects the non-nil results
func VisitAll(visitor Visitor, nodes []Node) []interface{} {
	result := []interface{}{}
	for _, node := range nodes {
		if r := node.Visit(visitor); r != nil {
			result = append(result, r)
		}
	}
	return result
}

// ChildrenOf returns the child list of a container node, or nil for leaves
func ChildrenOf(node Node) []Node {
	switch n := node.(type) {
	case *Document:
		return n.Children
	case *Element:
		return n.Children
	case *Fragment:
		return n.Children
	case *Component:
		return n.Children
	case *Directive:
		if n.Body == nil {
			return nil
		}
		return []Node{n.Body}
	}
	return nil
}

// SetChildrenOf replaces the child list of a container node
func SetChildrenOf(node Node, children []Node) {
	switch n := node.(type) {
	case *Document:
		n.Children = children
	case *Element:
		n.Children = children
	case *Fragment:
		n.Children = children
	case *Component:
		n.Children = children
	}
}
