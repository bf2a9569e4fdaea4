package components

import (
	"regexp"
	"strconv"
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/runtime"
	"stencil-go/packages/compiler/src/util"
)

// PriorityExpansion orders component expansion after context resolution
const PriorityExpansion = 60

// slotAttr is the usage-site attribute routing a child into a named slot
const slotAttr = "slot"

// ExpansionPass expands component invocations. A compile-time literal name
// expands inline into a scoped unit wrapping a copy of the component's
// lowered AST; a dynamic name lowers to a render-time call against the
// injected component-rendering service.
type ExpansionPass struct {
	pipeline.BasePass
	registry *Registry
	opts     *config.Options
	// stack holds the names of the components currently being expanded,
	// innermost last, guarding against self-referential components.
	stack []string
	open  map[*ast.ScopedUnit]string
}

// NewExpansionPass creates a new ExpansionPass
func NewExpansionPass(registry *Registry, opts *config.Options) *ExpansionPass {
	return &ExpansionPass{registry: registry, opts: opts, open: map[*ast.ScopedUnit]string{}}
}

// Name identifies the pass
func (p *ExpansionPass) Name() string { return "component-expansion" }

// Priority orders the pass
func (p *ExpansionPass) Priority() int { return PriorityExpansion }

// Before expands the visited node when it invokes a component
func (p *ExpansionPass) Before(node ast.Node, cctx *pipeline.Context) (pipeline.Result, error) {
	switch n := node.(type) {
	case *ast.Component:
		return p.expandNamed(n.Name, usage{
			attrs:     n.Attributes,
			children:  n.Children,
			binding:   n.Binding,
			mutations: n.Mutations,
			span:      n.SourceSpan(),
		}, cctx)
	case *ast.Element:
		if n.Invocation != nil {
			return p.expandInvocation(n.Invocation, usage{
				attrs:     n.Attributes,
				children:  n.Children,
				binding:   n.Binding,
				mutations: n.Mutations,
				span:      n.SourceSpan(),
			}, cctx)
		}
	case *ast.Fragment:
		if n.Invocation != nil {
			return p.expandInvocation(n.Invocation, usage{
				attrs:     n.Attributes,
				children:  n.Children,
				binding:   n.Binding,
				mutations: n.Mutations,
				span:      n.SourceSpan(),
			}, cctx)
		}
	}
	return pipeline.Keep, nil
}

// After closes the expansion frame opened for a scoped unit
func (p *ExpansionPass) After(node ast.Node, cctx *pipeline.Context) (pipeline.Result, error) {
	if su, ok := node.(*ast.ScopedUnit); ok {
		if _, open := p.open[su]; open {
			delete(p.open, su)
			p.stack = p.stack[:len(p.stack)-1]
		}
	}
	return pipeline.Keep, nil
}

// usage captures one invocation site
type usage struct {
	attrs     []*ast.Attribute
	children  []ast.Node
	binding   *ast.DirectiveAttr
	mutations []*ast.DirectiveAttr
	span      *util.ParseSourceSpan
}

// expandInvocation dispatches an invocation directive on its name
// expression: a compile-time string literal expands inline, anything else
// defers to render time.
func (p *ExpansionPass) expandInvocation(inv *ast.DirectiveAttr, u usage, cctx *pipeline.Context) (pipeline.Result, error) {
	name, literal, err := literalComponentName(inv.Expr, inv.SourceSpan)
	if err != nil {
		return pipeline.Keep, err
	}
	if literal {
		return p.expandNamed(name, u, cctx)
	}
	return p.lowerRuntimeCall(inv.Expr, u)
}

// expandNamed expands a component with a compile-time known name
func (p *ExpansionPass) expandNamed(name string, u usage, cctx *pipeline.Context) (pipeline.Result, error) {
	for _, openName := range p.stack {
		if openName == name {
			return pipeline.Keep, util.NewSyntaxError("circular reference to component "+name, u.span)
		}
	}

	bindExpr := ""
	if u.binding != nil {
		if err := validateBindingExpr(u.binding.Expr, u.binding.SourceSpan); err != nil {
			return pipeline.Keep, err
		}
		bindExpr = u.binding.Expr
	}

	doc, err := p.registry.Resolve(name, cctx, u.span)
	if err != nil {
		return pipeline.Keep, err
	}

	slots, order := extractSlots(u.children)
	if err := p.expandSlots(slots, cctx); err != nil {
		return pipeline.Keep, err
	}
	mergeUsageAttrs(doc.Children, u.attrs, u.mutations)
	unescapeSlotRefs(doc.Children, order)

	su := ast.NewScopedUnit(bindExpr, slots, order, doc.Children, u.span)
	p.stack = append(p.stack, name)
	p.open[su] = name
	return pipeline.Result{Replace: su}, nil
}

// expandSlots expands component usage inside caller-supplied slot content
// before the invoked component's frame opens: slot content lives in the
// caller's scope, so a component may appear inside its own slots.
func (p *ExpansionPass) expandSlots(slots map[string][]ast.Node, cctx *pipeline.Context) error {
	for name, nodes := range slots {
		doc := ast.NewDocument(nodes, nil)
		if err := pipeline.NewPipeline(p).Run(doc, cctx); err != nil {
			return err
		}
		slots[name] = doc.Children
	}
	return nil
}

// extractSlots routes usage-site children into slots. A child carrying a
// named slot attribute goes to that slot, a valueless slot attribute and
// every unmarked child go to the default slot.
func extractSlots(children []ast.Node) (map[string][]ast.Node, []string) {
	slots := map[string][]ast.Node{}
	var order []string
	add := func(name string, node ast.Node) {
		if _, seen := slots[name]; !seen {
			order = append(order, name)
		}
		slots[name] = append(slots[name], node)
	}
	for _, child := range children {
		name := runtime.SlotDefaultVar
		if target, ok := takeSlotAttr(child); ok && target != "" {
			name = target
		}
		add(name, child)
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return slots, order
}

// takeSlotAttr removes a child's slot attribute and returns its target name;
// a valueless attribute returns the empty name.
func takeSlotAttr(node ast.Node) (string, bool) {
	var attrs []*ast.Attribute
	switch n := node.(type) {
	case *ast.Element:
		attrs = n.Attributes
	case *ast.Fragment:
		attrs = n.Attributes
	case *ast.Component:
		attrs = n.Attributes
	default:
		return "", false
	}
	for i, attr := range attrs {
		if attr.Name != slotAttr {
			continue
		}
		rest := append(append([]*ast.Attribute{}, attrs[:i]...), attrs[i+1:]...)
		switch n := node.(type) {
		case *ast.Element:
			n.Attributes = rest
		case *ast.Fragment:
			n.Attributes = rest
		case *ast.Component:
			n.Attributes = rest
		}
		text, _ := ast.StaticText(attr.Value)
		return strings.TrimSpace(text), true
	}
	return "", false
}

// mergeUsageAttrs merges plain usage-site attributes onto the component's
// root element. Static class values concatenate space-joined; any other
// attribute is overwritten by the usage-site value. Usage-site mutating
// directives run after the merge.
func mergeUsageAttrs(body []ast.Node, attrs []*ast.Attribute, mutations []*ast.DirectiveAttr) {
	root := rootElement(body)
	if root == nil {
		return
	}
	for _, attr := range attrs {
		existing := findAttr(root.Attributes, attr.Name)
		if existing == nil {
			root.Attributes = append(root.Attributes, attr)
			continue
		}
		if attr.Name == "class" {
			ownText, ownStatic := ast.StaticText(existing.Value)
			useText, useStatic := ast.StaticText(attr.Value)
			if ownStatic && useStatic {
				merged := strings.TrimSpace(strings.TrimSpace(ownText) + " " + strings.TrimSpace(useText))
				existing.Value = &ast.StaticValue{Text: merged}
				continue
			}
		}
		existing.Value = attr.Value
	}
	root.Mutations = append(root.Mutations, mutations...)
}

// rootElement returns the first element of a component body, skipping
// leading whitespace text.
func rootElement(body []ast.Node) *ast.Element {
	for _, node := range body {
		switch n := node.(type) {
		case *ast.Element:
			return n
		case *ast.Text:
			if strings.TrimSpace(n.Value) == "" {
				continue
			}
			return nil
		default:
			return nil
		}
	}
	return nil
}

func findAttr(attrs []*ast.Attribute, name string) *ast.Attribute {
	for _, attr := range attrs {
		if attr.Name == name {
			return attr
		}
	}
	return nil
}

// unescapeSlotRefs marks outputs referencing exactly one slot variable as
// not-to-escape: slot content was escaped at its own point of origin. The
// match is textual on the raw expression, name-boundary bounded.
func unescapeSlotRefs(body []ast.Node, slotNames []string) {
	if len(slotNames) == 0 {
		return
	}
	patterns := make(map[string]*regexp.Regexp, len(slotNames))
	for _, name := range slotNames {
		patterns[name] = regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `\b`)
	}
	var walk func(nodes []ast.Node)
	mark := func(out *ast.Output) {
		referenced := 0
		for _, re := range patterns {
			if re.MatchString(out.Expr) {
				referenced++
			}
		}
		if referenced == 1 {
			out.Escape = false
		}
	}
	var walkValue func(v ast.AttributeValue)
	walkValue = func(v ast.AttributeValue) {
		switch val := v.(type) {
		case *ast.OutputValue:
			mark(val.Output)
		case *ast.PartsValue:
			for _, part := range val.Parts {
				walkValue(part)
			}
		}
	}
	walk = func(nodes []ast.Node) {
		for _, node := range nodes {
			switch n := node.(type) {
			case *ast.Output:
				mark(n)
			case *ast.Element:
				for _, attr := range n.Attributes {
					walkValue(attr.Value)
				}
				walk(n.Children)
			case *ast.Fragment:
				walk(n.Children)
			case *ast.Component:
				walk(n.Children)
			case *ast.Directive:
				if n.Body != nil {
					walk([]ast.Node{n.Body})
				}
			case *ast.Cond:
				for _, br := range n.Branches {
					walk(br.Body)
				}
				walk(n.Else)
			case *ast.Loop:
				walk(n.Body)
			case *ast.CacheBlock:
				walk(n.Body)
			}
		}
	}
	walk(body)
}

var bareNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
var bareVarRe = regexp.MustCompile(`^\$[A-Za-z_][A-Za-z0-9_]*(->[A-Za-z_][A-Za-z0-9_]*)*$`)

// literalComponentName decides whether a component-name expression is a
// compile-time string literal. Quoted strings and bare tag-like names are
// literals; any other literal is a syntax error; everything else is
// resolved at render time.
func literalComponentName(expr string, span *util.ParseSourceSpan) (string, bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", false, util.NewSyntaxError("component name must not be empty", span)
	}
	if len(expr) >= 2 {
		if (expr[0] == '\'' && expr[len(expr)-1] == '\'') || (expr[0] == '"' && expr[len(expr)-1] == '"') {
			name := expr[1 : len(expr)-1]
			if name == "" {
				return "", false, util.NewSyntaxError("component name must not be empty", span)
			}
			return name, true, nil
		}
	}
	switch expr {
	case "true", "false", "nil", "null":
		return "", false, util.NewSyntaxError("component name must be a string", span)
	}
	if _, err := strconv.ParseFloat(expr, 64); err == nil {
		return "", false, util.NewSyntaxError("component name must be a string", span)
	}
	if bareNameRe.MatchString(expr) {
		return expr, true, nil
	}
	return "", false, nil
}

// validateBindingExpr checks a binding-map expression is array-like at
// compile time: literal array syntax, a bare variable, or a ternary whose
// branches both are.
func validateBindingExpr(expr string, span *util.ParseSourceSpan) error {
	if arrayLike(strings.TrimSpace(expr)) {
		return nil
	}
	return util.NewSyntaxError("binding expression must be array-like", span)
}

func arrayLike(expr string) bool {
	if expr == "" {
		return false
	}
	if expr[0] == '[' || expr[0] == '{' {
		return true
	}
	if bareVarRe.MatchString(expr) {
		return true
	}
	if q, a, b, ok := splitTernary(expr); ok {
		_ = q
		return arrayLike(strings.TrimSpace(a)) && arrayLike(strings.TrimSpace(b))
	}
	return false
}

// splitTernary splits a top-level `cond ? a : b` expression
func splitTernary(expr string) (string, string, string, bool) {
	depth := 0
	var quote byte
	q := -1
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '?':
			if depth == 0 && q < 0 {
				q = i
			}
		case ':':
			if depth == 0 && q >= 0 {
				return expr[:q], expr[q+1 : i], expr[i+1:], true
			}
		}
	}
	return "", "", "", false
}
