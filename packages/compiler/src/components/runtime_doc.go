package components

import (
	"sort"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/pipeline"
	"stencil-go/packages/compiler/src/util"
)

// BindingsVar and SlotVarPrefix are the reserved environment names a
// render-time invocation document reads its arguments through.
const (
	BindingsVar   = "__bindings"
	SlotVarPrefix = "__slot_"
)

// RuntimeDocument builds the document for one render-time component
// invocation: the component body wrapped in a scoped unit whose binding
// spread and slot variables are read from reserved environment names, with
// the caller's attributes merged onto the root element as static values.
func (r *Registry) RuntimeDocument(name string, slotNames []string, attrs map[string]string, cctx *pipeline.Context, span *util.ParseSourceSpan) (*ast.Document, error) {
	doc, err := r.Resolve(name, cctx, span)
	if err != nil {
		return nil, err
	}

	if len(attrs) > 0 {
		merged := make([]*ast.Attribute, 0, len(attrs))
		keys := make([]string, 0, len(attrs))
		for key := range attrs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			merged = append(merged, ast.NewAttribute(key, &ast.StaticValue{Text: attrs[key]}, span))
		}
		mergeUsageAttrs(doc.Children, merged, nil)
	}
	unescapeSlotRefs(doc.Children, slotNames)

	slots := make(map[string][]ast.Node, len(slotNames))
	order := append([]string(nil), slotNames...)
	sort.Strings(order)
	for _, slotName := range order {
		out := ast.NewOutput("$"+SlotVarPrefix+slotName, span)
		out.Escape = false
		out.Context = ast.ContextRaw
		slots[slotName] = []ast.Node{out}
	}

	su := ast.NewScopedUnit("$"+BindingsVar, slots, order, doc.Children, span)
	return ast.NewDocument([]ast.Node{su}, span), nil
}
