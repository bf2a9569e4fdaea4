package ast

// CloneNodes deep-copies a node list. Source spans are shared: they are
// immutable once parsed.
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, node := range nodes {
		out[i] = CloneNode(node)
	}
	return out
}

// CloneNode deep-copies one node
func CloneNode(node Node) Node {
	switch n := node.(type) {
	case *Document:
		c := *n
		c.Children = CloneNodes(n.Children)
		return &c
	case *Text:
		c := *n
		return &c
	case *Output:
		c := *n
		c.Transforms = append([]TransformCall(nil), n.Transforms...)
		return &c
	case *RawCode:
		c := *n
		return &c
	case *Element:
		c := *n
		c.Attributes = cloneAttributes(n.Attributes)
		c.Children = CloneNodes(n.Children)
		c.Mutations = cloneDirectiveAttrs(n.Mutations)
		c.Invocation = cloneDirectiveAttr(n.Invocation)
		c.Binding = cloneDirectiveAttr(n.Binding)
		return &c
	case *Fragment:
		c := *n
		c.Attributes = cloneAttributes(n.Attributes)
		c.Children = CloneNodes(n.Children)
		c.Mutations = cloneDirectiveAttrs(n.Mutations)
		c.Invocation = cloneDirectiveAttr(n.Invocation)
		c.Binding = cloneDirectiveAttr(n.Binding)
		return &c
	case *Component:
		c := *n
		c.Attributes = cloneAttributes(n.Attributes)
		c.Children = CloneNodes(n.Children)
		c.Mutations = cloneDirectiveAttrs(n.Mutations)
		c.Binding = cloneDirectiveAttr(n.Binding)
		return &c
	case *Directive:
		c := *n
		if n.Body != nil {
			c.Body = CloneNode(n.Body)
		}
		return &c
	case *Cond:
		c := *n
		c.Branches = make([]*CondBranch, len(n.Branches))
		for i, br := range n.Branches {
			c.Branches[i] = &CondBranch{Expr: br.Expr, Body: CloneNodes(br.Body)}
		}
		c.Else = CloneNodes(n.Else)
		return &c
	case *Loop:
		c := *n
		c.Body = CloneNodes(n.Body)
		return &c
	case *RawBlock:
		c := *n
		return &c
	case *CacheBlock:
		c := *n
		c.Body = CloneNodes(n.Body)
		return &c
	case *ScopedUnit:
		c := *n
		c.Slots = make(map[string][]Node, len(n.Slots))
		for name, slot := range n.Slots {
			c.Slots[name] = CloneNodes(slot)
		}
		c.SlotOrder = append([]string(nil), n.SlotOrder...)
		c.Body = CloneNodes(n.Body)
		return &c
	case *RuntimeCall:
		c := *n
		c.Slots = cloneStringMap(n.Slots)
		c.Attrs = cloneStringMap(n.Attrs)
		return &c
	}
	return node
}

func cloneAttributes(attrs []*Attribute) []*Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]*Attribute, len(attrs))
	for i, attr := range attrs {
		copied := *attr
		copied.Value = cloneValue(attr.Value)
		out[i] = &copied
	}
	return out
}

func cloneValue(v AttributeValue) AttributeValue {
	switch val := v.(type) {
	case *StaticValue:
		c := *val
		return &c
	case *BooleanValue:
		return &BooleanValue{}
	case *OutputValue:
		return &OutputValue{Output: CloneNode(val.Output).(*Output)}
	case *PartsValue:
		parts := make([]AttributeValue, len(val.Parts))
		for i, part := range val.Parts {
			parts[i] = cloneValue(part)
		}
		return &PartsValue{Parts: parts}
	}
	return v
}

func cloneDirectiveAttrs(attrs []*DirectiveAttr) []*DirectiveAttr {
	if attrs == nil {
		return nil
	}
	out := make([]*DirectiveAttr, len(attrs))
	for i, attr := range attrs {
		out[i] = cloneDirectiveAttr(attr)
	}
	return out
}

func cloneDirectiveAttr(attr *DirectiveAttr) *DirectiveAttr {
	if attr == nil {
		return nil
	}
	copied := *attr
	return &copied
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
