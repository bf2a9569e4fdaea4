package ast

import (
	"strings"

	"stencil-go/packages/compiler/src/util"
)

// Attribute represents one attribute of an element, fragment or component
type Attribute struct {
	Name       string
	Value      AttributeValue
	SourceSpan *util.ParseSourceSpan
}

// NewAttribute creates a new Attribute
func NewAttribute(name string, value AttributeValue, sourceSpan *util.ParseSourceSpan) *Attribute {
	return &Attribute{Name: name, Value: value, SourceSpan: sourceSpan}
}

// AttributeValue is the tagged union of attribute value shapes:
// Static(string) | Boolean | Output(expression) | Parts(ordered segments).
type AttributeValue interface {
	attributeValue()
}

// StaticValue represents a plain string attribute value
type StaticValue struct {
	Text string
}

func (*StaticValue) attributeValue() {}

// BooleanValue represents an attribute written without a value
type BooleanValue struct{}

func (*BooleanValue) attributeValue() {}

// OutputValue represents an attribute value that is a single output
// expression.
type OutputValue struct {
	Output *Output
}

func (*OutputValue) attributeValue() {}

// PartsValue represents an attribute value assembled from an ordered list of
// static and output segments. A PartsValue always has at least two parts: a
// single-part value collapses to the corresponding Static or Output variant.
type PartsValue struct {
	Parts []AttributeValue
}

func (*PartsValue) attributeValue() {}

// CollapseParts enforces the Parts invariant: an empty list becomes a
// Boolean value, a single static or output part becomes that part, anything
// else stays a PartsValue.
func CollapseParts(parts []AttributeValue) AttributeValue {
	switch len(parts) {
	case 0:
		return &BooleanValue{}
	case 1:
		return parts[0]
	}
	return &PartsValue{Parts: parts}
}

// StaticText returns the text of a static value and whether the value is
// static.
func StaticText(v AttributeValue) (string, bool) {
	if s, ok := v.(*StaticValue); ok {
		return s.Text, true
	}
	return "", false
}

// HumanizeValue renders an attribute value for diagnostics and tests
func HumanizeValue(v AttributeValue) string {
	switch val := v.(type) {
	case *StaticValue:
		return val.Text
	case *BooleanValue:
		return "#boolean"
	case *OutputValue:
		return "{" + val.Output.Expr + "}"
	case *PartsValue:
		segs := make([]string, len(val.Parts))
		for i, p := range val.Parts {
			segs[i] = HumanizeValue(p)
		}
		return strings.Join(segs, "+")
	}
	return "?"
}
