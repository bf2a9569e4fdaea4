// Package output implements the back end of the compiler: it serializes a
// fully lowered AST into a compiled program, the portable form of one
// callable render unit. Programs are plain JSON so the unit cache can store
// and reload them without recompiling the template.
package output

import (
	"encoding/json"
	"fmt"
)

// OpKind discriminates the instruction variants of a compiled program
type OpKind string

// Instruction kinds
const (
	// OpText emits a verbatim chunk of template text
	OpText OpKind = "text"
	// OpOut evaluates an expression and writes its escaped value
	OpOut OpKind = "out"
	// OpCode executes a statement block against the render environment
	OpCode OpKind = "code"
	// OpIf selects the first branch whose condition holds
	OpIf OpKind = "if"
	// OpFor iterates a collection binding key and item variables
	OpFor OpKind = "for"
	// OpWhile repeats its body while the condition holds
	OpWhile OpKind = "while"
	// OpCache wraps its body in fragment-cache get/compute/store calls
	OpCache OpKind = "cache"
	// OpScope renders its body in a fresh environment built from a binding
	// spread plus pre-rendered slot variables
	OpScope OpKind = "scope"
	// OpComponent defers a dynamically named component call to render time
	OpComponent OpKind = "component"
)

// Transform is one call of an output's pipe chain
type Transform struct {
	Name string `json:"name"`
	Args string `json:"args,omitempty"`
}

// Branch is one conditional branch of an OpIf instruction
type Branch struct {
	Expr string `json:"expr"`
	Body []*Op  `json:"body"`
}

// Op is one instruction of a compiled program. The populated fields depend
// on the kind; unused fields stay at their zero value and are omitted from
// the serialized form.
type Op struct {
	Kind OpKind `json:"kind"`

	// Text is the verbatim chunk of an OpText instruction
	Text string `json:"text,omitempty"`

	// Expr carries the instruction's primary expression: the output
	// expression, statement block, loop collection or condition, cache key,
	// scope binding spread, or component name.
	Expr string `json:"expr,omitempty"`

	// Context and Escape describe an OpOut instruction's escaping
	Context    string       `json:"ctx,omitempty"`
	Escape     bool         `json:"escape,omitempty"`
	Transforms []*Transform `json:"transforms,omitempty"`

	// Branches and Else belong to OpIf
	Branches []*Branch `json:"branches,omitempty"`
	Else     []*Op     `json:"else,omitempty"`

	// KeyVar and ItemVar are the loop variables of an OpFor instruction
	KeyVar  string `json:"keyVar,omitempty"`
	ItemVar string `json:"itemVar,omitempty"`

	// Body is the nested instruction list of loop, cache and scope kinds
	Body []*Op `json:"body,omitempty"`

	// TTL is the fragment-cache lifetime in seconds, zero for no expiry
	TTL int `json:"ttl,omitempty"`

	// Slots carries a scope's pre-renderable slot bodies, keyed by slot
	// variable name, rendered against the caller's environment.
	Slots     map[string][]*Op `json:"slots,omitempty"`
	SlotOrder []string         `json:"slotOrder,omitempty"`

	// Bindings, Attrs and SlotExprs belong to OpComponent: the binding-map
	// expression, the statically known attribute expressions, and the slot
	// content expressions evaluated against the caller's environment.
	Bindings  string            `json:"bindings,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	SlotExprs map[string]string `json:"slotExprs,omitempty"`

	// Line is the 1-based source line the instruction originates from,
	// kept for render-time error reports.
	Line int `json:"line,omitempty"`
}

// Program is the compiled form of one template
type Program struct {
	// Path is the canonical template path the program was compiled from
	Path string `json:"path"`
	// Ops is the instruction list executed top to bottom
	Ops []*Op `json:"ops"`
}

// Marshal serializes the program to its cacheable form
func (p *Program) Marshal() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal program %s: %w", p.Path, err)
	}
	return string(b), nil
}

// UnmarshalProgram loads a program from its cacheable form
func UnmarshalProgram(source string) (*Program, error) {
	var p Program
	if err := json.Unmarshal([]byte(source), &p); err != nil {
		return nil, fmt.Errorf("unmarshal program: %w", err)
	}
	return &p, nil
}
