package util

import "fmt"

// Diagnostic carries the source position attached to every compile-time error:
// template path, 1-based line and column, and an optional short snippet.
type Diagnostic struct {
	Path    string
	Line    int
	Col     int
	Snippet string
}

// DiagnosticFromSpan builds a Diagnostic from a source span
func DiagnosticFromSpan(span *ParseSourceSpan) Diagnostic {
	if span == nil || span.Start == nil {
		return Diagnostic{}
	}
	d := Diagnostic{
		Path: span.Start.File.URL,
		Line: span.Start.Line + 1,
		Col:  span.Start.Col + 1,
	}
	if ctx := span.Start.GetContext(40, 1); ctx != nil {
		d.Snippet = ctx.Before + ctx.After
	}
	return d
}

// String returns the position in path:line:col form
func (d Diagnostic) String() string {
	if d.Path == "" && d.Line == 0 {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", d.Path, d.Line, d.Col)
}

// SyntaxError represents malformed template syntax: invalid directive usage,
// an invalid binding-map expression, or an empty/non-string literal component name.
type SyntaxError struct {
	Diagnostic
	Msg string
}

// NewSyntaxError creates a new SyntaxError located at the given span
func NewSyntaxError(msg string, span *ParseSourceSpan) *SyntaxError {
	return &SyntaxError{Diagnostic: DiagnosticFromSpan(span), Msg: msg}
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s (%s)", e.Msg, e.Diagnostic)
}

// TemplateNotFoundError represents an unresolved template path
type TemplateNotFoundError struct {
	Diagnostic
	Path string
}

// NewTemplateNotFoundError creates a new TemplateNotFoundError
func NewTemplateNotFoundError(path string, span *ParseSourceSpan) *TemplateNotFoundError {
	return &TemplateNotFoundError{Diagnostic: DiagnosticFromSpan(span), Path: path}
}

// Error implements the error interface
func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template not found: %q (%s)", e.Path, e.Diagnostic)
}

// ComponentNotFoundError represents an unresolvable literal component name
type ComponentNotFoundError struct {
	Diagnostic
	Name string
}

// NewComponentNotFoundError creates a new ComponentNotFoundError
func NewComponentNotFoundError(name string, span *ParseSourceSpan) *ComponentNotFoundError {
	return &ComponentNotFoundError{Diagnostic: DiagnosticFromSpan(span), Name: name}
}

// Error implements the error interface
func (e *ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component not found: %q (%s)", e.Name, e.Diagnostic)
}

// UnknownDirectiveError represents a reserved-prefixed attribute with no
// registered meaning. Raised only when strict directive checking is enabled.
type UnknownDirectiveError struct {
	Diagnostic
	Name string
}

// NewUnknownDirectiveError creates a new UnknownDirectiveError
func NewUnknownDirectiveError(name string, span *ParseSourceSpan) *UnknownDirectiveError {
	return &UnknownDirectiveError{Diagnostic: DiagnosticFromSpan(span), Name: name}
}

// Error implements the error interface
func (e *UnknownDirectiveError) Error() string {
	return fmt.Sprintf("unknown directive %q (%s)", e.Name, e.Diagnostic)
}

// RuntimeRenderError represents a failure while executing a compiled unit,
// e.g. a dynamically named component missing at render time.
type RuntimeRenderError struct {
	Template string
	Msg      string
	Cause    error
}

// NewRuntimeRenderError creates a new RuntimeRenderError
func NewRuntimeRenderError(template, msg string, cause error) *RuntimeRenderError {
	return &RuntimeRenderError{Template: template, Msg: msg, Cause: cause}
}

// Error implements the error interface
func (e *RuntimeRenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error in %s: %s: %v", e.Template, e.Msg, e.Cause)
	}
	return fmt.Sprintf("render error in %s: %s", e.Template, e.Msg)
}

// Unwrap returns the underlying cause
func (e *RuntimeRenderError) Unwrap() error {
	return e.Cause
}
