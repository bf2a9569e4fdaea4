package lexer

import "stencil-go/packages/compiler/src/util"

// TokenType represents the type of a token
type TokenType int

const (
	// TokenTypeMARKUP is a run of literal markup or raw embedded-code text
	TokenTypeMARKUP TokenType = iota
	// TokenTypeCODE_OPEN opens an embedded code region ("<?")
	TokenTypeCODE_OPEN
	// TokenTypeCODE_OPEN_OUTPUT opens an embedded code region whose value is
	// written to the output ("<?=")
	TokenTypeCODE_OPEN_OUTPUT
	// TokenTypeCODE_CLOSE closes an embedded code region ("?>")
	TokenTypeCODE_CLOSE
	// TokenTypeEOF terminates the stream
	TokenTypeEOF
)

// String returns the token type name
func (t TokenType) String() string {
	switch t {
	case TokenTypeMARKUP:
		return "MARKUP"
	case TokenTypeCODE_OPEN:
		return "CODE_OPEN"
	case TokenTypeCODE_OPEN_OUTPUT:
		return "CODE_OPEN_OUTPUT"
	case TokenTypeCODE_CLOSE:
		return "CODE_CLOSE"
	case TokenTypeEOF:
		return "EOF"
	}
	return "UNKNOWN"
}

// Token represents a classified region of template source. It carries the
// literal text plus the zero-based line and absolute offset where it starts.
type Token struct {
	Type       TokenType
	Text       string
	Line       int
	Offset     int
	SourceSpan *util.ParseSourceSpan
}

// NewToken creates a new Token
func NewToken(tokenType TokenType, text string, span *util.ParseSourceSpan) *Token {
	return &Token{
		Type:       tokenType,
		Text:       text,
		Line:       span.Start.Line,
		Offset:     span.Start.Offset,
		SourceSpan: span,
	}
}
