// Package lexer splits raw template source into a stream of classified
// tokens: literal-markup runs and embedded-code delimiters. Token boundaries
// fall at every "<?", "<?=" and "?>", so a single markup construct may be
// fragmented across several tokens; reassembly is the parser's job.
package lexer

import (
	"stencil-go/packages/compiler/src/core"
	"stencil-go/packages/compiler/src/util"
)

const (
	codeOpen       = "<?"
	codeOpenOutput = "<?="
	codeClose      = "?>"
)

// CharacterCursor walks the source one character at a time while tracking
// offset, line and column for diagnostics.
type CharacterCursor struct {
	file   *util.ParseSourceFile
	input  string
	offset int
	line   int
	column int
}

// NewCharacterCursor creates a cursor at the start of a source file
func NewCharacterCursor(file *util.ParseSourceFile) *CharacterCursor {
	return &CharacterCursor{file: file, input: file.Content}
}

// Clone creates a copy of the cursor
func (c *CharacterCursor) Clone() *CharacterCursor {
	clone := *c
	return &clone
}

// Peek returns the current character code, or core.CharEOF at end of input
func (c *CharacterCursor) Peek() int {
	if c.offset >= len(c.input) {
		return core.CharEOF
	}
	return int(c.input[c.offset])
}

// Advance advances the cursor by one character
func (c *CharacterCursor) Advance() {
	if c.offset >= len(c.input) {
		return
	}
	if c.input[c.offset] == '\n' {
		c.line++
		c.column = 0
	} else {
		c.column++
	}
	c.offset++
}

// CharsLeft returns the number of characters remaining
func (c *CharacterCursor) CharsLeft() int {
	return len(c.input) - c.offset
}

// StartsWith checks if the input at the cursor starts with the given string
func (c *CharacterCursor) StartsWith(s string) bool {
	if c.CharsLeft() < len(s) {
		return false
	}
	return c.input[c.offset:c.offset+len(s)] == s
}

// AdvanceBy advances the cursor by n characters
func (c *CharacterCursor) AdvanceBy(n int) {
	for i := 0; i < n; i++ {
		c.Advance()
	}
}

// GetChars returns the characters between a start cursor and this cursor
func (c *CharacterCursor) GetChars(start *CharacterCursor) string {
	return c.input[start.offset:c.offset]
}

// GetSpan returns a source span between a start cursor and this cursor
func (c *CharacterCursor) GetSpan(start *CharacterCursor) *util.ParseSourceSpan {
	return util.NewParseSourceSpan(
		util.NewParseLocation(c.file, start.offset, start.line, start.column),
		util.NewParseLocation(c.file, c.offset, c.line, c.column),
		nil,
	)
}

// Tokenizer produces the ordered token stream for one template source
type Tokenizer struct {
	cursor *CharacterCursor
	tokens []*Token
}

// NewTokenizer creates a new Tokenizer for a source string
func NewTokenizer(source, url string) *Tokenizer {
	file := util.NewParseSourceFile(source, url)
	return &Tokenizer{cursor: NewCharacterCursor(file)}
}

// Tokenize splits the source into tokens. It never fails: malformed embedded
// code is passed through for the execution environment's own parser to report.
func Tokenize(source, url string) []*Token {
	t := NewTokenizer(source, url)
	return t.Tokenize()
}

// Tokenize runs the tokenizer and returns the token stream
func (t *Tokenizer) Tokenize() []*Token {
	for t.cursor.Peek() != core.CharEOF {
		if t.cursor.StartsWith(codeOpenOutput) {
			t.consumeDelimiter(TokenTypeCODE_OPEN_OUTPUT, codeOpenOutput)
			t.consumeCodeText()
		} else if t.cursor.StartsWith(codeOpen) {
			t.consumeDelimiter(TokenTypeCODE_OPEN, codeOpen)
			t.consumeCodeText()
		} else {
			t.consumeMarkup()
		}
	}
	end := t.cursor.GetSpan(t.cursor)
	t.tokens = append(t.tokens, NewToken(TokenTypeEOF, "", end))
	return t.tokens
}

func (t *Tokenizer) emit(tokenType TokenType, start *CharacterCursor) {
	text := t.cursor.GetChars(start)
	if tokenType == TokenTypeMARKUP && text == "" {
		return
	}
	t.tokens = append(t.tokens, NewToken(tokenType, text, t.cursor.GetSpan(start)))
}

func (t *Tokenizer) consumeDelimiter(tokenType TokenType, delim string) {
	start := t.cursor.Clone()
	t.cursor.AdvanceBy(len(delim))
	t.emit(tokenType, start)
}

// consumeCodeText consumes raw embedded-code text up to the matching close
// delimiter, emitting it as one markup run. An unterminated region runs to
// the end of input and produces no close token.
func (t *Tokenizer) consumeCodeText() {
	start := t.cursor.Clone()
	for t.cursor.Peek() != core.CharEOF && !t.cursor.StartsWith(codeClose) {
		t.cursor.Advance()
	}
	t.emit(TokenTypeMARKUP, start)
	if t.cursor.StartsWith(codeClose) {
		t.consumeDelimiter(TokenTypeCODE_CLOSE, codeClose)
	}
}

// consumeMarkup consumes a literal-markup run up to the next code-open
// delimiter.
func (t *Tokenizer) consumeMarkup() {
	start := t.cursor.Clone()
	for t.cursor.Peek() != core.CharEOF && !t.cursor.StartsWith(codeOpen) {
		t.cursor.Advance()
	}
	t.emit(TokenTypeMARKUP, start)
}
