package parser

import (
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/core"
	"stencil-go/packages/compiler/src/util"
)

// scanState tracks where a partially scanned tag stopped when its literal
// chunk ran out at an embedded-code boundary.
type scanState int

const (
	// stInTag is between attributes, waiting for a name or the tag close
	stInTag scanState = iota
	// stAwaitValue is directly after "=", waiting for the value to start
	stAwaitValue
	// stInValue is inside an attribute value
	stInValue
)

// pendingTag holds the continuation state of a tag whose source is split
// across tokens: the attributes collected so far plus the in-flight
// attribute value being accumulated into ordered parts.
type pendingTag struct {
	tag         string
	startOffset int
	attrs       []*ast.Attribute

	state     scanState
	attrName  string
	attrStart int
	quoted    bool
	quote     byte
	parts     []ast.AttributeValue
	buf       strings.Builder
}

// tagScanner decomposes literal-markup chunks into flat entries and resolves
// attribute values that continue across embedded-code boundaries.
type tagScanner struct {
	opts    *config.Options
	file    *util.ParseSourceFile
	entries []*flatEntry
	errors  []*util.ParseError
	pending *pendingTag
}

func newTagScanner(opts *config.Options, file *util.ParseSourceFile) *tagScanner {
	return &tagScanner{opts: opts, file: file}
}

func (s *tagScanner) spanAt(start, end int) *util.ParseSourceSpan {
	return util.NewParseSourceSpan(
		util.LocationAtOffset(s.file, start),
		util.LocationAtOffset(s.file, end),
		nil,
	)
}

func (s *tagScanner) addError(msg string, start, end int) {
	s.errors = append(s.errors, util.NewParseError(s.spanAt(start, end), msg))
}

func (s *tagScanner) emitText(text string, start int) {
	if text == "" {
		return
	}
	s.entries = append(s.entries, &flatEntry{
		kind: entryLeaf,
		node: ast.NewText(text, s.spanAt(start, start+len(text))),
	})
}

// scanChunk decomposes one literal-markup chunk. base is the chunk's
// absolute offset in the source.
func (s *tagScanner) scanChunk(text string, base int) {
	pos := 0
	if s.pending != nil {
		pos = s.scanTagBody(text, base, pos)
		if s.pending != nil {
			return
		}
	}

	for pos < len(text) {
		lt := strings.IndexByte(text[pos:], '<')
		if lt < 0 {
			s.emitText(text[pos:], base+pos)
			return
		}
		lt += pos
		s.emitText(text[pos:lt], base+pos)
		pos = s.scanTagStart(text, base, lt)
		if s.pending != nil {
			return
		}
	}
}

// scanTagStart handles the construct beginning at the "<" at pos
func (s *tagScanner) scanTagStart(text string, base, pos int) int {
	rest := text[pos:]
	switch {
	case strings.HasPrefix(rest, "</"):
		return s.scanClosingTag(text, base, pos)
	case strings.HasPrefix(rest, "<!--"):
		return s.scanOpaque(text, base, pos, "-->")
	case strings.HasPrefix(rest, "<!["):
		return s.scanOpaque(text, base, pos, "]]>")
	case strings.HasPrefix(rest, "<!"):
		return s.scanOpaque(text, base, pos, ">")
	}

	if pos+1 >= len(text) || !core.IsAsciiLetter(int(text[pos+1])) {
		// A lone "<" stays literal text.
		s.emitText("<", base+pos)
		return pos + 1
	}

	nameStart := pos + 1
	nameEnd := nameStart
	for nameEnd < len(text) && core.IsNameChar(int(text[nameEnd])) {
		nameEnd++
	}
	s.pending = &pendingTag{
		tag:         text[nameStart:nameEnd],
		startOffset: base + pos,
		state:       stInTag,
	}
	end := s.scanTagBody(text, base, nameEnd)
	return end
}

// scanClosingTag parses "</name>". An unterminated closing tag produces
// nothing: it is dropped silently.
func (s *tagScanner) scanClosingTag(text string, base, pos int) int {
	gt := strings.IndexByte(text[pos:], '>')
	if gt < 0 {
		return len(text)
	}
	gt += pos
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text[pos+2:gt]), "/"))
	s.entries = append(s.entries, &flatEntry{
		kind: entryClose,
		tag:  name,
		span: s.spanAt(base+pos, base+gt+1),
	})
	return gt + 1
}

// scanOpaque consumes a doctype/comment/CDATA-like form as opaque text, up
// to the given terminator or the end of the chunk.
func (s *tagScanner) scanOpaque(text string, base, pos int, terminator string) int {
	end := strings.Index(text[pos:], terminator)
	if end < 0 {
		s.emitText(text[pos:], base+pos)
		return len(text)
	}
	end += pos + len(terminator)
	s.emitText(text[pos:end], base+pos)
	return end
}

// scanTagBody scans attributes and the tag close starting at pos. When the
// chunk runs out mid-tag the pending state survives into the next chunk or
// embedded node; otherwise s.pending is cleared once the tag closes.
func (s *tagScanner) scanTagBody(text string, base, pos int) int {
	pt := s.pending
	for {
		if pt.state != stInTag {
			pos = s.scanValue(text, base, pos)
			if pt.state != stInTag {
				return pos
			}
			continue
		}

		for pos < len(text) && util.IsWhitespace(int(text[pos])) {
			pos++
		}
		if pos >= len(text) {
			return pos
		}

		c := text[pos]
		switch {
		case c == '>':
			s.finalizeTag(false, base+pos+1)
			return pos + 1
		case c == '/':
			if pos+1 < len(text) && text[pos+1] == '>' {
				s.finalizeTag(true, base+pos+2)
				return pos + 2
			}
			pos++
			continue
		}

		nameStart := pos
		for pos < len(text) && isAttrNameChar(text[pos]) {
			pos++
		}
		if pos == nameStart {
			pos++
			continue
		}
		pt.attrName = text[nameStart:pos]
		pt.attrStart = base + nameStart

		for pos < len(text) && util.IsWhitespace(int(text[pos])) {
			pos++
		}
		if pos < len(text) && text[pos] == '=' {
			pos++
			pt.state = stAwaitValue
			continue
		}

		// No value: a boolean attribute.
		s.pushAttr(&ast.BooleanValue{}, base+pos)
	}
}

// scanValue accumulates the current attribute value. It leaves the pending
// state at stInValue when the chunk ends before the value terminates, so a
// following output token or literal chunk can continue it.
func (s *tagScanner) scanValue(text string, base, pos int) int {
	pt := s.pending

	if pt.state == stAwaitValue {
		for pos < len(text) && util.IsWhitespace(int(text[pos])) {
			pos++
		}
		if pos >= len(text) {
			return pos
		}
		if util.IsQuote(int(text[pos])) {
			pt.quoted = true
			pt.quote = text[pos]
			pos++
		} else {
			pt.quoted = false
			pt.quote = 0
		}
		pt.state = stInValue
	}

	if pt.quoted {
		for pos < len(text) {
			c := text[pos]
			if c == '\\' && pos+1 < len(text) && text[pos+1] == pt.quote {
				pt.buf.WriteByte(pt.quote)
				pos += 2
				continue
			}
			if c == pt.quote {
				s.finalizeValue(base + pos + 1)
				return pos + 1
			}
			pt.buf.WriteByte(c)
			pos++
		}
		return pos
	}

	for pos < len(text) {
		c := text[pos]
		if util.IsWhitespace(int(c)) || c == '>' || c == '/' {
			s.finalizeValue(base + pos)
			return pos
		}
		pt.buf.WriteByte(c)
		pos++
	}
	return pos
}

// finalizeValue closes the in-flight attribute value, collapsing a
// single-part value to its Static or Output variant.
func (s *tagScanner) finalizeValue(endOffset int) {
	pt := s.pending
	if pt.buf.Len() > 0 || (pt.quoted && len(pt.parts) == 0) {
		pt.parts = append(pt.parts, &ast.StaticValue{Text: pt.buf.String()})
	}
	pt.buf.Reset()
	s.pushAttr(ast.CollapseParts(pt.parts), endOffset)
}

func (s *tagScanner) pushAttr(value ast.AttributeValue, endOffset int) {
	pt := s.pending
	pt.attrs = append(pt.attrs, ast.NewAttribute(
		pt.attrName,
		value,
		s.spanAt(pt.attrStart, endOffset),
	))
	pt.attrName = ""
	pt.parts = nil
	pt.quoted = false
	pt.quote = 0
	pt.state = stInTag
}

// finalizeTag classifies and emits the completed tag
func (s *tagScanner) finalizeTag(explicitSelfClose bool, endOffset int) {
	pt := s.pending
	s.pending = nil
	span := s.spanAt(pt.startOffset, endOffset)

	var node ast.Node
	selfClosing := explicitSelfClose
	switch {
	case s.opts.IsFragmentTag(pt.tag):
		node = ast.NewFragment(pt.attrs, nil, selfClosing, span)
	case s.opts.IsComponentTag(pt.tag):
		node = ast.NewComponent(s.opts.ComponentName(pt.tag), pt.attrs, nil, selfClosing, span)
	default:
		if !selfClosing && s.opts.IsVoidTag(pt.tag) {
			selfClosing = true
		}
		node = ast.NewElement(pt.tag, pt.attrs, nil, selfClosing, span)
	}

	kind := entryOpen
	if selfClosing {
		kind = entryLeaf
	}
	s.entries = append(s.entries, &flatEntry{kind: kind, node: node, span: span})
}

// deliverEmbedded routes an output node either into the in-flight attribute
// value or into the flat node list.
func (s *tagScanner) deliverEmbedded(out *ast.Output, span *util.ParseSourceSpan) {
	if s.pending == nil {
		s.entries = append(s.entries, &flatEntry{kind: entryLeaf, node: out, span: span})
		return
	}
	pt := s.pending
	switch pt.state {
	case stInValue:
		if pt.buf.Len() > 0 {
			pt.parts = append(pt.parts, &ast.StaticValue{Text: pt.buf.String()})
			pt.buf.Reset()
		}
		pt.parts = append(pt.parts, &ast.OutputValue{Output: out})
	case stAwaitValue:
		pt.parts = append(pt.parts, &ast.OutputValue{Output: out})
		pt.state = stInValue
		pt.quoted = false
		pt.quote = 0
	default:
		s.errors = append(s.errors, util.NewParseError(span,
			"Output expression is not allowed between attributes"))
	}
}

// deliverRawCode routes a non-output code block. Raw code has no meaning
// inside a tag.
func (s *tagScanner) deliverRawCode(rc *ast.RawCode, span *util.ParseSourceSpan) {
	if s.pending != nil {
		s.errors = append(s.errors, util.NewParseError(span,
			"Code block is not allowed inside a tag"))
		return
	}
	s.entries = append(s.entries, &flatEntry{kind: entryLeaf, node: rc, span: span})
}

// finish drops an unterminated tag at end of input silently
func (s *tagScanner) finish() {
	s.pending = nil
}

func isAttrNameChar(c byte) bool {
	if util.IsWhitespace(int(c)) {
		return false
	}
	switch c {
	case '=', '>', '/', '"', '\'', '<':
		return false
	}
	return true
}
