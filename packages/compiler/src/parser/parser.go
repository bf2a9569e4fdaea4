// Package parser reconstructs the template AST from the token stream and raw
// source. The tokenizer splits the source at every embedded-code boundary, so
// the parser reassembles constructs that span tokens, most notably attribute
// values interleaved with output expressions, and then turns the flat node
// list into a tree.
package parser

import (
	"strings"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/config"
	"stencil-go/packages/compiler/src/lexer"
	"stencil-go/packages/compiler/src/util"
)

const pipeOperator = "|>"

// ParseTreeResult holds the parsed document plus any recoverable errors
type ParseTreeResult struct {
	Document *ast.Document
	Errors   []*util.ParseError
}

// Parser builds template ASTs according to the configured tag conventions
type Parser struct {
	opts *config.Options
}

// NewParser creates a new Parser
func NewParser(opts *config.Options) *Parser {
	return &Parser{opts: opts}
}

// Parse tokenizes and parses one template source
func (p *Parser) Parse(source, url string) *ParseTreeResult {
	tokens := lexer.Tokenize(source, url)
	file := util.NewParseSourceFile(source, url)
	scanner := newTagScanner(p.opts, file)

	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		switch tok.Type {
		case lexer.TokenTypeMARKUP:
			scanner.scanChunk(tok.Text, tok.Offset)
			i++
		case lexer.TokenTypeCODE_OPEN_OUTPUT, lexer.TokenTypeCODE_OPEN:
			open := tok
			i++
			var sb strings.Builder
			for i < len(tokens) && tokens[i].Type == lexer.TokenTypeMARKUP {
				sb.WriteString(tokens[i].Text)
				i++
			}
			endLoc := open.SourceSpan.End
			if i < len(tokens) && tokens[i].Type == lexer.TokenTypeCODE_CLOSE {
				endLoc = tokens[i].SourceSpan.End
				i++
			}
			span := util.NewParseSourceSpan(open.SourceSpan.Start, endLoc, nil)
			if open.Type == lexer.TokenTypeCODE_OPEN_OUTPUT {
				scanner.deliverEmbedded(p.parseOutput(sb.String(), span), span)
			} else {
				scanner.deliverRawCode(ast.NewRawCode(sb.String(), span), span)
			}
		default:
			i++
		}
	}
	scanner.finish()

	doc := buildTree(scanner.entries, file)
	return &ParseTreeResult{Document: doc, Errors: scanner.errors}
}

// parseOutput builds an Output node from the raw text of an embedded output
// region: trim, strip one trailing statement terminator, then split the
// optional left-to-right pipe chain. The split is textual, not
// parenthesis-aware.
func (p *Parser) parseOutput(raw string, span *util.ParseSourceSpan) *ast.Output {
	text := strings.TrimSpace(raw)
	text = strings.TrimSuffix(text, ";")
	text = strings.TrimSpace(text)

	segments := strings.Split(text, pipeOperator)
	out := ast.NewOutput(strings.TrimSpace(segments[0]), span)
	for _, seg := range segments[1:] {
		call := parseTransformCall(strings.TrimSpace(seg))
		switch call.Name {
		case "raw":
			out.Escape = false
			out.Context = ast.ContextRaw
		case "json":
			out.Context = ast.ContextJSON
		default:
			out.Transforms = append(out.Transforms, call)
		}
	}
	return out
}

// parseTransformCall splits one pipe-chain segment into a transform name and
// its raw argument text.
func parseTransformCall(seg string) ast.TransformCall {
	open := strings.Index(seg, "(")
	if open < 0 {
		return ast.TransformCall{Name: seg}
	}
	name := strings.TrimSpace(seg[:open])
	args := strings.TrimSpace(seg[open+1:])
	args = strings.TrimSuffix(args, ")")
	return ast.TransformCall{Name: name, Args: strings.TrimSpace(args)}
}

// entryKind classifies a flat entry produced by the scanning pass
type entryKind int

const (
	entryLeaf entryKind = iota
	entryOpen
	entryClose
)

// flatEntry is one entry of the flat node list built during scanning. The
// structural second pass folds the list into a tree.
type flatEntry struct {
	kind entryKind
	node ast.Node
	// tag is set on close markers
	tag  string
	span *util.ParseSourceSpan
}

// frame is one "current children" frame of the tree builder
type frame struct {
	owner    ast.Node
	children []ast.Node
}

// buildTree folds the flat entry list into a Document. Opening a
// non-self-closing container pushes a frame; a closing marker pops the
// nearest frame, guarded so the root is never popped; leaves append to the
// current frame.
func buildTree(entries []*flatEntry, file *util.ParseSourceFile) *ast.Document {
	rootSpan := util.NewParseSourceSpan(
		util.LocationAtOffset(file, 0),
		util.LocationAtOffset(file, len(file.Content)),
		nil,
	)
	stack := []*frame{{owner: nil}}

	appendNode := func(n ast.Node) {
		top := stack[len(stack)-1]
		top.children = append(top.children, n)
	}

	for _, e := range entries {
		switch e.kind {
		case entryLeaf:
			appendNode(e.node)
		case entryOpen:
			stack = append(stack, &frame{owner: e.node})
		case entryClose:
			if len(stack) == 1 {
				// Never pop the root frame.
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			ast.SetChildrenOf(top.owner, top.children)
			if e.span != nil {
				top.owner.ExtendSpanTo(e.span.End)
			}
			appendNode(top.owner)
		}
	}

	// Containers left open at end of input close implicitly.
	for len(stack) > 1 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ast.SetChildrenOf(top.owner, top.children)
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, top.owner)
	}

	return ast.NewDocument(stack[0].children, rootSpan)
}
