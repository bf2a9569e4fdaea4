package runtime

import (
	"regexp"
	"strings"
)

// statement is one parsed statement of a raw code block: an optional
// assignment target plus an expression.
type statement struct {
	target string
	expr   string
}

var assignRe = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)\s*=([^=]|$)`)

// parseStatements splits a raw code block into its statement list. The
// supported shapes are sigil-variable assignments and bare expressions,
// separated by semicolons; splitting respects string literals.
func parseStatements(code string) []statement {
	var stmts []statement
	for _, part := range splitStatements(code) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := assignRe.FindStringSubmatchIndex(part); m != nil {
			target := part[m[2]:m[3]]
			// the expression starts right after the assignment operator
			eq := strings.Index(part, "=")
			stmts = append(stmts, statement{target: target, expr: strings.TrimSpace(part[eq+1:])})
			continue
		}
		stmts = append(stmts, statement{expr: part})
	}
	return stmts
}

// splitStatements splits on semicolons outside string literals
func splitStatements(code string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(code); i++ {
		c := code[i]
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
		case ';':
			parts = append(parts, code[start:i])
			start = i + 1
		}
	}
	parts = append(parts, code[start:])
	return parts
}
