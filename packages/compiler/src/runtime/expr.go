// Package runtime executes compiled programs. A Unit wraps one program
// together with its expression cache, transform registry and the injected
// render-time services, and renders against a name to value bindings map.
package runtime

import (
	"strings"

	"github.com/alphadose/haxmap"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ReceiverVar is the environment name the bound external receiver is
// exposed under; template code reaches it through the $this sigil.
const ReceiverVar = "this"

// Rewrite converts template expression surface syntax to the evaluator's
// syntax: the variable sigil is dropped and arrow member access becomes dot
// access. The rewrite is textual; sigils inside string literals are left
// alone.
func Rewrite(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '$' && i+1 < len(src) && isIdentStart(src[i+1]):
			// drop the sigil
		case c == '-' && i+1 < len(src) && src[i+1] == '>':
			b.WriteByte('.')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// exprCache memoizes compiled expressions per unit across renders
type exprCache struct {
	programs *haxmap.Map[string, *vm.Program]
}

func newExprCache() *exprCache {
	return &exprCache{programs: haxmap.New[string, *vm.Program]()}
}

// compile compiles a surface-syntax expression, reusing a prior compile of
// the same source.
func (c *exprCache) compile(src string) (*vm.Program, error) {
	if prog, ok := c.programs.Get(src); ok {
		return prog, nil
	}
	prog, err := expr.Compile(Rewrite(src), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	c.programs.Set(src, prog)
	return prog, nil
}

// eval compiles and runs a surface-syntax expression against an environment
func (c *exprCache) eval(src string, env map[string]interface{}) (interface{}, error) {
	prog, err := c.compile(src)
	if err != nil {
		return nil, err
	}
	return expr.Run(prog, env)
}
