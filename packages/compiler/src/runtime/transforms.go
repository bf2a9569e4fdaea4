package runtime

import (
	"fmt"
	"strings"

	"stencil-go/packages/compiler/src/escape"
)

// TransformFunc applies one pipe-chain transform to a value. Args are the
// evaluated call arguments, empty for a transform written without a call.
type TransformFunc func(value interface{}, args []interface{}) (interface{}, error)

// Registry holds the transforms available to compiled programs
type Registry struct {
	transforms map[string]TransformFunc
}

// NewRegistry creates a registry preloaded with the built-in transforms
func NewRegistry() *Registry {
	r := &Registry{transforms: map[string]TransformFunc{}}
	r.Register("upper", func(v interface{}, _ []interface{}) (interface{}, error) {
		return strings.ToUpper(escape.Stringify(v)), nil
	})
	r.Register("lower", func(v interface{}, _ []interface{}) (interface{}, error) {
		return strings.ToLower(escape.Stringify(v)), nil
	})
	r.Register("trim", func(v interface{}, _ []interface{}) (interface{}, error) {
		return strings.TrimSpace(escape.Stringify(v)), nil
	})
	r.Register("join", func(v interface{}, args []interface{}) (interface{}, error) {
		sep := ","
		if len(args) > 0 {
			sep = escape.Stringify(args[0])
		}
		list, ok := v.([]interface{})
		if !ok {
			return escape.Stringify(v), nil
		}
		parts := make([]string, len(list))
		for i, entry := range list {
			parts[i] = escape.Stringify(entry)
		}
		return strings.Join(parts, sep), nil
	})
	r.Register("default", func(v interface{}, args []interface{}) (interface{}, error) {
		if escape.Truthy(v) || len(args) == 0 {
			return v, nil
		}
		return args[0], nil
	})
	r.Register("class", func(v interface{}, _ []interface{}) (interface{}, error) {
		return escape.ClassList(v), nil
	})
	r.Register("attrs", func(v interface{}, _ []interface{}) (interface{}, error) {
		return escape.AttrSpread(v), nil
	})
	return r
}

// Register adds or replaces a named transform
func (r *Registry) Register(name string, fn TransformFunc) {
	r.transforms[name] = fn
}

// Apply runs a named transform
func (r *Registry) Apply(name string, value interface{}, args []interface{}) (interface{}, error) {
	fn, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	return fn(value, args)
}
