package runtime

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"stencil-go/packages/compiler/src/ast"
	"stencil-go/packages/compiler/src/escape"
	"stencil-go/packages/compiler/src/output"
	"stencil-go/packages/compiler/src/util"
)

// SlotDefaultVar is the reserved binding name of a component's default slot
const SlotDefaultVar = "slot"

// ComponentRenderer is the render-time service a unit calls to render a
// dynamically named component.
type ComponentRenderer interface {
	RenderComponent(ctx context.Context, name string, bindings map[string]interface{}, slots map[string]string, attrs map[string]string) (string, error)
}

// FragmentCache is the injected key-value cache backing fragment-cache
// blocks.
type FragmentCache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// Unit is one callable render unit: a compiled program plus its expression
// cache, transform registry and injected services.
type Unit struct {
	program    *output.Program
	exprs      *exprCache
	transforms *Registry
	components ComponentRenderer
	fragments  FragmentCache
	receiver   interface{}
}

// Option configures a Unit
type Option func(*Unit)

// WithComponentRenderer injects the component-rendering service
func WithComponentRenderer(r ComponentRenderer) Option {
	return func(u *Unit) { u.components = r }
}

// WithFragmentCache injects the fragment cache
func WithFragmentCache(c FragmentCache) Option {
	return func(u *Unit) { u.fragments = c }
}

// WithTransforms replaces the default transform registry
func WithTransforms(r *Registry) Option {
	return func(u *Unit) { u.transforms = r }
}

// NewUnit creates a unit for a compiled program
func NewUnit(program *output.Program, opts ...Option) *Unit {
	u := &Unit{
		program:    program,
		exprs:      newExprCache(),
		transforms: NewRegistry(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// LoadUnit creates a unit from a program's serialized form
func LoadUnit(source string, opts ...Option) (*Unit, error) {
	program, err := output.UnmarshalProgram(source)
	if err != nil {
		return nil, err
	}
	return NewUnit(program, opts...), nil
}

// Path returns the template path the unit was compiled from
func (u *Unit) Path() string {
	return u.program.Path
}

// Bind attaches an external receiver object; template code reaches it
// through the $this sigil.
func (u *Unit) Bind(receiver interface{}) *Unit {
	u.receiver = receiver
	return u
}

// Render executes the unit against a bindings map and returns the rendered
// string.
func (u *Unit) Render(ctx context.Context, bindings map[string]interface{}) (string, error) {
	env := make(map[string]interface{}, len(bindings)+1)
	for name, value := range bindings {
		env[name] = value
	}
	if u.receiver != nil {
		env[ReceiverVar] = u.receiver
	}
	addBuiltins(env)
	var b strings.Builder
	if err := u.exec(ctx, u.program.Ops, env, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (u *Unit) exec(ctx context.Context, ops []*output.Op, env map[string]interface{}, b *strings.Builder) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return u.fail(op, err)
		}
		if err := u.execOp(ctx, op, env, b); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unit) execOp(ctx context.Context, op *output.Op, env map[string]interface{}, b *strings.Builder) error {
	switch op.Kind {
	case output.OpText:
		b.WriteString(op.Text)
	case output.OpOut:
		s, err := u.renderOut(op, env)
		if err != nil {
			return u.fail(op, err)
		}
		b.WriteString(s)
	case output.OpCode:
		if err := u.execStatements(op.Expr, env); err != nil {
			return u.fail(op, err)
		}
	case output.OpIf:
		return u.execIf(ctx, op, env, b)
	case output.OpFor:
		return u.execFor(ctx, op, env, b)
	case output.OpWhile:
		return u.execWhile(ctx, op, env, b)
	case output.OpCache:
		return u.execCache(ctx, op, env, b)
	case output.OpScope:
		return u.execScope(ctx, op, env, b)
	case output.OpComponent:
		return u.execComponent(ctx, op, env, b)
	default:
		return u.fail(op, fmt.Errorf("unknown instruction kind %q", op.Kind))
	}
	return nil
}

// renderOut evaluates an output expression, applies its pipe chain and
// escapes the result for the instruction's context.
func (u *Unit) renderOut(op *output.Op, env map[string]interface{}) (string, error) {
	value, err := u.exprs.eval(op.Expr, env)
	if err != nil {
		return "", err
	}
	for _, t := range op.Transforms {
		value, err = u.applyTransform(t, value, env)
		if err != nil {
			return "", err
		}
	}
	if !op.Escape {
		return escape.Stringify(value), nil
	}
	return escape.Apply(value, ast.EscapeContext(op.Context))
}

// applyTransform runs one pipe-chain call: a registered transform, or a
// helper function looked up in the render environment.
func (u *Unit) applyTransform(t *output.Transform, value interface{}, env map[string]interface{}) (interface{}, error) {
	args, err := u.evalArgs(t.Args, env)
	if err != nil {
		return nil, err
	}
	if _, ok := u.transforms.transforms[t.Name]; ok {
		return u.transforms.Apply(t.Name, value, args)
	}
	if _, ok := env[t.Name]; ok {
		call := t.Name + "(__pipe__"
		if strings.TrimSpace(t.Args) != "" {
			call += ", " + t.Args
		}
		call += ")"
		scoped := make(map[string]interface{}, len(env)+1)
		for k, v := range env {
			scoped[k] = v
		}
		scoped["__pipe__"] = value
		return u.exprs.eval(call, scoped)
	}
	return u.transforms.Apply(t.Name, value, args)
}

// evalArgs evaluates a transform's raw argument text as an argument list
func (u *Unit) evalArgs(raw string, env map[string]interface{}) ([]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := u.exprs.eval("["+raw+"]", env)
	if err != nil {
		return nil, err
	}
	args, ok := value.([]interface{})
	if !ok {
		return []interface{}{value}, nil
	}
	return args, nil
}

// execStatements runs a raw code block's statement list against the
// environment.
func (u *Unit) execStatements(code string, env map[string]interface{}) error {
	for _, stmt := range parseStatements(code) {
		value, err := u.exprs.eval(stmt.expr, env)
		if err != nil {
			return err
		}
		if stmt.target != "" {
			env[stmt.target] = value
		}
	}
	return nil
}

func (u *Unit) execIf(ctx context.Context, op *output.Op, env map[string]interface{}, b *strings.Builder) error {
	for _, branch := range op.Branches {
		value, err := u.exprs.eval(branch.Expr, env)
		if err != nil {
			return u.fail(op, err)
		}
		if escape.Truthy(value) {
			return u.exec(ctx, branch.Body, env, b)
		}
	}
	if op.Else != nil {
		return u.exec(ctx, op.Else, env, b)
	}
	return nil
}

func (u *Unit) execFor(ctx context.Context, op *output.Op, env map[string]interface{}, b *strings.Builder) error {
	value, err := u.exprs.eval(op.Expr, env)
	if err != nil {
		return u.fail(op, err)
	}
	iterate := func(key, item interface{}) error {
		if op.KeyVar != "" {
			env[op.KeyVar] = key
		}
		env[op.ItemVar] = item
		return u.exec(ctx, op.Body, env, b)
	}
	switch coll := value.(type) {
	case nil:
		return nil
	case []interface{}:
		for i, item := range coll {
			if err := iterate(i, item); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(coll))
		for key := range coll {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := iterate(key, coll[key]); err != nil {
				return err
			}
		}
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if err := iterate(i, rv.Index(i).Interface()); err != nil {
					return err
				}
			}
		case reflect.Map:
			keys := rv.MapKeys()
			sort.Slice(keys, func(i, j int) bool {
				return escape.Stringify(keys[i].Interface()) < escape.Stringify(keys[j].Interface())
			})
			for _, key := range keys {
				if err := iterate(key.Interface(), rv.MapIndex(key).Interface()); err != nil {
					return err
				}
			}
		default:
			return u.fail(op, fmt.Errorf("cannot iterate value of type %T", value))
		}
	}
	return nil
}

func (u *Unit) execWhile(ctx context.Context, op *output.Op, env map[string]interface{}, b *strings.Builder) error {
	for {
		if err := ctx.Err(); err != nil {
			return u.fail(op, err)
		}
		value, err := u.exprs.eval(op.Expr, env)
		if err != nil {
			return u.fail(op, err)
		}
		if !escape.Truthy(value) {
			return nil
		}
		if err := u.exec(ctx, op.Body, env, b); err != nil {
			return err
		}
	}
}

func (u *Unit) execCache(ctx context.Context, op *output.Op, env map[string]interface{}, b *strings.Builder) error {
	if u.fragments == nil {
		return u.exec(ctx, op.Body, env, b)
	}
	value, err := u.exprs.eval(op.Expr, env)
	if err != nil {
		return u.fail(op, err)
	}
	key := escape.Stringify(value)
	if cached, ok := u.fragments.Get(key); ok {
		b.WriteString(cached)
		return nil
	}
	var body strings.Builder
	if err := u.exec(ctx, op.Body, env, &body); err != nil {
		return err
	}
	u.fragments.Set(key, body.String(), time.Duration(op.TTL)*time.Second)
	b.WriteString(body.String())
	return nil
}

// execScope renders slot bodies against the caller's environment, then runs
// the body in a fresh environment holding only the binding spread, the slot
// variables and the receiver.
func (u *Unit) execScope(ctx context.Context, op *output.Op, env map[string]interface{}, b *strings.Builder) error {
	scoped := make(map[string]interface{}, len(op.Slots)+2)
	if op.Expr != "" {
		value, err := u.exprs.eval(op.Expr, env)
		if err != nil {
			return u.fail(op, err)
		}
		bindings, err := bindingMap(value)
		if err != nil {
			return u.fail(op, err)
		}
		for name, bound := range bindings {
			scoped[name] = bound
		}
	}
	for _, name := range op.SlotOrder {
		var slot strings.Builder
		if err := u.exec(ctx, op.Slots[name], env, &slot); err != nil {
			return err
		}
		scoped[name] = slot.String()
	}
	if u.receiver != nil {
		scoped[ReceiverVar] = u.receiver
	}
	addBuiltins(scoped)
	return u.exec(ctx, op.Body, scoped, b)
}

func (u *Unit) execComponent(ctx context.Context, op *output.Op, env map[string]interface{}, b *strings.Builder) error {
	if u.components == nil {
		return u.fail(op, fmt.Errorf("no component renderer bound"))
	}
	value, err := u.exprs.eval(op.Expr, env)
	if err != nil {
		return u.fail(op, err)
	}
	name, ok := value.(string)
	if !ok || name == "" {
		return u.fail(op, fmt.Errorf("component name expression evaluated to %T, want a non-empty string", value))
	}

	bindings := map[string]interface{}{}
	if op.Bindings != "" {
		bound, err := u.exprs.eval(op.Bindings, env)
		if err != nil {
			return u.fail(op, err)
		}
		if bindings, err = bindingMap(bound); err != nil {
			return u.fail(op, err)
		}
	}
	slots := make(map[string]string, len(op.SlotExprs))
	for slot, expr := range op.SlotExprs {
		v, err := u.exprs.eval(expr, env)
		if err != nil {
			return u.fail(op, err)
		}
		slots[slot] = escape.Stringify(v)
	}
	attrs := make(map[string]string, len(op.Attrs))
	for attr, expr := range op.Attrs {
		v, err := u.exprs.eval(expr, env)
		if err != nil {
			return u.fail(op, err)
		}
		attrs[attr] = escape.Stringify(v)
	}

	rendered, err := u.components.RenderComponent(ctx, name, bindings, slots, attrs)
	if err != nil {
		return u.fail(op, err)
	}
	b.WriteString(rendered)
	return nil
}

// addBuiltins exposes the helper functions generated expressions call.
// Bindings of the same name win.
func addBuiltins(env map[string]interface{}) {
	if _, ok := env["escape"]; !ok {
		env["escape"] = func(v interface{}) string {
			return escape.HTML(escape.Stringify(v))
		}
	}
}

// bindingMap coerces an evaluated binding expression to a bindings map
func bindingMap(value interface{}) (map[string]interface{}, error) {
	switch m := value.(type) {
	case nil:
		return map[string]interface{}{}, nil
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[escape.Stringify(k)] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("binding expression evaluated to %T, want a map", value)
}

// fail wraps an execution failure with the unit's template path and the
// failing instruction's source line.
func (u *Unit) fail(op *output.Op, err error) error {
	if _, ok := err.(*util.RuntimeRenderError); ok {
		return err
	}
	msg := "render failed"
	if op.Line > 0 {
		msg = fmt.Sprintf("render failed at line %d", op.Line)
	}
	return util.NewRuntimeRenderError(u.program.Path, msg, err)
}
