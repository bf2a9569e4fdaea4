package runtime

import (
	"fmt"

	"stencil-go/packages/compiler/src/output"
)

// Validate compiles every expression a program carries, without running
// any of them, so a broken expression surfaces at compile time instead of
// on the first render. Statement blocks validate per parsed statement.
func Validate(program *output.Program) error {
	exprs := newExprCache()
	return validateOps(program.Ops, exprs)
}

func validateOps(ops []*output.Op, exprs *exprCache) error {
	for _, op := range ops {
		if err := validateOp(op, exprs); err != nil {
			return err
		}
	}
	return nil
}

func validateOp(op *output.Op, exprs *exprCache) error {
	check := func(src string) error {
		if src == "" {
			return nil
		}
		if _, err := exprs.compile(src); err != nil {
			return fmt.Errorf("line %d: invalid expression %q: %w", op.Line, src, err)
		}
		return nil
	}

	switch op.Kind {
	case output.OpCode:
		for _, stmt := range parseStatements(op.Expr) {
			if err := check(stmt.expr); err != nil {
				return err
			}
		}
	default:
		if err := check(op.Expr); err != nil {
			return err
		}
	}
	for _, t := range op.Transforms {
		if t.Args != "" {
			if err := check("[" + t.Args + "]"); err != nil {
				return err
			}
		}
	}
	for _, br := range op.Branches {
		if err := check(br.Expr); err != nil {
			return err
		}
		if err := validateOps(br.Body, exprs); err != nil {
			return err
		}
	}
	if err := check(op.Bindings); err != nil {
		return err
	}
	for _, src := range op.Attrs {
		if err := check(src); err != nil {
			return err
		}
	}
	for _, src := range op.SlotExprs {
		if err := check(src); err != nil {
			return err
		}
	}
	for _, slot := range op.Slots {
		if err := validateOps(slot, exprs); err != nil {
			return err
		}
	}
	if err := validateOps(op.Body, exprs); err != nil {
		return err
	}
	return validateOps(op.Else, exprs)
}
