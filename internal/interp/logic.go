package interp

import "github.com/imagicbell/ublockly-sub001/internal/blocks"

func registerLogic(t *Table) {
	t.Expr("logic_compare", logicCompare)
	t.Expr("logic_operation", logicOperation)
	t.Expr("logic_negate", func(e *Env, b *blocks.Block) (Value, error) {
		if !e.HasValue(b, "BOOL") {
			return Bool(false), nil
		}
		v, err := e.Eval(b, "BOOL")
		if err != nil {
			return Null(), err
		}
		return Bool(!v.Truthy()), nil
	})
	t.Expr("logic_boolean", func(e *Env, b *blocks.Block) (Value, error) {
		return Bool(b.FieldValue("BOOL") == "TRUE"), nil
	})
	t.Expr("logic_null", func(e *Env, b *blocks.Block) (Value, error) {
		return Null(), nil
	})
	t.Expr("logic_ternary", logicTernary)
}

func logicCompare(e *Env, b *blocks.Block) (Value, error) {
	a, err := evalOr(e, b, "A", Number(0))
	if err != nil {
		return Null(), err
	}
	z, err := evalOr(e, b, "B", Number(0))
	if err != nil {
		return Null(), err
	}
	op := b.FieldValue("OP")
	switch op {
	case "EQ":
		return Bool(a.Equal(z)), nil
	case "NEQ":
		return Bool(!a.Equal(z)), nil
	}
	cmp, err := a.Compare(z)
	if err != nil {
		return Null(), runtimeErr(b, "%v", err)
	}
	switch op {
	case "LT":
		return Bool(cmp < 0), nil
	case "LTE":
		return Bool(cmp <= 0), nil
	case "GT":
		return Bool(cmp > 0), nil
	case "GTE":
		return Bool(cmp >= 0), nil
	}
	return Null(), unknownOption(b, "OP")
}

// logicOperation short-circuits. A missing operand is neutral for the
// operator (true for AND, false for OR); both missing is false.
func logicOperation(e *Env, b *blocks.Block) (Value, error) {
	and := b.FieldValue("OP") == "AND"
	if !and && b.FieldValue("OP") != "OR" {
		return Null(), unknownOption(b, "OP")
	}
	hasA, hasB := e.HasValue(b, "A"), e.HasValue(b, "B")
	if !hasA && !hasB {
		return Bool(false), nil
	}
	a, err := evalOr(e, b, "A", Bool(and))
	if err != nil {
		return Null(), err
	}
	if a.Truthy() != and {
		return Bool(!and), nil
	}
	z, err := evalOr(e, b, "B", Bool(and))
	if err != nil {
		return Null(), err
	}
	return Bool(z.Truthy()), nil
}

func logicTernary(e *Env, b *blocks.Block) (Value, error) {
	cond, err := e.Eval(b, "IF")
	if err != nil {
		return Null(), err
	}
	if cond.Truthy() {
		return e.Eval(b, "THEN")
	}
	return e.Eval(b, "ELSE")
}

// evalOr evaluates input, or returns def when nothing is plugged in.
func evalOr(e *Env, b *blocks.Block, input string, def Value) (Value, error) {
	if !e.HasValue(b, input) {
		return def, nil
	}
	return e.Eval(b, input)
}
