package csharp

import (
	"fmt"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

func registerLogic(l *codegen.Language) {
	l.Register("logic_compare", logicCompare)
	l.Register("logic_operation", logicOperation)
	l.Register("logic_negate", logicNegate)
	l.Register("logic_boolean", logicBoolean)
	l.Register("logic_null", func(*codegen.Context, *blocks.Block) (string, codegen.Order, error) {
		return "null", OrderAtomic, nil
	})
	l.Register("logic_ternary", logicTernary)
}

var compareOps = map[string]struct {
	op    string
	order codegen.Order
}{
	"EQ":  {"==", OrderEquality},
	"NEQ": {"!=", OrderEquality},
	"LT":  {"<", OrderRelational},
	"LTE": {"<=", OrderRelational},
	"GT":  {">", OrderRelational},
	"GTE": {">=", OrderRelational},
}

func logicCompare(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	op, ok := compareOps[b.FieldValue("OP")]
	if !ok {
		return "", OrderNone, unknownOption(b, "OP")
	}
	a, err := c.ValueOr(b, "A", op.order, "0")
	if err != nil {
		return "", OrderNone, err
	}
	z, err := c.ValueOr(b, "B", op.order.Tighter(), "0")
	if err != nil {
		return "", OrderNone, err
	}
	return a + " " + op.op + " " + z, op.order, nil
}

func logicOperation(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	op, order := "&&", OrderLogicalAnd
	if b.FieldValue("OP") == "OR" {
		op, order = "||", OrderLogicalOr
	}
	a, err := c.ValueToCode(b, "A", order)
	if err != nil {
		return "", OrderNone, err
	}
	z, err := c.ValueToCode(b, "B", order)
	if err != nil {
		return "", OrderNone, err
	}
	if a == "" && z == "" {
		a, z = "false", "false"
	} else {
		// a missing operand must not change the result
		fill := "true"
		if op == "||" {
			fill = "false"
		}
		if a == "" {
			a = fill
		}
		if z == "" {
			z = fill
		}
	}
	return a + " " + op + " " + z, order, nil
}

func logicNegate(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	v, err := c.ValueOr(b, "BOOL", OrderUnary, "true")
	if err != nil {
		return "", OrderNone, err
	}
	return "!" + v, OrderUnary, nil
}

func logicBoolean(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	if b.FieldValue("BOOL") == "TRUE" {
		return "true", OrderAtomic, nil
	}
	return "false", OrderAtomic, nil
}

func logicTernary(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	cond, err := c.ValueOr(b, "IF", OrderConditional.Tighter(), "false")
	if err != nil {
		return "", OrderNone, err
	}
	then, err := c.ValueOr(b, "THEN", OrderConditional, "null")
	if err != nil {
		return "", OrderNone, err
	}
	els, err := c.ValueOr(b, "ELSE", OrderConditional, "null")
	if err != nil {
		return "", OrderNone, err
	}
	return cond + " ? " + then + " : " + els, OrderConditional, nil
}

func unknownOption(b *blocks.Block, field string) error {
	return fmt.Errorf("csharp: %s: unknown %s option %q", b.Type(), field, b.FieldValue(field))
}
