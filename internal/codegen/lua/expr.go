package lua

import (
	"strconv"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

func registerLogic(l *codegen.Language) {
	l.Register("logic_compare", logicCompare)
	l.Register("logic_operation", logicOperation)
	l.Register("logic_negate", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		v, err := c.ValueOr(b, "BOOL", OrderUnary, "true")
		return "not " + v, OrderUnary, err
	})
	l.Register("logic_boolean", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		if b.FieldValue("BOOL") == "TRUE" {
			return "true", OrderAtomic, nil
		}
		return "false", OrderAtomic, nil
	})
	l.Register("logic_null", func(*codegen.Context, *blocks.Block) (string, codegen.Order, error) {
		return "nil", OrderAtomic, nil
	})
	l.Register("logic_ternary", logicTernary)
}

var compareOps = map[string]string{
	"EQ": "==", "NEQ": "~=", "LT": "<", "LTE": "<=", "GT": ">", "GTE": ">=",
}

func logicCompare(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	op, ok := compareOps[b.FieldValue("OP")]
	if !ok {
		return "", OrderNone, unknownOption(b, "OP")
	}
	a, err := c.ValueOr(b, "A", OrderRelational, "0")
	if err != nil {
		return "", OrderNone, err
	}
	z, err := c.ValueOr(b, "B", OrderRelational.Tighter(), "0")
	if err != nil {
		return "", OrderNone, err
	}
	return a + " " + op + " " + z, OrderRelational, nil
}

func logicOperation(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	op, order, fill := "and", OrderAnd, "true"
	if b.FieldValue("OP") == "OR" {
		op, order, fill = "or", OrderOr, "false"
	}
	a, err := c.ValueToCode(b, "A", order)
	if err != nil {
		return "", OrderNone, err
	}
	z, err := c.ValueToCode(b, "B", order)
	if err != nil {
		return "", OrderNone, err
	}
	switch {
	case a == "" && z == "":
		a, z = "false", "false"
	case a == "":
		a = fill
	case z == "":
		z = fill
	}
	return a + " " + op + " " + z, order, nil
}

func logicTernary(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	cond, err := c.ValueOr(b, "IF", OrderAnd, "false")
	if err != nil {
		return "", OrderNone, err
	}
	then, err := c.ValueOr(b, "THEN", OrderAnd, "nil")
	if err != nil {
		return "", OrderNone, err
	}
	els, err := c.ValueOr(b, "ELSE", OrderOr, "nil")
	if err != nil {
		return "", OrderNone, err
	}
	return cond + " and " + then + " or " + els, OrderOr, nil
}

func registerMath(l *codegen.Language) {
	l.Register("math_number", mathNumber)
	l.Register("math_arithmetic", mathArithmetic)
	l.Register("math_single", mathSingle)
	l.Register("math_modulo", mathModulo)
	l.Register("math_number_property", mathNumberProperty)
}

func mathNumber(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	v := b.FieldValue("NUM")
	switch {
	case v == "Infinity":
		return "math.huge", OrderHigh, nil
	case v == "-Infinity":
		return "-math.huge", OrderUnary, nil
	case strings.HasPrefix(v, "-"):
		return v, OrderUnary, nil
	}
	return v, OrderAtomic, nil
}

var arithmeticOps = map[string]struct {
	op    string
	order codegen.Order
}{
	"ADD":      {"+", OrderAdditive},
	"MINUS":    {"-", OrderAdditive},
	"MULTIPLY": {"*", OrderMultiplicative},
	"DIVIDE":   {"/", OrderMultiplicative},
	"POWER":    {"^", OrderExponentiation},
}

func mathArithmetic(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	op, ok := arithmeticOps[b.FieldValue("OP")]
	if !ok {
		return "", OrderNone, unknownOption(b, "OP")
	}
	left, right := op.order, op.order.Tighter()
	if op.op == "^" {
		// right associative
		left, right = right, left
	}
	a, err := c.ValueOr(b, "A", left, "0")
	if err != nil {
		return "", OrderNone, err
	}
	z, err := c.ValueOr(b, "B", right, "0")
	if err != nil {
		return "", OrderNone, err
	}
	return a + " " + op.op + " " + z, op.order, nil
}

var singleFuncs = map[string]string{
	"ROOT": "math.sqrt",
	"ABS":  "math.abs",
	"LN":   "math.log",
	"EXP":  "math.exp",
}

func mathSingle(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	switch op := b.FieldValue("OP"); op {
	case "NEG":
		arg, err := c.ValueOr(b, "NUM", OrderUnary, "0")
		if strings.HasPrefix(arg, "-") {
			// "--" starts a comment
			arg = "(" + arg + ")"
		}
		return "-" + arg, OrderUnary, err
	case "POW10":
		arg, err := c.ValueOr(b, "NUM", OrderExponentiation, "0")
		return "10 ^ " + arg, OrderExponentiation, err
	case "LOG10":
		arg, err := c.ValueOr(b, "NUM", OrderNone, "0")
		return "math.log(" + arg + ", 10)", OrderHigh, err
	default:
		fn, ok := singleFuncs[op]
		if !ok {
			return "", OrderNone, unknownOption(b, "OP")
		}
		arg, err := c.ValueOr(b, "NUM", OrderNone, "0")
		return fn + "(" + arg + ")", OrderHigh, err
	}
}

func mathModulo(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	a, err := c.ValueOr(b, "DIVIDEND", OrderMultiplicative, "0")
	if err != nil {
		return "", OrderNone, err
	}
	z, err := c.ValueOr(b, "DIVISOR", OrderMultiplicative.Tighter(), "0")
	if err != nil {
		return "", OrderNone, err
	}
	return a + " % " + z, OrderMultiplicative, nil
}

const isPrimeFunc = `function {{name}}(n)
  if n == 2 or n == 3 then
    return true
  end
  if n <= 1 or n % 1 ~= 0 or n % 2 == 0 or n % 3 == 0 then
    return false
  end
  for x = 6, math.sqrt(n) + 1, 6 do
    if n % (x - 1) == 0 or n % (x + 1) == 0 then
      return false
    end
  end
  return true
end
`

func mathNumberProperty(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	prop := b.FieldValue("PROPERTY")
	switch prop {
	case "PRIME":
		n, err := c.ValueOr(b, "NUMBER_TO_CHECK", OrderNone, "0")
		if err != nil {
			return "", OrderNone, err
		}
		return c.ProvideFunction("math_isPrime", isPrimeFunc) + "(" + n + ")", OrderHigh, nil
	case "POSITIVE", "NEGATIVE":
		n, err := c.ValueOr(b, "NUMBER_TO_CHECK", OrderRelational, "0")
		if err != nil {
			return "", OrderNone, err
		}
		if prop == "POSITIVE" {
			return n + " > 0", OrderRelational, nil
		}
		return n + " < 0", OrderRelational, nil
	}
	n, err := c.ValueOr(b, "NUMBER_TO_CHECK", OrderMultiplicative, "0")
	if err != nil {
		return "", OrderNone, err
	}
	switch prop {
	case "EVEN":
		return n + " % 2 == 0", OrderRelational, nil
	case "ODD":
		return n + " % 2 == 1", OrderRelational, nil
	case "WHOLE":
		return n + " % 1 == 0", OrderRelational, nil
	case "DIVISIBLE_BY":
		d, err := c.ValueOr(b, "DIVISOR", OrderMultiplicative.Tighter(), "0")
		if err != nil {
			return "", OrderNone, err
		}
		return n + " % " + d + " == 0", OrderRelational, nil
	}
	return "", OrderNone, unknownOption(b, "PROPERTY")
}

func registerText(l *codegen.Language) {
	l.Register("text", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		return quote(b.FieldValue("TEXT")), OrderAtomic, nil
	})
	l.Register("text_join", textJoin)
	l.Register("text_length", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		v, err := c.ValueOr(b, "VALUE", OrderUnary, "''")
		return "#" + v, OrderUnary, err
	})
	l.Register("text_print", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		msg, err := c.ValueOr(b, "TEXT", OrderNone, "''")
		return "print(" + msg + ")\n", OrderNone, err
	})
}

// itemValues collects the ADD0..ADDn inputs of an item-list block.
func itemValues(c *codegen.Context, b *blocks.Block, fallback string) ([]string, error) {
	var items []string
	for i := 0; b.Input("ADD"+strconv.Itoa(i)) != nil; i++ {
		v, err := c.ValueOr(b, "ADD"+strconv.Itoa(i), OrderNone, fallback)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func textJoin(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	items, err := itemValues(c, b, "''")
	if err != nil {
		return "", OrderNone, err
	}
	switch len(items) {
	case 0:
		return "''", OrderAtomic, nil
	case 1:
		return "tostring(" + items[0] + ")", OrderHigh, nil
	case 2:
		return "tostring(" + items[0] + ") .. tostring(" + items[1] + ")", OrderConcatenation, nil
	}
	return "table.concat({" + strings.Join(items, ", ") + "})", OrderHigh, nil
}
