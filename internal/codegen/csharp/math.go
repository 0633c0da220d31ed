package csharp

import (
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

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
		return "double.PositiveInfinity", OrderMember, nil
	case v == "-Infinity":
		return "double.NegativeInfinity", OrderMember, nil
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
}

func mathArithmetic(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	opName := b.FieldValue("OP")
	if opName == "POWER" {
		c.AddImport("using System;")
		a, err := c.ValueOr(b, "A", OrderNone, "0")
		if err != nil {
			return "", OrderNone, err
		}
		z, err := c.ValueOr(b, "B", OrderNone, "0")
		if err != nil {
			return "", OrderNone, err
		}
		return "Math.Pow(" + a + ", " + z + ")", OrderPostfix, nil
	}
	op, ok := arithmeticOps[opName]
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

var singleFuncs = map[string]string{
	"ROOT":  "Math.Sqrt",
	"ABS":   "Math.Abs",
	"LN":    "Math.Log",
	"LOG10": "Math.Log10",
	"EXP":   "Math.Exp",
}

func mathSingle(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	op := b.FieldValue("OP")
	if op == "NEG" {
		arg, err := c.ValueOr(b, "NUM", OrderUnary, "0")
		if err != nil {
			return "", OrderNone, err
		}
		if strings.HasPrefix(arg, "-") {
			arg = "(" + arg + ")"
		}
		return "-" + arg, OrderUnary, nil
	}
	arg, err := c.ValueOr(b, "NUM", OrderNone, "0")
	if err != nil {
		return "", OrderNone, err
	}
	c.AddImport("using System;")
	if op == "POW10" {
		return "Math.Pow(10, " + arg + ")", OrderPostfix, nil
	}
	fn, ok := singleFuncs[op]
	if !ok {
		return "", OrderNone, unknownOption(b, "OP")
	}
	return fn + "(" + arg + ")", OrderPostfix, nil
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

const isPrimeFunc = `bool {{name}}(dynamic n)
{
    if (n == 2 || n == 3)
    {
        return true;
    }
    if (n <= 1 || n % 1 != 0 || n % 2 == 0 || n % 3 == 0)
    {
        return false;
    }
    for (var x = 6; x <= Math.Sqrt(n) + 1; x += 6)
    {
        if (n % (x - 1) == 0 || n % (x + 1) == 0)
        {
            return false;
        }
    }
    return true;
}
`

func mathNumberProperty(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	prop := b.FieldValue("PROPERTY")
	switch prop {
	case "PRIME":
		n, err := c.ValueOr(b, "NUMBER_TO_CHECK", OrderNone, "0")
		if err != nil {
			return "", OrderNone, err
		}
		c.AddImport("using System;")
		fn := c.ProvideFunction("mathIsPrime", isPrimeFunc)
		return fn + "(" + n + ")", OrderPostfix, nil
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
		return n + " % 2 == 0", OrderEquality, nil
	case "ODD":
		return n + " % 2 != 0", OrderEquality, nil
	case "WHOLE":
		return n + " % 1 == 0", OrderEquality, nil
	case "DIVISIBLE_BY":
		d, err := c.ValueOr(b, "DIVISOR", OrderMultiplicative.Tighter(), "0")
		if err != nil {
			return "", OrderNone, err
		}
		return n + " % " + d + " == 0", OrderEquality, nil
	}
	return "", OrderNone, unknownOption(b, "PROPERTY")
}
