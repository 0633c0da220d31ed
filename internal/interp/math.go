package interp

import (
	"math"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

func registerMath(t *Table) {
	t.Expr("math_number", func(e *Env, b *blocks.Block) (Value, error) {
		n, err := e.FieldNumber(b, "NUM")
		if err != nil {
			return Null(), err
		}
		return Number(n), nil
	})
	t.Expr("math_arithmetic", mathArithmetic)
	t.Expr("math_single", mathSingle)
	t.Expr("math_modulo", mathModulo)
	t.Expr("math_number_property", mathNumberProperty)
	t.Stmt("math_change", mathChange)
}

func mathArithmetic(e *Env, b *blocks.Block) (Value, error) {
	a, err := e.EvalNumber(b, "A", 0)
	if err != nil {
		return Null(), err
	}
	z, err := e.EvalNumber(b, "B", 0)
	if err != nil {
		return Null(), err
	}
	switch b.FieldValue("OP") {
	case "ADD":
		return Number(a + z), nil
	case "MINUS":
		return Number(a - z), nil
	case "MULTIPLY":
		return Number(a * z), nil
	case "DIVIDE":
		return Number(a / z), nil
	case "POWER":
		return Number(math.Pow(a, z)), nil
	}
	return Null(), unknownOption(b, "OP")
}

var singleOps = map[string]func(float64) float64{
	"ROOT":  math.Sqrt,
	"ABS":   math.Abs,
	"NEG":   func(x float64) float64 { return -x },
	"LN":    math.Log,
	"LOG10": math.Log10,
	"EXP":   math.Exp,
	"POW10": func(x float64) float64 { return math.Pow(10, x) },
}

func mathSingle(e *Env, b *blocks.Block) (Value, error) {
	fn, ok := singleOps[b.FieldValue("OP")]
	if !ok {
		return Null(), unknownOption(b, "OP")
	}
	x, err := e.EvalNumber(b, "NUM", 0)
	if err != nil {
		return Null(), err
	}
	return Number(fn(x)), nil
}

// mathModulo keeps the sign of the dividend.
func mathModulo(e *Env, b *blocks.Block) (Value, error) {
	a, err := e.EvalNumber(b, "DIVIDEND", 0)
	if err != nil {
		return Null(), err
	}
	z, err := e.EvalNumber(b, "DIVISOR", 0)
	if err != nil {
		return Null(), err
	}
	return Number(math.Mod(a, z)), nil
}

func mathNumberProperty(e *Env, b *blocks.Block) (Value, error) {
	n, err := e.EvalNumber(b, "NUMBER_TO_CHECK", 0)
	if err != nil {
		return Null(), err
	}
	switch b.FieldValue("PROPERTY") {
	case "EVEN":
		return Bool(math.Mod(n, 2) == 0), nil
	case "ODD":
		return Bool(math.Mod(n, 2) != 0 && n == math.Trunc(n)), nil
	case "PRIME":
		return Bool(isPrime(n)), nil
	case "WHOLE":
		return Bool(math.Mod(n, 1) == 0), nil
	case "POSITIVE":
		return Bool(n > 0), nil
	case "NEGATIVE":
		return Bool(n < 0), nil
	case "DIVISIBLE_BY":
		d, err := e.EvalNumber(b, "DIVISOR", 0)
		if err != nil {
			return Null(), err
		}
		if d == 0 {
			return Bool(false), nil
		}
		return Bool(math.Mod(n, d) == 0), nil
	}
	return Null(), unknownOption(b, "PROPERTY")
}

func isPrime(n float64) bool {
	if n != math.Trunc(n) || n < 2 {
		return false
	}
	if n == 2 || n == 3 {
		return true
	}
	if math.Mod(n, 2) == 0 || math.Mod(n, 3) == 0 {
		return false
	}
	for x := 6.0; x-1 <= math.Sqrt(n); x += 6 {
		if math.Mod(n, x-1) == 0 || math.Mod(n, x+1) == 0 {
			return false
		}
	}
	return true
}

func mathChange(e *Env, b *blocks.Block) error {
	id, err := variableID(b, "VAR")
	if err != nil {
		return err
	}
	delta, err := e.EvalNumber(b, "DELTA", 0)
	if err != nil {
		return err
	}
	cur, err := e.Get(id).Number()
	if err != nil {
		return runtimeErr(b, "%v", err)
	}
	e.Set(id, Number(cur+delta))
	return nil
}
