package lua

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

func registerVariables(l *codegen.Language) {
	l.Register("variables_get", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		return c.FieldVariableName(b, "VAR"), OrderAtomic, nil
	})
	l.Register("variables_set", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		v, err := c.ValueOr(b, "VALUE", OrderNone, "0")
		return c.FieldVariableName(b, "VAR") + " = " + v + "\n", OrderNone, err
	})
	l.Register("math_change", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		delta, err := c.ValueOr(b, "DELTA", OrderAdditive.Tighter(), "0")
		v := c.FieldVariableName(b, "VAR")
		return v + " = (" + v + " or 0) + " + delta + "\n", OrderNone, err
	})
}

func registerProcedures(l *codegen.Language) {
	l.Register("procedures_defnoreturn", procedureDef)
	l.Register("procedures_defreturn", procedureDef)
	l.Register("procedures_callnoreturn", procedureCall)
	l.Register("procedures_callreturn", procedureCall)
	l.Register("procedures_ifreturn", procedureIfReturn)
}

func procedureOf(b *blocks.Block) (blocks.Procedure, error) {
	pm, ok := b.Mutator().(blocks.ProcedureMutator)
	if !ok {
		return blocks.Procedure{}, fmt.Errorf("lua: %s block %s has no procedure mutator", b.Type(), b.ID())
	}
	return pm.Procedure(), nil
}

func procedureDef(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	p, err := procedureOf(b)
	if err != nil {
		return "", OrderNone, err
	}
	name := c.ProcedureName(p.Name)
	params := make([]string, len(p.Arguments))
	for i, a := range p.Arguments {
		params[i] = c.Names().GetName(a, codegen.NameVariable)
	}
	var body string
	if b.Input("STACK") != nil {
		if body, err = c.StatementToCode(b, "STACK"); err != nil {
			return "", OrderNone, err
		}
	}
	if b.Type() == "procedures_defreturn" {
		v, err := c.ValueOr(b, "RETURN", OrderNone, "nil")
		if err != nil {
			return "", OrderNone, err
		}
		body += c.Language().Indent + "return " + v + "\n"
	}
	c.AddDefinition("proc:"+name, "function "+name+"("+strings.Join(params, ", ")+")\n"+body+"end\n")
	return "", OrderNone, nil
}

func procedureCall(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	p, err := procedureOf(b)
	if err != nil {
		return "", OrderNone, err
	}
	args := make([]string, len(p.Arguments))
	for i := range p.Arguments {
		if args[i], err = c.ValueOr(b, "ARG"+strconv.Itoa(i), OrderNone, "nil"); err != nil {
			return "", OrderNone, err
		}
	}
	code := c.ProcedureName(p.Name) + "(" + strings.Join(args, ", ") + ")"
	if b.OutputConnection() == nil {
		return code + "\n", OrderNone, nil
	}
	return code, OrderHigh, nil
}

func procedureIfReturn(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	cond, err := c.ValueOr(b, "CONDITION", OrderNone, "false")
	if err != nil {
		return "", OrderNone, err
	}
	stmt := "return"
	if root := b.Root(); root != nil && root.Type() == "procedures_defreturn" {
		v, err := c.ValueOr(b, "VALUE", OrderNone, "nil")
		if err != nil {
			return "", OrderNone, err
		}
		stmt = "return " + v
	}
	return "if " + cond + " then\n" + c.Language().Indent + stmt + "\nend\n", OrderNone, nil
}
