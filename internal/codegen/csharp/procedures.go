package csharp

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
	l.Register("variables_set", variablesSet)
	l.Register("math_change", mathChange)
}

func variablesSet(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	v, err := c.ValueOr(b, "VALUE", OrderAssignment, "0")
	if err != nil {
		return "", OrderNone, err
	}
	return c.FieldVariableName(b, "VAR") + " = " + v + ";\n", OrderNone, nil
}

func mathChange(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	delta, err := c.ValueOr(b, "DELTA", OrderAdditive.Tighter(), "0")
	if err != nil {
		return "", OrderNone, err
	}
	v := c.FieldVariableName(b, "VAR")
	return v + " = (" + v + " ?? 0) + " + delta + ";\n", OrderNone, nil
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
		return blocks.Procedure{}, fmt.Errorf("csharp: %s block %s has no procedure mutator", b.Type(), b.ID())
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
		params[i] = "dynamic " + c.Names().GetName(a, codegen.NameVariable)
	}
	var body string
	if b.Input("STACK") != nil {
		if body, err = c.StatementToCode(b, "STACK"); err != nil {
			return "", OrderNone, err
		}
	}
	ret := "void"
	if b.Type() == "procedures_defreturn" {
		ret = "dynamic"
		v, err := c.ValueOr(b, "RETURN", OrderNone, "null")
		if err != nil {
			return "", OrderNone, err
		}
		body += "    return " + v + ";\n"
	}
	c.AddDefinition("proc:"+name, block(ret+" "+name+"("+strings.Join(params, ", ")+")", body))
	return "", OrderNone, nil
}

func procedureCall(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	p, err := procedureOf(b)
	if err != nil {
		return "", OrderNone, err
	}
	args := make([]string, len(p.Arguments))
	for i := range p.Arguments {
		if args[i], err = c.ValueOr(b, "ARG"+strconv.Itoa(i), OrderNone, "null"); err != nil {
			return "", OrderNone, err
		}
	}
	code := c.ProcedureName(p.Name) + "(" + strings.Join(args, ", ") + ")"
	if b.OutputConnection() == nil {
		return code + ";\n", OrderNone, nil
	}
	return code, OrderPostfix, nil
}

func procedureIfReturn(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	cond, err := c.ValueOr(b, "CONDITION", OrderNone, "false")
	if err != nil {
		return "", OrderNone, err
	}
	stmt := "    return;\n"
	if root := b.Root(); root != nil && root.Type() == "procedures_defreturn" {
		v, err := c.ValueOr(b, "VALUE", OrderNone, "null")
		if err != nil {
			return "", OrderNone, err
		}
		stmt = "    return " + v + ";\n"
	}
	return block("if ("+cond+")", stmt), OrderNone, nil
}
