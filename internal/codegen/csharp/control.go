package csharp

import (
	"math"
	"strconv"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

func registerControl(l *codegen.Language) {
	l.Register("controls_if", controlsIf)
	l.Register("controls_repeat_ext", controlsRepeat)
	l.Register("controls_whileUntil", controlsWhileUntil)
	l.Register("controls_for", controlsFor)
	l.Register("controls_flow_statements", controlsFlow)
	l.Register("wait_seconds", waitSeconds)
}

func controlsIf(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	var code strings.Builder
	for n := 0; b.Input("IF"+strconv.Itoa(n)) != nil; n++ {
		cond, err := c.ValueOr(b, "IF"+strconv.Itoa(n), OrderNone, "false")
		if err != nil {
			return "", OrderNone, err
		}
		body, err := c.StatementToCode(b, "DO"+strconv.Itoa(n))
		if err != nil {
			return "", OrderNone, err
		}
		head := "if"
		if n > 0 {
			head = "else if"
		}
		code.WriteString(block(head+" ("+cond+")", body))
	}
	if b.Input("ELSE") != nil {
		body, err := c.StatementToCode(b, "ELSE")
		if err != nil {
			return "", OrderNone, err
		}
		code.WriteString(block("else", body))
	}
	return code.String(), OrderNone, nil
}

func controlsRepeat(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	times, err := c.ValueOr(b, "TIMES", OrderRelational.Tighter(), "0")
	if err != nil {
		return "", OrderNone, err
	}
	body, err := c.StatementToCode(b, "DO")
	if err != nil {
		return "", OrderNone, err
	}
	names := c.Names()
	counter := names.GetDistinctName("count", codegen.NameVariable)
	var code strings.Builder
	end := times
	if !codegen.IsNumber(times) && !codegen.IsIdentifier(times) {
		end = names.GetDistinctName("repeat_end", codegen.NameVariable)
		code.WriteString("dynamic " + end + " = " + times + ";\n")
	}
	code.WriteString(block("for (int "+counter+" = 0; "+counter+" < "+end+"; "+counter+"++)", body))
	return code.String(), OrderNone, nil
}

func controlsWhileUntil(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	until := b.FieldValue("MODE") == "UNTIL"
	order := OrderNone
	if until {
		order = OrderUnary
	}
	cond, err := c.ValueOr(b, "BOOL", order, "false")
	if err != nil {
		return "", OrderNone, err
	}
	if until {
		cond = "!" + cond
	}
	body, err := c.StatementToCode(b, "DO")
	if err != nil {
		return "", OrderNone, err
	}
	return block("while ("+cond+")", body), OrderNone, nil
}

func controlsFor(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	v := c.FieldVariableName(b, "VAR")
	from, err := c.ValueOr(b, "FROM", OrderAssignment, "0")
	if err != nil {
		return "", OrderNone, err
	}
	to, err := c.ValueOr(b, "TO", OrderAssignment, "0")
	if err != nil {
		return "", OrderNone, err
	}
	by, err := c.ValueOr(b, "BY", OrderAssignment, "1")
	if err != nil {
		return "", OrderNone, err
	}
	body, err := c.StatementToCode(b, "DO")
	if err != nil {
		return "", OrderNone, err
	}

	if codegen.IsNumber(from) && codegen.IsNumber(to) && codegen.IsNumber(by) {
		step := math.Abs(mustFloat(by))
		up := mustFloat(from) <= mustFloat(to)
		cmp, inc := " <= ", v+"++"
		switch {
		case up && step != 1:
			inc = v + " += " + formatFloat(step)
		case !up && step == 1:
			cmp, inc = " >= ", v+"--"
		case !up:
			cmp, inc = " >= ", v+" -= "+formatFloat(step)
		}
		return block("for ("+v+" = "+from+"; "+v+cmp+to+"; "+inc+")", body), OrderNone, nil
	}

	names := c.Names()
	var code strings.Builder
	start := from
	if !codegen.IsNumber(from) && !codegen.IsIdentifier(from) {
		start = names.GetDistinctName(v+"_start", codegen.NameVariable)
		code.WriteString("dynamic " + start + " = " + from + ";\n")
	}
	end := to
	if !codegen.IsNumber(to) && !codegen.IsIdentifier(to) {
		end = names.GetDistinctName(v+"_end", codegen.NameVariable)
		code.WriteString("dynamic " + end + " = " + to + ";\n")
	}
	incVar := names.GetDistinctName(v+"_inc", codegen.NameVariable)
	if codegen.IsNumber(by) {
		code.WriteString("dynamic " + incVar + " = " + formatFloat(math.Abs(mustFloat(by))) + ";\n")
	} else {
		c.AddImport("using System;")
		code.WriteString("dynamic " + incVar + " = Math.Abs(" + by + ");\n")
	}
	code.WriteString(block("if ("+start+" > "+end+")", "    "+incVar+" = -"+incVar+";\n"))
	code.WriteString(block("for ("+v+" = "+start+"; "+incVar+" >= 0 ? "+v+" <= "+end+" : "+v+" >= "+end+"; "+v+" += "+incVar+")", body))
	return code.String(), OrderNone, nil
}

func controlsFlow(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	switch b.FieldValue("FLOW") {
	case "BREAK":
		return "break;\n", OrderNone, nil
	case "CONTINUE":
		return "continue;\n", OrderNone, nil
	}
	return "", OrderNone, unknownOption(b, "FLOW")
}

func waitSeconds(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	c.AddImport("using System;")
	c.AddImport("using System.Threading;")
	return "Thread.Sleep(TimeSpan.FromSeconds(" + b.FieldValue("SECONDS") + "));\n", OrderNone, nil
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
