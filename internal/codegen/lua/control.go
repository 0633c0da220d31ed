package lua

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

// loopBody emits the DO input and adds the label that "goto continue"
// jumps to.
func loopBody(c *codegen.Context, b *blocks.Block) (string, error) {
	body, err := c.StatementToCode(b, "DO")
	if err != nil {
		return "", err
	}
	if strings.Contains(body, "goto continue") {
		body += c.Language().Indent + "::continue::\n"
	}
	return body, nil
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
		if n > 0 {
			code.WriteString("else")
		}
		code.WriteString("if " + cond + " then\n" + body)
	}
	if b.Input("ELSE") != nil {
		body, err := c.StatementToCode(b, "ELSE")
		if err != nil {
			return "", OrderNone, err
		}
		code.WriteString("else\n" + body)
	}
	code.WriteString("end\n")
	return code.String(), OrderNone, nil
}

func controlsRepeat(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	times, err := c.ValueOr(b, "TIMES", OrderNone, "0")
	if err != nil {
		return "", OrderNone, err
	}
	body, err := loopBody(c, b)
	if err != nil {
		return "", OrderNone, err
	}
	counter := c.Names().GetDistinctName("count", codegen.NameVariable)
	return "for " + counter + " = 1, " + times + " do\n" + body + "end\n", OrderNone, nil
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
		cond = "not " + cond
	}
	body, err := loopBody(c, b)
	if err != nil {
		return "", OrderNone, err
	}
	return "while " + cond + " do\n" + body + "end\n", OrderNone, nil
}

func controlsFor(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	v := c.FieldVariableName(b, "VAR")
	from, err := c.ValueOr(b, "FROM", OrderNone, "0")
	if err != nil {
		return "", OrderNone, err
	}
	to, err := c.ValueOr(b, "TO", OrderNone, "0")
	if err != nil {
		return "", OrderNone, err
	}
	by, err := c.ValueOr(b, "BY", OrderNone, "1")
	if err != nil {
		return "", OrderNone, err
	}
	body, err := loopBody(c, b)
	if err != nil {
		return "", OrderNone, err
	}

	var code strings.Builder
	step := ""
	if codegen.IsNumber(from) && codegen.IsNumber(to) && codegen.IsNumber(by) {
		f, _ := strconv.ParseFloat(from, 64)
		t, _ := strconv.ParseFloat(to, 64)
		s, _ := strconv.ParseFloat(by, 64)
		s = math.Abs(s)
		if f > t {
			s = -s
		}
		if s != 1 {
			step = ", " + strconv.FormatFloat(s, 'f', -1, 64)
		}
	} else {
		inc := c.Names().GetDistinctName(v+"_inc", codegen.NameVariable)
		if codegen.IsNumber(by) {
			s, _ := strconv.ParseFloat(by, 64)
			code.WriteString("local " + inc + " = " + strconv.FormatFloat(math.Abs(s), 'f', -1, 64) + "\n")
		} else {
			code.WriteString("local " + inc + " = math.abs(" + by + ")\n")
		}
		code.WriteString("if (" + from + ") > (" + to + ") then\n")
		code.WriteString(c.Language().Indent + inc + " = -" + inc + "\n")
		code.WriteString("end\n")
		step = ", " + inc
	}
	code.WriteString("for " + v + " = " + from + ", " + to + step + " do\n" + body + "end\n")
	return code.String(), OrderNone, nil
}

func controlsFlow(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	switch b.FieldValue("FLOW") {
	case "BREAK":
		return "break\n", OrderNone, nil
	case "CONTINUE":
		return "goto continue\n", OrderNone, nil
	}
	return "", OrderNone, unknownOption(b, "FLOW")
}

const waitFunc = `function {{name}}(seconds)
  local deadline = os.clock() + seconds
  while os.clock() < deadline do end
end
`

func waitSeconds(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	fn := c.ProvideFunction("wait_seconds", waitFunc)
	return fn + "(" + b.FieldValue("SECONDS") + ")\n", OrderNone, nil
}
