package interp

import (
	"strconv"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

func registerControl(t *Table) {
	t.Stmt("controls_if", controlsIf)
	t.Stmt("controls_repeat_ext", controlsRepeat)
	t.Stmt("controls_whileUntil", controlsWhileUntil)
	t.Stmt("controls_for", controlsFor)
	t.Stmt("controls_flow_statements", controlsFlow)
	t.Stmt("wait_seconds", waitSeconds)
}

func controlsIf(e *Env, b *blocks.Block) error {
	for n := 0; b.Input("IF"+strconv.Itoa(n)) != nil; n++ {
		cond, err := e.Eval(b, "IF"+strconv.Itoa(n))
		if err != nil {
			return err
		}
		if cond.Truthy() {
			return e.Exec(b, "DO"+strconv.Itoa(n))
		}
	}
	if b.Input("ELSE") != nil {
		return e.Exec(b, "ELSE")
	}
	return nil
}

func controlsRepeat(e *Env, b *blocks.Block) error {
	times, err := e.EvalNumber(b, "TIMES", 0)
	if err != nil {
		return err
	}
	for count := 0.0; count < times; count++ {
		brk, err := e.LoopBody(b)
		if err != nil {
			return err
		}
		if brk {
			break
		}
	}
	return nil
}

func controlsWhileUntil(e *Env, b *blocks.Block) error {
	until := b.FieldValue("MODE") == "UNTIL"
	for {
		cond, err := e.Eval(b, "BOOL")
		if err != nil {
			return err
		}
		if cond.Truthy() == until {
			return nil
		}
		brk, err := e.LoopBody(b)
		if err != nil {
			return err
		}
		if brk {
			return nil
		}
	}
}

// controlsFor counts the loop variable itself from FROM to TO inclusive.
// The step size is |BY| and its sign follows the direction of the range.
func controlsFor(e *Env, b *blocks.Block) error {
	id, err := variableID(b, "VAR")
	if err != nil {
		return err
	}
	from, err := e.EvalNumber(b, "FROM", 0)
	if err != nil {
		return err
	}
	to, err := e.EvalNumber(b, "TO", 0)
	if err != nil {
		return err
	}
	by, err := e.EvalNumber(b, "BY", 1)
	if err != nil {
		return err
	}
	if by < 0 {
		by = -by
	}
	if by == 0 {
		by = 1
	}
	down := from > to
	if down {
		by = -by
	}
	e.Set(id, Number(from))
	for {
		v, err := e.Get(id).Number()
		if err != nil {
			return runtimeErr(b, "loop variable: %v", err)
		}
		if (down && v < to) || (!down && v > to) {
			return nil
		}
		brk, err := e.LoopBody(b)
		if err != nil {
			return err
		}
		if brk {
			return nil
		}
		if v, err = e.Get(id).Number(); err != nil {
			return runtimeErr(b, "loop variable: %v", err)
		}
		e.Set(id, Number(v+by))
	}
}

func controlsFlow(e *Env, b *blocks.Block) error {
	switch b.FieldValue("FLOW") {
	case "BREAK":
		return errBreak
	case "CONTINUE":
		return errContinue
	}
	return unknownOption(b, "FLOW")
}

func waitSeconds(e *Env, b *blocks.Block) error {
	s, err := e.FieldNumber(b, "SECONDS")
	if err != nil {
		return err
	}
	if s < 0 {
		s = 0
	}
	return e.Wait(time.Duration(s * float64(time.Second)))
}

func unknownOption(b *blocks.Block, field string) error {
	return runtimeErr(b, "unknown %s option %q", field, b.FieldValue(field))
}

func variableID(b *blocks.Block, field string) (string, error) {
	id := b.FieldValue(field)
	if id == "" {
		return "", runtimeErr(b, "field %s has no variable", field)
	}
	return id, nil
}
