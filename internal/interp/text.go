package interp

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

func registerText(t *Table) {
	t.Expr("text", func(e *Env, b *blocks.Block) (Value, error) {
		return String(b.FieldValue("TEXT")), nil
	})
	t.Expr("text_join", textJoin)
	t.Expr("text_length", func(e *Env, b *blocks.Block) (Value, error) {
		v, err := e.Eval(b, "VALUE")
		if err != nil || v.IsNull() {
			return Number(0), err
		}
		return Number(float64(utf8.RuneCountInString(v.String()))), nil
	})
	t.Stmt("text_print", func(e *Env, b *blocks.Block) error {
		v, err := evalOr(e, b, "TEXT", String(""))
		if err != nil {
			return err
		}
		e.Print(v.String())
		return nil
	})
}

// textJoin concatenates the ADD inputs; empty slots contribute nothing.
func textJoin(e *Env, b *blocks.Block) (Value, error) {
	var sb strings.Builder
	for i := 0; b.Input("ADD"+strconv.Itoa(i)) != nil; i++ {
		name := "ADD" + strconv.Itoa(i)
		if !e.HasValue(b, name) {
			continue
		}
		v, err := e.Eval(b, name)
		if err != nil {
			return Null(), err
		}
		sb.WriteString(v.String())
	}
	return String(sb.String()), nil
}
