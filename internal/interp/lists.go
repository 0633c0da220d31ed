package interp

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

func registerLists(t *Table) {
	t.Expr("lists_create_with", func(e *Env, b *blocks.Block) (Value, error) {
		var items []Value
		for i := 0; b.Input("ADD"+strconv.Itoa(i)) != nil; i++ {
			v, err := e.Eval(b, "ADD"+strconv.Itoa(i))
			if err != nil {
				return Null(), err
			}
			items = append(items, v)
		}
		return NewList(items...), nil
	})
	t.Expr("lists_length", func(e *Env, b *blocks.Block) (Value, error) {
		l, err := evalList(e, b)
		if err != nil || l == nil {
			return Number(0), err
		}
		return Number(float64(len(l.Items))), nil
	})
	t.Expr("lists_getIndex", listsGetIndex)
	t.Stmt("lists_getIndex", func(e *Env, b *blocks.Block) error {
		_, err := listsGetIndex(e, b)
		return err
	})
}

// evalList evaluates VALUE as a list. An empty input or null is a nil list.
func evalList(e *Env, b *blocks.Block) (*List, error) {
	v, err := e.Eval(b, "VALUE")
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case KindNull:
		return nil, nil
	case KindList:
		return v.List(), nil
	}
	return nil, runtimeErr(b, "expected a list, got a %s", v.Kind())
}

// listsGetIndex reads and optionally removes one item. Indexes are
// 1-based; an index outside the list yields null and removes nothing.
func listsGetIndex(e *Env, b *blocks.Block) (Value, error) {
	l, err := evalList(e, b)
	if err != nil {
		return Null(), err
	}
	var n int
	if l != nil {
		n = len(l.Items)
	}
	var i int
	switch where := b.FieldValue("WHERE"); where {
	case "FIRST":
		i = 0
	case "LAST":
		i = n - 1
	case "RANDOM":
		if n == 0 {
			return Null(), nil
		}
		i = rand.IntN(n)
	case "FROM_START", "FROM_END":
		at, err := e.EvalNumber(b, "AT", 1)
		if err != nil {
			return Null(), err
		}
		at = math.Floor(at)
		if where == "FROM_START" {
			i = int(at) - 1
		} else {
			i = n - int(at)
		}
	default:
		return Null(), unknownOption(b, "WHERE")
	}
	if i < 0 || i >= n {
		return Null(), nil
	}
	item := l.Items[i]
	switch b.FieldValue("MODE") {
	case "GET":
	case "GET_REMOVE", "REMOVE":
		l.Items = append(l.Items[:i], l.Items[i+1:]...)
	default:
		return Null(), unknownOption(b, "MODE")
	}
	return item, nil
}
