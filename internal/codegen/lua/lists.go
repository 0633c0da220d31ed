package lua

import (
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

func registerLists(l *codegen.Language) {
	l.Register("lists_create_with", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		items, err := itemValues(c, b, "nil")
		return "{" + strings.Join(items, ", ") + "}", OrderHigh, err
	})
	l.Register("lists_length", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		v, err := c.ValueOr(b, "VALUE", OrderUnary, "{}")
		return "#" + v, OrderUnary, err
	})
	l.Register("lists_getIndex", listsGetIndex)
}

const getIndexFunc = `function {{name}}(list, mode, where, at)
  local i
  if where == 'FIRST' then
    i = 1
  elseif where == 'LAST' then
    i = #list
  elseif where == 'FROM_END' then
    i = #list + 1 - at
  elseif where == 'RANDOM' then
    i = math.random(#list)
  else
    i = at
  end
  if mode == 'GET' then
    return list[i]
  end
  return table.remove(list, i)
end
`

func listsGetIndex(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	mode, where := b.FieldValue("MODE"), b.FieldValue("WHERE")
	statement := b.OutputConnection() == nil

	if mode == "GET" && (where == "FIRST" || where == "FROM_START") {
		// a table constructor cannot be indexed without parentheses
		list, err := c.ValueOr(b, "VALUE", OrderAtomic, "{}")
		if err != nil {
			return "", OrderNone, err
		}
		index := "1"
		if where == "FROM_START" {
			if index, err = c.ValueOr(b, "AT", OrderNone, "1"); err != nil {
				return "", OrderNone, err
			}
		}
		return list + "[" + index + "]", OrderHigh, nil
	}

	list, err := c.ValueOr(b, "VALUE", OrderNone, "{}")
	if err != nil {
		return "", OrderNone, err
	}
	at := "1"
	if b.Input("AT") != nil {
		if at, err = c.ValueOr(b, "AT", OrderNone, "1"); err != nil {
			return "", OrderNone, err
		}
	}
	fn := c.ProvideFunction("list_get_index", getIndexFunc)
	code := fn + "(" + list + ", " + quote(mode) + ", " + quote(where) + ", " + at + ")"
	if statement {
		return code + "\n", OrderNone, nil
	}
	return code, OrderHigh, nil
}
