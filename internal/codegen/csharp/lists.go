package csharp

import (
	"strconv"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

const emptyList = "new List<dynamic>()"

func registerLists(l *codegen.Language) {
	l.Register("lists_create_with", listsCreateWith)
	l.Register("lists_length", listsLength)
	l.Register("lists_getIndex", listsGetIndex)
}

func listsCreateWith(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	c.AddImport("using System.Collections.Generic;")
	items, err := itemValues(c, b, "null")
	if err != nil {
		return "", OrderNone, err
	}
	if len(items) == 0 {
		return emptyList, OrderPostfix, nil
	}
	return "new List<dynamic> { " + strings.Join(items, ", ") + " }", OrderPostfix, nil
}

func listsLength(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	c.AddImport("using System.Collections.Generic;")
	v, err := c.ValueOr(b, "VALUE", OrderMember, "("+emptyList+")")
	if err != nil {
		return "", OrderNone, err
	}
	return v + ".Count", OrderMember, nil
}

const getIndexFunc = `dynamic {{name}}(List<dynamic> list, string mode, string where, dynamic at)
{
    int i = where switch
    {
        "FIRST" => 0,
        "LAST" => list.Count - 1,
        "FROM_END" => list.Count - (int)at,
        "RANDOM" => new Random().Next(list.Count),
        _ => (int)at - 1,
    };
    dynamic item = list[i];
    if (mode != "GET")
    {
        list.RemoveAt(i);
    }
    return item;
}
`

func listsGetIndex(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	c.AddImport("using System.Collections.Generic;")
	mode, where := b.FieldValue("MODE"), b.FieldValue("WHERE")
	statement := b.OutputConnection() == nil

	if mode == "GET" && (where == "FIRST" || where == "FROM_START") {
		list, err := c.ValueOr(b, "VALUE", OrderMember, "("+emptyList+")")
		if err != nil {
			return "", OrderNone, err
		}
		index := "0"
		if where == "FROM_START" {
			if index, err = zeroBasedIndex(c, b); err != nil {
				return "", OrderNone, err
			}
		}
		return list + "[" + index + "]", OrderMember, nil
	}

	list, err := c.ValueOr(b, "VALUE", OrderNone, emptyList)
	if err != nil {
		return "", OrderNone, err
	}
	at := "1"
	if b.Input("AT") != nil {
		if at, err = c.ValueOr(b, "AT", OrderNone, "1"); err != nil {
			return "", OrderNone, err
		}
	}
	c.AddImport("using System;")
	fn := c.ProvideFunction("listsGetIndex", getIndexFunc)
	code := fn + "(" + list + ", " + quote(mode) + ", " + quote(where) + ", " + at + ")"
	if statement {
		return code + ";\n", OrderNone, nil
	}
	return code, OrderPostfix, nil
}

// zeroBasedIndex converts the one-based AT input to a C# index, folding
// numeric literals.
func zeroBasedIndex(c *codegen.Context, b *blocks.Block) (string, error) {
	at, err := c.ValueOr(b, "AT", OrderAdditive, "1")
	if err != nil {
		return "", err
	}
	if codegen.IsNumber(at) {
		n, _ := strconv.ParseFloat(at, 64)
		return formatFloat(n - 1), nil
	}
	return at + " - 1", nil
}
