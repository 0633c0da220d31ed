package csharp

import (
	"strconv"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

func registerText(l *codegen.Language) {
	l.Register("text", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		return quote(b.FieldValue("TEXT")), OrderAtomic, nil
	})
	l.Register("text_join", textJoin)
	l.Register("text_length", textLength)
	l.Register("text_print", textPrint)
}

// itemValues collects the ADD0..ADDn inputs of an item-list block.
func itemValues(c *codegen.Context, b *blocks.Block, fallback string) ([]string, error) {
	var items []string
	for i := 0; b.Input("ADD"+strconv.Itoa(i)) != nil; i++ {
		v, err := c.ValueOr(b, "ADD"+strconv.Itoa(i), OrderNone, fallback)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func textJoin(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	items, err := itemValues(c, b, `""`)
	if err != nil {
		return "", OrderNone, err
	}
	switch len(items) {
	case 0:
		return `""`, OrderAtomic, nil
	case 1:
		c.AddImport("using System;")
		return "Convert.ToString(" + items[0] + ")", OrderPostfix, nil
	}
	return "string.Concat(" + strings.Join(items, ", ") + ")", OrderPostfix, nil
}

func textLength(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	v, err := c.ValueOr(b, "VALUE", OrderMember, `""`)
	if err != nil {
		return "", OrderNone, err
	}
	return v + ".Length", OrderMember, nil
}

func textPrint(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
	msg, err := c.ValueOr(b, "TEXT", OrderNone, `""`)
	if err != nil {
		return "", OrderNone, err
	}
	c.AddImport("using System;")
	return "Console.WriteLine(" + msg + ");\n", OrderNone, nil
}
