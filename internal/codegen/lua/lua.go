// Package lua generates Lua 5.3 source from a workspace.
package lua

import (
	"fmt"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

// Operator orders, following the Lua reference manual.
const (
	OrderAtomic         codegen.Order = 0 // literals
	OrderHigh           codegen.Order = 1 // f() t[] t.x
	OrderExponentiation codegen.Order = 2 // ^
	OrderUnary          codegen.Order = 3 // not # - ~
	OrderMultiplicative codegen.Order = 4 // * / %
	OrderAdditive       codegen.Order = 5 // + -
	OrderConcatenation  codegen.Order = 6 // ..
	OrderRelational     codegen.Order = 7 // < > <= >= ~= ==
	OrderAnd            codegen.Order = 8 // and
	OrderOr             codegen.Order = 9 // or
	OrderNone           codegen.Order = 99
)

const reservedWords = `and,break,do,else,elseif,end,false,for,function,goto,if,in,local,nil,
not,or,repeat,return,then,true,until,while,
_G,_VERSION,assert,collectgarbage,dofile,error,getmetatable,ipairs,load,loadfile,next,
pairs,pcall,print,rawequal,rawget,rawlen,rawset,require,select,setmetatable,tonumber,
tostring,type,xpcall,coroutine,debug,io,math,os,package,string,table,utf8`

var language = newLanguage()

// Language returns the shared Lua language table.
func Language() *codegen.Language { return language }

func newLanguage() *codegen.Language {
	l := codegen.NewLanguage("lua", "  ", reservedWords)
	l.Init = declareVariables
	l.Finish = func(c *codegen.Context, code string) string {
		var sections []string
		for _, def := range c.Definitions() {
			sections = append(sections, strings.TrimRight(def, "\n"))
		}
		return strings.Join(append(sections, code), "\n\n")
	}
	l.ScrubNakedValue = func(line string) string { return "local _ = " + line + "\n" }
	l.Quote = quote

	registerControl(l)
	registerLogic(l)
	registerMath(l)
	registerText(l)
	registerLists(l)
	registerVariables(l)
	registerProcedures(l)
	return l
}

func declareVariables(c *codegen.Context) error {
	vars := c.Workspace().Variables().All()
	if len(vars) == 0 {
		return nil
	}
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, c.VariableName(v.ID))
	}
	c.AddDefinition("variables", "local "+strings.Join(names, ", "))
	return nil
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}

func unknownOption(b *blocks.Block, field string) error {
	return fmt.Errorf("lua: %s: unknown %s option %q", b.Type(), field, b.FieldValue(field))
}
