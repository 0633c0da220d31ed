// Package csharp generates C# top-level statements from a workspace.
// Variables are declared dynamic so every block can be emitted without
// type inference.
package csharp

import (
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

// Operator orders, following the C# precedence table.
const (
	OrderAtomic         codegen.Order = 0  // 0 "" x
	OrderMember         codegen.Order = 1  // . []
	OrderPostfix        codegen.Order = 2  // f() x++ new
	OrderUnary          codegen.Order = 3  // ! - + ~ (cast)
	OrderMultiplicative codegen.Order = 4  // * / %
	OrderAdditive       codegen.Order = 5  // + -
	OrderShift          codegen.Order = 6  // << >>
	OrderRelational     codegen.Order = 7  // < > <= >= is as
	OrderEquality       codegen.Order = 8  // == !=
	OrderBitwiseAnd     codegen.Order = 9  // &
	OrderBitwiseXor     codegen.Order = 10 // ^
	OrderBitwiseOr      codegen.Order = 11 // |
	OrderLogicalAnd     codegen.Order = 12 // &&
	OrderLogicalOr      codegen.Order = 13 // ||
	OrderConditional    codegen.Order = 14 // ?:
	OrderAssignment     codegen.Order = 15 // = += -= ??=
	OrderNone           codegen.Order = 99
)

const reservedWords = `abstract,as,base,bool,break,byte,case,catch,char,checked,class,const,
continue,decimal,default,delegate,do,double,else,enum,event,explicit,extern,false,finally,
fixed,float,for,foreach,goto,if,implicit,in,int,interface,internal,is,lock,long,namespace,
new,null,object,operator,out,override,params,private,protected,public,readonly,ref,return,
sbyte,sealed,short,sizeof,stackalloc,static,string,struct,switch,this,throw,true,try,typeof,
uint,ulong,unchecked,unsafe,ushort,using,virtual,void,volatile,while,
add,alias,async,await,dynamic,get,global,nameof,partial,remove,set,value,var,when,where,yield,
Console,Convert,List,Math,Random,String,System,Thread,TimeSpan`

var language = newLanguage()

// Language returns the shared C# language table.
func Language() *codegen.Language { return language }

func newLanguage() *codegen.Language {
	l := codegen.NewLanguage("csharp", "    ", reservedWords)
	l.Init = declareVariables
	l.Finish = finish
	l.ScrubNakedValue = func(line string) string { return "_ = " + line + ";\n" }
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
	decls := make([]string, 0, len(vars))
	for _, v := range vars {
		decls = append(decls, "dynamic "+c.VariableName(v.ID)+" = null;")
	}
	c.AddDefinition("variables", strings.Join(decls, "\n"))
	return nil
}

func finish(c *codegen.Context, code string) string {
	var sections []string
	if imports := c.Imports(); len(imports) > 0 {
		sections = append(sections, strings.Join(imports, "\n"))
	}
	for _, def := range c.Definitions() {
		sections = append(sections, strings.TrimRight(def, "\n"))
	}
	sections = append(sections, code)
	return strings.Join(sections, "\n\n")
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}

// block wraps a statement body in braces on their own lines.
func block(head, body string) string {
	return head + "\n{\n" + body + "}\n"
}
