package interp

import (
	"fmt"
	"sort"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// ExprFunc evaluates a value block.
type ExprFunc func(e *Env, b *blocks.Block) (Value, error)

// StmtFunc executes a statement block.
type StmtFunc func(e *Env, b *blocks.Block) error

// Table maps block types to executors. Build it once and share it.
type Table struct {
	exprs map[string]ExprFunc
	stmts map[string]StmtFunc
}

func NewTable() *Table {
	return &Table{
		exprs: make(map[string]ExprFunc),
		stmts: make(map[string]StmtFunc),
	}
}

// Expr registers a value executor. Registering a type twice panics.
func (t *Table) Expr(blockType string, fn ExprFunc) {
	if _, dup := t.exprs[blockType]; dup {
		panic(fmt.Sprintf("interp: value executor for %q already registered", blockType))
	}
	t.exprs[blockType] = fn
}

// Stmt registers a statement executor. A type whose mutator switches it
// between value and statement shape registers both. Registering a type
// twice as a statement panics.
func (t *Table) Stmt(blockType string, fn StmtFunc) {
	if _, dup := t.stmts[blockType]; dup {
		panic(fmt.Sprintf("interp: statement executor for %q already registered", blockType))
	}
	t.stmts[blockType] = fn
}

// Supports reports whether blockType has an executor.
func (t *Table) Supports(blockType string) bool {
	_, e := t.exprs[blockType]
	_, s := t.stmts[blockType]
	return e || s
}

// BlockTypes lists every registered type.
func (t *Table) BlockTypes() []string {
	out := make([]string, 0, len(t.exprs)+len(t.stmts))
	for k := range t.exprs {
		out = append(out, k)
	}
	for k := range t.stmts {
		if _, both := t.exprs[k]; !both {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

var standard = newStandardTable()

// Standard returns the shared table covering the standard block library.
func Standard() *Table { return standard }

func newStandardTable() *Table {
	t := NewTable()
	registerControl(t)
	registerLogic(t)
	registerMath(t)
	registerText(t)
	registerLists(t)
	registerVariables(t)
	registerProcedures(t)
	return t
}
