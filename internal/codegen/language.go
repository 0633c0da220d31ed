// Package codegen turns a block workspace into source text. A Language
// holds one target's precedence table, reserved words and per-block
// emitters; a Context carries the state of a single generation run.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// Order is an operator precedence rank. Lower binds tighter.
type Order int

const (
	OrderAtomic Order = 0
	OrderNone   Order = 99
)

// Tighter is the order to request for the right operand of a left
// associative operator, so that a nested operator of the same order gets
// parenthesized.
func (o Order) Tighter() Order { return o - 1 }

// Func emits code for one block. Value blocks return their expression
// and the order of its outermost operator; statement blocks return their
// code and OrderNone.
type Func func(c *Context, b *blocks.Block) (string, Order, error)

// UnknownBlockError reports a block type the language has no emitter for.
type UnknownBlockError struct {
	Language  string
	BlockType string
}

func (e *UnknownBlockError) Error() string {
	return fmt.Sprintf("%s generator does not know how to generate code for block type %q", e.Language, e.BlockType)
}

// Language describes one target. Build it once and share it; per-run state
// lives in Context.
type Language struct {
	Name string
	// Indent is prepended to each line of a nested statement body.
	Indent string

	reserved map[string]bool
	funcs    map[string]Func

	// Init runs before any block is emitted, typically to declare
	// variables through AddDefinition.
	Init func(c *Context) error
	// Finish assembles imports, definitions and the body.
	Finish func(c *Context, code string) string
	// ScrubNakedValue turns a top-level value into a statement.
	ScrubNakedValue func(line string) string
	// Quote renders a string literal.
	Quote func(s string) string
}

// NewLanguage returns a language with the given reserved words.
func NewLanguage(name, indent string, reserved ...string) *Language {
	l := &Language{
		Name:     name,
		Indent:   indent,
		reserved: make(map[string]bool),
		funcs:    make(map[string]Func),
	}
	l.AddReservedWords(reserved...)
	return l
}

// AddReservedWords marks names the generator must never allocate.
func (l *Language) AddReservedWords(words ...string) {
	for _, w := range words {
		for _, f := range strings.FieldsFunc(w, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' }) {
			l.reserved[f] = true
		}
	}
}

// IsReserved reports whether name is a reserved word of the language.
// Matching is case sensitive.
func (l *Language) IsReserved(name string) bool {
	return l.reserved[name]
}

// Register adds the emitter for a block type. Registering a type twice
// panics.
func (l *Language) Register(blockType string, fn Func) {
	if _, exists := l.funcs[blockType]; exists {
		panic(fmt.Sprintf("codegen: %s emitter for %q already registered", l.Name, blockType))
	}
	l.funcs[blockType] = fn
}

// Supports reports whether the language can emit blockType.
func (l *Language) Supports(blockType string) bool {
	_, ok := l.funcs[blockType]
	return ok
}

// BlockTypes lists the registered block types in order.
func (l *Language) BlockTypes() []string {
	out := make([]string, 0, len(l.funcs))
	for t := range l.funcs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Generate emits code for the whole workspace with a fresh context.
func (l *Language) Generate(ws *blocks.Workspace) (string, error) {
	return NewContext(l, ws).WorkspaceToCode()
}
