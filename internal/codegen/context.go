package codegen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// namePlaceholder marks where ProvideFunction substitutes the allocated
// helper name.
const namePlaceholder = "{{name}}"

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	leadingBlankRe  = regexp.MustCompile(`^\s+\n`)
	trailingBlankRe = regexp.MustCompile(`\n\s+$`)
)

// Context is the state of one generation run: the name allocator, the
// collected imports and definitions, and the helpers already provided.
// It is not safe for concurrent use; create one context per run.
type Context struct {
	lang  *Language
	ws    *blocks.Workspace
	names *NameDB

	imports  []string
	defKeys  []string
	defs     map[string]string
	provided map[string]string
}

func NewContext(l *Language, ws *blocks.Workspace) *Context {
	c := &Context{lang: l, ws: ws}
	c.names = NewNameDB(l.IsReserved)
	c.reset()
	return c
}

func (c *Context) Language() *Language          { return c.lang }
func (c *Context) Workspace() *blocks.Workspace { return c.ws }
func (c *Context) Names() *NameDB               { return c.names }

func (c *Context) reset() {
	c.names.Reset()
	c.imports = nil
	c.defKeys = nil
	c.defs = make(map[string]string)
	c.provided = make(map[string]string)
}

// AddImport records a line for the import section. Duplicates are kept
// once.
func (c *Context) AddImport(line string) {
	for _, l := range c.imports {
		if l == line {
			return
		}
	}
	c.imports = append(c.imports, line)
}

func (c *Context) Imports() []string { return append([]string(nil), c.imports...) }

// AddDefinition stores code emitted ahead of the body under key. A later
// definition with the same key replaces the earlier text in place.
func (c *Context) AddDefinition(key, code string) {
	if _, ok := c.defs[key]; !ok {
		c.defKeys = append(c.defKeys, key)
	}
	c.defs[key] = code
}

// Definitions returns the stored definitions in insertion order.
func (c *Context) Definitions() []string {
	out := make([]string, 0, len(c.defKeys))
	for _, k := range c.defKeys {
		out = append(out, c.defs[k])
	}
	return out
}

// ProvideFunction adds a helper function once per run and returns the
// name it was given. Occurrences of {{name}} in code are replaced by it.
func (c *Context) ProvideFunction(desired, code string) string {
	if name, ok := c.provided[desired]; ok {
		return name
	}
	name := c.names.GetDistinctName(desired, NameDeveloper)
	c.provided[desired] = name
	c.AddDefinition("helper:"+desired, strings.ReplaceAll(code, namePlaceholder, name))
	return name
}

// VariableName returns the identifier for the variable with the given id.
func (c *Context) VariableName(id string) string {
	if m := c.ws.Variables().GetVariableByID(id); m != nil {
		return c.names.GetName(m.Name, NameVariable)
	}
	return c.names.GetName(id, NameVariable)
}

// FieldVariableName returns the identifier for the variable referenced by
// a variable field on b.
func (c *Context) FieldVariableName(b *blocks.Block, field string) string {
	f, ok := b.Field(field).(*blocks.VariableField)
	if !ok || f.Variable() == nil {
		return c.names.GetName(b.FieldValue(field), NameVariable)
	}
	return c.VariableName(f.Variable().ID)
}

// ProcedureName returns the identifier for a user procedure.
func (c *Context) ProcedureName(name string) string {
	return c.names.GetName(name, NameProcedure)
}

// BlockToCode emits b. Statement blocks include the code of every block
// below them; disabled blocks are skipped.
func (c *Context) BlockToCode(b *blocks.Block) (string, Order, error) {
	if b == nil {
		return "", OrderNone, nil
	}
	if b.Disabled() {
		return c.BlockToCode(b.NextBlock())
	}
	fn, ok := c.lang.funcs[b.Type()]
	if !ok {
		return "", OrderNone, &UnknownBlockError{Language: c.lang.Name, BlockType: b.Type()}
	}
	code, order, err := fn(c, b)
	if err != nil {
		return "", OrderNone, err
	}
	if b.OutputConnection() != nil {
		return code, order, nil
	}
	next, _, err := c.BlockToCode(b.NextBlock())
	if err != nil {
		return "", OrderNone, err
	}
	return code + next, OrderNone, nil
}

// ValueToCode emits the block plugged into the named value input. The
// result is wrapped in parentheses when its order is coarser than outer.
// An empty input yields "".
func (c *Context) ValueToCode(b *blocks.Block, name string, outer Order) (string, error) {
	target := b.InputTargetBlock(name)
	if target == nil {
		return "", nil
	}
	if target.OutputConnection() == nil {
		return "", fmt.Errorf("%s: input %q of %s holds a statement block", c.lang.Name, name, b.Type())
	}
	code, inner, err := c.BlockToCode(target)
	if err != nil || code == "" {
		return "", err
	}
	if inner > outer {
		code = "(" + code + ")"
	}
	return code, nil
}

// ValueOr is ValueToCode with a fallback for an empty input.
func (c *Context) ValueOr(b *blocks.Block, name string, outer Order, fallback string) (string, error) {
	code, err := c.ValueToCode(b, name, outer)
	if err != nil {
		return "", err
	}
	if code == "" {
		return fallback, nil
	}
	return code, nil
}

// StatementToCode emits the stack in the named statement input, indented
// one level.
func (c *Context) StatementToCode(b *blocks.Block, name string) (string, error) {
	code, _, err := c.BlockToCode(b.InputTargetBlock(name))
	if err != nil {
		return "", err
	}
	return PrefixLines(code, c.lang.Indent), nil
}

// WorkspaceToCode emits every top block in reading order and assembles the
// result through the language's Finish hook. All per-run state is cleared
// afterwards, so the same context can generate again.
func (c *Context) WorkspaceToCode() (string, error) {
	c.reset()
	defer c.reset()
	if c.lang.Init != nil {
		if err := c.lang.Init(c); err != nil {
			return "", err
		}
	}
	var parts []string
	for _, b := range c.ws.TopBlocks(true) {
		code, _, err := c.BlockToCode(b)
		if err != nil {
			return "", err
		}
		if code == "" {
			continue
		}
		if b.OutputConnection() != nil && c.lang.ScrubNakedValue != nil {
			code = c.lang.ScrubNakedValue(code)
		}
		parts = append(parts, code)
	}
	code := strings.Join(parts, "\n")
	if c.lang.Finish != nil {
		code = c.lang.Finish(c, code)
	} else {
		code = strings.Join(append(c.Definitions(), code), "\n\n")
	}
	code = leadingBlankRe.ReplaceAllString(code, "")
	code = trailingBlankRe.ReplaceAllString(code, "\n")
	code = trailingSpaceRe.ReplaceAllString(code, "\n")
	return code, nil
}

// PrefixLines indents every line of text.
func PrefixLines(text, prefix string) string {
	if text == "" {
		return ""
	}
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(l)
	}
	return b.String()
}

// IsNumber reports whether code is a plain numeric literal.
func IsNumber(code string) bool {
	_, err := strconv.ParseFloat(code, 64)
	return err == nil
}

// IsIdentifier reports whether code is a bare identifier, safe to repeat
// without re-evaluating anything.
func IsIdentifier(code string) bool {
	return code != "" && SafeName(code) == code
}
