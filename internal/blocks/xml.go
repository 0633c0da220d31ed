package blocks

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Element is a generic XML node used for mutation payloads, saved shadows
// and whole-workspace serialization.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []*Element `xml:",any"`
	Text     string     `xml:",chardata"`
}

func NewElement(tag string) *Element {
	return &Element{XMLName: xml.Name{Local: tag}}
}

// ParseXML decodes a single element, dropping namespaces.
func ParseXML(data []byte) (*Element, error) {
	var el Element
	if err := xml.Unmarshal(data, &el); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	el.normalize()
	return &el, nil
}

func (e *Element) normalize() {
	e.XMLName.Space = ""
	attrs := e.Attrs[:0]
	for _, a := range e.Attrs {
		if a.Name.Local == "xmlns" || a.Name.Space == "xmlns" {
			continue
		}
		a.Name.Space = ""
		attrs = append(attrs, a)
	}
	e.Attrs = attrs
	if len(e.Children) > 0 {
		e.Text = strings.TrimSpace(e.Text)
	}
	for _, c := range e.Children {
		c.normalize()
	}
}

func (e *Element) Tag() string { return e.XMLName.Local }

// Attr returns the named attribute or "".
func (e *Element) Attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (e *Element) HasAttr(name string) bool {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute and returns e.
func (e *Element) SetAttr(name, value string) *Element {
	for i, a := range e.Attrs {
		if a.Name.Local == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	return e
}

func (e *Element) AppendChild(c *Element) *Element {
	e.Children = append(e.Children, c)
	return e
}

// ChildrenByTag returns the direct children with the given tag.
func (e *Element) ChildrenByTag(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Tag() == tag {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first direct child with the given tag.
func (e *Element) FirstChild(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag() == tag {
			return c
		}
	}
	return nil
}

// Empty reports whether the element carries no attributes, children or text.
func (e *Element) Empty() bool {
	return len(e.Attrs) == 0 && len(e.Children) == 0 && e.Text == ""
}

func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := &Element{XMLName: e.XMLName, Text: e.Text}
	c.Attrs = append([]xml.Attr(nil), e.Attrs...)
	for _, ch := range e.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return c
}

// String renders compact XML.
func (e *Element) String() string {
	data, err := xml.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}

// Indent renders XML with two-space indentation.
func (e *Element) Indent() string {
	data, err := xml.MarshalIndent(e, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// IntAttr parses an integer attribute, returning def when it is absent.
func (e *Element) IntAttr(name string, def int) (int, error) {
	if !e.HasAttr(name) {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(e.Attr(name)))
	if err != nil {
		return def, fmt.Errorf("attribute %s: %w", name, err)
	}
	return n, nil
}

// BoolAttr parses "true"/"false", returning def when absent.
func (e *Element) BoolAttr(name string, def bool) (bool, error) {
	if !e.HasAttr(name) {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(e.Attr(name)))
	if err != nil {
		return def, fmt.Errorf("attribute %s: %w", name, err)
	}
	return v, nil
}

// ── Blocks ──────────────────────────────────────────────────

// BlockToXML serializes b and its subtree.
func BlockToXML(b *Block, withID bool) *Element {
	tag := "block"
	if b.shadow {
		tag = "shadow"
	}
	el := NewElement(tag).SetAttr("type", b.typ)
	if withID {
		el.SetAttr("id", b.id)
	}
	if b.parentID == "" {
		el.SetAttr("x", formatNumber(b.x))
		el.SetAttr("y", formatNumber(b.y))
	}
	if b.inputsInlineSet {
		el.SetAttr("inline", boolString(b.inputsInline))
	}
	if b.collapsed {
		el.SetAttr("collapsed", "true")
	}
	if b.disabled {
		el.SetAttr("disabled", "true")
	}
	if !b.deletable && !b.shadow {
		el.SetAttr("deletable", "false")
	}
	if !b.movable && !b.shadow {
		el.SetAttr("movable", "false")
	}
	if !b.editable {
		el.SetAttr("editable", "false")
	}

	if b.mutator != nil {
		if m := b.mutator.ToXML(); m != nil && (len(m.Attrs) > 0 || len(m.Children) > 0) {
			el.AppendChild(m)
		}
	}
	for _, in := range b.inputs {
		for _, f := range in.fields {
			if !f.Serializable() {
				continue
			}
			fe := NewElement("field").SetAttr("name", f.Name())
			if vf, ok := f.(*VariableField); ok {
				if v := vf.Variable(); v != nil {
					fe.SetAttr("id", v.ID)
					if v.Type != "" {
						fe.SetAttr("variabletype", v.Type)
					}
					fe.Text = v.Name
				}
			} else {
				fe.Text = f.Value()
			}
			el.AppendChild(fe)
		}
	}
	for _, in := range b.inputs {
		if in.conn == nil {
			continue
		}
		tag := "value"
		if in.typ == InputTypeStatement {
			tag = "statement"
		}
		if ce := slotToXML(NewElement(tag).SetAttr("name", in.name), in.conn, withID); ce != nil {
			el.AppendChild(ce)
		}
	}
	if b.next != nil {
		if ne := slotToXML(NewElement("next"), b.next, withID); ne != nil {
			el.AppendChild(ne)
		}
	}
	return el
}

func slotToXML(el *Element, c *Connection, withID bool) *Element {
	child := c.TargetBlock()
	if c.shadowDom != nil && (child == nil || !child.shadow) {
		el.AppendChild(c.shadowDom.Clone())
	}
	if child != nil {
		el.AppendChild(BlockToXML(child, withID))
	}
	if len(el.Children) == 0 {
		return nil
	}
	return el
}

// XMLToBlock builds a block tree from a <block> or <shadow> element.
func XMLToBlock(ws *Workspace, el *Element) (*Block, error) {
	tag := el.Tag()
	if tag != "block" && tag != "shadow" {
		return nil, schemaErr("", "", "expected <block> or <shadow>, got <%s>", tag)
	}
	typ := el.Attr("type")
	if typ == "" {
		return nil, schemaErr("", "type", "missing block type")
	}
	ws.deferBind++
	b, err := ws.factory.build(ws, typ, el.Attr("id"))
	if err != nil {
		ws.deferBind--
		return nil, err
	}
	b.shadow = tag == "shadow"
	err = b.loadXML(el)
	ws.deferBind--
	if err != nil {
		b.Dispose(false)
		return nil, err
	}
	if ws.deferBind == 0 {
		b.bindVariables()
	}
	return b, nil
}

// bindVariables gives every variable field left empty by the XML its
// default variable.
func (b *Block) bindVariables() {
	for _, d := range b.Descendants() {
		for _, in := range d.inputs {
			for _, f := range in.fields {
				if vf, ok := f.(*VariableField); ok {
					_ = vf.bind()
				}
			}
		}
	}
}

func (b *Block) loadXML(el *Element) error {
	ws := b.ws
	if m := el.FirstChild("mutation"); m != nil && b.mutator != nil {
		if err := b.mutator.FromXML(m); err != nil {
			var se *SchemaError
			if errors.As(err, &se) {
				return err
			}
			return schemaErr(b.typ, "mutation", "%v", err)
		}
	}
	for _, fe := range el.ChildrenByTag("field") {
		name := fe.Attr("name")
		f := b.Field(name)
		if f == nil {
			continue
		}
		if vf, ok := f.(*VariableField); ok {
			v, err := ws.variables.resolve(fe.Attr("id"), fe.Text, fe.Attr("variabletype"))
			if err != nil {
				return schemaErr(b.typ, name, "%v", err)
			}
			if err := setFieldValue(vf, v.ID); err != nil {
				return schemaErr(b.typ, name, "%v", err)
			}
			continue
		}
		if err := f.SetValue(fe.Text); err != nil {
			return schemaErr(b.typ, name, "%v", err)
		}
	}
	for _, ce := range el.Children {
		switch ce.Tag() {
		case "value", "statement":
			name := ce.Attr("name")
			in := b.Input(name)
			if in == nil || in.conn == nil {
				return schemaErr(b.typ, name, "no input named %q", name)
			}
			if err := loadSlot(ws, in.conn, ce); err != nil {
				return err
			}
		case "next":
			if b.next == nil {
				return schemaErr(b.typ, "next", "block has no next connection")
			}
			if err := loadSlot(ws, b.next, ce); err != nil {
				return err
			}
		}
	}

	flags := []struct {
		attr string
		set  func(bool)
	}{
		{"disabled", b.SetDisabled},
		{"collapsed", b.SetCollapsed},
		{"deletable", b.SetDeletable},
		{"movable", b.SetMovable},
		{"editable", b.SetEditable},
	}
	for _, f := range flags {
		if el.HasAttr(f.attr) {
			v, err := el.BoolAttr(f.attr, false)
			if err != nil {
				return schemaErr(b.typ, f.attr, "%v", err)
			}
			f.set(v)
		}
	}
	if el.HasAttr("inline") {
		v, err := el.BoolAttr("inline", false)
		if err != nil {
			return schemaErr(b.typ, "inline", "%v", err)
		}
		b.SetInputsInline(v)
	}
	if el.HasAttr("x") || el.HasAttr("y") {
		x, errX := strconv.ParseFloat(el.Attr("x"), 64)
		y, errY := strconv.ParseFloat(el.Attr("y"), 64)
		if errX == nil && errY == nil && b.parentID == "" {
			b.MoveTo(x, y)
		}
	}
	return nil
}

func loadSlot(ws *Workspace, c *Connection, el *Element) error {
	var shadowEl, blockEl *Element
	for _, ch := range el.Children {
		switch ch.Tag() {
		case "shadow":
			shadowEl = ch
		case "block":
			blockEl = ch
		}
	}
	if shadowEl != nil {
		c.shadowDom = shadowEl.Clone()
	}
	if blockEl == nil {
		return c.respawnShadow()
	}
	child, err := XMLToBlock(ws, blockEl)
	if err != nil {
		return err
	}
	slot := child.output
	if c.typ == NextStatement {
		slot = child.previous
	}
	if slot == nil {
		child.Dispose(false)
		return schemaErr(child.typ, "", "%v", ErrMissingConnection)
	}
	if err := c.Connect(slot); err != nil {
		child.Dispose(false)
		return schemaErr(child.typ, "", "%v", err)
	}
	return nil
}

// ── Workspaces ──────────────────────────────────────────────

// WorkspaceToXML serializes variables and every top-level block.
func WorkspaceToXML(ws *Workspace) *Element {
	root := NewElement("xml")
	if vars := ws.variables.All(); len(vars) > 0 {
		ve := NewElement("variables")
		for _, v := range vars {
			e := NewElement("variable").SetAttr("id", v.ID)
			if v.Type != "" {
				e.SetAttr("type", v.Type)
			}
			e.Text = v.Name
			ve.AppendChild(e)
		}
		root.AppendChild(ve)
	}
	for _, b := range ws.TopBlocks(true) {
		root.AppendChild(BlockToXML(b, true))
	}
	return root
}

// LoadWorkspaceXML adds the variables and blocks in root to ws. A block
// that fails to load is skipped; all failures are joined into the result.
func LoadWorkspaceXML(ws *Workspace, root *Element) ([]*Block, error) {
	if root.Tag() != "xml" {
		return nil, schemaErr("", "", "expected <xml> root, got <%s>", root.Tag())
	}
	var errs []error
	for _, ve := range root.ChildrenByTag("variables") {
		for _, v := range ve.ChildrenByTag("variable") {
			if _, err := ws.variables.CreateVariable(v.Text, v.Attr("type"), v.Attr("id")); err != nil {
				errs = append(errs, err)
			}
		}
	}
	var loaded []*Block
	for _, be := range root.Children {
		if be.Tag() != "block" && be.Tag() != "shadow" {
			continue
		}
		b, err := XMLToBlock(ws, be)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, b)
	}
	ws.fire(Event{Type: EventWorkspaceLoad})
	return loaded, errors.Join(errs...)
}

// WorkspaceToText renders ws as indented XML.
func WorkspaceToText(ws *Workspace) string {
	return WorkspaceToXML(ws).Indent()
}

// TextToWorkspace parses XML text and loads it into ws.
func TextToWorkspace(ws *Workspace, text string) ([]*Block, error) {
	root, err := ParseXML([]byte(text))
	if err != nil {
		return nil, err
	}
	return LoadWorkspaceXML(ws, root)
}
