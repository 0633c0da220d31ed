package blocks

import "fmt"

// InputType is the kind of row an Input represents.
type InputType int

const (
	InputTypeValue     InputType = 1
	InputTypeStatement InputType = 3
	InputTypeDummy     InputType = 5
)

func (t InputType) String() string {
	switch t {
	case InputTypeValue:
		return "input_value"
	case InputTypeStatement:
		return "input_statement"
	case InputTypeDummy:
		return "input_dummy"
	}
	return fmt.Sprintf("input_type(%d)", int(t))
}

// Align is the horizontal alignment of an input's fields.
type Align int

const (
	AlignLeft Align = iota
	AlignCentre
	AlignRight
)

// ParseAlign maps the schema spelling to an Align.
func ParseAlign(s string) (Align, bool) {
	switch s {
	case "", "LEFT":
		return AlignLeft, true
	case "CENTRE", "CENTER":
		return AlignCentre, true
	case "RIGHT":
		return AlignRight, true
	}
	return AlignLeft, false
}

// Input is a row of fields plus, for value and statement inputs, one
// connection. Inputs are created by their block and only become part of
// its shape through Block.Reshape.
type Input struct {
	typ     InputType
	name    string
	align   Align
	fields  []Field
	conn    *Connection
	block   *Block
	adopted bool
}

func (in *Input) Type() InputType         { return in.typ }
func (in *Input) Name() string            { return in.name }
func (in *Input) Align() Align            { return in.align }
func (in *Input) Connection() *Connection { return in.conn }
func (in *Input) SourceBlock() *Block     { return in.block }
func (in *Input) Fields() []Field         { return append([]Field(nil), in.fields...) }

// SetAlign sets the alignment and returns the input for chaining.
func (in *Input) SetAlign(a Align) *Input {
	in.align = a
	return in
}

// TargetBlock returns the block plugged into this input, if any.
func (in *Input) TargetBlock() *Block {
	if in.conn == nil {
		return nil
	}
	return in.conn.TargetBlock()
}

// SetCheck sets the compatibility tags of the input's connection.
func (in *Input) SetCheck(check ...string) *Input {
	if in.conn != nil {
		in.conn.SetCheck(check...)
	}
	return in
}

// AppendField adds f to the end of the row.
func (in *Input) AppendField(f Field) *Input {
	in.InsertField(len(in.fields), f)
	return in
}

// InsertField adds f at index i.
func (in *Input) InsertField(i int, f Field) {
	f.base().block = in.block
	in.fields = append(in.fields, nil)
	copy(in.fields[i+1:], in.fields[i:])
	in.fields[i] = f
	if vf, ok := f.(*VariableField); ok && in.block != nil && in.block.ws.deferBind == 0 {
		_ = vf.bind()
	}
}

// RemoveField drops the named field from the row.
func (in *Input) RemoveField(name string) bool {
	for i, f := range in.fields {
		if f.Name() == name {
			in.fields = append(in.fields[:i], in.fields[i+1:]...)
			f.base().block = nil
			return true
		}
	}
	return false
}

// Field returns the named field in this row.
func (in *Input) Field(name string) Field {
	for _, f := range in.fields {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// dispose releases the row: a shadow child is disposed, a real child is
// unplugged and left on the workspace.
func (in *Input) dispose() {
	if in.conn != nil {
		in.conn.shadowDom = nil
		if child := in.conn.TargetBlock(); child != nil && !in.block.disposing {
			if child.shadow {
				child.Dispose(false)
			} else {
				child.Unplug(false)
			}
		}
		in.conn.dispose()
	}
	for _, f := range in.fields {
		f.base().block = nil
	}
	in.fields = nil
	in.adopted = false
}

func (in *Input) adopt() {
	in.adopted = true
	if in.conn != nil && !in.conn.inDB && !in.conn.hidden {
		in.conn.moveTo(in.block.x+in.conn.offX, in.block.y+in.conn.offY)
		_ = in.block.ws.db(in.conn.typ).AddConnection(in.conn)
	}
}
