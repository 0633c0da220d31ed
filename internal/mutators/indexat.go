package mutators

import (
	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// IndexAt drives lists_getIndex. MODE=REMOVE turns the block into a
// statement; WHERE=FROM_START or FROM_END adds the AT index input.
type IndexAt struct {
	block     *blocks.Block
	statement bool
	at        bool
	watch     fieldWatch
}

func NewIndexAt() *IndexAt { return &IndexAt{at: true} }

func (m *IndexAt) IsStatement() bool { return m.statement }
func (m *IndexAt) HasAt() bool       { return m.at }

func wantsAt(where string) bool {
	return where == "FROM_START" || where == "FROM_END"
}

func (m *IndexAt) Attach(b *blocks.Block) error {
	m.block = b
	m.statement = b.FieldValue("MODE") == "REMOVE"
	m.at = wantsAt(b.FieldValue("WHERE"))
	m.watch.start(b, func(name, value string) {
		before := m.ToXML()
		switch name {
		case "MODE":
			m.statement = value == "REMOVE"
		case "WHERE":
			m.at = wantsAt(value)
		}
		if before.String() == m.ToXML().String() {
			return
		}
		if err := m.rebuild(); err == nil {
			blocks.NotifyMutation(m.block, before, m.ToXML())
		}
	}, "MODE", "WHERE")
	return m.rebuild()
}

func (m *IndexAt) Detach() {
	m.watch.stop()
	m.block = nil
}

func (m *IndexAt) ToXML() *blocks.Element {
	return blocks.NewElement("mutation").
		SetAttr("statement", boolText(m.statement)).
		SetAttr("at", boolText(m.at))
}

func (m *IndexAt) FromXML(el *blocks.Element) error {
	statement, err := boolAttr(el, "statement")
	if err != nil {
		return err
	}
	at, err := el.BoolAttr("at", true)
	if err != nil {
		return err
	}
	m.statement, m.at = statement, at
	return m.rebuild()
}

func (m *IndexAt) rebuild() error {
	b := m.block
	if b == nil {
		return nil
	}
	var inputs []*blocks.Input
	for _, in := range b.Inputs() {
		if in.Name() != "AT" {
			inputs = append(inputs, in)
		}
	}
	if m.at {
		inputs = append(inputs, reuseInput(b, blocks.InputTypeValue, "AT", func(in *blocks.Input) {
			in.SetCheck("Number")
		}))
	}

	out, prev, next := b.OutputConnection(), b.PreviousConnection(), b.NextConnection()
	if m.statement {
		out = nil
		if prev == nil {
			prev = b.NewConnection(blocks.PreviousStatement)
		}
		if next == nil {
			next = b.NewConnection(blocks.NextStatement)
		}
	} else {
		prev, next = nil, nil
		if out == nil {
			out = b.NewConnection(blocks.OutputValue)
		}
	}
	return b.Reshape(inputs, out, prev, next)
}
