package mutators

import (
	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// DivisibleBy adds a DIVISOR input to math_number_property while its
// PROPERTY dropdown reads DIVISIBLE_BY.
type DivisibleBy struct {
	block    *blocks.Block
	hasInput bool
	watch    fieldWatch
}

func NewDivisibleBy() *DivisibleBy { return &DivisibleBy{} }

func (m *DivisibleBy) HasDivisorInput() bool { return m.hasInput }

func (m *DivisibleBy) Attach(b *blocks.Block) error {
	m.block = b
	m.hasInput = b.FieldValue("PROPERTY") == "DIVISIBLE_BY"
	m.watch.start(b, func(_, value string) {
		want := value == "DIVISIBLE_BY"
		if want == m.hasInput {
			return
		}
		before := m.ToXML()
		m.hasInput = want
		if err := m.rebuild(); err == nil {
			blocks.NotifyMutation(m.block, before, m.ToXML())
		}
	}, "PROPERTY")
	return m.rebuild()
}

func (m *DivisibleBy) Detach() {
	m.watch.stop()
	m.block = nil
}

func (m *DivisibleBy) ToXML() *blocks.Element {
	return blocks.NewElement("mutation").SetAttr("divisor_input", boolText(m.hasInput))
}

func (m *DivisibleBy) FromXML(el *blocks.Element) error {
	v, err := boolAttr(el, "divisor_input")
	if err != nil {
		return err
	}
	m.hasInput = v
	return m.rebuild()
}

func (m *DivisibleBy) rebuild() error {
	b := m.block
	if b == nil {
		return nil
	}
	var inputs []*blocks.Input
	for _, in := range b.Inputs() {
		if in.Name() != "DIVISOR" {
			inputs = append(inputs, in)
		}
	}
	if m.hasInput {
		inputs = append(inputs, reuseInput(b, blocks.InputTypeValue, "DIVISOR", func(in *blocks.Input) {
			in.SetCheck("Number")
		}))
	}
	return b.Reshape(inputs, b.OutputConnection(), b.PreviousConnection(), b.NextConnection())
}

func boolText(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
