package mutators

import (
	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// IfElse shapes controls_if: IF0/DO0 from the definition, then one IFn/DOn
// pair per else-if clause and an optional ELSE statement input.
type IfElse struct {
	block       *blocks.Block
	elseIfCount int
	hasElse     bool
}

func NewIfElse() *IfElse { return &IfElse{} }

func (m *IfElse) ElseIfCount() int { return m.elseIfCount }
func (m *IfElse) HasElse() bool    { return m.hasElse }

func (m *IfElse) Attach(b *blocks.Block) error {
	m.block = b
	return m.rebuild()
}

func (m *IfElse) Detach() { m.block = nil }

func (m *IfElse) ToXML() *blocks.Element {
	el := blocks.NewElement("mutation")
	if m.elseIfCount > 0 {
		el.SetAttr("elseif", itoa(m.elseIfCount))
	}
	if m.hasElse {
		el.SetAttr("else", "1")
	}
	return el
}

func (m *IfElse) FromXML(el *blocks.Element) error {
	n, err := intAttr(el, "elseif")
	if err != nil {
		return err
	}
	hasElse, err := boolAttr(el, "else")
	if err != nil {
		return err
	}
	m.elseIfCount, m.hasElse = n, hasElse
	return m.rebuild()
}

// SetCounts reshapes to n else-if clauses with or without an else branch.
// Surviving clauses keep their attached blocks.
func (m *IfElse) SetCounts(n int, hasElse bool) error {
	if n < 0 {
		n = 0
	}
	before := m.ToXML()
	m.elseIfCount, m.hasElse = n, hasElse
	if err := m.rebuild(); err != nil {
		return err
	}
	blocks.NotifyMutation(m.block, before, m.ToXML())
	return nil
}

func (m *IfElse) rebuild() error {
	b := m.block
	if b == nil {
		return nil
	}
	var inputs []*blocks.Input
	for _, in := range b.Inputs() {
		// keep whatever the definition declared for the first clause
		if in.Name() == "IF0" || in.Name() == "DO0" {
			inputs = append(inputs, in)
		}
	}
	for i := 1; i <= m.elseIfCount; i++ {
		inputs = append(inputs,
			reuseInput(b, blocks.InputTypeValue, "IF"+itoa(i), func(in *blocks.Input) {
				in.SetCheck("Boolean").AppendField(blocks.NewLabelField("", "else if"))
			}),
			reuseInput(b, blocks.InputTypeStatement, "DO"+itoa(i), func(in *blocks.Input) {
				in.AppendField(blocks.NewLabelField("", "do"))
			}),
		)
	}
	if m.hasElse {
		inputs = append(inputs, reuseInput(b, blocks.InputTypeStatement, "ELSE", func(in *blocks.Input) {
			in.AppendField(blocks.NewLabelField("", "else"))
		}))
	}
	return b.Reshape(inputs, b.OutputConnection(), b.PreviousConnection(), b.NextConnection())
}
