package mutators

import (
	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// ItemList gives a block a variable number of value inputs ADD0..ADDn-1,
// or a single EMPTY dummy row when the count is zero. Used by
// lists_create_with and text_join.
type ItemList struct {
	block      *blocks.Block
	count      int
	firstLabel string
	emptyLabel string
}

// NewItemList starts with count items. firstLabel heads the first row and
// emptyLabel is shown when there are none.
func NewItemList(firstLabel, emptyLabel string, count int) *ItemList {
	return &ItemList{firstLabel: firstLabel, emptyLabel: emptyLabel, count: count}
}

func (m *ItemList) Count() int { return m.count }

func (m *ItemList) Attach(b *blocks.Block) error {
	m.block = b
	return m.rebuild()
}

func (m *ItemList) Detach() { m.block = nil }

func (m *ItemList) ToXML() *blocks.Element {
	return blocks.NewElement("mutation").SetAttr("items", itoa(m.count))
}

func (m *ItemList) FromXML(el *blocks.Element) error {
	n, err := intAttr(el, "items")
	if err != nil {
		return err
	}
	m.count = n
	return m.rebuild()
}

// SetCount reshapes to n items. Existing items keep their blocks; items
// past n are dropped.
func (m *ItemList) SetCount(n int) error {
	if n < 0 {
		n = 0
	}
	before := m.ToXML()
	m.count = n
	if err := m.rebuild(); err != nil {
		return err
	}
	blocks.NotifyMutation(m.block, before, m.ToXML())
	return nil
}

func (m *ItemList) rebuild() error {
	b := m.block
	if b == nil {
		return nil
	}
	var inputs []*blocks.Input
	if m.count == 0 {
		inputs = append(inputs, reuseInput(b, blocks.InputTypeDummy, "EMPTY", func(in *blocks.Input) {
			in.AppendField(blocks.NewLabelField("", m.emptyLabel))
		}))
	}
	for i := 0; i < m.count; i++ {
		first := i == 0
		inputs = append(inputs, reuseInput(b, blocks.InputTypeValue, "ADD"+itoa(i), func(in *blocks.Input) {
			in.SetAlign(blocks.AlignRight)
			if first {
				in.AppendField(blocks.NewLabelField("", m.firstLabel))
			}
		}))
	}
	return b.Reshape(inputs, b.OutputConnection(), b.PreviousConnection(), b.NextConnection())
}
