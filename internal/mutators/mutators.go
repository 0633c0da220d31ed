// Package mutators holds the concrete block mutators: if/elseif/else,
// variable-arity item lists, divisible-by, index-at and the procedure
// definition and call pair.
package mutators

import (
	"fmt"
	"strconv"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// Mutator names referenced by the "mutator" key of block definitions.
const (
	IfElseName        = "controls_if_mutator"
	ListCreateName    = "lists_create_with_mutator"
	TextJoinName      = "text_join_mutator"
	DivisibleByName   = "math_is_divisibleby_mutator"
	IndexAtName       = "lists_getIndex_mutator"
	ProcDefName       = "procedures_def_mutator"
	ProcCallName      = "procedures_call_mutator"
)

// Register adds every mutator in this package to f.
func Register(f *blocks.Factory) {
	f.RegisterMutator(IfElseName, func() blocks.Mutator { return NewIfElse() })
	f.RegisterMutator(ListCreateName, func() blocks.Mutator {
		return NewItemList("create list with", "create empty list", 3)
	})
	f.RegisterMutator(TextJoinName, func() blocks.Mutator {
		return NewItemList("join", "create empty text", 2)
	})
	f.RegisterMutator(DivisibleByName, func() blocks.Mutator { return NewDivisibleBy() })
	f.RegisterMutator(IndexAtName, func() blocks.Mutator { return NewIndexAt() })
	f.RegisterMutator(ProcDefName, func() blocks.Mutator { return NewProcedureDef() })
	f.RegisterMutator(ProcCallName, func() blocks.Mutator { return NewProcedureCall() })
}

// reuseInput returns the block's input called name when it already has the
// wanted type, or a fresh one built by create.
func reuseInput(b *blocks.Block, typ blocks.InputType, name string, create func(*blocks.Input)) *blocks.Input {
	if in := b.Input(name); in != nil && in.Type() == typ {
		return in
	}
	in := b.NewInput(typ, name)
	if create != nil {
		create(in)
	}
	return in
}

// fieldWatch subscribes fn to value changes of the named fields on b. The
// subscription removes itself once the block is gone.
type fieldWatch struct {
	remove func()
}

func (w *fieldWatch) start(b *blocks.Block, fn func(name, value string), names ...string) {
	w.stop()
	ws, id := b.Workspace(), b.ID()
	watched := make(map[string]bool, len(names))
	for _, n := range names {
		watched[n] = true
	}
	w.remove = ws.AddChangeListener(func(ev blocks.Event) {
		if ev.BlockID != id || ev.Type != blocks.EventChange || ev.Element != blocks.ElementField || !watched[ev.Name] {
			return
		}
		if ws.Block(id) == nil {
			w.stop()
			return
		}
		fn(ev.Name, ev.NewValue)
	})
}

func (w *fieldWatch) stop() {
	if w.remove != nil {
		w.remove()
		w.remove = nil
	}
}

func boolAttr(el *blocks.Element, name string) (bool, error) {
	v, err := el.BoolAttr(name, false)
	if err != nil {
		return false, fmt.Errorf("mutation: %w", err)
	}
	return v, nil
}

func intAttr(el *blocks.Element, name string) (int, error) {
	n, err := el.IntAttr(name, 0)
	if err != nil {
		return 0, fmt.Errorf("mutation: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("mutation: attribute %s: negative count %d", name, n)
	}
	return n, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
