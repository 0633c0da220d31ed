package blocks

// Mutator owns the variable part of a block's shape. It is attached to one
// block for its lifetime; Attach reshapes the block from the mutator's
// current state and Detach releases any subscriptions.
type Mutator interface {
	Attach(b *Block) error
	Detach()
	// ToXML returns the <mutation> payload. It may have no attributes.
	ToXML() *Element
	// FromXML restores state from a <mutation> payload and reshapes.
	FromXML(el *Element) error
}

// ProcedureMutator is implemented by mutators of procedure definition and
// call blocks. Mutate replaces the procedure snapshot and rebuilds the
// shape; argMap maps old argument indexes to new ones and is only used on
// call blocks, where values of unmapped arguments are dropped.
type ProcedureMutator interface {
	Mutator
	Procedure() Procedure
	IsDefinition() bool
	Mutate(p Procedure, argMap map[int]int) error
}

// NotifyMutation fires the change event for a mutation edit made outside
// FromXML.
func NotifyMutation(b *Block, before, after *Element) {
	old, nw := "", ""
	if before != nil {
		old = before.String()
	}
	if after != nil {
		nw = after.String()
	}
	if old == nw {
		return
	}
	b.fire(Event{Type: EventChange, BlockID: b.id, Element: ElementMutation, OldValue: old, NewValue: nw})
}

// IdentityArgMap maps each of the first n indexes to itself.
func IdentityArgMap(n int) map[int]int {
	m := make(map[int]int, n)
	for i := 0; i < n; i++ {
		m[i] = i
	}
	return m
}
