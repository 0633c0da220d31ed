package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MutatorFunc constructs a fresh mutator for one block.
type MutatorFunc func() Mutator

// Extension runs once on every new block whose definition names it.
type Extension func(b *Block) error

// Factory holds block definitions plus the mutator and extension
// registries they refer to.
type Factory struct {
	mu         sync.RWMutex
	defs       map[string]*Definition
	mutators   map[string]MutatorFunc
	extensions map[string]Extension
}

func NewFactory() *Factory {
	return &Factory{
		defs:       make(map[string]*Definition),
		mutators:   make(map[string]MutatorFunc),
		extensions: make(map[string]Extension),
	}
}

// Register adds or replaces a definition.
func (f *Factory) Register(def *Definition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.defs[def.Type]; ok {
		log.Printf("blocks: redefining block type %q", def.Type)
	}
	f.defs[def.Type] = def
}

func (f *Factory) Definition(typ string) (*Definition, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.defs[typ]
	return d, ok
}

// Types returns the registered block types in sorted order.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.defs))
	for t := range f.defs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RegisterMutator panics if name is already taken.
func (f *Factory) RegisterMutator(name string, fn MutatorFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.mutators[name]; exists {
		panic(fmt.Sprintf("blocks: mutator %q already registered", name))
	}
	f.mutators[name] = fn
}

// RegisterExtension panics if name is already taken.
func (f *Factory) RegisterExtension(name string, fn Extension) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.extensions[name]; exists {
		panic(fmt.Sprintf("blocks: extension %q already registered", name))
	}
	f.extensions[name] = fn
}

// LoadRecords parses and registers every record. A bad record is skipped
// and its error joined into the result; the others still register.
func (f *Factory) LoadRecords(records []map[string]any) ([]string, error) {
	var (
		loaded []string
		errs   []error
	)
	for i, raw := range records {
		def, err := ParseDefinition(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		f.Register(def)
		loaded = append(loaded, def.Type)
	}
	return loaded, errors.Join(errs...)
}

// LoadJSON accepts a JSON array of block-type records.
func (f *Factory) LoadJSON(data []byte) ([]string, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode block definitions: %w", err)
	}
	return f.LoadRecords(records)
}

func (f *Factory) lookup(typ string) (*Definition, MutatorFunc, []Extension, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	def, ok := f.defs[typ]
	if !ok {
		return nil, nil, nil, &UnknownBlockError{Type: typ}
	}
	var mut MutatorFunc
	if def.Mutator != "" {
		if mut, ok = f.mutators[def.Mutator]; !ok {
			return nil, nil, nil, schemaErr(typ, "mutator", "unknown mutator %q", def.Mutator)
		}
	}
	exts := make([]Extension, 0, len(def.Extensions))
	for _, name := range def.Extensions {
		ext, ok := f.extensions[name]
		if !ok {
			return nil, nil, nil, schemaErr(typ, "extensions", "unknown extension %q", name)
		}
		exts = append(exts, ext)
	}
	return def, mut, exts, nil
}

// build instantiates typ in ws. An empty or already used id is replaced
// with a fresh one.
func (f *Factory) build(ws *Workspace, typ, id string) (*Block, error) {
	if f == nil {
		return nil, &UnknownBlockError{Type: typ}
	}
	def, mut, exts, err := f.lookup(typ)
	if err != nil {
		return nil, err
	}
	if id == "" || ws.blocks[id] != nil {
		id = uuid.NewString()
	}
	b := &Block{
		ws:           ws,
		id:           id,
		typ:          typ,
		editable:     true,
		movable:      true,
		deletable:    true,
		initializing: true,
	}
	ws.addBlock(b)

	if err := b.initShape(def); err != nil {
		b.initializing = false
		b.disposeInternal()
		return nil, err
	}
	if def.InputsInline != nil {
		b.inputsInline = *def.InputsInline
		b.inputsInlineSet = true
	}
	if mut != nil {
		if err := b.SetMutator(mut()); err != nil {
			b.initializing = false
			b.disposeInternal()
			return nil, fmt.Errorf("attach mutator to %s: %w", typ, err)
		}
	}
	for _, ext := range exts {
		if err := ext(b); err != nil {
			b.initializing = false
			b.disposeInternal()
			return nil, fmt.Errorf("extension on %s: %w", typ, err)
		}
	}
	b.initializing = false
	b.fire(Event{Type: EventCreate, BlockID: b.id, BlockIDs: []string{b.id}})
	return b, nil
}

func (b *Block) initShape(def *Definition) error {
	inputs := make([]*Input, 0, len(def.Inputs))
	for _, spec := range def.Inputs {
		in := b.NewInput(spec.Type, spec.Name)
		in.align = spec.Align
		if in.conn != nil && spec.Check != nil {
			in.conn.check = append([]string(nil), spec.Check...)
		}
		for _, fs := range spec.Fields {
			in.AppendField(newField(fs))
		}
		inputs = append(inputs, in)
	}
	var out, prev, next *Connection
	if def.Output != nil {
		out = b.NewConnection(OutputValue)
		out.check = append([]string(nil), def.Output.Check...)
	}
	if def.Previous != nil {
		prev = b.NewConnection(PreviousStatement)
		prev.check = append([]string(nil), def.Previous.Check...)
	}
	if def.Next != nil {
		next = b.NewConnection(NextStatement)
		next.check = append([]string(nil), def.Next.Check...)
	}
	return b.Reshape(inputs, out, prev, next)
}
