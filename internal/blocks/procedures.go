package blocks

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Procedure is an immutable signature snapshot. Changing a procedure means
// replacing the whole value.
type Procedure struct {
	Name          string   `json:"name"`
	Arguments     []string `json:"arguments"`
	HasStatements bool     `json:"hasStatements"`
}

// Clone returns a copy that shares no slice with p.
func (p Procedure) Clone() Procedure {
	p.Arguments = append([]string(nil), p.Arguments...)
	return p
}

func (p Procedure) Equal(o Procedure) bool {
	if p.Name != o.Name || p.HasStatements != o.HasStatements || len(p.Arguments) != len(o.Arguments) {
		return false
	}
	for i := range p.Arguments {
		if p.Arguments[i] != o.Arguments[i] {
			return false
		}
	}
	return true
}

var identRe = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// IsLegalName reports whether s can name a procedure argument.
func IsLegalName(s string) bool {
	return identRe.MatchString(s)
}

type procEntry struct {
	proc  Procedure
	defID string
}

// ProcedureRegistry tracks procedure definitions and the call blocks that
// refer to them. Names are case-insensitive.
type ProcedureRegistry struct {
	ws      *Workspace
	defs    map[string]*procEntry
	callers map[string][]string
}

func newProcedureRegistry(ws *Workspace) *ProcedureRegistry {
	return &ProcedureRegistry{
		ws:      ws,
		defs:    make(map[string]*procEntry),
		callers: make(map[string][]string),
	}
}

func procKey(name string) string { return strings.ToLower(name) }

// Get returns the defined procedure with the given name.
func (r *ProcedureRegistry) Get(name string) (Procedure, bool) {
	e, ok := r.defs[procKey(name)]
	if !ok {
		return Procedure{}, false
	}
	return e.proc.Clone(), true
}

// All returns every defined procedure sorted by name.
func (r *ProcedureRegistry) All() []Procedure {
	out := make([]Procedure, 0, len(r.defs))
	for _, e := range r.defs {
		out = append(out, e.proc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return procKey(out[i].Name) < procKey(out[j].Name) })
	return out
}

// Definition returns the definition block of name, or nil.
func (r *ProcedureRegistry) Definition(name string) *Block {
	if e, ok := r.defs[procKey(name)]; ok {
		return r.ws.Block(e.defID)
	}
	return nil
}

// Callers returns the live call blocks registered under name.
func (r *ProcedureRegistry) Callers(name string) []*Block {
	var out []*Block
	for _, id := range r.callers[procKey(name)] {
		if b := r.ws.Block(id); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// DistinctName returns name, or name with a numeric suffix bumped until it
// does not collide with a defined procedure.
func (r *ProcedureRegistry) DistinctName(name string) string {
	return r.distinctName(name, "")
}

func (r *ProcedureRegistry) distinctName(name, exceptDefID string) string {
	if name == "" {
		name = "unnamed"
	}
	for {
		e, taken := r.defs[procKey(name)]
		if !taken || (exceptDefID != "" && e.defID == exceptDefID) {
			return name
		}
		name = bumpSuffix(name)
	}
}

func bumpSuffix(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return name + "2"
	}
	n, _ := strconv.Atoi(name[i:])
	return name[:i] + strconv.Itoa(n+1)
}

// AddDefinition registers def as the definition of p, renaming p to a
// distinct name on collision. The registered procedure is returned.
func (r *ProcedureRegistry) AddDefinition(def *Block, p Procedure) Procedure {
	p = p.Clone()
	p.Name = r.distinctName(p.Name, def.id)
	r.defs[procKey(p.Name)] = &procEntry{proc: p, defID: def.id}
	r.ws.fire(Event{Type: EventProcCreate, BlockID: def.id, Name: p.Name})
	return p.Clone()
}

// RemoveDefinition forgets the definition of name and returns the call
// blocks that referred to it. The call blocks themselves are untouched.
func (r *ProcedureRegistry) RemoveDefinition(name string) []*Block {
	key := procKey(name)
	e, ok := r.defs[key]
	if !ok {
		return nil
	}
	delete(r.defs, key)
	callers := r.Callers(name)
	ids := make([]string, len(callers))
	for i, c := range callers {
		ids[i] = c.id
	}
	r.ws.fire(Event{Type: EventProcDelete, BlockID: e.defID, Name: e.proc.Name, BlockIDs: ids})
	return callers
}

// AddCaller registers a call block under name.
func (r *ProcedureRegistry) AddCaller(name string, caller *Block) {
	key := procKey(name)
	for _, id := range r.callers[key] {
		if id == caller.id {
			return
		}
	}
	r.callers[key] = append(r.callers[key], caller.id)
}

// RemoveCaller drops a call block from name's caller list.
func (r *ProcedureRegistry) RemoveCaller(name string, caller *Block) {
	key := procKey(name)
	ids := r.callers[key]
	for i, id := range ids {
		if id == caller.id {
			r.callers[key] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(r.callers[key]) == 0 {
		delete(r.callers, key)
	}
}

// MutateProcedure replaces the procedure named oldName with p. The name
// table is updated (p.Name is made distinct if it collides with another
// definition), every argument must be a legal identifier and backing
// variables are created for new ones. The definition block is mutated
// first, then every caller with argMap (old argument index to new index).
// One procedure_mutate event is fired at the end.
func (r *ProcedureRegistry) MutateProcedure(oldName string, p Procedure, argMap map[int]int) error {
	_, err := r.mutate(oldName, p, argMap)
	return err
}

func (r *ProcedureRegistry) mutate(oldName string, p Procedure, argMap map[int]int) (Procedure, error) {
	oldKey := procKey(oldName)
	e, ok := r.defs[oldKey]
	if !ok {
		return Procedure{}, fmt.Errorf("mutate procedure: %w: %q", ErrProcedureNotFound, oldName)
	}
	seen := make(map[string]bool, len(p.Arguments))
	for _, a := range p.Arguments {
		if !IsLegalName(a) {
			return Procedure{}, fmt.Errorf("mutate procedure %q: %w: %q", oldName, ErrIllegalName, a)
		}
		if seen[strings.ToLower(a)] {
			return Procedure{}, fmt.Errorf("mutate procedure %q: %w: %q", oldName, ErrDuplicateArgument, a)
		}
		seen[strings.ToLower(a)] = true
	}
	if strings.TrimSpace(p.Name) == "" {
		return Procedure{}, fmt.Errorf("mutate procedure %q: %w: empty name", oldName, ErrIllegalName)
	}

	old := e.proc
	p = p.Clone()
	p.Name = r.distinctName(p.Name, e.defID)
	newKey := procKey(p.Name)
	if newKey != oldKey {
		delete(r.defs, oldKey)
		r.defs[newKey] = e
		if ids, ok := r.callers[oldKey]; ok {
			delete(r.callers, oldKey)
			r.callers[newKey] = append(r.callers[newKey], ids...)
		}
	}
	e.proc = p

	for _, a := range p.Arguments {
		if r.ws.variables.GetVariable(a, "") == nil {
			if _, err := r.ws.variables.CreateVariable(a, "", ""); err != nil {
				return Procedure{}, fmt.Errorf("mutate procedure %q: %w", p.Name, err)
			}
		}
	}

	var errs []error
	if def := r.ws.Block(e.defID); def != nil {
		if pm, ok := def.mutator.(ProcedureMutator); ok {
			if err := pm.Mutate(p.Clone(), nil); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if argMap == nil {
		argMap = IdentityArgMap(min(len(old.Arguments), len(p.Arguments)))
	}
	var callerIDs []string
	for _, c := range r.Callers(p.Name) {
		callerIDs = append(callerIDs, c.id)
		if pm, ok := c.mutator.(ProcedureMutator); ok {
			if err := pm.Mutate(p.Clone(), argMap); err != nil {
				errs = append(errs, err)
			}
		}
	}

	r.ws.fire(Event{
		Type:     EventProcMutate,
		BlockID:  e.defID,
		Name:     p.Name,
		OldValue: old.Name,
		NewValue: p.Name,
		BlockIDs: callerIDs,
	})
	if len(errs) > 0 {
		return p.Clone(), fmt.Errorf("mutate procedure %q: %w", p.Name, errors.Join(errs...))
	}
	return p.Clone(), nil
}

// RenameProcedure changes only the name, keeping arguments in place, and
// returns the name actually used.
func (r *ProcedureRegistry) RenameProcedure(oldName, newName string) (string, error) {
	p, ok := r.Get(oldName)
	if !ok {
		return "", fmt.Errorf("rename procedure: %w: %q", ErrProcedureNotFound, oldName)
	}
	p.Name = newName
	np, err := r.mutate(oldName, p, IdentityArgMap(len(p.Arguments)))
	return np.Name, err
}
