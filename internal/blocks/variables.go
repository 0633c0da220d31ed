package blocks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// VariableModel is a workspace variable. Name may change, ID never does.
type VariableModel struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// VariableMap is the workspace's variable table. Names compare
// case-insensitively within a type.
type VariableMap struct {
	ws   *Workspace
	vars []*VariableModel
}

func newVariableMap(ws *Workspace) *VariableMap {
	return &VariableMap{ws: ws}
}

// All returns the variables sorted by name.
func (m *VariableMap) All() []*VariableModel {
	out := append([]*VariableModel(nil), m.vars...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// OfType returns the variables with the given type.
func (m *VariableMap) OfType(typ string) []*VariableModel {
	var out []*VariableModel
	for _, v := range m.All() {
		if v.Type == typ {
			out = append(out, v)
		}
	}
	return out
}

// GetVariable finds a variable by name and type.
func (m *VariableMap) GetVariable(name, typ string) *VariableModel {
	for _, v := range m.vars {
		if v.Type == typ && strings.EqualFold(v.Name, name) {
			return v
		}
	}
	return nil
}

// GetVariableByName finds a variable by name regardless of type.
func (m *VariableMap) GetVariableByName(name string) *VariableModel {
	for _, v := range m.vars {
		if strings.EqualFold(v.Name, name) {
			return v
		}
	}
	return nil
}

func (m *VariableMap) GetVariableByID(id string) *VariableModel {
	if id == "" {
		return nil
	}
	for _, v := range m.vars {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// CreateVariable adds a variable. An existing variable with the same name
// and type is returned as is, unless id names a different variable.
func (m *VariableMap) CreateVariable(name, typ, id string) (*VariableModel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("create variable: %w: empty name", ErrIllegalName)
	}
	if v := m.GetVariable(name, typ); v != nil {
		if id != "" && v.ID != id {
			return nil, fmt.Errorf("create variable %q: %w with id %s", name, ErrVariableExists, v.ID)
		}
		return v, nil
	}
	if id != "" && m.GetVariableByID(id) != nil {
		return nil, fmt.Errorf("create variable %q: %w: id %s in use", name, ErrVariableExists, id)
	}
	if id == "" {
		id = uuid.NewString()
	}
	v := &VariableModel{Name: name, Type: typ, ID: id}
	m.vars = append(m.vars, v)
	m.ws.fire(Event{Type: EventVarCreate, VarID: id, VarType: typ, NewValue: name})
	return v, nil
}

// GetOrCreate returns the named variable of typ, creating it if needed.
func (m *VariableMap) GetOrCreate(name, typ string) (*VariableModel, error) {
	if v := m.GetVariable(name, typ); v != nil {
		return v, nil
	}
	return m.CreateVariable(name, typ, "")
}

// resolve finds the variable a serialized field refers to, creating it
// when neither the id nor the name is known.
func (m *VariableMap) resolve(id, name, typ string) (*VariableModel, error) {
	if v := m.GetVariableByID(id); v != nil {
		return v, nil
	}
	if v := m.GetVariable(name, typ); v != nil {
		return v, nil
	}
	return m.CreateVariable(name, typ, id)
}

// RenameVariableByID renames a variable. When another variable of the same
// type already has the new name the two are merged: references to the
// other variable are repointed, it is deleted, and the renamed variable's
// id survives. A name held by a variable of a different type is an error.
func (m *VariableMap) RenameVariableByID(id, newName string) error {
	v := m.GetVariableByID(id)
	if v == nil {
		return fmt.Errorf("rename variable: %w: id %q", ErrVariableNotFound, id)
	}
	if strings.TrimSpace(newName) == "" {
		return fmt.Errorf("rename variable: %w: empty name", ErrIllegalName)
	}
	for _, o := range m.vars {
		if o != v && o.Type != v.Type && strings.EqualFold(o.Name, newName) {
			return fmt.Errorf("rename variable %q to %q: %w (%q)", v.Name, newName, ErrVariableTypeClash, o.Type)
		}
	}
	if conflict := m.GetVariable(newName, v.Type); conflict != nil && conflict != v {
		for _, f := range m.fieldsReferencing(conflict.ID) {
			_ = setFieldValue(f, v.ID)
		}
		m.remove(conflict)
		m.ws.fire(Event{Type: EventVarDelete, VarID: conflict.ID, VarType: conflict.Type, OldValue: conflict.Name})
	}
	if v.Name == newName {
		return nil
	}
	old := v.Name
	v.Name = newName
	m.ws.fire(Event{Type: EventVarRename, VarID: v.ID, VarType: v.Type, OldValue: old, NewValue: newName})
	return nil
}

// DeleteVariableByID removes a variable and every block using it.
func (m *VariableMap) DeleteVariableByID(id string) error {
	v := m.GetVariableByID(id)
	if v == nil {
		return fmt.Errorf("delete variable: %w: id %q", ErrVariableNotFound, id)
	}
	for _, b := range m.Uses(id) {
		if !b.disposed {
			b.Dispose(true)
		}
	}
	m.remove(v)
	m.ws.fire(Event{Type: EventVarDelete, VarID: v.ID, VarType: v.Type, OldValue: v.Name})
	return nil
}

// Uses returns the blocks with a variable field bound to id.
func (m *VariableMap) Uses(id string) []*Block {
	var out []*Block
	seen := make(map[*Block]bool)
	for _, f := range m.fieldsReferencing(id) {
		if b := f.block; b != nil && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

func (m *VariableMap) fieldsReferencing(id string) []*VariableField {
	var out []*VariableField
	for _, b := range m.ws.AllBlocks() {
		for _, in := range b.inputs {
			for _, f := range in.fields {
				if vf, ok := f.(*VariableField); ok && vf.value == id {
					out = append(out, vf)
				}
			}
		}
	}
	return out
}

func (m *VariableMap) remove(v *VariableModel) {
	for i, o := range m.vars {
		if o == v {
			m.vars = append(m.vars[:i], m.vars[i+1:]...)
			return
		}
	}
}

func (m *VariableMap) clear() {
	m.vars = nil
}
