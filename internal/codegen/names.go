package codegen

import (
	"strconv"
	"strings"
	"unicode"
)

// NameKind separates the namespaces a NameDB tracks. Names are unique
// across kinds so a variable never shadows a procedure.
type NameKind string

const (
	NameVariable  NameKind = "VARIABLE"
	NameProcedure NameKind = "PROCEDURE"
	// NameDeveloper is for helper functions and loop temporaries.
	NameDeveloper NameKind = "DEVELOPER"
)

// NameDB maps user-facing names to identifiers that are legal in the
// target and collide neither with each other nor with reserved words.
type NameDB struct {
	reserved func(string) bool
	byKey    map[string]string
	taken    map[string]bool
}

func NewNameDB(reserved func(string) bool) *NameDB {
	if reserved == nil {
		reserved = func(string) bool { return false }
	}
	return &NameDB{
		reserved: reserved,
		byKey:    make(map[string]string),
		taken:    make(map[string]bool),
	}
}

// Reset forgets every allocated name.
func (db *NameDB) Reset() {
	db.byKey = make(map[string]string)
	db.taken = make(map[string]bool)
}

// GetName returns the identifier for name of the given kind, allocating
// it on first use. The same name always maps to the same identifier.
func (db *NameDB) GetName(name string, kind NameKind) string {
	key := strings.ToLower(name) + "\x00" + string(kind)
	if id, ok := db.byKey[key]; ok {
		return id
	}
	id := db.GetDistinctName(name, kind)
	db.byKey[key] = id
	return id
}

// GetDistinctName allocates a fresh identifier based on name. Unlike
// GetName it never returns an identifier handed out before.
func (db *NameDB) GetDistinctName(name string, _ NameKind) string {
	safe := SafeName(name)
	candidate := safe
	for i := 2; db.taken[strings.ToLower(candidate)] || db.reserved(candidate); i++ {
		candidate = safe + strconv.Itoa(i)
	}
	db.taken[strings.ToLower(candidate)] = true
	return candidate
}

// SafeName replaces every character that cannot appear in an identifier
// with an underscore and prefixes names that start with a digit.
func SafeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	var b strings.Builder
	for _, r := range name {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if unicode.IsDigit([]rune(out)[0]) {
		out = "my_" + out
	}
	return out
}
