// Package interp executes block programs directly. Each top-level
// statement chain runs as a cooperative coroutine that a Runner advances
// frame by frame or one step at a time.
package interp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the dynamic type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "text"
	case KindList:
		return "list"
	}
	return "null"
}

// List is shared by reference: every Value holding it sees mutations.
type List struct {
	Items []Value
}

// Value is a runtime value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list *List
}

func Null() Value            { return Value{} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func String(s string) Value  { return Value{kind: KindString, s: s} }
func NewList(items ...Value) Value {
	return Value{kind: KindList, list: &List{Items: append([]Value(nil), items...)}}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) List() *List  { return v.list }

// Truthy follows the usual scripting rules: null, false, 0, NaN and ""
// are false, everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	case KindList:
		return true
	}
	return false
}

// Number converts v to a number. Null is 0, booleans are 0 or 1 and text
// must parse as a decimal.
func (v Value) Number() (float64, error) {
	switch v.kind {
	case KindNull:
		return 0, nil
	case KindNumber:
		return v.n, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got text %q", v.s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected a number, got a %s", v.kind)
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list.Items))
		for i, item := range v.list.Items {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	}
	return "null"
}

func formatNumber(n float64) string {
	switch {
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case math.IsNaN(n):
		return "NaN"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Equal compares by value. Numbers and numeric text compare as numbers;
// lists compare by identity.
func (v Value) Equal(o Value) bool {
	if v.kind == o.kind {
		switch v.kind {
		case KindNull:
			return true
		case KindBool:
			return v.b == o.b
		case KindNumber:
			return v.n == o.n
		case KindString:
			return v.s == o.s
		case KindList:
			return v.list == o.list
		}
	}
	if (v.kind == KindNumber && o.kind == KindString) || (v.kind == KindString && o.kind == KindNumber) {
		a, errA := v.Number()
		b, errB := o.Number()
		return errA == nil && errB == nil && a == b
	}
	return false
}

// Compare orders two numbers or two texts.
func (v Value) Compare(o Value) (int, error) {
	if v.kind == KindString && o.kind == KindString {
		return strings.Compare(v.s, o.s), nil
	}
	a, err := v.Number()
	if err != nil {
		return 0, err
	}
	b, err := o.Number()
	if err != nil {
		return 0, err
	}
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	}
	return 0, nil
}
