package blocks

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ConnSpec describes a first-class connection. A nil Check accepts anything.
type ConnSpec struct {
	Check []string
}

// FieldSpec describes one field built from an args entry.
type FieldSpec struct {
	Kind          string
	Name          string
	Text          string
	Value         string
	Number        float64
	Min, Max      float64
	Precision     float64
	Checked       bool
	Options       []Option
	VariableTypes []string
	DefaultType   string
	Serializable  bool
}

// InputSpec describes one row: its fields and, for value and statement
// inputs, its connection.
type InputSpec struct {
	Type   InputType
	Name   string
	Align  Align
	Check  []string
	Fields []FieldSpec
}

// Definition is the parsed form of one block-type record.
type Definition struct {
	Type         string
	Inputs       []InputSpec
	Output       *ConnSpec
	Previous     *ConnSpec
	Next         *ConnSpec
	InputsInline *bool
	Mutator      string
	Extensions   []string
	Colour       string
	Tooltip      string
	HelpURL      string
	Style        string
}

var (
	tokenRe  = regexp.MustCompile(`%(\d+)`)
	msgKeyRe = regexp.MustCompile(`^message(\d+)$`)
)

// ParseDefinition builds a Definition from a decoded JSON or YAML record.
func ParseDefinition(raw map[string]any) (*Definition, error) {
	typ, _ := raw["type"].(string)
	if typ == "" {
		return nil, schemaErr("", "type", "missing block type")
	}
	def := &Definition{Type: typ}

	_, hasOutput := raw["output"]
	_, hasPrev := raw["previousStatement"]
	if hasOutput && hasPrev {
		return nil, schemaErr(typ, "output", "%v", ErrOutputAndPrevious)
	}
	var err error
	if def.Output, err = parseConnSpec(typ, "output", raw); err != nil {
		return nil, err
	}
	if def.Previous, err = parseConnSpec(typ, "previousStatement", raw); err != nil {
		return nil, err
	}
	if def.Next, err = parseConnSpec(typ, "nextStatement", raw); err != nil {
		return nil, err
	}
	if v, ok := raw["inputsInline"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, schemaErr(typ, "inputsInline", "expected a boolean")
		}
		def.InputsInline = &b
	}
	def.Mutator, _ = raw["mutator"].(string)
	def.Colour = stringify(raw["colour"])
	def.Tooltip, _ = raw["tooltip"].(string)
	def.HelpURL, _ = raw["helpUrl"].(string)
	def.Style, _ = raw["style"].(string)
	if ext, ok := raw["extensions"]; ok {
		list, err := stringList(ext)
		if err != nil {
			return nil, schemaErr(typ, "extensions", "%v", err)
		}
		def.Extensions = list
	}

	var indexes []int
	for k := range raw {
		if m := msgKeyRe.FindStringSubmatch(k); m != nil {
			n, _ := strconv.Atoi(m[1])
			indexes = append(indexes, n)
		}
	}
	sort.Ints(indexes)
	for i, n := range indexes {
		if n != i {
			return nil, schemaErr(typ, fmt.Sprintf("message%d", i), "missing message")
		}
		inputs, err := interpolate(typ, n, raw)
		if err != nil {
			return nil, err
		}
		def.Inputs = append(def.Inputs, inputs...)
	}

	seen := make(map[string]string)
	for _, in := range def.Inputs {
		if in.Name != "" {
			if seen[in.Name] != "" {
				return nil, schemaErr(typ, in.Name, "%v", ErrDuplicateInput)
			}
			seen[in.Name] = "input"
		}
		for _, f := range in.Fields {
			if f.Name == "" {
				continue
			}
			if seen["field:"+f.Name] != "" {
				return nil, schemaErr(typ, f.Name, "duplicate field name")
			}
			seen["field:"+f.Name] = "field"
		}
	}
	return def, nil
}

func parseConnSpec(typ, key string, raw map[string]any) (*ConnSpec, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	if v == nil {
		return &ConnSpec{}, nil
	}
	check, err := stringList(v)
	if err != nil {
		return nil, schemaErr(typ, key, "%v", err)
	}
	return &ConnSpec{Check: check}, nil
}

// interpolate turns message{n}/args{n} into input rows. Text between
// placeholders becomes label fields; trailing fields get a dummy input.
func interpolate(typ string, n int, raw map[string]any) ([]InputSpec, error) {
	msgKey := fmt.Sprintf("message%d", n)
	argsKey := fmt.Sprintf("args%d", n)
	msg, ok := raw[msgKey].(string)
	if !ok {
		return nil, schemaErr(typ, msgKey, "expected a string")
	}
	var args []any
	if a, ok := raw[argsKey]; ok {
		if args, ok = a.([]any); !ok {
			return nil, schemaErr(typ, argsKey, "expected a list")
		}
	}
	lastAlign := AlignLeft
	if s, ok := raw[fmt.Sprintf("lastDummyAlign%d", n)].(string); ok {
		a, ok := ParseAlign(s)
		if !ok {
			return nil, schemaErr(typ, fmt.Sprintf("lastDummyAlign%d", n), "unknown alignment %q", s)
		}
		lastAlign = a
	}

	var elements []any
	used := make([]bool, len(args))
	pos := 0
	for _, loc := range tokenRe.FindAllStringSubmatchIndex(msg, -1) {
		if text := strings.TrimSpace(msg[pos:loc[0]]); text != "" {
			elements = append(elements, text)
		}
		idx, _ := strconv.Atoi(msg[loc[2]:loc[3]])
		if idx < 1 || idx > len(args) {
			return nil, schemaErr(typ, msgKey, "message index %%%d out of range", idx)
		}
		if used[idx-1] {
			return nil, schemaErr(typ, msgKey, "duplicate argument index %%%d", idx)
		}
		used[idx-1] = true
		elements = append(elements, args[idx-1])
		pos = loc[1]
	}
	if text := strings.TrimSpace(msg[pos:]); text != "" {
		elements = append(elements, text)
	}
	for i, u := range used {
		if !u {
			return nil, schemaErr(typ, msgKey, "argument %%%d is never referenced", i+1)
		}
	}
	if len(elements) == 0 || !isInputElement(elements[len(elements)-1]) {
		elements = append(elements, map[string]any{"type": "input_dummy", "align": alignName(lastAlign)})
	}

	var out []InputSpec
	var fields []FieldSpec
	for _, el := range elements {
		if text, ok := el.(string); ok {
			fields = append(fields, FieldSpec{Kind: "field_label", Text: text})
			continue
		}
		m, ok := el.(map[string]any)
		if !ok {
			return nil, schemaErr(typ, argsKey, "argument is not an object")
		}
		if isInputElement(m) {
			in, err := parseInput(typ, m)
			if err != nil {
				return nil, err
			}
			in.Fields = fields
			fields = nil
			out = append(out, in)
			continue
		}
		f, err := parseField(typ, m)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return out, nil
}

func isInputElement(el any) bool {
	m, ok := el.(map[string]any)
	if !ok {
		return false
	}
	t, _ := m["type"].(string)
	return strings.HasPrefix(t, "input_")
}

func alignName(a Align) string {
	switch a {
	case AlignRight:
		return "RIGHT"
	case AlignCentre:
		return "CENTRE"
	}
	return "LEFT"
}

func parseInput(typ string, m map[string]any) (InputSpec, error) {
	kind, _ := m["type"].(string)
	name, _ := m["name"].(string)
	var in InputSpec
	switch kind {
	case "input_value":
		in.Type = InputTypeValue
	case "input_statement":
		in.Type = InputTypeStatement
	case "input_dummy":
		in.Type = InputTypeDummy
	default:
		return in, schemaErr(typ, name, "unknown input type %q", kind)
	}
	if in.Type != InputTypeDummy && name == "" {
		return in, schemaErr(typ, kind, "input is missing a name")
	}
	in.Name = name
	if s, ok := m["align"].(string); ok {
		a, ok := ParseAlign(s)
		if !ok {
			return in, schemaErr(typ, name, "unknown alignment %q", s)
		}
		in.Align = a
	}
	if c, ok := m["check"]; ok && c != nil {
		check, err := stringList(c)
		if err != nil {
			return in, schemaErr(typ, name, "check: %v", err)
		}
		in.Check = check
	}
	return in, nil
}

// parseField resolves an args entry to a field, following the alt chain
// when the type is unknown.
func parseField(typ string, m map[string]any) (FieldSpec, error) {
	for depth := 0; m != nil && depth < 16; depth++ {
		kind, _ := m["type"].(string)
		name, _ := m["name"].(string)
		f := FieldSpec{Kind: kind, Name: name, Min: math.Inf(-1), Max: math.Inf(1)}
		switch kind {
		case "field_label", "field_label_serializable":
			f.Text = stringify(m["text"])
			f.Serializable = kind == "field_label_serializable"
			return f, nil
		case "field_input":
			f.Text = stringify(m["text"])
			return f, nil
		case "field_number":
			var err error
			if f.Number, err = number(m["value"], 0); err != nil {
				return f, schemaErr(typ, name, "value: %v", err)
			}
			if f.Min, err = number(m["min"], math.Inf(-1)); err != nil {
				return f, schemaErr(typ, name, "min: %v", err)
			}
			if f.Max, err = number(m["max"], math.Inf(1)); err != nil {
				return f, schemaErr(typ, name, "max: %v", err)
			}
			if f.Precision, err = number(m["precision"], 0); err != nil {
				return f, schemaErr(typ, name, "precision: %v", err)
			}
			return f, nil
		case "field_angle":
			var err error
			if f.Number, err = number(m["angle"], 0); err != nil {
				return f, schemaErr(typ, name, "angle: %v", err)
			}
			return f, nil
		case "field_checkbox":
			switch v := m["checked"].(type) {
			case bool:
				f.Checked = v
			case string:
				f.Checked = strings.EqualFold(v, "true")
			}
			return f, nil
		case "field_colour":
			f.Value = stringify(m["colour"])
			return f, nil
		case "field_dropdown":
			opts, err := parseOptions(m["options"])
			if err != nil {
				return f, schemaErr(typ, name, "options: %v", err)
			}
			f.Options = opts
			return f, nil
		case "field_variable":
			f.Text = stringify(m["variable"])
			f.DefaultType = stringify(m["defaultType"])
			if vt, ok := m["variableTypes"]; ok && vt != nil {
				list, err := stringList(vt)
				if err != nil {
					return f, schemaErr(typ, name, "variableTypes: %v", err)
				}
				f.VariableTypes = list
			}
			return f, nil
		}
		alt, ok := m["alt"].(map[string]any)
		if !ok {
			return FieldSpec{}, schemaErr(typ, name, "unknown field type %q", kind)
		}
		m = alt
	}
	return FieldSpec{}, schemaErr(typ, "alt", "alt chain too deep")
}

func parseOptions(v any) ([]Option, error) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("expected a non-empty list")
	}
	out := make([]Option, 0, len(list))
	for _, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("option must be a [text, value] pair")
		}
		text := stringify(pair[0])
		if m, ok := pair[0].(map[string]any); ok {
			text = stringify(m["alt"])
		}
		out = append(out, Option{Text: text, Value: stringify(pair[1])})
	}
	return out, nil
}

func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return append([]string{}, t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a string or a list of strings, got %T", v)
}

func number(v any, def float64) (float64, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case string:
		if strings.EqualFold(t, "infinity") {
			return math.Inf(1), nil
		}
		if strings.EqualFold(t, "-infinity") {
			return math.Inf(-1), nil
		}
		return strconv.ParseFloat(t, 64)
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	}
	return fmt.Sprint(v)
}

// newField instantiates a field from its spec.
func newField(spec FieldSpec) Field {
	switch spec.Kind {
	case "field_input":
		return NewTextInputField(spec.Name, spec.Text)
	case "field_number":
		return NewNumberField(spec.Name, spec.Number, spec.Min, spec.Max, spec.Precision)
	case "field_angle":
		return NewAngleField(spec.Name, spec.Number)
	case "field_checkbox":
		return NewCheckboxField(spec.Name, spec.Checked)
	case "field_colour":
		return NewColourField(spec.Name, spec.Value)
	case "field_dropdown":
		return NewDropdownField(spec.Name, append([]Option(nil), spec.Options...))
	case "field_variable":
		return NewVariableField(spec.Name, spec.Text, spec.DefaultType, spec.VariableTypes)
	case "field_label_serializable":
		return NewSerializableLabel(spec.Name, spec.Text)
	default:
		return NewLabelField(spec.Name, spec.Text)
	}
}
