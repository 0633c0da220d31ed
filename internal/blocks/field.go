package blocks

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is an editable value slot on a block. The set of kinds is closed:
// every implementation lives in this file.
type Field interface {
	Name() string
	// Text is what a user sees.
	Text() string
	// Value is the language-neutral value used by generators and XML.
	Value() string
	SetValue(v string) error
	// Serializable reports whether the field is written to XML.
	Serializable() bool
	Prefix() string
	Suffix() string
	SourceBlock() *Block

	base() *fieldBase
	normalize(v string) (string, error)
	textFor(v string) string
}

// Validator may rewrite a candidate value or reject it by returning false.
type Validator func(v string) (string, bool)

type fieldBase struct {
	name      string
	value     string
	prefix    string
	suffix    string
	validator Validator
	block     *Block
}

func (f *fieldBase) Name() string             { return f.name }
func (f *fieldBase) Value() string            { return f.value }
func (f *fieldBase) Prefix() string           { return f.prefix }
func (f *fieldBase) Suffix() string           { return f.suffix }
func (f *fieldBase) SourceBlock() *Block      { return f.block }
func (f *fieldBase) base() *fieldBase         { return f }
func (f *fieldBase) Serializable() bool       { return f.name != "" }
func (f *fieldBase) SetValidator(v Validator) { f.validator = v }

// setFieldValue runs the kind's normalization and the optional validator,
// then stores the value and fires a change event. Rejected values leave the
// field untouched.
func setFieldValue(f Field, v string) error {
	b := f.base()
	nv, err := f.normalize(v)
	if err != nil {
		return err
	}
	if b.validator != nil {
		out, ok := b.validator(nv)
		if !ok {
			return fmt.Errorf("%w: %q rejected by validator for %s", ErrFieldValue, v, b.name)
		}
		if nv, err = f.normalize(out); err != nil {
			return err
		}
	}
	old := b.value
	if old == nv {
		return nil
	}
	b.value = nv
	if blk := b.block; blk != nil {
		blk.fire(Event{Type: EventChange, BlockID: blk.id, Element: ElementField, Name: b.name, OldValue: old, NewValue: nv})
	}
	return nil
}

// ── Label ───────────────────────────────────────────────────

// LabelField is non-editable display text.
type LabelField struct {
	fieldBase
	serializable bool
}

func NewLabelField(name, text string) *LabelField {
	return &LabelField{fieldBase: fieldBase{name: name, value: text}}
}

// NewSerializableLabel is a label whose text is saved to XML.
func NewSerializableLabel(name, text string) *LabelField {
	return &LabelField{fieldBase: fieldBase{name: name, value: text}, serializable: true}
}

func (f *LabelField) Text() string                       { return f.value }
func (f *LabelField) SetValue(v string) error            { return setFieldValue(f, v) }
func (f *LabelField) Serializable() bool                 { return f.serializable && f.name != "" }
func (f *LabelField) normalize(v string) (string, error) { return v, nil }
func (f *LabelField) textFor(v string) string            { return v }

// ── Text input ──────────────────────────────────────────────

type TextInputField struct {
	fieldBase
}

func NewTextInputField(name, text string) *TextInputField {
	return &TextInputField{fieldBase: fieldBase{name: name, value: text}}
}

func (f *TextInputField) Text() string                       { return f.value }
func (f *TextInputField) SetValue(v string) error            { return setFieldValue(f, v) }
func (f *TextInputField) normalize(v string) (string, error) { return v, nil }
func (f *TextInputField) textFor(v string) string            { return v }

// ── Number ──────────────────────────────────────────────────

// NumberField holds a decimal. Out of range values are clamped, values are
// rounded to Precision when it is non-zero, and unparseable text is rejected.
type NumberField struct {
	fieldBase
	Min, Max  float64
	Precision float64
}

func NewNumberField(name string, value, min, max, precision float64) *NumberField {
	f := &NumberField{fieldBase: fieldBase{name: name}, Min: min, Max: max, Precision: precision}
	if math.IsNaN(min) || math.IsInf(min, 0) {
		f.Min = math.Inf(-1)
	}
	if math.IsNaN(max) || math.IsInf(max, 0) {
		f.Max = math.Inf(1)
	}
	f.value, _ = f.normalize(formatNumber(value))
	return f
}

func (f *NumberField) Text() string            { return f.value }
func (f *NumberField) SetValue(v string) error { return setFieldValue(f, v) }
func (f *NumberField) textFor(v string) string { return v }

// Number returns the numeric value.
func (f *NumberField) Number() float64 {
	n, _ := strconv.ParseFloat(f.value, 64)
	return n
}

func (f *NumberField) normalize(v string) (string, error) {
	s := strings.TrimSpace(v)
	s = strings.ReplaceAll(s, ",", "")
	switch strings.ToLower(s) {
	case "infinity", "inf", "+infinity":
		s = "Inf"
	case "-infinity", "-inf":
		s = "-Inf"
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) {
		return "", fmt.Errorf("%w: %q is not a number", ErrFieldValue, v)
	}
	if f.Precision != 0 {
		n = math.Round(n/f.Precision) * f.Precision
	}
	n = math.Max(f.Min, math.Min(f.Max, n))
	return formatNumber(n), nil
}

func formatNumber(n float64) string {
	switch {
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(n, 'f', -1, 64)
	if s == "-0" {
		s = "0"
	}
	return s
}

// ── Angle ───────────────────────────────────────────────────

// AngleField is a number of degrees wrapped into [0, 360).
type AngleField struct {
	fieldBase
}

func NewAngleField(name string, degrees float64) *AngleField {
	f := &AngleField{fieldBase: fieldBase{name: name}}
	f.value, _ = f.normalize(formatNumber(degrees))
	return f
}

func (f *AngleField) Text() string            { return f.value + "°" }
func (f *AngleField) SetValue(v string) error { return setFieldValue(f, v) }
func (f *AngleField) textFor(v string) string { return v + "°" }

func (f *AngleField) normalize(v string) (string, error) {
	n, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "°"), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", fmt.Errorf("%w: %q is not an angle", ErrFieldValue, v)
	}
	n = math.Mod(n, 360)
	if n < 0 {
		n += 360
	}
	return formatNumber(n), nil
}

// ── Checkbox ────────────────────────────────────────────────

// CheckboxField stores "TRUE" or "FALSE".
type CheckboxField struct {
	fieldBase
}

func NewCheckboxField(name string, checked bool) *CheckboxField {
	f := &CheckboxField{fieldBase: fieldBase{name: name, value: "FALSE"}}
	if checked {
		f.value = "TRUE"
	}
	return f
}

func (f *CheckboxField) Text() string            { return f.value }
func (f *CheckboxField) SetValue(v string) error { return setFieldValue(f, v) }
func (f *CheckboxField) textFor(v string) string { return v }
func (f *CheckboxField) Checked() bool           { return f.value == "TRUE" }

func (f *CheckboxField) normalize(v string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "TRUE":
		return "TRUE", nil
	case "FALSE":
		return "FALSE", nil
	}
	return "", fmt.Errorf("%w: %q is not TRUE or FALSE", ErrFieldValue, v)
}

// ── Colour ──────────────────────────────────────────────────

// ColourField stores a lower-case #rrggbb string.
type ColourField struct {
	fieldBase
}

func NewColourField(name, colour string) *ColourField {
	f := &ColourField{fieldBase: fieldBase{name: name, value: "#ffffff"}}
	if v, err := f.normalize(colour); err == nil {
		f.value = v
	}
	return f
}

func (f *ColourField) Text() string            { return f.value }
func (f *ColourField) SetValue(v string) error { return setFieldValue(f, v) }
func (f *ColourField) textFor(v string) string { return v }

func (f *ColourField) normalize(v string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(v))
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return "", fmt.Errorf("%w: %q is not a colour", ErrFieldValue, v)
	}
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return "", fmt.Errorf("%w: %q is not a colour", ErrFieldValue, v)
	}
	return "#" + hex, nil
}

// ── Dropdown ────────────────────────────────────────────────

// Option is one dropdown entry: display text and language-neutral value.
type Option struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// DropdownField holds one of a fixed or generated option list.
type DropdownField struct {
	fieldBase
	options   []Option
	generator func() []Option
}

func NewDropdownField(name string, options []Option) *DropdownField {
	f := &DropdownField{fieldBase: fieldBase{name: name}, options: options}
	if len(options) > 0 {
		f.value = options[0].Value
	}
	f.splitAffixes()
	return f
}

// NewDynamicDropdown builds a dropdown whose options are computed on demand.
func NewDynamicDropdown(name string, generator func() []Option) *DropdownField {
	f := &DropdownField{fieldBase: fieldBase{name: name}, generator: generator}
	if opts := generator(); len(opts) > 0 {
		f.value = opts[0].Value
	}
	return f
}

func (f *DropdownField) Options() []Option {
	if f.generator != nil {
		return f.generator()
	}
	return append([]Option(nil), f.options...)
}

func (f *DropdownField) Text() string            { return f.textFor(f.value) }
func (f *DropdownField) SetValue(v string) error { return setFieldValue(f, v) }

func (f *DropdownField) textFor(v string) string {
	for _, o := range f.Options() {
		if o.Value == v {
			return o.Text
		}
	}
	return v
}

func (f *DropdownField) normalize(v string) (string, error) {
	for _, o := range f.Options() {
		if o.Value == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not an option of %s", ErrFieldValue, v, f.name)
}

// splitAffixes moves a shared leading or trailing word of all option texts
// into the field's prefix or suffix.
func (f *DropdownField) splitAffixes() {
	if len(f.options) < 2 {
		return
	}
	texts := make([]string, len(f.options))
	for i, o := range f.options {
		texts[i] = o.Text
	}
	prefix := commonWordPrefix(texts)
	suffix := commonWordSuffix(texts)
	if prefix == "" && suffix == "" {
		return
	}
	for i := range f.options {
		t := f.options[i].Text
		t = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t, prefix), suffix))
		f.options[i].Text = t
	}
	f.prefix = strings.TrimSpace(prefix)
	f.suffix = strings.TrimSpace(suffix)
}

func commonWordPrefix(texts []string) string {
	first := strings.Fields(texts[0])
	n := len(first)
	for _, t := range texts[1:] {
		words := strings.Fields(t)
		i := 0
		for i < n && i < len(words) && words[i] == first[i] {
			i++
		}
		n = i
	}
	// keep at least one word of every option
	for _, t := range texts {
		if len(strings.Fields(t)) <= n {
			n = len(strings.Fields(t)) - 1
		}
	}
	if n <= 0 {
		return ""
	}
	return strings.Join(first[:n], " ") + " "
}

func commonWordSuffix(texts []string) string {
	first := strings.Fields(texts[0])
	n := len(first)
	for _, t := range texts[1:] {
		words := strings.Fields(t)
		i := 0
		for i < n && i < len(words) && words[len(words)-1-i] == first[len(first)-1-i] {
			i++
		}
		n = i
	}
	for _, t := range texts {
		if len(strings.Fields(t)) <= n {
			n = len(strings.Fields(t)) - 1
		}
	}
	if n <= 0 {
		return ""
	}
	return " " + strings.Join(first[len(first)-n:], " ")
}

// ── Variable ────────────────────────────────────────────────

// VariableField references a workspace variable by id. Its text is the
// variable's current name, so renames need no field updates.
type VariableField struct {
	fieldBase
	defaultName   string
	defaultType   string
	variableTypes []string
}

func NewVariableField(name, defaultName, defaultType string, variableTypes []string) *VariableField {
	return &VariableField{
		fieldBase:     fieldBase{name: name},
		defaultName:   defaultName,
		defaultType:   defaultType,
		variableTypes: variableTypes,
	}
}

func (f *VariableField) DefaultName() string { return f.defaultName }
func (f *VariableField) DefaultType() string { return f.defaultType }

// Variable returns the referenced model, or nil when unbound.
func (f *VariableField) Variable() *VariableModel {
	if f.block == nil || f.value == "" {
		return nil
	}
	return f.block.ws.variables.GetVariableByID(f.value)
}

func (f *VariableField) Text() string            { return f.textFor(f.value) }
func (f *VariableField) SetValue(v string) error { return setFieldValue(f, v) }

func (f *VariableField) textFor(id string) string {
	if f.block != nil {
		if m := f.block.ws.variables.GetVariableByID(id); m != nil {
			return m.Name
		}
	}
	return ""
}

func (f *VariableField) normalize(id string) (string, error) {
	if f.block == nil {
		return id, nil
	}
	m := f.block.ws.variables.GetVariableByID(id)
	if m == nil {
		return "", fmt.Errorf("%w: id %q", ErrVariableNotFound, id)
	}
	if len(f.variableTypes) > 0 {
		ok := false
		for _, t := range f.variableTypes {
			if t == m.Type {
				ok = true
				break
			}
		}
		if !ok {
			return "", fmt.Errorf("%w: variable %q has type %q", ErrFieldValue, m.Name, m.Type)
		}
	}
	return id, nil
}

// bind creates or looks up the default variable once the field has a block.
func (f *VariableField) bind() error {
	if f.value != "" || f.block == nil {
		return nil
	}
	name := f.defaultName
	if name == "" {
		name = "item"
	}
	m, err := f.block.ws.variables.GetOrCreate(name, f.defaultType)
	if err != nil {
		return err
	}
	f.value = m.ID
	return nil
}

// Options lists every variable of an accepted type as dropdown options.
func (f *VariableField) Options() []Option {
	if f.block == nil {
		return nil
	}
	var out []Option
	for _, m := range f.block.ws.variables.All() {
		if len(f.variableTypes) > 0 {
			match := false
			for _, t := range f.variableTypes {
				if t == m.Type {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, Option{Text: m.Name, Value: m.ID})
	}
	return out
}
