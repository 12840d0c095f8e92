package forms

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the base type behaviour of a field.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindInt
	KindChoice
	KindMultiChoice
	KindModel
)

// Widget is a presentation hint for templates.
type Widget string

const (
	WidgetText       Widget = "text"
	WidgetPassword   Widget = "password"
	WidgetTextarea   Widget = "textarea"
	WidgetCheckbox   Widget = "checkbox"
	WidgetSelect     Widget = "select"
	WidgetRadio      Widget = "radio"
	WidgetCheckboxes Widget = "checkboxes"
	WidgetHidden     Widget = "hidden"
)

var (
	// ErrNotFound is returned by model resolvers when nothing matches.
	ErrNotFound = errors.New("No matching entry found.")

	errRequired      = errors.New("This field is required.")
	errInvalidChoice = errors.New("Please enter a valid choice.")
	errInvalidInt    = errors.New("Please enter a whole number.")
)

// Choice is a selectable option.
type Choice struct {
	Value string
	Label string
}

// Validator checks a converted value.
type Validator func(value any) error

// Resolver turns a submitted primitive into a persisted entity.
type Resolver func(raw string) (any, error)

// Field describes one form input. A field is a base Kind plus a default
// policy, validators and an optional custom parser.
type Field struct {
	Name       string
	Label      string
	Help       string
	Kind       Kind
	Widget     Widget
	Required   bool
	MaxLength  int
	Choices    []Choice
	Validators []Validator

	defaultFn func() any
	parse     func(raw string) (any, error)
	resolve   Resolver

	raw    []string
	value  any
	Errors []string
}

// Option configures a field.
type Option func(*Field)

// Required marks the field as mandatory.
func Required() Option { return func(f *Field) { f.Required = true } }

// MaxLength limits text length in runes.
func MaxLength(n int) Option { return func(f *Field) { f.MaxLength = n } }

// Help sets the help text.
func Help(text string) Option { return func(f *Field) { f.Help = text } }

// WithWidget overrides the widget hint.
func WithWidget(w Widget) Option { return func(f *Field) { f.Widget = w } }

// WithChoices sets the allowed values.
func WithChoices(choices ...Choice) Option {
	return func(f *Field) { f.Choices = append([]Choice(nil), choices...) }
}

// Validate appends validators.
func Validate(validators ...Validator) Option {
	return func(f *Field) { f.Validators = append(f.Validators, validators...) }
}

// Default sets a static default.
func Default(value any) Option {
	return func(f *Field) { f.defaultFn = func() any { return value } }
}

// DefaultFunc sets a computed default, evaluated every time the form is built.
func DefaultFunc(fn func() any) Option { return func(f *Field) { f.defaultFn = fn } }

// ParseWith replaces the base conversion of the field kind.
func ParseWith(fn func(raw string) (any, error)) Option { return func(f *Field) { f.parse = fn } }

// StringValidator adapts a string check to a Validator. Empty strings pass.
func StringValidator(fn func(string) error) Validator {
	return func(value any) error {
		s, ok := value.(string)
		if !ok || s == "" {
			return nil
		}
		return fn(s)
	}
}

func newField(kind Kind, widget Widget, name, label string, opts []Option) *Field {
	f := &Field{Name: name, Label: label, Kind: kind, Widget: widget}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Text builds a single line text field.
func Text(name, label string, opts ...Option) *Field {
	return newField(KindText, WidgetText, name, label, opts)
}

// Password builds a password field. It is never pre-filled.
func Password(name, label string, opts ...Option) *Field {
	return newField(KindText, WidgetPassword, name, label, opts)
}

// Textarea builds a multi line text field.
func Textarea(name, label string, opts ...Option) *Field {
	return newField(KindText, WidgetTextarea, name, label, opts)
}

// Hidden builds a hidden text field.
func Hidden(name string, opts ...Option) *Field {
	return newField(KindText, WidgetHidden, name, "", opts)
}

// Bool builds a checkbox.
func Bool(name, label string, opts ...Option) *Field {
	return newField(KindBool, WidgetCheckbox, name, label, opts)
}

// Int builds an integer field.
func Int(name, label string, opts ...Option) *Field {
	return newField(KindInt, WidgetText, name, label, opts)
}

// SingleChoice builds a select box.
func SingleChoice(name, label string, opts ...Option) *Field {
	return newField(KindChoice, WidgetSelect, name, label, opts)
}

// MultiChoice builds a checkbox group.
func MultiChoice(name, label string, opts ...Option) *Field {
	return newField(KindMultiChoice, WidgetCheckboxes, name, label, opts)
}

// Model builds a field resolved through resolve.
func Model(name, label string, resolve Resolver, opts ...Option) *Field {
	f := newField(KindModel, WidgetSelect, name, label, opts)
	f.resolve = resolve
	return f
}

// DefaultValue evaluates the default policy.
func (f *Field) DefaultValue() any {
	if f.defaultFn != nil {
		return f.defaultFn()
	}
	switch f.Kind {
	case KindBool:
		return false
	case KindInt:
		return 0
	case KindMultiChoice:
		return []string{}
	case KindModel:
		return nil
	default:
		return ""
	}
}

// Value returns the bound value, or the default when nothing was bound.
func (f *Field) Value() any {
	if f.value == nil && f.raw == nil {
		return f.DefaultValue()
	}
	return f.value
}

// Display renders the current value for an input element.
func (f *Field) Display() string {
	if f.Widget == WidgetPassword {
		return ""
	}
	if f.raw != nil && len(f.Errors) > 0 {
		return first(f.raw)
	}
	return formatValue(f.Value())
}

// Checked reports the checkbox state.
func (f *Field) Checked() bool {
	b, _ := f.Value().(bool)
	return b
}

// Selected reports whether choice is currently selected.
func (f *Field) Selected(choice string) bool {
	switch v := f.Value().(type) {
	case []string:
		for _, item := range v {
			if item == choice {
				return true
			}
		}
		return false
	default:
		return formatValue(v) == choice
	}
}

// HasErrors reports whether validation failed for the field.
func (f *Field) HasErrors() bool { return len(f.Errors) > 0 }

// AddError records a validation message.
func (f *Field) AddError(msg string) { f.Errors = append(f.Errors, msg) }

// bind converts and validates raw. Storage failures are returned instead of
// being recorded as messages.
func (f *Field) bind(raw []string, present bool) error {
	f.Errors = nil
	if raw == nil {
		raw = []string{}
	}
	f.raw = raw
	value, err := f.convert(raw, present)
	if err != nil {
		f.value = nil
		if isStorageError(err) {
			return err
		}
		f.AddError(err.Error())
		return nil
	}
	f.value = value
	if value == nil {
		return nil
	}
	for _, validator := range f.Validators {
		if errValidate := validator(value); errValidate != nil {
			if isStorageError(errValidate) {
				return errValidate
			}
			f.AddError(errValidate.Error())
		}
	}
	return nil
}

func (f *Field) convert(raw []string, present bool) (any, error) {
	text := strings.TrimSpace(first(raw))
	if f.Widget == WidgetPassword {
		text = first(raw)
	}

	switch f.Kind {
	case KindBool:
		if f.parse != nil {
			return f.parse(text)
		}
		if !present {
			return false, nil
		}
		switch strings.ToLower(text) {
		case "", "0", "false", "no", "off":
			return false, nil
		default:
			return true, nil
		}
	case KindMultiChoice:
		out := make([]string, 0, len(raw))
		seen := make(map[string]struct{})
		for _, item := range raw {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			if _, dup := seen[item]; dup {
				continue
			}
			if !f.hasChoice(item) {
				return nil, errInvalidChoice
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
		if f.Required && len(out) == 0 {
			return nil, errRequired
		}
		return out, nil
	}

	if text == "" {
		if f.Required {
			return nil, errRequired
		}
		switch f.Kind {
		case KindModel:
			return nil, nil
		case KindInt:
			if f.parse == nil {
				return f.DefaultValue(), nil
			}
		}
	}
	if f.MaxLength > 0 && len([]rune(text)) > f.MaxLength {
		return nil, fmt.Errorf("Ensure this value has at most %d characters.", f.MaxLength)
	}
	if f.parse != nil {
		return f.parse(text)
	}

	switch f.Kind {
	case KindInt:
		n, errConv := strconv.Atoi(text)
		if errConv != nil {
			return nil, errInvalidInt
		}
		return n, nil
	case KindChoice:
		if text != "" && !f.hasChoice(text) {
			return nil, errInvalidChoice
		}
		return text, nil
	case KindModel:
		if f.resolve == nil {
			return nil, ErrNotFound
		}
		entity, errResolve := f.resolve(text)
		if errResolve != nil {
			return nil, errResolve
		}
		return entity, nil
	default:
		return text, nil
	}
}

func (f *Field) hasChoice(value string) bool {
	if len(f.Choices) == 0 {
		return true
	}
	for _, choice := range f.Choices {
		if choice.Value == value {
			return true
		}
	}
	return false
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case interface{ FormValue() string }:
		return v.FormValue()
	default:
		return fmt.Sprint(v)
	}
}
