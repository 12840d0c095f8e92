package forms

import (
	"github.com/UfSoft/ILog-OLD/internal/config"
)

// ConfigField builds a field from a configuration variable. name is the form
// field name; key is the configuration key it edits.
func ConfigField(schema config.Schema, key, name string, opts ...Option) *Field {
	v, ok := schema[key]
	if !ok {
		return nil
	}
	base := []Option{Help(v.Help), DefaultFunc(v.DefaultValue)}
	var field *Field
	switch v.Kind {
	case config.KindBool:
		field = Bool(name, v.Label, base...)
	case config.KindInt:
		field = Int(name, v.Label, append(base, ParseWith(v.Parse))...)
	case config.KindChoice:
		choices := make([]Choice, 0, len(v.Choices))
		for _, choice := range v.Choices {
			choices = append(choices, Choice{Value: choice.Value, Label: choice.Label})
		}
		field = SingleChoice(name, v.Label, append(base, WithChoices(choices...))...)
	default:
		field = Text(name, v.Label, append(base, ParseWith(v.Parse))...)
	}
	for _, opt := range opts {
		opt(field)
	}
	return field
}

// ConfigForm is a form whose fields edit configuration keys.
type ConfigForm struct {
	*Form
	keys map[string]string
}

// NewConfigForm builds a form with one field per binding, pre-filled from store.
func NewConfigForm(name string, store *config.Store, fields []ConfigBinding) *ConfigForm {
	cf := &ConfigForm{Form: New(name), keys: make(map[string]string, len(fields))}
	initial := Data{}
	for _, binding := range fields {
		field := ConfigField(store.Schema(), binding.Key, binding.Name, binding.Options...)
		if field == nil {
			continue
		}
		if binding.Label != "" {
			field.Label = binding.Label
		}
		cf.Add(field)
		cf.keys[binding.Name] = binding.Key
		if value, errValue := store.Value(binding.Key); errValue == nil {
			initial[binding.Name] = value
		}
	}
	cf.Fill(initial)
	return cf
}

// ConfigBinding ties a form field to a configuration key.
type ConfigBinding struct {
	Name    string
	Key     string
	Label   string
	Options []Option
}

// Apply writes the validated data in one configuration transaction.
func (cf *ConfigForm) Apply(store *config.Store) error {
	tx := store.Edit()
	for _, field := range cf.Fields {
		key := cf.keys[field.Name]
		if field.Widget == WidgetPassword && cf.Data.String(field.Name) == "" {
			continue
		}
		if errSet := tx.Set(key, cf.Data[field.Name]); errSet != nil {
			return errSet
		}
	}
	return tx.Commit(false)
}
