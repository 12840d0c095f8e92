package forms

import (
	"errors"
	"net/url"
	"strconv"

	"gorm.io/gorm"
)

// Data is the clean result of a validated form.
type Data map[string]any

// String returns the string value of key.
func (d Data) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns the boolean value of key.
func (d Data) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Int returns the integer value of key.
func (d Data) Int(key string) int {
	n, _ := d[key].(int)
	return n
}

// Strings returns the list value of key.
func (d Data) Strings(key string) []string {
	list, _ := d[key].([]string)
	return list
}

// FieldError is returned by a form check to attach a message to one field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// StorageError marks a validation step that failed because the database
// did, not because of the submitted value. It is never shown inline.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "forms: storage: " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func isStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}

// Form is a named ordered set of fields.
type Form struct {
	Name   string
	Fields []*Field
	Errors []string
	Data   Data

	check func(Data) error
	index map[string]*Field
	bound bool
	err   error
}

// New builds a form from fields in display order.
func New(name string, fields ...*Field) *Form {
	f := &Form{Name: name, index: make(map[string]*Field, len(fields))}
	for _, field := range fields {
		f.Add(field)
	}
	return f
}

// Add appends a field.
func (f *Form) Add(field *Field) *Form {
	if field == nil {
		return f
	}
	f.Fields = append(f.Fields, field)
	f.index[field.Name] = field
	return f
}

// Check sets the whole-form check. It runs only when every field is valid.
func (f *Form) Check(fn func(Data) error) *Form {
	f.check = fn
	return f
}

// Field returns the named field or nil.
func (f *Form) Field(name string) *Field {
	return f.index[name]
}

// Fill sets initial values for fields that have not been bound.
func (f *Form) Fill(initial Data) *Form {
	for key, value := range initial {
		if field := f.index[key]; field != nil && field.raw == nil {
			field.value = value
		}
	}
	return f
}

// Bound reports whether Validate ran.
func (f *Form) Bound() bool { return f.bound }

// Valid reports whether the last validation succeeded.
func (f *Form) Valid() bool {
	if !f.bound {
		return false
	}
	if len(f.Errors) > 0 {
		return false
	}
	for _, field := range f.Fields {
		if field.HasErrors() {
			return false
		}
	}
	return true
}

// Err returns the storage failure hit by the last validation, if any.
func (f *Form) Err() error { return f.err }

// AddError records a form level message.
func (f *Form) AddError(msg string) { f.Errors = append(f.Errors, msg) }

// Validate binds submitted values, runs field validators and then the whole
// form check. On success Data holds every field value.
func (f *Form) Validate(values url.Values) bool {
	f.bound = true
	f.Errors = nil
	f.Data = nil
	f.err = nil
	for _, field := range f.Fields {
		raw, present := values[field.Name]
		if errBind := field.bind(raw, present); errBind != nil && f.err == nil {
			f.err = errBind
		}
	}
	if f.err != nil {
		return false
	}
	if !f.Valid() {
		return false
	}

	data := make(Data, len(f.Fields))
	for _, field := range f.Fields {
		data[field.Name] = field.value
	}
	if f.check != nil {
		if errCheck := f.check(data); errCheck != nil {
			var fieldErr *FieldError
			if isStorageError(errCheck) {
				f.err = errCheck
			} else if errors.As(errCheck, &fieldErr) && f.index[fieldErr.Field] != nil {
				f.index[fieldErr.Field].AddError(fieldErr.Message)
			} else {
				f.AddError(errCheck.Error())
			}
			return false
		}
	}
	f.Data = data
	return true
}

// ByColumn resolves a submitted value against a unique column of T.
func ByColumn[T any](db *gorm.DB, column string) Resolver {
	return func(raw string) (any, error) {
		var item T
		if errFind := db.Where(column+" = ?", raw).First(&item).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, &StorageError{Err: errFind}
		}
		return &item, nil
	}
}

// ByID resolves a submitted integer primary key of T.
func ByID[T any](db *gorm.DB) Resolver {
	resolve := ByColumn[T](db, "id")
	return func(raw string) (any, error) {
		if _, errConv := strconv.ParseUint(raw, 10, 64); errConv != nil {
			return nil, ErrNotFound
		}
		return resolve(raw)
	}
}
