package core

import (
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// ValidationErrorFromMap returns a *ValidationError holding `fields` sorted by key, nil when empty.
func ValidationErrorFromMap(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	flds := make([]FieldError, 0, len(fields))
	for fld, msg := range fields {
		flds = append(flds, FieldError{Field: fld, Error: msg})
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return NewValidationError(nil, flds...)
}

// FieldErrors flattens validation errors into a map of field path -> translated message.
// Nested struct fields are keyed by their JSON path without the root struct name (eg: "schoolData.name").
// It returns nil when err holds no field errors.
func FieldErrors(err error) map[string]string {
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[fieldPath(vErr)] = vErr.Translate(Translator)
		}
		return fldErrs
	case *ValidationError:
		if len(origErr.Fields) == 0 {
			return nil
		}
		fldErrs := make(map[string]string, len(origErr.Fields))
		for _, fErr := range origErr.Fields {
			fldErrs[fErr.Field] = fErr.Error
		}
		return fldErrs
	}
	return nil
}

// fieldPath drops the segments whose JSON and Go names are identical: the root struct and embedded structs.
func fieldPath(fe validator.FieldError) string {
	ns, sns := strings.Split(fe.Namespace(), "."), strings.Split(fe.StructNamespace(), ".")
	if len(ns) != len(sns) {
		return fe.Field()
	}
	path := make([]string, 0, len(ns))
	for i := range ns {
		if ns[i] != sns[i] {
			path = append(path, ns[i])
		}
	}
	if len(path) == 0 {
		return fe.Field()
	}
	return strings.Join(path, ".")
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
