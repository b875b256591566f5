package loganalytics

import (
	"fmt"
	"reflect"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// maxLogTypeLen is the Data Collector API's limit on the Log-Type tag.
const maxLogTypeLen = 100

var logTypeRe = regexp.MustCompile(`^[A-Za-z]+$`)

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

func validateLogType(logType string) error {
	if len(logType) > maxLogTypeLen || !logTypeRe.MatchString(logType) {
		return &InvalidLogTypeError{LogType: logType}
	}
	return nil
}

// validateRecord checks that every field of a record carries one of the
// types the Data Collector API ingests: string, bool, float, time.Time
// or uuid.UUID. Records are structs (exported fields only), pointers to
// structs, or maps keyed by string. Nested structures are rejected, not
// flattened.
func validateRecord(record any) error {
	if record == nil {
		return ErrNilRecords
	}
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ErrNilRecords
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		return validateStructRecord(v)
	case reflect.Map:
		return validateMapRecord(v)
	default:
		return &InvalidFieldError{
			RecordType: v.Type().String(),
			Field:      "(record)",
			FieldType:  v.Type().String(),
		}
	}
}

func validateStructRecord(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		ft := f.Type
		// An interface-typed field is judged by the value it holds.
		if ft.Kind() == reflect.Interface {
			fv := v.Field(i)
			if fv.IsNil() {
				return &InvalidFieldError{RecordType: t.String(), Field: f.Name, FieldType: "nil"}
			}
			if !allowedFieldType(fv.Elem().Type()) {
				return &InvalidFieldError{RecordType: t.String(), Field: f.Name, FieldType: fv.Elem().Type().String()}
			}
			continue
		}
		if !allowedFieldType(ft) {
			return &InvalidFieldError{RecordType: t.String(), Field: f.Name, FieldType: ft.String()}
		}
	}
	return nil
}

func validateMapRecord(v reflect.Value) error {
	t := v.Type()
	if t.Key().Kind() != reflect.String {
		return &InvalidFieldError{RecordType: t.String(), Field: "(record)", FieldType: t.String()}
	}
	iter := v.MapRange()
	for iter.Next() {
		name := iter.Key().String()
		val := iter.Value()
		if val.Kind() == reflect.Interface {
			if val.IsNil() {
				return &InvalidFieldError{RecordType: t.String(), Field: name, FieldType: "nil"}
			}
			val = val.Elem()
		}
		if !allowedFieldType(val.Type()) {
			return &InvalidFieldError{RecordType: t.String(), Field: name, FieldType: val.Type().String()}
		}
	}
	return nil
}

// allowedFieldType reports whether t is one of the ingestible scalar
// types. A single level of pointer is unwrapped so optional fields can
// be expressed as *string, *float64 and so on.
func allowedFieldType(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType || t == uuidType {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool, reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// validateBatch confirms records is a non-empty slice or array and
// validates every element. It returns the reflected batch so the caller
// does not reflect twice.
func validateBatch(records any) (reflect.Value, error) {
	if records == nil {
		return reflect.Value{}, ErrNilRecords
	}
	v := reflect.ValueOf(records)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, ErrNilRecords
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("loganalytics: records must be a slice or array, got %T", records)
	}
	if (v.Kind() == reflect.Slice && v.IsNil()) || v.Len() == 0 {
		return reflect.Value{}, ErrNilRecords
	}
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Interface {
			if elem.IsNil() {
				return reflect.Value{}, ErrNilRecords
			}
			elem = elem.Elem()
		}
		if err := validateRecord(elem.Interface()); err != nil {
			return reflect.Value{}, err
		}
	}
	return v, nil
}
