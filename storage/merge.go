package storage

import (
	"reflect"
	"strings"
)

// PartialFields returns the JSON-keyed values of partial's non-zero fields.
// Stores use this to implement Merge: the returned map is overlaid onto the
// stored document. Zero-value fields are treated as "not set" and skipped,
// unless the field is a non-nil pointer. Fields tagged `json:"-"` and
// unexported fields are ignored.
func PartialFields(partial Model) (map[string]interface{}, error) {
	if err := ValidateReceiver(partial); err != nil {
		return nil, err
	}

	v := reflect.ValueOf(partial)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, ErrInvalidModel
	}

	fields := map[string]interface{}{}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := jsonKey(f)
		if key == "-" {
			continue
		}
		fv := v.Field(i)
		if !shouldInclude(fv) {
			continue
		}
		fields[key] = fv.Interface()
	}
	return fields, nil
}

// jsonKey returns the JSON object key for a struct field.
func jsonKey(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return f.Name
	}
	return name
}

// shouldInclude returns true for non-zero values and non-nil pointers.
func shouldInclude(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return !v.IsNil()
	default:
		return !reflect.DeepEqual(v.Interface(), reflect.Zero(v.Type()).Interface())
	}
}
