// Package validate provides small composable rules for checking loosely
// typed records, such as partially filled feeds received from a client.
package validate

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ErrorMessage describes a single validation failure.
type ErrorMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is an ordered list of validation failures. The order matches the
// order the rules were declared in, and duplicates are kept.
type Errors []ErrorMessage

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, m := range e {
		msgs[i] = m.Message
	}
	return strings.Join(msgs, " ")
}

// Record is anything a rule can inspect by field name.
type Record interface {
	// Lookup returns the value stored under field, and whether the field is
	// present at all.
	Lookup(field string) (interface{}, bool)
}

// Map adapts a decoded JSON object to Record.
type Map map[string]interface{}

func (m Map) Lookup(field string) (interface{}, bool) {
	v, ok := m[field]
	return v, ok
}

func label(field string, labels []string) string {
	if len(labels) > 0 && labels[0] != "" {
		return labels[0]
	}
	return field
}

func fail(field, msg string) Errors {
	return Errors{{Field: field, Message: msg}}
}

// NotEmpty fails if field is missing, nil, an empty string or an empty list.
func NotEmpty(r Record, field string, labels ...string) Errors {
	v, ok := r.Lookup(field)
	if !ok || isEmpty(v) {
		return fail(field, fmt.Sprintf("%s is required.", label(field, labels)))
	}
	return nil
}

// Numeric fails if field is present and is not a finite number. A missing
// field passes.
func Numeric(r Record, field string, labels ...string) Errors {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return nil
	}
	if _, ok := number(v); !ok {
		return fail(field, fmt.Sprintf("%s must be a number.", label(field, labels)))
	}
	return nil
}

// String fails if field is present and is not text. A missing field passes.
func String(r Record, field string, labels ...string) Errors {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return nil
	}
	if _, ok := v.(string); !ok {
		return fail(field, fmt.Sprintf("%s must be text.", label(field, labels)))
	}
	return nil
}

// Bool fails if field is present and is not true or false.
func Bool(r Record, field string, labels ...string) Errors {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return nil
	}
	if _, ok := v.(bool); !ok {
		return fail(field, fmt.Sprintf("%s must be true or false.", label(field, labels)))
	}
	return nil
}

// Tuples fails if field is present and is not a list whose entries are each
// a list of exactly size finite numbers.
func Tuples(r Record, field string, size int, labels ...string) Errors {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return nil
	}
	if !isTuples(v, size) {
		return fail(field, fmt.Sprintf("%s must be a list of entries of %d numbers.", label(field, labels), size))
	}
	return nil
}

func isTuples(v interface{}, size int) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i)
		if item.Kind() == reflect.Interface {
			item = item.Elem()
		}
		if !item.IsValid() || (item.Kind() != reflect.Slice && item.Kind() != reflect.Array) || item.Len() != size {
			return false
		}
		for j := 0; j < size; j++ {
			if _, ok := number(item.Index(j).Interface()); !ok {
				return false
			}
		}
	}
	return true
}

// Integer fails if field is a number with a fractional part. Missing fields
// and non-numbers pass; pair it with Numeric.
func Integer(r Record, field string, labels ...string) Errors {
	n, ok := lookupNumber(r, field)
	if ok && n != math.Trunc(n) {
		return fail(field, fmt.Sprintf("%s must be a whole number.", label(field, labels)))
	}
	return nil
}

// NumberGreaterThanOrEqual fails if field is a number below bound.
func NumberGreaterThanOrEqual(r Record, field string, bound float64, labels ...string) Errors {
	n, ok := lookupNumber(r, field)
	if ok && n < bound {
		return fail(field, fmt.Sprintf("%s must be greater than or equal to %v.", label(field, labels), bound))
	}
	return nil
}

// NumberLessThanOrEqual fails if field is a number above bound.
func NumberLessThanOrEqual(r Record, field string, bound float64, labels ...string) Errors {
	n, ok := lookupNumber(r, field)
	if ok && n > bound {
		return fail(field, fmt.Sprintf("%s must be less than or equal to %v.", label(field, labels), bound))
	}
	return nil
}

func lookupNumber(r Record, field string) (float64, bool) {
	v, ok := r.Lookup(field)
	if !ok || v == nil {
		return 0, false
	}
	return number(v)
}

// number converts v to a finite float64.
func number(v interface{}) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case uint:
		n = float64(t)
	case uint32:
		n = float64(t)
	case uint64:
		n = float64(t)
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.IsNil() || rv.Len() == 0
	case reflect.Ptr:
		return rv.IsNil()
	}
	return false
}
