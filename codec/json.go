package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strings"
)

// JSON is the default codec. Values json cannot represent (channels, funcs,
// complex numbers, NaN and infinities) are written as their fmt string form
// instead of failing the whole frame.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err == nil {
		return data, nil
	}
	var unsupportedType *json.UnsupportedTypeError
	var unsupportedValue *json.UnsupportedValueError
	if !errors.As(err, &unsupportedType) && !errors.As(err, &unsupportedValue) {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	data, err = json.Marshal(sanitize(reflect.ValueOf(v)))
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// Decode parses exactly one JSON value. Integral numbers come back as int64,
// others as float64.
func (JSON) Decode(data []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode frame: %w", ErrTrailingData)
	}
	return normalize(v)
}

var ErrTrailingData = errors.New("trailing data after JSON value")

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode frame: number %s: %w", x, err)
		}
		return f, nil
	case map[string]any:
		for k, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			x[k] = n
		}
		return x, nil
	case []any:
		for i, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			x[i] = n
		}
		return x, nil
	}
	return v, nil
}

// sanitize rebuilds v as a tree json can always marshal.
func sanitize(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Type().Implements(marshalerType) {
		if data, err := json.Marshal(v.Interface()); err == nil {
			return json.RawMessage(data)
		}
		return fmt.Sprint(v.Interface())
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitize(v.Elem())

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitize(iter.Value())
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = sanitize(v.Index(i))
		}
		return out

	case reflect.Struct:
		return sanitizeStruct(v)

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f

	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return fmt.Sprint(v.Interface())
	}

	if v.CanInterface() {
		return v.Interface()
	}
	return fmt.Sprint(v)
}

// sanitizeStruct follows the json tag names of exported fields. Untagged
// embedded structs of exported types are flattened into the parent, whose own fields win on a
// name clash.
func sanitizeStruct(v reflect.Value) map[string]any {
	t := v.Type()
	out := make(map[string]any, t.NumField())
	var promoted []map[string]any
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, tagged := field.Tag.Lookup("json")
		if field.Anonymous && !tagged && field.IsExported() {
			if m, ok := embeddedFields(v.Field(i)); ok {
				promoted = append(promoted, m)
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		name := field.Name
		omitEmpty := false
		if tagged {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fv := v.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		out[name] = sanitize(fv)
	}
	for _, m := range promoted {
		for name, value := range m {
			if _, exists := out[name]; !exists {
				out[name] = value
			}
		}
	}
	return out
}

// embeddedFields sanitizes an embedded struct (or pointer to one). A nil
// pointer contributes no fields.
func embeddedFields(fv reflect.Value) (map[string]any, bool) {
	ft := fv.Type()
	if ft.Kind() == reflect.Pointer {
		if ft.Elem().Kind() != reflect.Struct {
			return nil, false
		}
		if fv.IsNil() {
			return map[string]any{}, true
		}
		fv = fv.Elem()
	}
	if fv.Kind() != reflect.Struct || fv.Type().Implements(marshalerType) {
		return nil, false
	}
	return sanitizeStruct(fv), true
}

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
