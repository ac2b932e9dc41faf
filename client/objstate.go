package client

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// DefaultDocument is the document name used by DocumentFields.
const DefaultDocument = "document"

// DocumentFields flattens the exported fields of a struct (or the entries of
// a string-keyed map) into "/<document>/<field>" keys ready for UpdateDoc.
// Struct fields are named by their json tag when present.
func DocumentFields(state any, document string) (map[string]any, error) {
	if document == "" {
		document = DefaultDocument
	}
	v := reflect.ValueOf(state)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("state is nil")
		}
		v = v.Elem()
	}

	out := make(map[string]any)
	key := func(name string) string { return "/" + document + "/" + name }

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag, ok := f.Tag.Lookup("json"); ok {
				tagName, _, _ := strings.Cut(tag, ",")
				if tagName == "-" {
					continue
				}
				if tagName != "" {
					name = tagName
				}
			}
			out[key(name)] = v.Field(i).Interface()
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("state map must have string keys, got %s", v.Type().Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			out[key(iter.Key().String())] = iter.Value().Interface()
		}
	default:
		return nil, fmt.Errorf("state must be a struct or a map, got %s", v.Kind())
	}
	return out, nil
}

// UpdateState writes the fields of state into the default document.
func (c *Client) UpdateState(state any) error {
	fields, err := DocumentFields(state, DefaultDocument)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	return c.UpdateDoc(fields)
}

// FormatState renders the flattened state as indented JSON.
func FormatState(state any) string {
	fields, err := DocumentFields(state, DefaultDocument)
	if err != nil {
		return err.Error()
	}
	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return fmt.Sprint(fields)
	}
	return string(out)
}
