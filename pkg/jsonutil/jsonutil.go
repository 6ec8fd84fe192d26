// Package jsonutil provides a high-performance JSON encoding/decoding wrapper.
// It uses github.com/go-json-experiment/json, which is faster than
// encoding/json and exposes the token-level jsontext API needed to read
// objects in document order.
//
// Usage:
//
//	import "github.com/portsweep/portsweep/pkg/jsonutil"
//
//	err := jsonutil.Unmarshal(data, &v)
//	fields, err := jsonutil.OrderedFields(raw)
package jsonutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// ErrNotObject is returned by OrderedFields when the input is not a JSON object.
var ErrNotObject = errors.New("jsonutil: value is not an object")

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent returns the indented JSON encoding of v.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, jsontext.WithIndent(indent))
}

// Field is one member of a JSON object, in document order.
type Field struct {
	Key   string
	Value jsontext.Value
}

// OrderedFields returns the members of a JSON object in the order they
// appear in data. Go maps lose that order, which matters for inputs whose
// meaning depends on it (command templates assembled from object values).
func OrderedFields(data []byte) ([]Field, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	tok, err := dec.ReadToken()
	if err != nil {
		return nil, err
	}
	if tok.Kind() != '{' {
		return nil, ErrNotObject
	}

	var fields []Field
	for dec.PeekKind() != '}' {
		tok, err := dec.ReadToken()
		if err != nil {
			return nil, err
		}
		// tok is voided by the next decoder call
		key := tok.String()
		val, err := dec.ReadValue()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: val.Clone()})
	}
	if _, err := dec.ReadToken(); err != nil {
		return nil, err
	}
	return fields, nil
}

// WriteFile marshals v with two-space indentation and replaces path
// atomically, so readers never observe a half-written file.
func WriteFile(path string, v any) error {
	data, err := MarshalIndent(v, "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
