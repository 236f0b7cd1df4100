package tables

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Input is a caller-supplied table selection.
// Sealed: only One, Many and Set implement it.
type Input interface {
	tableInput()
}

// One names a single table.
type One string

// Many names tables as an ordered collection. Order and duplicates are discarded.
type Many []string

func (One) tableInput()  {}
func (Many) tableInput() {}
func (Set) tableInput()  {}

// InputTypeError reports a table selection of an unsupported type.
type InputTypeError struct {
	Got string
}

func (e *InputTypeError) Error() string {
	return fmt.Sprintf("cannot register tables because it has the wrong type: %s", e.Got)
}

// EnsureTables normalizes a selection to a set of table names.
// A Set passes through unchanged.
func EnsureTables(in Input) Set {
	switch v := in.(type) {
	case Set:
		return v
	case One:
		return NewSet(string(v))
	case Many:
		return NewSet(v...)
	default:
		// nil Input
		return Set{}
	}
}

// Decode parses a JSON table selection: a string or an array of strings.
func Decode(raw json.RawMessage) (Input, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, &InputTypeError{Got: "missing"}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode table name: %w", err)
		}
		return One(s), nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode table names: %w", err)
		}
		names := make(Many, 0, len(items))
		for i, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, &InputTypeError{Got: fmt.Sprintf("array with %s at index %d", jsonKind(item), i)}
			}
			names = append(names, s)
		}
		return names, nil

	default:
		return nil, &InputTypeError{Got: jsonKind(raw)}
	}
}

// jsonKind names the JSON type of an encoded value.
func jsonKind(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "missing"
	}
	switch raw[0] {
	case '"':
		return "string"
	case '[':
		return "array"
	case '{':
		return "object"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
