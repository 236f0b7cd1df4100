package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op is a comparison operator in a query condition.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

var sqlOps = map[Op]string{
	OpEq: "=",
	OpNe: "!=",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// Cond is one query condition: field op value.
// On the wire it is a three element array, e.g. ["NucId", "==", 922350000].
type Cond struct {
	Field string
	Op    Op
	Value any
}

// UnmarshalJSON decodes the [field, op, value] form.
// Integral numbers decode as int64, other numbers as float64.
func (c *Cond) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("condition must be an array: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("condition must have 3 elements, got %d", len(parts))
	}

	var field, op string
	if err := json.Unmarshal(parts[0], &field); err != nil {
		return fmt.Errorf("condition field: %w", err)
	}
	if err := json.Unmarshal(parts[1], &op); err != nil {
		return fmt.Errorf("condition operator: %w", err)
	}
	if _, ok := sqlOps[Op(op)]; !ok {
		return fmt.Errorf("unsupported condition operator %q", op)
	}

	dec := json.NewDecoder(strings.NewReader(string(parts[2])))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return fmt.Errorf("condition value: %w", err)
	}
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			value = i
		} else if f, err := v.Float64(); err == nil {
			value = f
		}
	case []any, map[string]any:
		return fmt.Errorf("condition value for %q must be a scalar", field)
	}

	c.Field = field
	c.Op = Op(op)
	c.Value = value
	return nil
}

// MarshalJSON encodes the [field, op, value] form.
func (c Cond) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Field, string(c.Op), c.Value})
}

func (c Cond) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}
