package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Orient selects the JSON layout of a rendered frame.
type Orient string

const (
	OrientSplit   Orient = "split"   // {"columns":[...],"index":[...],"data":[[...]]}
	OrientRecords Orient = "records" // [{"col":v,...},...]
	OrientIndex   Orient = "index"   // {"0":{"col":v},...}
	OrientColumns Orient = "columns" // {"col":{"0":v},...}
	OrientValues  Orient = "values"  // [[...],...]
)

// DefaultOrient is used when a request names no orientation.
const DefaultOrient = OrientSplit

// ErrUnknownOrient is returned for orientations JSON rendering does not support.
var ErrUnknownOrient = errors.New("unknown orient")

// Frame is a materialized query result.
// Index holds the row labels, Rows[i] the values of row i in column order.
type Frame struct {
	Columns []string
	Index   []int64
	Rows    [][]any
}

// JSON renders the frame. Column order is preserved in every layout.
func (f *Frame) JSON(orient Orient) (json.RawMessage, error) {
	var buf bytes.Buffer
	var err error

	switch orient {
	case OrientSplit:
		err = f.writeSplit(&buf)
	case OrientRecords:
		err = f.writeRecords(&buf)
	case OrientIndex:
		err = f.writeIndex(&buf)
	case OrientColumns:
		err = f.writeColumns(&buf)
	case OrientValues:
		err = f.writeValues(&buf)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrient, orient)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *Frame) writeSplit(buf *bytes.Buffer) error {
	buf.WriteString(`{"columns":`)
	if err := writeStrings(buf, f.Columns); err != nil {
		return err
	}
	buf.WriteString(`,"index":[`)
	for i, idx := range f.Index {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatInt(idx, 10))
	}
	buf.WriteString(`],"data":`)
	if err := f.writeValues(buf); err != nil {
		return err
	}
	buf.WriteByte('}')
	return nil
}

func (f *Frame) writeRecords(buf *bytes.Buffer) error {
	buf.WriteByte('[')
	for i, row := range f.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := f.writeRow(buf, row); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func (f *Frame) writeIndex(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, row := range f.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, strconv.FormatInt(f.label(i), 10))
		if err := f.writeRow(buf, row); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (f *Frame) writeColumns(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for c, col := range f.Columns {
		if c > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, col); err != nil {
			return err
		}
		buf.WriteString(":{")
		for i, row := range f.Rows {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeKey(buf, strconv.FormatInt(f.label(i), 10))
			if err := writeValue(buf, row[c]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return nil
}

func (f *Frame) writeValues(buf *bytes.Buffer) error {
	buf.WriteByte('[')
	for i, row := range f.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for j, v := range row {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return nil
}

func (f *Frame) writeRow(buf *bytes.Buffer, row []any) error {
	buf.WriteByte('{')
	for j, col := range f.Columns {
		if j > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, col); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, row[j]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// label returns the index label of row i, falling back to its position.
func (f *Frame) label(i int) int64 {
	if i < len(f.Index) {
		return f.Index[i]
	}
	return int64(i)
}

func writeKey(buf *bytes.Buffer, key string) {
	buf.WriteByte('"')
	buf.WriteString(key)
	buf.WriteString(`":`)
}

func writeString(buf *bytes.Buffer, s string) error {
	return writeValue(buf, s)
}

func writeStrings(buf *bytes.Buffer, ss []string) error {
	buf.WriteByte('[')
	for i, s := range ss {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, s); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// writeValue encodes one cell. Blobs render as text and non-finite floats
// as null; anything else JSON cannot encode falls back to its string form.
func writeValue(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case []byte:
		v = string(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf.WriteString("null")
			return nil
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		b, err = json.Marshal(fmt.Sprint(v))
		if err != nil {
			return err
		}
	}
	buf.Write(b)
	return nil
}
