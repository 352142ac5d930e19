package sparksql

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Row is an ordered collection of values, optionally named. A named row
// maps onto a struct column layout; an unnamed row is purely positional.
type Row struct {
	names  []string
	values []any
}

// NewRow builds a positional (unnamed) row.
func NewRow(values ...any) Row {
	return Row{values: values}
}

// NamedRow builds a row whose values carry column names. names and
// values must have equal length.
func NamedRow(names []string, values []any) (Row, error) {
	if len(names) != len(values) {
		return Row{}, fmt.Errorf("row has %d names but %d values", len(names), len(values))
	}
	return Row{names: names, values: values}, nil
}

// Named reports whether the row carries column names.
func (r Row) Named() bool { return len(r.names) > 0 }

// Len returns the number of values in the row.
func (r Row) Len() int { return len(r.values) }

// Names returns the row's column names, or nil for a positional row.
func (r Row) Names() []string { return r.names }

// Values returns the row's values in order.
func (r Row) Values() []any { return r.values }

// MarshalJSON encodes a named row as an object and a positional row as
// an array, which is how the engine's collection runtime expects rows.
func (r Row) MarshalJSON() ([]byte, error) {
	if !r.Named() {
		vals := make([]any, len(r.values))
		for i, v := range r.values {
			vals[i] = transferValue(v)
		}
		return json.Marshal(vals)
	}
	obj := make(map[string]any, len(r.values))
	for i, name := range r.names {
		obj[name] = transferValue(r.values[i])
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes either form produced by MarshalJSON. Object
// keys land in the row unordered.
func (r *Row) UnmarshalJSON(data []byte) error {
	var vals []any
	if err := json.Unmarshal(data, &vals); err == nil {
		r.names, r.values = nil, vals
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("malformed row: %w", err)
	}
	r.names = make([]string, 0, len(obj))
	r.values = make([]any, 0, len(obj))
	for k, v := range obj {
		r.names = append(r.names, k)
		r.values = append(r.values, v)
	}
	return nil
}

// Category is a value drawn from a fixed label set, the local stand-in
// for a categorical column. It transfers as its plain label text.
type Category struct {
	Labels []string
	Index  int // position in Labels
}

// Label returns the category's textual representation.
func (c Category) Label() string {
	if c.Index < 0 || c.Index >= len(c.Labels) {
		return ""
	}
	return c.Labels[c.Index]
}

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// LocalTable is a local row-oriented table: named columns over rows of
// values. It is one of the accepted inputs to CreateDataFrame.
type LocalTable struct {
	Columns []string
	Rows    [][]any
}

// rows converts the table row-by-row into named rows, rendering
// categorical values to their label text on the way.
func (t *LocalTable) rows() ([]Row, error) {
	out := make([]Row, 0, len(t.Rows))
	for i, values := range t.Rows {
		if len(values) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", i, len(values), len(t.Columns))
		}
		converted := make([]any, len(values))
		for j, v := range values {
			if c, ok := v.(Category); ok {
				converted[j] = c.Label()
			} else {
				converted[j] = v
			}
		}
		row, err := NamedRow(t.Columns, converted)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// transferValue rewrites local-only value representations into their
// wire form before a row crosses to the engine.
func transferValue(v any) any {
	switch x := v.(type) {
	case Category:
		return x.Label()
	case Date:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	default:
		return v
	}
}
