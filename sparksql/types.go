package sparksql

import (
	"encoding/json"
	"fmt"
)

// DataType describes the shape of a column or value as the engine's
// catalog understands it: either a primitive kind or a composite built
// from other DataTypes. Every composite recursively bottoms out in
// primitives.
type DataType interface {
	// TypeName returns the engine-side name of the type ("integer",
	// "array", "struct", ...).
	TypeName() string

	json.Marshaler
}

// PrimitiveType is a scalar column type.
type PrimitiveType string

// Primitive kinds accepted by the engine.
const (
	BooleanType   PrimitiveType = "boolean"
	IntegerType   PrimitiveType = "integer"
	LongType      PrimitiveType = "long"
	DoubleType    PrimitiveType = "double"
	StringType    PrimitiveType = "string"
	BinaryType    PrimitiveType = "binary"
	DateType      PrimitiveType = "date"
	TimestampType PrimitiveType = "timestamp"
)

func (p PrimitiveType) TypeName() string { return string(p) }

// MarshalJSON writes the primitive as a bare string, matching the
// engine's schema format.
func (p PrimitiveType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// ArrayType is a sequence of elements of one type.
type ArrayType struct {
	ElementType  DataType
	ContainsNull bool
}

func (a ArrayType) TypeName() string { return "array" }

func (a ArrayType) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":         "array",
		"elementType":  a.ElementType,
		"containsNull": a.ContainsNull,
	})
}

// MapType maps string keys to values of one type. The engine only
// supports string keys for inferred maps, so the key type is fixed.
type MapType struct {
	ValueType         DataType
	ValueContainsNull bool
}

func (m MapType) TypeName() string { return "map" }

func (m MapType) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":              "map",
		"keyType":           "string",
		"valueType":         m.ValueType,
		"valueContainsNull": m.ValueContainsNull,
	})
}

// StructField is one named, typed, nullable column of a struct.
type StructField struct {
	Name     string
	DataType DataType
	Nullable bool
}

func (f StructField) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"name":     f.Name,
		"type":     f.DataType,
		"nullable": f.Nullable,
	})
}

// StructType is an ordered list of fields; the schema of a DataFrame is
// always a StructType.
type StructType struct {
	Fields []StructField
}

// NewStructType builds a struct schema from fields in order.
func NewStructType(fields ...StructField) *StructType {
	return &StructType{Fields: fields}
}

func (s *StructType) TypeName() string { return "struct" }

func (s *StructType) MarshalJSON() ([]byte, error) {
	fields := s.Fields
	if fields == nil {
		fields = []StructField{}
	}
	return json.Marshal(map[string]any{
		"type":   "struct",
		"fields": fields,
	})
}

// FieldNames returns the struct's column names in order.
func (s *StructType) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// ParseDataType decodes a schema descriptor from the engine's JSON
// schema format.
func ParseDataType(raw json.RawMessage) (DataType, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		p, err := parsePrimitive(name)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("malformed data type: %w", err)
	}

	switch tagged.Type {
	case "array":
		var a struct {
			ElementType  json.RawMessage `json:"elementType"`
			ContainsNull bool            `json:"containsNull"`
		}
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("malformed array type: %w", err)
		}
		elem, err := ParseDataType(a.ElementType)
		if err != nil {
			return nil, err
		}
		return ArrayType{ElementType: elem, ContainsNull: a.ContainsNull}, nil
	case "map":
		var m struct {
			ValueType         json.RawMessage `json:"valueType"`
			ValueContainsNull bool            `json:"valueContainsNull"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("malformed map type: %w", err)
		}
		val, err := ParseDataType(m.ValueType)
		if err != nil {
			return nil, err
		}
		return MapType{ValueType: val, ValueContainsNull: m.ValueContainsNull}, nil
	case "struct":
		var s struct {
			Fields []struct {
				Name     string          `json:"name"`
				Type     json.RawMessage `json:"type"`
				Nullable bool            `json:"nullable"`
			} `json:"fields"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("malformed struct type: %w", err)
		}
		st := &StructType{Fields: make([]StructField, 0, len(s.Fields))}
		for _, f := range s.Fields {
			ft, err := ParseDataType(f.Type)
			if err != nil {
				return nil, err
			}
			st.Fields = append(st.Fields, StructField{Name: f.Name, DataType: ft, Nullable: f.Nullable})
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown composite type %q", tagged.Type)
	}
}

func parsePrimitive(name string) (PrimitiveType, error) {
	switch p := PrimitiveType(name); p {
	case BooleanType, IntegerType, LongType, DoubleType, StringType,
		BinaryType, DateType, TimestampType:
		return p, nil
	default:
		return "", fmt.Errorf("unknown primitive type %q", name)
	}
}
