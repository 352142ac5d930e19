package sparksql

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Inference failure sentinels. Both surface locally, before any remote
// call is attempted.
var (
	// ErrUnsupportedType reports a local value whose shape inference
	// does not support.
	ErrUnsupportedType = errors.New("unsupported type for schema inference")

	// ErrEmptyContainer reports a container with no element to sample
	// a type from.
	ErrEmptyContainer = errors.New("cannot infer type from an empty container")
)

// InferType derives a schema descriptor from a sample local value.
//
// Composite types are inferred from the first element or entry only:
// a container holding mixed types produces a schema that describes later
// elements incorrectly, without complaint. Containers must be non-empty.
// A typed slice of scalars is flattened to an array of the scalar's
// primitive kind.
func InferType(v any) (DataType, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil value", ErrUnsupportedType)

	case bool:
		return BooleanType, nil
	case int, int32:
		return IntegerType, nil
	case int64:
		return LongType, nil
	case float32, float64:
		return DoubleType, nil
	case string:
		return StringType, nil
	case []byte:
		return BinaryType, nil
	case Date:
		return DateType, nil
	case time.Time:
		return TimestampType, nil
	case Category:
		// Categoricals transfer as their label text.
		return StringType, nil

	case []bool:
		return scalarVector(BooleanType, len(x))
	case []int:
		return scalarVector(IntegerType, len(x))
	case []int32:
		return scalarVector(IntegerType, len(x))
	case []int64:
		return scalarVector(LongType, len(x))
	case []float64:
		return scalarVector(DoubleType, len(x))
	case []string:
		return scalarVector(StringType, len(x))
	case []Date:
		return scalarVector(DateType, len(x))
	case []time.Time:
		return scalarVector(TimestampType, len(x))

	case []any:
		if len(x) == 0 {
			return nil, fmt.Errorf("%w: empty list", ErrEmptyContainer)
		}
		elem, err := InferType(x[0])
		if err != nil {
			return nil, err
		}
		return ArrayType{ElementType: elem, ContainsNull: true}, nil

	case map[string]any:
		if len(x) == 0 {
			return nil, fmt.Errorf("%w: empty map", ErrEmptyContainer)
		}
		// Go maps are unordered; sample the smallest key so the
		// inferred type is deterministic.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		val, err := InferType(x[keys[0]])
		if err != nil {
			return nil, err
		}
		return MapType{ValueType: val, ValueContainsNull: true}, nil

	case Row:
		return inferRow(x)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

// scalarVector is the flattening rule: a local vector of scalars is an
// array of that scalar kind, never an array of arrays.
func scalarVector(elem PrimitiveType, length int) (DataType, error) {
	if length == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrEmptyContainer)
	}
	return ArrayType{ElementType: elem, ContainsNull: true}, nil
}

// inferRow maps a named row to a struct (one field per entry, in entry
// order, all nullable) and an unnamed row to an array sampled from its
// first element.
func inferRow(r Row) (DataType, error) {
	if r.Len() == 0 {
		return nil, fmt.Errorf("%w: empty row", ErrEmptyContainer)
	}
	if !r.Named() {
		elem, err := InferType(r.values[0])
		if err != nil {
			return nil, err
		}
		return ArrayType{ElementType: elem, ContainsNull: true}, nil
	}
	fields := make([]StructField, r.Len())
	for i, name := range r.names {
		ft, err := InferType(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		fields[i] = StructField{Name: name, DataType: ft, Nullable: true}
	}
	return &StructType{Fields: fields}, nil
}
