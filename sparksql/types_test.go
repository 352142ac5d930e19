package sparksql

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructTypeJSON(t *testing.T) {
	schema := NewStructType(
		StructField{Name: "id", DataType: LongType, Nullable: false},
		StructField{Name: "tags", DataType: ArrayType{ElementType: StringType, ContainsNull: true}, Nullable: true},
		StructField{Name: "attrs", DataType: MapType{ValueType: DoubleType, ValueContainsNull: true}, Nullable: true},
	)

	raw, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "struct",
		"fields": [
			{"name": "id", "type": "long", "nullable": false},
			{"name": "tags", "type": {"type": "array", "elementType": "string", "containsNull": true}, "nullable": true},
			{"name": "attrs", "type": {"type": "map", "keyType": "string", "valueType": "double", "valueContainsNull": true}, "nullable": true}
		]
	}`, string(raw))

	parsed, err := ParseDataType(raw)
	require.NoError(t, err)
	assert.Equal(t, schema, parsed)
}

func TestParseDataType_Primitives(t *testing.T) {
	dt, err := ParseDataType(json.RawMessage(`"timestamp"`))
	require.NoError(t, err)
	assert.Equal(t, TimestampType, dt)

	_, err = ParseDataType(json.RawMessage(`"varchar"`))
	require.Error(t, err)
}

func TestParseDataType_UnknownComposite(t *testing.T) {
	_, err := ParseDataType(json.RawMessage(`{"type":"tuple"}`))
	require.Error(t, err)
}
