package sparksql

import "fmt"

// DataFrame is an opaque handle to a remote structured dataset with a
// resolved schema. The data never materializes on this side; the handle
// is only passed back into engine calls.
type DataFrame struct {
	ctx    *SQLContext
	ref    Ref
	schema *StructType // nil until fetched
}

// Ref returns the remote object reference backing the DataFrame.
func (d *DataFrame) Ref() Ref { return d.ref }

// Schema fetches the DataFrame's schema from the engine. The result is
// cached on the handle.
func (d *DataFrame) Schema() (*StructType, error) {
	if d.schema != nil {
		return d.schema, nil
	}
	result, err := d.ctx.engine.Call(d.ref, "schema", nil, nil)
	if err != nil {
		return nil, err
	}
	dt, err := ParseDataType(result.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	st, ok := dt.(*StructType)
	if !ok {
		return nil, fmt.Errorf("engine returned a %s schema, expected a struct", dt.TypeName())
	}
	d.schema = st
	return st, nil
}

// RDD is an opaque handle to a remote partitioned sequence of records
// that has no schema attached yet.
type RDD struct {
	ctx *SQLContext
	ref Ref
}

// Ref returns the remote object reference backing the collection.
func (r *RDD) Ref() Ref { return r.ref }

// First retrieves the collection's first record, used for sampling a
// schema from an already-distributed collection.
func (r *RDD) First() (Row, error) {
	return r.ctx.engine.First(r.ref)
}
