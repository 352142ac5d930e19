package sparksql

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Local validation sentinels for accessor arguments. These fail before
// any remote call is attempted.
var (
	ErrBlankTableName  = errors.New("table name must be a non-blank string")
	ErrNoPaths         = errors.New("at least one file path is required")
	ErrSchemaNotStruct = errors.New("schema must be a struct type")
	ErrUnsupportedData = errors.New("data must be a *LocalTable, a slice of rows, or an *RDD")
)

// SQLContext binds a remote query context handle to the engine it lives
// in. Every operation issues exactly one remote call against that
// handle; nothing is retried or cached on this side.
type SQLContext struct {
	engine Engine
	ref    Ref
	logger *slog.Logger
}

// NewSQLContext wraps an existing remote session handle.
func NewSQLContext(engine Engine, session Ref) *SQLContext {
	return &SQLContext{engine: engine, ref: session, logger: slog.Default()}
}

// SetLogger replaces the logger used for non-fatal advisories such as
// column renames.
func (c *SQLContext) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Ref returns the remote session handle.
func (c *SQLContext) Ref() Ref { return c.ref }

// Parallelize ships local rows into a remote distributed collection.
func (c *SQLContext) Parallelize(rows []Row) (*RDD, error) {
	ref, err := c.engine.Parallelize(c.ref, rows)
	if err != nil {
		return nil, err
	}
	return &RDD{ctx: c, ref: ref}, nil
}

// CreateDataFrame turns local data into a remote DataFrame. data is one
// of: *LocalTable, []Row, []any (each element becomes a row), or an
// existing *RDD.
//
// The schema is resolved in priority order: an explicit schema is used
// as-is (and must be a struct); otherwise columns, when given, name the
// fields and types are inferred from the first row; otherwise names come
// from the first row too, falling back to positional _1, _2, ...
// placeholders. Column names containing '.' are rewritten with '_' and
// a warning is logged.
//
// This is the one operation that moves local data into the engine's
// address space: local inputs are parallelized into a distributed
// collection before the schema is applied.
func (c *SQLContext) CreateDataFrame(data any, schema DataType, columns []string) (*DataFrame, error) {
	var (
		rows []Row
		rdd  *RDD
	)

	switch d := data.(type) {
	case *LocalTable:
		tableRows, err := d.rows()
		if err != nil {
			return nil, err
		}
		rows = tableRows
		if columns == nil {
			columns = d.Columns
		}
	case []Row:
		rows = d
	case []any:
		rows = make([]Row, len(d))
		for i, elem := range d {
			rows[i] = asRow(elem)
		}
	case *RDD:
		rdd = d
	default:
		return nil, fmt.Errorf("%w, got %T", ErrUnsupportedData, data)
	}

	structSchema, err := c.resolveSchema(schema, columns, rows, rdd)
	if err != nil {
		return nil, err
	}

	if rdd == nil {
		rdd, err = c.Parallelize(rows)
		if err != nil {
			return nil, err
		}
	}

	return c.dataFrameCall("applySchema", rdd.ref, structSchema)
}

// resolveSchema picks the schema by priority (explicit schema, then
// supplied column names, then the first row) and cleans field names.
// Exactly one of rows/rdd provides the sample row when inference is
// needed.
func (c *SQLContext) resolveSchema(schema DataType, columns []string, rows []Row, rdd *RDD) (*StructType, error) {
	if schema != nil {
		st, ok := schema.(*StructType)
		if !ok {
			return nil, fmt.Errorf("%w, got %s", ErrSchemaNotStruct, schema.TypeName())
		}
		return c.cleanFieldNames(st), nil
	}

	first, err := sampleRow(rows, rdd)
	if err != nil {
		return nil, err
	}

	if columns != nil {
		if len(columns) != first.Len() {
			return nil, fmt.Errorf("%d column names supplied for a row of %d values", len(columns), first.Len())
		}
		fields := make([]StructField, first.Len())
		for i, name := range columns {
			ft, err := InferType(first.values[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			fields[i] = StructField{Name: name, DataType: ft, Nullable: true}
		}
		return c.cleanFieldNames(&StructType{Fields: fields}), nil
	}

	named := first
	if !named.Named() {
		// No names anywhere: synthesize positional placeholders.
		names := make([]string, named.Len())
		for i := range names {
			names[i] = fmt.Sprintf("_%d", i+1)
		}
		named = Row{names: names, values: named.values}
	}
	inferred, err := InferType(named)
	if err != nil {
		return nil, err
	}
	st, ok := inferred.(*StructType)
	if !ok {
		return nil, fmt.Errorf("%w: inferred %s from first row", ErrSchemaNotStruct, inferred.TypeName())
	}
	return c.cleanFieldNames(st), nil
}

func sampleRow(rows []Row, rdd *RDD) (Row, error) {
	if rdd != nil {
		return rdd.First()
	}
	if len(rows) == 0 {
		return Row{}, fmt.Errorf("%w: no rows to infer a schema from", ErrEmptyContainer)
	}
	return rows[0], nil
}

// cleanFieldNames rewrites the '.' separator, which the engine reserves
// for column paths, to '_'. The substitution is advisory, not fatal.
func (c *SQLContext) cleanFieldNames(schema *StructType) *StructType {
	cleaned := make([]StructField, len(schema.Fields))
	for i, f := range schema.Fields {
		if strings.Contains(f.Name, ".") {
			renamed := strings.ReplaceAll(f.Name, ".", "_")
			c.logger.Warn("renaming column: '.' is not allowed in column names",
				"from", f.Name, "to", renamed)
			f.Name = renamed
		}
		cleaned[i] = f
	}
	return &StructType{Fields: cleaned}
}

// asRow wraps a bare value as a single-column positional row; rows pass
// through, slices become one row of several values.
func asRow(v any) Row {
	switch x := v.(type) {
	case Row:
		return x
	case []any:
		return NewRow(x...)
	default:
		return NewRow(x)
	}
}

// JSONFile loads one or more JSON files (one object per line) into a
// DataFrame. Multiple paths go to the engine in a single call as one
// comma-separated path argument.
func (c *SQLContext) JSONFile(paths ...string) (*DataFrame, error) {
	joined, err := normalizePaths(paths)
	if err != nil {
		return nil, err
	}
	return c.dataFrameCall("jsonFile", joined)
}

// JSONRDD reads a distributed collection of JSON strings into a
// DataFrame. schema may be nil, in which case the engine infers it.
func (c *SQLContext) JSONRDD(rdd *RDD, schema DataType) (*DataFrame, error) {
	if rdd == nil {
		return nil, fmt.Errorf("%w, got nil collection", ErrUnsupportedData)
	}
	if schema == nil {
		return c.dataFrameCall("jsonRDD", rdd.ref)
	}
	st, ok := schema.(*StructType)
	if !ok {
		return nil, fmt.Errorf("%w, got %s", ErrSchemaNotStruct, schema.TypeName())
	}
	return c.dataFrameCall("jsonRDD", rdd.ref, st)
}

// ParquetFile loads one or more Parquet files into a DataFrame in a
// single call.
func (c *SQLContext) ParquetFile(paths ...string) (*DataFrame, error) {
	joined, err := normalizePaths(paths)
	if err != nil {
		return nil, err
	}
	return c.dataFrameCall("parquetFile", joined)
}

// SQL executes a SQL statement in the remote session and wraps the
// result set handle.
func (c *SQLContext) SQL(query string) (*DataFrame, error) {
	return c.dataFrameCall("sql", query)
}

// Table returns the named table as a DataFrame.
func (c *SQLContext) Table(name string) (*DataFrame, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	return c.dataFrameCall("table", name)
}

// Tables returns a DataFrame describing the session's tables, scoped to
// database when it is non-empty.
func (c *SQLContext) Tables(database string) (*DataFrame, error) {
	if database == "" {
		return c.dataFrameCall("tables")
	}
	return c.dataFrameCall("tables", database)
}

// TableNames lists the names of the session's tables, scoped to
// database when it is non-empty.
func (c *SQLContext) TableNames(database string) ([]string, error) {
	args := []any{}
	if database != "" {
		args = append(args, database)
	}
	result, err := c.engine.Call(c.ref, "tableNames", args, nil)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(result.Value, &names); err != nil {
		return nil, fmt.Errorf("failed to decode table names: %w", err)
	}
	return names, nil
}

// CacheTable marks the named table cached in the engine's table cache.
func (c *SQLContext) CacheTable(name string) error {
	return c.voidCall("cacheTable", name)
}

// UncacheTable removes the named table from the engine's table cache.
func (c *SQLContext) UncacheTable(name string) error {
	return c.voidCall("uncacheTable", name)
}

// ClearCache removes every cached table from the session.
func (c *SQLContext) ClearCache() error {
	_, err := c.engine.Call(c.ref, "clearCache", nil, nil)
	return err
}

// DropTempTable drops the named temporary table from the session.
func (c *SQLContext) DropTempTable(name string) error {
	return c.voidCall("dropTempTable", name)
}

// Load loads a dataset from a data source, with source-specific options
// forwarded verbatim.
func (c *SQLContext) Load(source string, options map[string]string) (*DataFrame, error) {
	result, err := c.engine.Call(c.ref, "load", []any{source}, options)
	if err != nil {
		return nil, err
	}
	return c.wrapDataFrame("load", result)
}

// CreateExternalTable registers an external data source as a named
// table and returns it as a DataFrame.
func (c *SQLContext) CreateExternalTable(name, source string, options map[string]string) (*DataFrame, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	result, err := c.engine.Call(c.ref, "createExternalTable", []any{name, source}, options)
	if err != nil {
		return nil, err
	}
	return c.wrapDataFrame("createExternalTable", result)
}

// dataFrameCall issues one remote call and wraps the returned handle.
func (c *SQLContext) dataFrameCall(method string, args ...any) (*DataFrame, error) {
	result, err := c.engine.Call(c.ref, method, args, nil)
	if err != nil {
		return nil, err
	}
	return c.wrapDataFrame(method, result)
}

func (c *SQLContext) wrapDataFrame(method string, result *CallResult) (*DataFrame, error) {
	if result.Ref == "" {
		return nil, fmt.Errorf("%s returned no result handle", method)
	}
	return &DataFrame{ctx: c, ref: result.Ref}, nil
}

// voidCall issues one remote call against a validated table name.
func (c *SQLContext) voidCall(method, name string) error {
	if err := validateTableName(name); err != nil {
		return err
	}
	_, err := c.engine.Call(c.ref, method, []any{name}, nil)
	return err
}

func validateTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrBlankTableName
	}
	return nil
}

// normalizePaths resolves every path to absolute canonical form and
// joins them so the load happens in one remote call.
func normalizePaths(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", ErrNoPaths
	}
	normalized := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to normalize path %q: %w", p, err)
		}
		normalized[i] = abs
	}
	return strings.Join(normalized, ","), nil
}
