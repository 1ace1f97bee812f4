package ddl

import (
	"fmt"
	"strings"

	"rowcore/internal/schema"
)

// ColumnDef describes a single column in a table definition.
//
// Name is unquoted; quoting happens at render time. Default is emitted as
// raw SQL.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name in dotted form ("schema.table") and an
// ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromRowMeta builds a table definition for the given columns of meta using
// d to map field types. An empty columns list takes every field. All
// columns are nullable: conversion turns blanks into NULL.
func FromRowMeta(fqn string, meta *schema.RowMeta, columns []string, d Dialect) (TableDef, error) {
	if meta == nil || meta.Len() == 0 {
		return TableDef{}, fmt.Errorf("ddl: empty row layout for %s", fqn)
	}
	if len(columns) == 0 {
		columns = meta.Names()
	}
	td := TableDef{FQN: strings.TrimSpace(fqn), Columns: make([]ColumnDef, 0, len(columns))}
	for _, name := range columns {
		f, ok := meta.Search(name)
		if !ok {
			return TableDef{}, fmt.Errorf("ddl: column %q is not in the row layout", name)
		}
		td.Columns = append(td.Columns, ColumnDef{
			Name:     f.Name,
			SQLType:  d.MapType(f),
			Nullable: true,
		})
	}
	return td, nil
}
