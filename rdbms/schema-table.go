package rdbms

import (
	"fmt"
	"strings"
)

type SchemaTable struct {
	SchemaTable string `errorTxt:"[<schema>.]<object>" mandatory:"yes"`
}

func NewSchemaTable(schema string, table string) SchemaTable {
	if schema == "" {
		return SchemaTable{table}
	} else {
		return SchemaTable{schema + "." + table}
	}
}

func (st *SchemaTable) GetTable() string {
	sep := "."
	i := strings.Index(st.SchemaTable, sep)
	if i < 0 { // if we have just a table...
		return st.SchemaTable
	} // else we have schema.table...
	return st.SchemaTable[i+len(sep):] // return table
}

func (st *SchemaTable) GetSchema() string {
	sep := "."
	i := strings.Index(st.SchemaTable, sep)
	if i < 0 { // if we have just a table...
		return ""
	} // else we have schema.table...
	return st.SchemaTable[:i] // return schema
}

func (st *SchemaTable) AppendSuffix(suffix string) string {
	schema := st.GetSchema()
	table := st.GetTable()
	sep := "."
	if schema == "" {
		sep = ""
	}
	return fmt.Sprintf("%v%v%v%v", schema, sep, table, suffix)
}

func (st *SchemaTable) String() string {
	return st.SchemaTable
}
