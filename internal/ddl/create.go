// Package ddl renders CREATE TABLE statements for the SQL sinks from a row
// layout. A Dialect supplies identifier quoting, the field-to-column type
// mapping and the "only if missing" form of the statement.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders t in dialect d:
//
//	CREATE TABLE IF NOT EXISTS <fqn> (
//	  <name> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
//
// Dialects without IF NOT EXISTS wrap the plain statement with their Guard.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.Quote(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	head := "CREATE TABLE IF NOT EXISTS"
	if d.Guard != nil {
		head = "CREATE TABLE"
	}
	stmt := fmt.Sprintf("%s %s (\n  %s\n);", head, d.QuoteFQN(fqn), strings.Join(cols, ",\n  "))
	if d.Guard != nil {
		stmt = d.Guard(fqn, stmt)
	}
	return stmt, nil
}
