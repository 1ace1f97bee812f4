package ddl

import (
	"fmt"
	"strings"

	"rowcore/internal/schema"
)

// Dialect holds what differs between SQL backends when creating a table.
type Dialect struct {
	Name string

	// Quote quotes one identifier segment.
	Quote func(string) string

	// MapType returns the column type for a field.
	MapType func(schema.Field) string

	// Guard wraps a CREATE TABLE statement so that it does nothing when the
	// table exists. Nil means the dialect supports IF NOT EXISTS.
	Guard func(fqn, stmt string) string
}

// QuoteFQN quotes each dotted segment of name.
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}

func doubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
func backtick(id string) string    { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
func bracket(id string) string     { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" }

// Postgres maps fields onto Postgres types.
var Postgres = Dialect{
	Name:  "postgres",
	Quote: doubleQuote,
	MapType: func(f schema.Field) string {
		switch f.Type {
		case schema.TypeInteger:
			return "BIGINT"
		case schema.TypeNumber:
			return "DOUBLE PRECISION"
		case schema.TypeBigNumber:
			return numeric("NUMERIC", f)
		case schema.TypeDate, schema.TypeTimestamp:
			return "TIMESTAMPTZ"
		case schema.TypeBoolean:
			return "BOOLEAN"
		case schema.TypeBinary:
			return "BYTEA"
		}
		if f.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length)
		}
		return "TEXT"
	},
}

// SQLite maps fields onto SQLite affinities. Times are stored as ISO-8601
// text.
var SQLite = Dialect{
	Name:  "sqlite",
	Quote: doubleQuote,
	MapType: func(f schema.Field) string {
		switch f.Type {
		case schema.TypeInteger, schema.TypeBoolean:
			return "INTEGER"
		case schema.TypeNumber:
			return "REAL"
		case schema.TypeBigNumber:
			return "NUMERIC"
		case schema.TypeBinary:
			return "BLOB"
		}
		return "TEXT"
	},
}

// MSSQL maps fields onto SQL Server types.
var MSSQL = Dialect{
	Name:  "mssql",
	Quote: bracket,
	MapType: func(f schema.Field) string {
		switch f.Type {
		case schema.TypeInteger:
			return "BIGINT"
		case schema.TypeNumber:
			return "FLOAT"
		case schema.TypeBigNumber:
			return numeric("DECIMAL", f)
		case schema.TypeDate, schema.TypeTimestamp:
			return "DATETIME2"
		case schema.TypeBoolean:
			return "BIT"
		case schema.TypeBinary:
			return "VARBINARY(MAX)"
		}
		if f.Length > 0 && f.Length <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", f.Length)
		}
		return "NVARCHAR(MAX)"
	},
	Guard: func(fqn, stmt string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s", strings.ReplaceAll(fqn, "'", "''"), stmt)
	},
}

// MySQL maps fields onto MySQL types.
var MySQL = Dialect{
	Name:  "mysql",
	Quote: backtick,
	MapType: func(f schema.Field) string {
		switch f.Type {
		case schema.TypeInteger:
			return "BIGINT"
		case schema.TypeNumber:
			return "DOUBLE"
		case schema.TypeBigNumber:
			return numeric("DECIMAL", f)
		case schema.TypeDate, schema.TypeTimestamp:
			return "DATETIME(3)"
		case schema.TypeBoolean:
			return "BOOLEAN"
		case schema.TypeBinary:
			return "LONGBLOB"
		}
		if f.Length > 0 && f.Length <= 16383 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length)
		}
		return "LONGTEXT"
	},
}

// numeric renders base(p,s) when the field carries a usable length and
// precision, else a wide default.
func numeric(base string, f schema.Field) string {
	switch {
	case f.Length > 0 && f.Length <= 38 && f.Precision >= 0 && f.Precision <= f.Length:
		return fmt.Sprintf("%s(%d, %d)", base, f.Length, f.Precision)
	case f.Length > 0 && f.Length <= 38:
		return fmt.Sprintf("%s(%d)", base, f.Length)
	}
	return base + "(38, 10)"
}
