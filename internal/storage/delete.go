package storage

import (
	"fmt"
	"strings"

	"rowcore/internal/config"
	"rowcore/internal/ddl"
	"rowcore/internal/schema"
)

// DeleteKey is one resolved condition of a keyed delete. Stream and Stream2
// are row positions, -1 when the condition does not use them.
type DeleteKey struct {
	Lookup    string
	Condition string
	Stream    int
	Stream2   int
}

// Args is the number of row values the condition binds.
func (k DeleteKey) Args() int {
	switch k.Condition {
	case "IS NULL", "IS NOT NULL":
		return 0
	case "BETWEEN":
		return 2
	}
	return 1
}

// DeletePlan is a delete configuration resolved against a row layout.
type DeletePlan struct {
	// Table is schema-qualified when a schema was configured.
	Table      string
	CommitSize int
	Keys       []DeleteKey
}

// BuildDeletePlan resolves the stream field names of cfg against meta.
func BuildDeletePlan(cfg config.DeleteConfig, meta *schema.RowMeta) (DeletePlan, error) {
	p := DeletePlan{Table: strings.TrimSpace(cfg.Table), CommitSize: cfg.CommitSize}
	if p.Table == "" {
		return DeletePlan{}, fmt.Errorf("delete: table must not be empty")
	}
	if s := strings.TrimSpace(cfg.Schema); s != "" {
		p.Table = s + "." + p.Table
	}
	if len(cfg.Keys) == 0 {
		return DeletePlan{}, fmt.Errorf("delete: at least one key is required")
	}

	index := func(name string) (int, error) {
		i, ok := meta.Index(name)
		if !ok {
			return -1, fmt.Errorf("delete: stream field %q not found", name)
		}
		return i, nil
	}
	for _, k := range cfg.Keys {
		dk := DeleteKey{Lookup: k.Lookup, Condition: config.NormalizeCondition(k.Condition), Stream: -1, Stream2: -1}
		var err error
		switch dk.Args() {
		case 2:
			if dk.Stream2, err = index(k.Stream2); err != nil {
				return DeletePlan{}, err
			}
			fallthrough
		case 1:
			if dk.Stream, err = index(k.Stream); err != nil {
				return DeletePlan{}, err
			}
		}
		p.Keys = append(p.Keys, dk)
	}
	return p, nil
}

// SQL renders the DELETE statement with placeholders from ph, which gets the
// 1-based argument number.
func (p DeletePlan) SQL(d ddl.Dialect, ph func(n int) string) string {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(d.QuoteFQN(p.Table))
	sb.WriteString(" WHERE ")
	n := 0
	for i, k := range p.Keys {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(d.Quote(k.Lookup))
		sb.WriteByte(' ')
		sb.WriteString(k.Condition)
		switch k.Args() {
		case 1:
			n++
			sb.WriteByte(' ')
			sb.WriteString(ph(n))
		case 2:
			sb.WriteByte(' ')
			sb.WriteString(ph(n + 1))
			sb.WriteString(" AND ")
			sb.WriteString(ph(n + 2))
			n += 2
		}
	}
	return sb.String()
}

// Args returns the values of row bound by the plan, in placeholder order.
func (p DeletePlan) Args(row []any) []any {
	out := make([]any, 0, len(p.Keys)+1)
	for _, k := range p.Keys {
		switch k.Args() {
		case 1:
			out = append(out, row[k.Stream])
		case 2:
			out = append(out, row[k.Stream], row[k.Stream2])
		}
	}
	return out
}

// QuestionMark is the placeholder style of MySQL and SQLite.
func QuestionMark(int) string { return "?" }

// Dollar is the placeholder style of Postgres.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// AtP is the placeholder style of SQL Server.
func AtP(n int) string { return fmt.Sprintf("@p%d", n) }
