// Package schema declares the tables written by the ingestion pipeline and
// renders their DDL for each supported database.
package schema

import (
	"fmt"
	"strings"
)

// ColumnType is the logical type of a column.
type ColumnType int

const (
	ColIdentity ColumnType = iota // auto-increment primary key
	ColText
	ColNumeric
	ColInt
	ColTimestamp
)

// Dialect selects the SQL flavor used by CreateSQL.
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
)

// Column describes one table column.
type Column struct {
	Name     string
	Type     ColumnType
	Size     int // VARCHAR length on MySQL; 0 means TEXT
	NotNull  bool
	Unique   bool
	Default  string
	AutoTime bool // defaults to the current timestamp
}

// Table describes one table.
type Table struct {
	Name       string
	PrimaryKey string
	Columns    []Column
}

// Tables returns every table in creation order.
func Tables() []Table {
	return []Table{Foods, IngestRuns}
}

// CreateSQL returns an idempotent CREATE TABLE statement.
func (t Table) CreateSQL(d Dialect) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, c.definition(d, c.Name == t.PrimaryKey))
	}
	if pk := t.PrimaryKey; pk != "" && !t.hasIdentity() {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", pk))
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(defs, ",\n\t"))
	if d == MySQL {
		stmt += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	return stmt
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t Table) hasIdentity() bool {
	for _, c := range t.Columns {
		if c.Type == ColIdentity {
			return true
		}
	}
	return false
}

func (c Column) definition(d Dialect, primary bool) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(c.sqlType(d))

	if c.Type == ColIdentity {
		if d == MySQL {
			b.WriteString(" AUTO_INCREMENT PRIMARY KEY")
		} else {
			b.WriteString(" GENERATED ALWAYS AS IDENTITY PRIMARY KEY")
		}
		return b.String()
	}
	if c.NotNull || primary {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	switch {
	case c.AutoTime:
		if d == MySQL {
			b.WriteString(" DEFAULT CURRENT_TIMESTAMP(6)")
		} else {
			b.WriteString(" DEFAULT now()")
		}
	case c.Default != "":
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

func (c Column) sqlType(d Dialect) string {
	switch c.Type {
	case ColIdentity:
		return "BIGINT"
	case ColNumeric:
		return "DOUBLE PRECISION"
	case ColInt:
		return "BIGINT"
	case ColTimestamp:
		if d == MySQL {
			return "DATETIME(6)"
		}
		return "TIMESTAMPTZ"
	default:
		if d == MySQL && c.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
		return "TEXT"
	}
}
