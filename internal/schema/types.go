package schema

import (
	"fmt"
	"strings"
)

// typeMap translates catalog-reported storage types to portable DDL types.
var typeMap = map[string]string{
	"integer":                     "INTEGER",
	"bigint":                      "BIGINT",
	"character varying":           "VARCHAR",
	"text":                        "TEXT",
	"boolean":                     "BOOLEAN",
	"timestamp without time zone": "TIMESTAMP",
	"timestamp with time zone":    "TIMESTAMPTZ",
}

// ColumnDef synthesizes the DDL fragment for one column.
//
// A default expression referencing an auto-increment sequence maps to a
// serial type and suppresses both the NOT NULL annotation and the default
// clause (the sequence provides both). Everything else goes through the fixed
// type map, falling back to the uppercased catalog name with a length
// qualifier when one is reported.
func ColumnDef(c Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q ", c.Name)

	if c.Default != nil && strings.Contains(*c.Default, "nextval(") {
		if c.DataType == "bigint" {
			b.WriteString("BIGSERIAL")
		} else {
			b.WriteString("SERIAL")
		}
		return b.String()
	}

	if mapped, ok := typeMap[c.DataType]; ok {
		b.WriteString(mapped)
		if mapped == "VARCHAR" && c.MaxLength != nil {
			fmt.Fprintf(&b, "(%d)", *c.MaxLength)
		}
	} else {
		b.WriteString(strings.ToUpper(c.DataType))
		if c.MaxLength != nil {
			fmt.Fprintf(&b, "(%d)", *c.MaxLength)
		}
	}

	if c.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}
