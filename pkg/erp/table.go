package erp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type executeResponse struct {
	Tables []Table `json:"tables"`
}

// Table is one tabular result of a datasource execution.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Row maps column names to cell values.
type Row map[string]any

// Records zips every row with the column names. Short rows leave the
// missing columns unset.
func (t Table) Records() []Row {
	out := make([]Row, 0, len(t.Rows))
	for _, values := range t.Rows {
		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out
}

// String returns the cell as trimmed text, or "" when it is absent or null.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Decimal returns numeric cells as a decimal; unparseable values are zero.
func (r Row) Decimal(col string) decimal.Decimal {
	switch v := r[col].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
