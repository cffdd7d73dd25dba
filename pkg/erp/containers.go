package erp

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
)

// Container is one physical container the ERP holds for a part.
type Container struct {
	SerialNo string          `json:"serial_no"`
	PartNo   string          `json:"part_no"`
	Revision string          `json:"revision"`
	Quantity decimal.Decimal `json:"quantity"`
	Location string          `json:"location"`
	AddDate  string          `json:"add_date"`
}

// ContainersByPart lists the containers of a part, oldest first, skipping
// locations that start with excludedPrefix.
func (c *Client) ContainersByPart(ctx context.Context, partNo, excludedPrefix string) ([]Container, error) {
	partNo = strings.TrimSpace(partNo)
	if partNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part number is required")
	}

	table, err := c.execute(ctx, c.datasources.ContainersByPart, map[string]any{"Part_No": partNo})
	if err != nil {
		return nil, err
	}

	out := make([]Container, 0, len(table.Rows))
	for _, row := range table.Records() {
		loc := row.String(columnLocation)
		if excludedPrefix != "" && strings.HasPrefix(loc, excludedPrefix) {
			continue
		}
		out = append(out, Container{
			SerialNo: row.String("Serial_No"),
			PartNo:   row.String("Part_No"),
			Revision: row.String("Revision"),
			Quantity: row.Decimal("Quantity"),
			Location: loc,
			AddDate:  row.String("Add_Date"),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AddDate != out[j].AddDate {
			return out[i].AddDate < out[j].AddDate
		}
		return out[i].SerialNo < out[j].SerialNo
	})
	return out, nil
}
