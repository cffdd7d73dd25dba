package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
)

const exportSheet = "History"

var exportHeader = []any{
	"history_id",
	"req_id",
	"serial_no",
	"part_no",
	"revision",
	"quantity",
	"location",
	"deliver_to",
	"req_time",
	"fulfilled_time",
	"fulfillment_duration_minutes",
	"fulfillment_type",
	"current_location",
}

// ExportFileName names an export generated at the given instant.
func ExportFileName(at time.Time) string {
	return fmt.Sprintf("requests_history_%s.xlsx", at.Format("20060102_150405"))
}

// Export writes every history record matching params to w as a single-sheet
// XLSX workbook. Times are written in plant-local time.
func (a *Analytics) Export(ctx context.Context, params ListParams, w io.Writer) (int, error) {
	rows, err := a.Records(ctx, params)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, exportSheet); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "name export sheet")
	}

	header := exportHeader
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export header")
	}

	for i, r := range rows {
		line := []any{
			r.HistoryID,
			r.ReqID,
			r.SerialNo,
			r.PartNo,
			r.Revision,
			r.Quantity.InexactFloat64(),
			r.Location,
			r.DeliverTo,
			r.ReqTime.Format(time.DateTime),
			r.FulfilledTime.Format(time.DateTime),
			r.FulfillmentDurationMinutes,
			string(r.FulfillmentType),
			r.CurrentLocation,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "export cell")
		}
		if err := f.SetSheetRow(exportSheet, cell, &line); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export row")
		}
	}

	if err := f.Write(w); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write export")
	}
	return len(rows), nil
}
