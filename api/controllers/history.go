package controllers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/angelmondragon/containerflow/api/responses"
	"github.com/angelmondragon/containerflow/api/validators"
	"github.com/angelmondragon/containerflow/internal/history"
	pkgerrors "github.com/angelmondragon/containerflow/pkg/errors"
	"github.com/angelmondragon/containerflow/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type historyReader interface {
	List(ctx context.Context, params history.ListParams) (*history.ListResult, error)
	Stats(ctx context.Context, params history.StatsParams) (*history.Stats, error)
	Export(ctx context.Context, params history.ListParams, w io.Writer) (int, error)
}

type historyClearer interface {
	ClearAll(ctx context.Context) (int64, error)
}

type historyClearResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}

func listParams(r *http.Request) history.ListParams {
	return history.ListParams{
		Page:            validators.QueryInt(r, "page", 1),
		Limit:           validators.QueryInt(r, "limit", 0),
		SerialNo:        validators.QueryString(r, "serial_no", maxIdentifierLen),
		PartNo:          validators.QueryString(r, "part_no", maxIdentifierLen),
		FulfillmentType: validators.QueryString(r, "fulfillment_type", 32),
		StartDate:       validators.QueryString(r, "start_date", 64),
		EndDate:         validators.QueryString(r, "end_date", 64),
	}
}

// HistoryList returns one page of fulfilled requests. Malformed filters are
// coerced to defaults.
func HistoryList(reader historyReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history unavailable"))
			return
		}
		result, err := reader.List(r.Context(), listParams(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func HistoryStats(reader historyReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history unavailable"))
			return
		}
		stats, err := reader.Stats(r.Context(), history.StatsParams{
			Days:   validators.QueryInt(r, "days", 0),
			PartNo: validators.QueryString(r, "part_no", maxIdentifierLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// HistoryExport streams the filtered history as an XLSX attachment. The
// workbook is built in memory so failures still produce a JSON error.
func HistoryExport(reader historyReader, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history unavailable"))
			return
		}
		var buf bytes.Buffer
		rows, err := reader.Export(r.Context(), listParams(r), &buf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", history.ExportFileName(now())))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("X-Export-Rows", strconv.Itoa(rows))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil && logg != nil {
			logg.Error(r.Context(), "write history export", err)
		}
	}
}

// HistoryClear deletes every history record.
func HistoryClear(clearer historyClearer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if clearer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "history purger unavailable"))
			return
		}
		deleted, err := clearer.ClearAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message := "History was already empty"
		if deleted > 0 {
			message = fmt.Sprintf("Deleted %d history records", deleted)
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "rows_deleted", deleted), "history cleared")
		}
		responses.WriteSuccess(w, historyClearResponse{
			Status:       "success",
			Message:      message,
			DeletedCount: deleted,
		})
	}
}
