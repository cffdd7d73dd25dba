package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/containerflow/pkg/db/models"
	"github.com/angelmondragon/containerflow/pkg/enums"
)

var testNow = time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

type seedRecord struct {
	serial    string
	part      string
	deliverTo string
	fulfilled time.Time
	minutes   int
	kind      enums.FulfillmentType
}

func seedHistory(t *testing.T, conn *gorm.DB, rows ...seedRecord) {
	t.Helper()
	for i, r := range rows {
		if r.serial == "" {
			r.serial = fmt.Sprintf("S-%03d", i)
		}
		if r.deliverTo == "" {
			r.deliverTo = "WC-1"
		}
		if r.kind == "" {
			r.kind = enums.FulfillmentAutoCleanup
		}
		record := models.HistoryRecord{
			ReqID:                      int64(1000 + i),
			SerialNo:                   r.serial,
			PartNo:                     r.part,
			Quantity:                   decimal.NewFromInt(1),
			Location:                   "STORE-1",
			DeliverTo:                  r.deliverTo,
			ReqTime:                    r.fulfilled.Add(-time.Duration(r.minutes) * time.Minute),
			FulfilledTime:              r.fulfilled,
			FulfillmentDurationMinutes: r.minutes,
			FulfillmentType:            r.kind,
			CurrentLocation:            "LINE-1",
		}
		require.NoError(t, conn.WithContext(context.Background()).Create(&record).Error)
	}
}

type countingMetrics struct {
	failures int
}

func (c *countingMetrics) IncHistoryWriteFailure() { c.failures++ }
