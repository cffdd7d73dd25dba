package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/containerflow/pkg/enums"
)

// ManualDeleteLocation is recorded as current_location when a request is
// removed by hand and its real position is unknown.
const ManualDeleteLocation = "Unknown (Manual Delete)"

// HistoryRecord is the immutable trace of a resolved request.
type HistoryRecord struct {
	HistoryID                  int64                 `gorm:"column:history_id;primaryKey;autoIncrement" json:"history_id"`
	ReqID                      int64                 `gorm:"column:req_id;not null;uniqueIndex:idx_requests_history_req_id" json:"req_id"`
	SerialNo                   string                `gorm:"column:serial_no;type:text;not null;index" json:"serial_no"`
	PartNo                     string                `gorm:"column:part_no;type:text;not null;index" json:"part_no"`
	Revision                   string                `gorm:"column:revision;type:text" json:"revision"`
	Quantity                   decimal.Decimal       `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
	Location                   string                `gorm:"column:location;type:text" json:"location"`
	DeliverTo                  string                `gorm:"column:deliver_to;type:text" json:"deliver_to"`
	ReqTime                    time.Time             `gorm:"column:req_time;not null;index" json:"req_time"`
	FulfilledTime              time.Time             `gorm:"column:fulfilled_time;not null;index" json:"fulfilled_time"`
	FulfillmentDurationMinutes int                   `gorm:"column:fulfillment_duration_minutes;not null" json:"fulfillment_duration_minutes"`
	FulfillmentType            enums.FulfillmentType `gorm:"column:fulfillment_type;type:text;not null" json:"fulfillment_type"`
	CurrentLocation            string                `gorm:"column:current_location;type:text" json:"current_location"`
}

func (HistoryRecord) TableName() string { return "requests_history" }
