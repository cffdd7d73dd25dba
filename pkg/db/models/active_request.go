package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActiveRequest is a container requested from storage and not yet confirmed
// delivered. Rows are inserted and deleted, never updated.
type ActiveRequest struct {
	ReqID     int64           `gorm:"column:req_id;primaryKey;autoIncrement" json:"req_id"`
	SerialNo  string          `gorm:"column:serial_no;type:text;not null;uniqueIndex:idx_requests_serial_no" json:"serial_no"`
	PartNo    string          `gorm:"column:part_no;type:text;not null" json:"part_no"`
	Revision  string          `gorm:"column:revision;type:text" json:"revision"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null" json:"quantity"`
	Location  string          `gorm:"column:location;type:text" json:"location"`
	DeliverTo string          `gorm:"column:deliver_to;type:text" json:"deliver_to"`
	ReqTime   time.Time       `gorm:"column:req_time;not null" json:"req_time"`
}

func (ActiveRequest) TableName() string { return "requests" }
