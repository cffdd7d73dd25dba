package enums

import "fmt"

// FulfillmentType records how an active request left the ledger.
type FulfillmentType string

const (
	FulfillmentAutoCleanup   FulfillmentType = "auto_cleanup"
	FulfillmentManualCleanup FulfillmentType = "manual_cleanup"
	FulfillmentManualDelete  FulfillmentType = "manual_delete"
)

var validFulfillmentTypes = []FulfillmentType{
	FulfillmentAutoCleanup,
	FulfillmentManualCleanup,
	FulfillmentManualDelete,
}

// IsValid checks whether the given type matches the canonical enum.
func (f FulfillmentType) IsValid() bool {
	for _, candidate := range validFulfillmentTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// CountsTowardDuration is false for manual deletes, whose elapsed time says
// nothing about delivery latency.
func (f FulfillmentType) CountsTowardDuration() bool {
	return f != FulfillmentManualDelete
}

// ParseFulfillmentType converts raw strings into FulfillmentType.
func ParseFulfillmentType(value string) (FulfillmentType, error) {
	for _, candidate := range validFulfillmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment type %q", value)
}
