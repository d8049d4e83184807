package verification

import (
	"time"

	"evcarbon-marketplace/pkg/db/option"
)

// Filter narrows a verification request listing. Empty fields are ignored;
// set fields combine conjunctively.
type Filter struct {
	Status      Status
	OwnerID     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Search      string
}

// BuildQueryOptions compiles the filter into query options. Search matches
// the trip id and checksum columns.
func BuildQueryOptions(f Filter) []option.QueryOption {
	opts := make([]option.QueryOption, 0, 5)

	if f.Status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "status", Operator: option.EQ, Value: f.Status,
		}))
	}
	if f.OwnerID != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "owner_id", Operator: option.EQ, Value: f.OwnerID,
		}))
	}
	if f.CreatedFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "created_at", Operator: option.GTE, Value: *f.CreatedFrom,
		}))
	}
	if f.CreatedTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "created_at", Operator: option.LTE, Value: *f.CreatedTo,
		}))
	}
	if f.Search != "" {
		opts = append(opts, option.ApplySearch(f.Search, "trip_id", "checksum"))
	}

	return opts
}
