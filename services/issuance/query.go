package issuance

import (
	"time"

	"evcarbon-marketplace/pkg/db/option"
)

// Filter narrows an issuance listing. Empty fields are ignored; set fields
// combine conjunctively.
type Filter struct {
	OwnerID     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Search      string
}

// BuildQueryOptions compiles the filter into query options. Search matches
// the idempotency key and correlation id columns.
func BuildQueryOptions(f Filter) []option.QueryOption {
	opts := make([]option.QueryOption, 0, 4)

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
		opts = append(opts, option.ApplySearch(f.Search, "request_id", "idempotency_key", "correlation_id"))
	}

	return opts
}
