package issuance

import (
	"time"
)

// CreditIssuance is the durable record of credits granted for one approved
// verification request. The unique request_id makes issuance one-to-one with
// the request; the unique idempotency_key is the exactly-once guarantee.
// Rows are immutable once written.
type CreditIssuance struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	RequestID      string    `gorm:"column:request_id;uniqueIndex" json:"request_id"`
	OwnerID        string    `gorm:"column:owner_id;index" json:"owner_id"`
	CO2ReducedKg   float64   `gorm:"column:co2_reduced_kg" json:"co2_reduced_kg"`
	CreditsRaw     float64   `gorm:"column:credits_raw" json:"credits_raw"`
	CreditsRounded float64   `gorm:"column:credits_rounded" json:"credits_rounded"`
	IdempotencyKey string    `gorm:"column:idempotency_key;uniqueIndex" json:"idempotency_key"`
	CorrelationID  *string   `gorm:"column:correlation_id" json:"correlation_id,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (CreditIssuance) TableName() string {
	return "credit_issuances"
}

// Machine-readable error reasons surfaced by this package.
const (
	ReasonInvalidInput          = "INVALID_INPUT"
	ReasonMissingIdempotencyKey = "MISSING_IDEMPOTENCY_KEY"
	ReasonIdempotencyKeyReused  = "IDEMPOTENCY_KEY_REUSED"
	ReasonIssuanceAlreadyExists = "ISSUANCE_ALREADY_EXISTS"
)
