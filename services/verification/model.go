package verification

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the lifecycle state of a verification request. PENDING is the
// only non-terminal state; APPROVED and REJECTED are immutable.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// CanTransition reports whether moving from s to target is a legal
// state-machine transition.
func (s Status) CanTransition(target Status) bool {
	if s != StatusPending {
		return false
	}
	return target == StatusApproved || target == StatusRejected
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// VerificationRequest is a submitted claim that an EV trip occurred.
// Checksum is globally unique; (owner_id, trip_id) is unique so an owner
// cannot submit the same trip twice. VerifiedAt and VerifierID are set
// together exactly once, at the terminal transition.
type VerificationRequest struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	OwnerID    string     `gorm:"column:owner_id;index;uniqueIndex:ux_verification_owner_trip" json:"owner_id"`
	TripID     string     `gorm:"column:trip_id;uniqueIndex:ux_verification_owner_trip" json:"trip_id"`
	DistanceKm float64    `gorm:"column:distance_km" json:"distance_km"`
	EnergyKwh  float64    `gorm:"column:energy_kwh" json:"energy_kwh"`
	Checksum   string     `gorm:"column:checksum;uniqueIndex" json:"checksum"`
	Status     Status     `gorm:"column:status;index" json:"status"`
	Notes      *string    `gorm:"column:notes" json:"notes,omitempty"`
	// Metadata carries opaque edge-supplied trip attributes (vehicle model,
	// charger type). It is stored verbatim and never validated.
	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	VerifierID *string    `gorm:"column:verifier_id" json:"verifier_id,omitempty"`
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (VerificationRequest) TableName() string {
	return "verification_requests"
}

// Machine-readable error reasons surfaced by this package.
const (
	ReasonDuplicateChecksum     = "DUPLICATE_CHECKSUM"
	ReasonDuplicateTripForOwner = "DUPLICATE_TRIP_FOR_OWNER"
	ReasonInvalidTripMetrics    = "INVALID_TRIP_METRICS"
	ReasonNotFound              = "VERIFICATION_REQUEST_NOT_FOUND"
	ReasonInvalidTransition     = "INVALID_TRANSITION"
)
