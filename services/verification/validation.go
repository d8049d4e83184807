package verification

import (
	"context"
	"fmt"

	"evcarbon-marketplace/pkg/config"
	"evcarbon-marketplace/pkg/errutil"
	"evcarbon-marketplace/pkg/repository"

	"gorm.io/datatypes"
)

// NewRequestInput carries the caller-supplied fields of a submission.
type NewRequestInput struct {
	OwnerID    string
	TripID     string
	DistanceKm float64
	EnergyKwh  float64
	Checksum   string
	Notes      *string
	Metadata   datatypes.JSON
}

// ValidationEngine rejects duplicate or implausible submissions before they
// reach the store. It is read-only; the store's uniqueness constraints remain
// the final arbiter under concurrency.
type ValidationEngine struct {
	requests repository.Repository[VerificationRequest]
	limits   TripLimits
}

// TripLimits bounds the plausible range of a single EV trip.
type TripLimits struct {
	MaxDistanceKm float64
	MaxEnergyKwh  float64
	MaxKwhPerKm   float64
}

func NewValidationEngine(requests repository.Repository[VerificationRequest], cfg *config.Config) *ValidationEngine {
	return &ValidationEngine{
		requests: requests,
		limits: TripLimits{
			MaxDistanceKm: cfg.Credits.MaxDistanceKm,
			MaxEnergyKwh:  cfg.Credits.MaxEnergyKwh,
			MaxKwhPerKm:   cfg.Credits.MaxKwhPerKm,
		},
	}
}

// ValidateNewRequest checks a submission in a fixed order: checksum
// duplicate, then owner/trip duplicate, then metric plausibility. The order
// keeps error reporting deterministic when a request violates several rules.
func (v *ValidationEngine) ValidateNewRequest(ctx context.Context, in NewRequestInput) error {
	existing, err := v.requests.FindOne(ctx, &VerificationRequest{Checksum: in.Checksum})
	if err != nil {
		return errutil.Internal("failed to check checksum uniqueness", err)
	}
	if existing != nil {
		return errDuplicateChecksum(in.Checksum)
	}

	existing, err = v.requests.FindOne(ctx, &VerificationRequest{OwnerID: in.OwnerID, TripID: in.TripID})
	if err != nil {
		return errutil.Internal("failed to check trip uniqueness", err)
	}
	if existing != nil {
		return errDuplicateTrip(in.OwnerID, in.TripID)
	}

	return v.validateMetrics(in.DistanceKm, in.EnergyKwh)
}

func (v *ValidationEngine) validateMetrics(distanceKm, energyKwh float64) error {
	switch {
	case distanceKm <= 0:
		return errInvalidMetrics(fmt.Sprintf("distance_km must be positive, got %g", distanceKm))
	case energyKwh <= 0:
		return errInvalidMetrics(fmt.Sprintf("energy_kwh must be positive, got %g", energyKwh))
	case distanceKm > v.limits.MaxDistanceKm:
		return errInvalidMetrics(fmt.Sprintf("distance_km %g exceeds maximum %g", distanceKm, v.limits.MaxDistanceKm))
	case energyKwh > v.limits.MaxEnergyKwh:
		return errInvalidMetrics(fmt.Sprintf("energy_kwh %g exceeds maximum %g", energyKwh, v.limits.MaxEnergyKwh))
	case energyKwh/distanceKm > v.limits.MaxKwhPerKm:
		return errInvalidMetrics(fmt.Sprintf("energy draw %g kWh is implausible for %g km", energyKwh, distanceKm))
	}
	return nil
}

func errDuplicateChecksum(checksum string) error {
	return errutil.Conflict("a verification request with this checksum already exists", nil,
		errutil.WithReason(ReasonDuplicateChecksum),
		errutil.WithDetails(errutil.Detail{Field: "checksum", Message: checksum}),
	)
}

func errDuplicateTrip(ownerID, tripID string) error {
	return errutil.Conflict("this trip was already submitted by the owner", nil,
		errutil.WithReason(ReasonDuplicateTripForOwner),
		errutil.WithDetails(
			errutil.Detail{Field: "owner_id", Message: ownerID},
			errutil.Detail{Field: "trip_id", Message: tripID},
		),
	)
}

func errInvalidMetrics(msg string) error {
	return errutil.ValidationFailed(msg, nil, errutil.WithReason(ReasonInvalidTripMetrics))
}
