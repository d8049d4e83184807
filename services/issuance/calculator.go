package issuance

import (
	"fmt"
	"math"

	"evcarbon-marketplace/pkg/config"
	"evcarbon-marketplace/pkg/errutil"
)

// Factors is the emission model behind the credit calculation. All values
// come from configuration; nothing is hardcoded per call.
type Factors struct {
	// BaselineKgPerKm is the CO2 a comparable combustion car emits per km.
	BaselineKgPerKm float64
	// GridKgPerKwh is the CO2 behind one kWh drawn from the grid.
	GridKgPerKwh float64
	// CreditsPerKg converts avoided CO2 into credits.
	CreditsPerKg float64
}

// Calculation is the deterministic output of Compute for one trip.
type Calculation struct {
	CO2ReducedKg   float64
	CreditsRaw     float64
	CreditsRounded float64
}

// Calculator turns trip metrics into credit amounts. It is a pure function
// of its inputs and the configured factors.
type Calculator struct {
	factors Factors
}

func NewCalculator(cfg *config.Config) *Calculator {
	return &Calculator{
		factors: Factors{
			BaselineKgPerKm: cfg.Credits.BaselineKgPerKm,
			GridKgPerKwh:    cfg.Credits.GridKgPerKwh,
			CreditsPerKg:    cfg.Credits.CreditsPerKg,
		},
	}
}

func NewCalculatorWithFactors(factors Factors) *Calculator {
	return &Calculator{factors: factors}
}

// Compute derives the avoided CO2 and credit amounts for a trip.
// co2 = baseline-per-km * distance - grid-per-kwh * energy, floored at zero.
// CreditsRounded is CreditsRaw rounded half-up to 2 decimals; half-up (not
// banker's rounding) keeps issuance amounts predictable for auditors.
func (c *Calculator) Compute(distanceKm, energyKwh float64) (Calculation, error) {
	if distanceKm <= 0 {
		return Calculation{}, errutil.ValidationFailed(
			fmt.Sprintf("distance_km must be positive, got %g", distanceKm), nil,
			errutil.WithReason(ReasonInvalidInput))
	}
	if energyKwh <= 0 {
		return Calculation{}, errutil.ValidationFailed(
			fmt.Sprintf("energy_kwh must be positive, got %g", energyKwh), nil,
			errutil.WithReason(ReasonInvalidInput))
	}

	co2 := c.factors.BaselineKgPerKm*distanceKm - c.factors.GridKgPerKwh*energyKwh
	if co2 < 0 {
		co2 = 0
	}

	raw := co2 * c.factors.CreditsPerKg

	return Calculation{
		CO2ReducedKg:   co2,
		CreditsRaw:     raw,
		CreditsRounded: roundHalfUp(raw, 2),
	}, nil
}

// roundHalfUp rounds a non-negative value half-up to the given number of
// decimal places.
func roundHalfUp(value float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Floor(value*shift+0.5) / shift
}
