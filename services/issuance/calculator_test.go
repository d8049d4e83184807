package issuance

import (
	"testing"

	"evcarbon-marketplace/pkg/errutil"

	"github.com/stretchr/testify/require"
)

func defaultFactors() Factors {
	return Factors{
		BaselineKgPerKm: 0.192,
		GridKgPerKwh:    0.475,
		CreditsPerKg:    1.0,
	}
}

func TestComputeBaseline(t *testing.T) {
	calc := NewCalculatorWithFactors(defaultFactors())

	got, err := calc.Compute(120, 24)
	require.NoError(t, err)

	// 0.192*120 - 0.475*24 = 23.04 - 11.4 = 11.64
	require.InDelta(t, 11.64, got.CO2ReducedKg, 1e-9)
	require.InDelta(t, 11.64, got.CreditsRaw, 1e-9)
	require.Equal(t, 11.64, got.CreditsRounded)
}

func TestComputeIsDeterministic(t *testing.T) {
	calc := NewCalculatorWithFactors(defaultFactors())

	first, err := calc.Compute(57.3, 9.81)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := calc.Compute(57.3, 9.81)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestComputeClampsNegativeReduction(t *testing.T) {
	calc := NewCalculatorWithFactors(defaultFactors())

	// Short trip, heavy draw: grid emissions exceed the baseline.
	got, err := calc.Compute(10, 40)
	require.NoError(t, err)
	require.Equal(t, 0.0, got.CO2ReducedKg)
	require.Equal(t, 0.0, got.CreditsRaw)
	require.Equal(t, 0.0, got.CreditsRounded)
}

func TestComputeRejectsNonPositiveInputs(t *testing.T) {
	calc := NewCalculatorWithFactors(defaultFactors())

	for _, tc := range []struct {
		name     string
		distance float64
		energy   float64
	}{
		{"zero distance", 0, 10},
		{"negative distance", -5, 10},
		{"zero energy", 100, 0},
		{"negative energy", 100, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Compute(tc.distance, tc.energy)
			require.Error(t, err)
			require.Equal(t, ReasonInvalidInput, errutil.ReasonOf(err))
			require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
		})
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	// Factors picked so the raw credit lands exactly on a half cent.
	calc := NewCalculatorWithFactors(Factors{
		BaselineKgPerKm: 0.125,
		GridKgPerKwh:    0.5,
		CreditsPerKg:    1.0,
	})

	// 0.125*1 - 0.5*0.24 = 0.125 - 0.12 = 0.005
	got, err := calc.Compute(1, 0.24)
	require.NoError(t, err)
	require.Equal(t, 0.01, got.CreditsRounded)
}

func TestRoundHalfUp(t *testing.T) {
	require.Equal(t, 11.64, roundHalfUp(11.64, 2))
	// 0.125*100 is exactly 12.5, the tie case that half-up resolves upward.
	require.Equal(t, 0.13, roundHalfUp(0.125, 2))
	require.Equal(t, 1.24, roundHalfUp(1.2351, 2))
	require.Equal(t, 1.23, roundHalfUp(1.2349, 2))
	require.Equal(t, 0.0, roundHalfUp(0, 2))
}
