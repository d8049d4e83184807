package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyClientDefaultsBoundsTimeouts(t *testing.T) {
	cfg := &Config{}
	applyClientDefaults(cfg)

	require.Equal(t, 5*time.Second, cfg.Wallet.Timeout)
	require.Equal(t, 5*time.Second, cfg.Audit.Timeout)
}

func TestApplyClientDefaultsKeepsConfiguredTimeouts(t *testing.T) {
	cfg := &Config{}
	cfg.Wallet.Timeout = 2 * time.Second
	cfg.Audit.Timeout = 10 * time.Second
	applyClientDefaults(cfg)

	require.Equal(t, 2*time.Second, cfg.Wallet.Timeout)
	require.Equal(t, 10*time.Second, cfg.Audit.Timeout)
}

func TestApplyCreditDefaults(t *testing.T) {
	cfg := &Config{}
	applyCreditDefaults(cfg)

	require.Equal(t, 0.192, cfg.Credits.BaselineKgPerKm)
	require.Equal(t, 0.475, cfg.Credits.GridKgPerKwh)
	require.Equal(t, 1.0, cfg.Credits.CreditsPerKg)
	require.Equal(t, 2000.0, cfg.Credits.MaxDistanceKm)
	require.Equal(t, 400.0, cfg.Credits.MaxEnergyKwh)
	require.Equal(t, 0.5, cfg.Credits.MaxKwhPerKm)
}

func TestApplyCreditDefaultsKeepsConfiguredFactors(t *testing.T) {
	cfg := &Config{}
	cfg.Credits.BaselineKgPerKm = 0.2
	cfg.Credits.MaxDistanceKm = 500
	applyCreditDefaults(cfg)

	require.Equal(t, 0.2, cfg.Credits.BaselineKgPerKm)
	require.Equal(t, 500.0, cfg.Credits.MaxDistanceKm)
}
