package params

import (
	"errors"
	"testing"
)

// TestDefaultParametersValidate ensures the shipped defaults pass validation
func TestDefaultParametersValidate(t *testing.T) {
	p, err := New(nil)
	if err != nil {
		t.Fatalf("default parameters should validate, got: %v", err)
	}
	if p.Volume.VeryHighThreshold <= p.Volume.HighThreshold {
		t.Error("default volume thresholds should be strictly ordered")
	}
	if p.PrimaryTimeframe().Interval != "1d" {
		t.Errorf("expected primary timeframe 1d, got %s", p.PrimaryTimeframe().Interval)
	}
}

// TestVolumeThresholdOrdering rejects any violation of the strict ordering
func TestVolumeThresholdOrdering(t *testing.T) {
	p := Default()
	p.Volume.HighThreshold = 2.5 // now high > very_high

	_, err := New(p)
	if err == nil {
		t.Fatal("expected validation failure for unordered volume thresholds")
	}
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got: %v", err)
	}

	p = Default()
	p.Volume.LowThreshold = 1.1 // low must stay below 1.0
	if _, err := New(p); err == nil {
		t.Error("expected validation failure for low threshold above 1.0")
	}

	p = Default()
	p.Volume.VeryLowThreshold = 0 // must stay positive
	if _, err := New(p); err == nil {
		t.Error("expected validation failure for zero very_low threshold")
	}
}

// TestRiskParameterBounds enforces the documented risk invariants
func TestRiskParameterBounds(t *testing.T) {
	p := Default()
	p.Risk.DefaultRiskPercent = 0.10
	if _, err := New(p); err == nil {
		t.Error("expected validation failure for default_risk_percent = 0.10")
	}

	p = Default()
	p.Risk.DefaultRiskPercent = 0
	if _, err := New(p); err == nil {
		t.Error("expected validation failure for zero default_risk_percent")
	}

	p = Default()
	p.Risk.DefaultRiskReward = 0.5
	if _, err := New(p); err == nil {
		t.Error("expected validation failure for default_risk_reward below 1.0")
	}
}

// TestTimeframesRequired rejects an empty timeframe list
func TestTimeframesRequired(t *testing.T) {
	p := Default()
	p.Timeframes = nil
	if _, err := New(p); err == nil {
		t.Error("expected validation failure for empty timeframe list")
	}
}

// TestMinRequiredBars combines the longest lookback with the swing window
func TestMinRequiredBars(t *testing.T) {
	p := Default()
	p.Volume.LookbackPeriod = 10
	p.Wyckoff.VolLookback = 20
	p.Trend.ATRPeriod = 14
	p.Wyckoff.SwingN = 5

	if got := p.MinRequiredBars(); got != 25 {
		t.Errorf("expected 25 minimum bars, got %d", got)
	}
}
