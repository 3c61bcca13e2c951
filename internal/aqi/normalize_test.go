package aqi

import (
	"math"
	"testing"
)

func TestConcentrationToAQI_PM25Boundaries(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  int
	}{
		{"zero", 0, 0},
		{"good upper bound", 12.0, 50},
		{"moderate upper bound", 35.4, 100},
		{"sensitive upper bound", 55.4, 150},
		{"unhealthy upper bound", 150.4, 200},
		{"very unhealthy upper bound", 250.4, 300},
		{"table max", 500.4, 500},
		{"beyond table", 800, 500},
		{"negative", -3, 0},
		{"mid good", 6.0, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConcentrationToAQI(tt.value, PM25); got != tt.want {
				t.Errorf("ConcentrationToAQI(%v, PM25) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestConcentrationToAQI_PM10Boundaries(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{0, 0},
		{54, 50},
		{154, 100},
		{354, 200},
		{604, 500},
		{700, 500},
	}

	for _, tt := range tests {
		if got := ConcentrationToAQI(tt.value, PM10); got != tt.want {
			t.Errorf("ConcentrationToAQI(%v, PM10) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestConcentrationToAQI_NaN(t *testing.T) {
	if got := ConcentrationToAQI(math.NaN(), PM25); got != 0 {
		t.Errorf("ConcentrationToAQI(NaN) = %d, want 0", got)
	}
}

func TestConcentrationToAQI_MonotonicAndBounded(t *testing.T) {
	for _, tc := range []struct {
		name  string
		table Table
	}{
		{"pm25", PM25},
		{"pm10", PM10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			prev := -1
			limit := tc.table.Max() + 50
			for v := 0.0; v <= limit; v += 0.05 {
				got := ConcentrationToAQI(v, tc.table)
				if got < MinAQI || got > MaxAQI {
					t.Fatalf("value %v produced out-of-range index %d", v, got)
				}
				if got < prev {
					t.Fatalf("index decreased at %v: %d after %d", v, got, prev)
				}
				prev = got
			}
		})
	}
}

func TestConcentrationToAQI_GapBetweenTiers(t *testing.T) {
	// 12.05 sits between the published 12.0 and 12.1 bounds.
	got := ConcentrationToAQI(12.05, PM25)
	if got < 50 || got > 51 {
		t.Errorf("ConcentrationToAQI(12.05) = %d, want 50 or 51", got)
	}
}

func TestPreferPM25(t *testing.T) {
	tests := []struct {
		name       string
		pm25, pm10 float64
		want       float64
	}{
		{"pm25 positive", 80, 120, 80},
		{"pm25 zero", 0, 40, 40},
		{"pm25 negative", -1, 40, 40},
		{"pm25 NaN", math.NaN(), 55, 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PreferPM25(tt.pm25, tt.pm10); got != tt.want {
				t.Errorf("PreferPM25(%v, %v) = %v, want %v", tt.pm25, tt.pm10, got, tt.want)
			}
		})
	}

	if got := PreferPM25(math.NaN(), math.NaN()); !math.IsNaN(got) {
		t.Errorf("PreferPM25(NaN, NaN) = %v, want NaN", got)
	}
}

func TestCalibrate(t *testing.T) {
	if got := Calibrate(100, DefaultPM25Calibration); got != 75 {
		t.Errorf("Calibrate(100, 0.75) = %v, want 75", got)
	}
	if got := Calibrate(100, 0); got != 100 {
		t.Errorf("Calibrate(100, 0) = %v, want 100", got)
	}
}

func TestClampAndRound(t *testing.T) {
	if Clamp(-5) != 0 || Clamp(900) != 500 || Clamp(42) != 42 {
		t.Error("Clamp did not bound values to [0,500]")
	}
	if Round(42.5) != 43 {
		t.Errorf("Round(42.5) = %d, want 43", Round(42.5))
	}
	if Round(math.NaN()) != 0 {
		t.Error("Round(NaN) should be 0")
	}
	if Round(math.Inf(1)) != 500 {
		t.Error("Round(+Inf) should be 500")
	}
}

func TestValid(t *testing.T) {
	if !Valid(0) || !Valid(500) {
		t.Error("bounds should be valid")
	}
	if Valid(501) || Valid(-1) || Valid(math.NaN()) {
		t.Error("out-of-range and NaN should be invalid")
	}
}
