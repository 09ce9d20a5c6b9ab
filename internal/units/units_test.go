package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		units    string
		expected float64
	}{
		{"10 m/s to mph", 10.0, MPH, 22.3694},
		{"10 m/s to kmph", 10.0, KMPH, 36.0},
		{"10 m/s to kph", 10.0, KPH, 36.0},
		{"10 m/s to mps", 10.0, MPS, 10.0},
		{"unknown units default to mps", 10.0, "unknown", 10.0},
		{"0 m/s to mph", 0.0, MPH, 0.0},
		{"highway speed 31.29 m/s to mph", 31.29, MPH, 70.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMPS, tt.units)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMPS, tt.units, result, tt.expected)
			}
		})
	}
}

func TestToMPS(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		units    string
		expected float64
	}{
		{"1 mph", 1, MPH, 0.44704},
		{"50 mph", 50, MPH, 22.352},
		{"36 kmph", 36, KMPH, 10},
		{"36 kph", 36, KPH, 10},
		{"mps passthrough", 7.5, MPS, 7.5},
		{"unknown passthrough", 7.5, "furlongs", 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToMPS(tt.speed, tt.units); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ToMPS(%f, %s) = %f, want %f", tt.speed, tt.units, got, tt.expected)
			}
		})
	}
}

func TestSpeedRoundTrip(t *testing.T) {
	for _, u := range ValidUnits {
		if got := ConvertSpeed(ToMPS(42, u), u); math.Abs(got-42) > 1e-9 {
			t.Errorf("round trip through %s gave %f", u, got)
		}
	}
}

func TestAngles(t *testing.T) {
	if got := DegToRad(25); math.Abs(got-0.436332) > 1e-6 {
		t.Errorf("DegToRad(25) = %f", got)
	}
	if got := RadToDeg(math.Pi); got != 180 {
		t.Errorf("RadToDeg(pi) = %f", got)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "MPH", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}
