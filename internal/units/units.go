// Package units provides shared constants and conversions for speed and
// angle units.
package units

import (
	"math"
	"slices"
	"strings"
)

// Speed units a simulator may report in.
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// MPHToMPS is the exact international mile-per-hour factor.
const MPHToMPS = 0.44704

var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid reports whether unit is one of ValidUnits. Matching is case
// sensitive.
func IsValid(unit string) bool { return slices.Contains(ValidUnits, unit) }

// GetValidUnitsString lists ValidUnits for error messages.
func GetValidUnitsString() string { return strings.Join(ValidUnits, ", ") }

// ConvertSpeed converts a speed from meters per second to the target units.
// The controller works in m/s throughout; this is for display.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS / MPHToMPS
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// ToMPS converts a speed reported in sourceUnits to meters per second.
// Unknown units are taken as m/s.
func ToMPS(speed float64, sourceUnits string) float64 {
	switch sourceUnits {
	case MPH:
		return speed * MPHToMPS
	case KMPH, KPH:
		return speed / 3.6
	default:
		return speed
	}
}

func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }
