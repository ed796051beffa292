package domain

import (
	"math"
	"strconv"
)

const (
	// kelvinOffset is deliberately 273, not 273.15; see the package doc.
	kelvinOffset = 273

	secondsPerHour = 3600
	feetPerMetre   = 3.28084
	feetPerMile    = 5280
)

// KelvinToFahrenheit converts k to Fahrenheit formatted with one decimal place.
func KelvinToFahrenheit(k float64) string {
	f := ((k - kelvinOffset) * 9 / 5) + 32
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// MpsToMph converts metres per second to miles per hour, rounded to two decimals.
func MpsToMph(v float64) float64 {
	mph := (v * secondsPerHour * feetPerMetre) / feetPerMile
	return math.Round(mph*100) / 100
}
