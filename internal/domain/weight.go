package domain

import "math"

// Dimensional weight divisors keyed by route. Domestic parcels below
// the weight threshold bill on actual weight alone (no divisor).
const (
	dimDivisorDomestic      = 166.0
	dimDivisorInternational = 139.0
	domesticThresholdOz     = 16.0
)

// DimDivisor picks the dimensional-weight divisor for a route, or
// (0, false) when no divisor applies and actual weight alone is
// billable.
func DimDivisor(originCountry, destCountry string, actualOz float64) (float64, bool) {
	if originCountry == destCountry {
		if actualOz < domesticThresholdOz {
			return 0, false
		}
		return dimDivisorDomestic, true
	}
	return dimDivisorInternational, true
}

// BillableWeightOz computes max(actual, dimensional) weight in ounces.
// Dimensions are inches; dimensional pounds are volume over the route
// divisor, converted to ounces and rounded to the nearest ounce.
func BillableWeightOz(lengthIn, widthIn, heightIn, actualOz float64, originCountry, destCountry string) float64 {
	divisor, ok := DimDivisor(originCountry, destCountry, actualOz)
	if !ok {
		return actualOz
	}
	volume := lengthIn * widthIn * heightIn
	if volume <= 0 || divisor <= 0 {
		return actualOz
	}
	dimOz := math.Round(volume / divisor * 16)
	return math.Max(actualOz, dimOz)
}
