// Package units is the single conversion layer between packet ingestion and
// statistic update. Incoming packets are converted to the canonical system
// (degrees C, hPa, m/s, mm, mm/hour) before the aggregation buffer sees them,
// so buffer internals never deal with mixed units. Outbound conversions
// (knots, feet) exist for the record formatter, whose wire schema predates
// this codebase.
package units

import "skyfeed/internal/types"

// Conversion factors. Defined once here; nothing outside this package
// converts units.
const (
	inHgToHPa  = 33.8639
	mphToMps   = 0.44704
	kmhToMps   = 1.0 / 3.6
	inchToMM   = 25.4
	mpsToKnots = 1.943844
	mToFeet    = 3.280839895
)

// group identifies which conversion rule applies to a field.
type group int

const (
	groupNone group = iota
	groupTemperature
	groupPressure
	groupSpeed
	groupRain
	groupRainRate
	groupAltitude
)

// fieldGroups maps observation names to their conversion group. Fields not
// listed (humidity, direction, radiation, UV, moisture) are unit-system
// independent and pass through untouched.
var fieldGroups = map[string]group{
	types.FieldOutTemp:   groupTemperature,
	types.FieldInTemp:    groupTemperature,
	types.FieldDewpoint:  groupTemperature,
	types.FieldHumidex:   groupTemperature,
	types.FieldHeatIndex: groupTemperature,
	types.FieldWindChill: groupTemperature,
	types.FieldAppTemp:   groupTemperature,
	types.FieldSoilTemp:  groupTemperature,
	types.FieldBarometer: groupPressure,
	types.FieldWindSpeed: groupSpeed,
	types.FieldWindGust:  groupSpeed,
	types.FieldRain:      groupRain,
	types.FieldRainRate:  groupRainRate,
	types.FieldCloudBase: groupAltitude,
}

// ToCanonical returns a copy of the packet with every recognized field
// converted to the canonical unit system. A packet already in canonical
// units is returned as-is (no copy). Nil field values stay nil.
func ToCanonical(p types.Packet) types.Packet {
	if p.Units == types.UnitsCanonical {
		return p
	}
	out := p.Clone()
	for name, v := range out.Fields {
		if v == nil {
			continue
		}
		g, ok := fieldGroups[name]
		if !ok {
			continue
		}
		*v = convert(*v, g, p.Units)
	}
	out.Units = types.UnitsCanonical
	return out
}

func convert(v float64, g group, from types.UnitSystem) float64 {
	switch from {
	case types.UnitsUS:
		switch g {
		case groupTemperature:
			return (v - 32.0) * 5.0 / 9.0
		case groupPressure:
			return v * inHgToHPa
		case groupSpeed:
			return v * mphToMps
		case groupRain, groupRainRate:
			return v * inchToMM
		case groupAltitude:
			return v / mToFeet
		}
	case types.UnitsMetric:
		// Metric differs from canonical only in wind speed (km/h vs m/s).
		if g == groupSpeed {
			return v * kmhToMps
		}
	}
	return v
}

// MpsToKnots converts a speed in meters per second to knots.
func MpsToKnots(v float64) float64 { return v * mpsToKnots }

// MetersToFeet converts an altitude in meters to feet.
func MetersToFeet(v float64) float64 { return v * mToFeet }
