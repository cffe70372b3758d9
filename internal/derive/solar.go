package derive

import (
	"math"
	"time"
)

// solarConstant is the top-of-atmosphere irradiance in W/m².
const solarConstant = 1367.0

// DefaultATC is the default atmospheric transmission coefficient for the
// clear-sky model. Valid range is roughly 0.7 to 0.91.
const DefaultATC = 0.8

// SolarElevation returns the sun's elevation angle in degrees above the
// horizon for the given position and instant, negative when the sun is set.
// The ephemeris is the NOAA low-accuracy algorithm: adequate for a clear-sky
// irradiance bound, not for navigation.
func SolarElevation(lat, lon float64, t time.Time) float64 {
	ut := t.UTC()
	// Fractional year in radians.
	start := time.Date(ut.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	day := ut.Sub(start).Hours() / 24.0
	gamma := 2 * math.Pi / 365.0 * (day - 1 + float64(ut.Hour()-12)/24.0)

	// Solar declination (radians).
	decl := 0.006918 - 0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.00148*math.Sin(3*gamma)

	// Equation of time (minutes).
	eqtime := 229.18 * (0.000075 + 0.001868*math.Cos(gamma) -
		0.032077*math.Sin(gamma) - 0.014615*math.Cos(2*gamma) -
		0.040849*math.Sin(2*gamma))

	// True solar time (minutes), positive longitude east.
	offset := eqtime + 4.0*lon
	tst := float64(ut.Hour()*60+ut.Minute()) + float64(ut.Second())/60.0 + offset
	ha := (tst/4.0 - 180.0) * math.Pi / 180.0

	latRad := lat * math.Pi / 180.0
	sinEl := math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Cos(ha)
	return math.Asin(sinEl) * 180.0 / math.Pi
}

// MaxSolarRadRS returns the Ryan-Stolzenbach theoretical maximum (clear-sky)
// solar radiation in W/m² for the given position, altitude and instant, or
// nil when the sun is below the horizon. atc is the atmospheric transmission
// coefficient; values outside [0.7, 0.91] fall back to DefaultATC.
func MaxSolarRadRS(lat, lon, altM float64, t time.Time, atc float64) *float64 {
	if atc < 0.7 || atc > 0.91 {
		atc = DefaultATC
	}
	el := SolarElevation(lat, lon, t)
	if el <= 0 {
		return nil
	}
	sinEl := math.Sin(el * math.Pi / 180.0)

	// Relative optical air mass (Kasten-Young), pressure-corrected for
	// station altitude via the standard atmosphere.
	m := 1.0 / (sinEl + 0.50572*math.Pow(el+6.07995, -1.6364))
	press := math.Pow(1.0-2.25577e-5*altM, 5.25588)
	m *= press

	sr := solarConstant * sinEl * math.Pow(atc, m)
	if sr < 0 {
		sr = 0
	}
	return &sr
}
