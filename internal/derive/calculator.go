package derive

import (
	"time"

	"skyfeed/internal/types"
)

// Location is the station's geographic position, needed only for the solar
// calculations. A nil Location degrades gracefully: solar-derived fields are
// reported unavailable instead of fabricated.
type Location struct {
	Latitude  float64
	Longitude float64
	AltitudeM float64
}

// Derived holds the computed quantities for one publish tick. Nil means the
// required inputs were unavailable.
type Derived struct {
	AppTemp      *float64
	Humidex      *float64
	HeatIndex    *float64
	WindChill    *float64
	Dewpoint     *float64
	WetBulb      *float64
	CloudBaseM   *float64
	MaxSolarRad  *float64
	SolarPercent *float64
}

// Calculator derives physical quantities from the latest (cached) packet.
// It is stateless; Compute may be called any number of times with the same
// inputs and returns the same outputs.
type Calculator struct {
	Loc *Location
	// ATC is the atmospheric transmission coefficient for the clear-sky
	// solar model; zero selects DefaultATC.
	ATC float64
}

// Compute derives all supported quantities from a canonical-unit packet at
// the given instant. For each composite field the station's own reading is
// preferred; a value is computed only when the station did not report one
// and every required input is present.
func (c Calculator) Compute(pkt types.Packet, now time.Time) Derived {
	t := pkt.Ptr(types.FieldOutTemp)
	rh := pkt.Ptr(types.FieldOutHumidity)
	p := pkt.Ptr(types.FieldBarometer)
	v := pkt.Ptr(types.FieldWindSpeed)

	var d Derived

	d.AppTemp = preferred(pkt, types.FieldAppTemp, func() *float64 { return AppTempC(t, rh, v) })
	d.Humidex = preferred(pkt, types.FieldHumidex, func() *float64 { return HumidexC(t, rh) })
	d.HeatIndex = preferred(pkt, types.FieldHeatIndex, func() *float64 { return HeatIndexC(t, rh) })
	d.WindChill = preferred(pkt, types.FieldWindChill, func() *float64 { return WindChillC(t, v) })
	d.Dewpoint = preferred(pkt, types.FieldDewpoint, func() *float64 { return DewpointC(t, rh) })
	d.WetBulb = WetBulbC(t, rh, p)

	altM := 0.0
	if c.Loc != nil {
		altM = c.Loc.AltitudeM
	}
	d.CloudBaseM = preferred(pkt, types.FieldCloudBase, func() *float64 { return CloudBaseM(t, rh, altM) })

	d.MaxSolarRad = pkt.Ptr(types.FieldMaxSolarRad)
	if d.MaxSolarRad == nil && c.Loc != nil {
		d.MaxSolarRad = MaxSolarRadRS(c.Loc.Latitude, c.Loc.Longitude, c.Loc.AltitudeM, now, c.ATC)
	}

	if rad, ok := pkt.Value(types.FieldRadiation); ok && d.MaxSolarRad != nil && *d.MaxSolarRad > 0 {
		pct := 100.0 * rad / *d.MaxSolarRad
		if pct > 100.0 {
			pct = 100.0
		}
		d.SolarPercent = &pct
	}

	return d
}

// preferred returns the packet's own value for the field when present,
// otherwise whatever compute yields.
func preferred(pkt types.Packet, field string, compute func() *float64) *float64 {
	if v := pkt.Ptr(field); v != nil {
		return v
	}
	return compute()
}
