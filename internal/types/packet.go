package types

import "time"

// UnitSystem identifies the unit convention a packet's values are expressed in.
// Stations report in whichever system their driver uses; everything downstream
// of the units conversion layer operates in UnitsCanonical.
type UnitSystem int

const (
	// UnitsUS: degrees F, inHg, mph, inches of rain, inches/hour.
	UnitsUS UnitSystem = iota
	// UnitsMetric: degrees C, hPa, km/h, mm of rain, mm/hour.
	UnitsMetric
	// UnitsCanonical: degrees C, hPa, m/s, mm of rain, mm/hour.
	// This is the only system the aggregation buffer accepts.
	UnitsCanonical
)

// String returns a short tag for logging.
func (u UnitSystem) String() string {
	switch u {
	case UnitsUS:
		return "us"
	case UnitsMetric:
		return "metric"
	case UnitsCanonical:
		return "canonical"
	default:
		return "unknown"
	}
}

// Observation field names. These are the keys used in Packet.Fields and in
// the aggregation buffer's field table. Station drivers map their native
// sensor names onto these before calling Submit.
const (
	FieldOutTemp     = "outTemp"
	FieldInTemp      = "inTemp"
	FieldOutHumidity = "outHumidity"
	FieldInHumidity  = "inHumidity"
	FieldBarometer   = "barometer"
	FieldWindSpeed   = "windSpeed"
	FieldWindGust    = "windGust"
	FieldWindDir     = "windDir"
	FieldRain        = "rain"
	FieldRainRate    = "rainRate"
	FieldDewpoint    = "dewpoint"
	FieldHumidex     = "humidex"
	FieldHeatIndex   = "heatindex"
	FieldWindChill   = "windchill"
	FieldAppTemp     = "appTemp"
	FieldRadiation   = "radiation"
	FieldMaxSolarRad = "maxSolarRad"
	FieldUV          = "UV"
	FieldCloudBase   = "cloudbase"
	FieldSoilTemp    = "soilTemp"
	FieldSoilMoist   = "soilMoist"
	FieldLeafWet     = "leafWet"
	FieldWindRun     = "windrun"
)

// Packet is one timestamped set of sensor readings delivered by a station.
//
// Fields maps an observation name to its value. A nil pointer (or an absent
// key) means the sensor did not report; it must never be read as zero.
// Packets arrive at irregular intervals, from sub-second to minutes apart,
// and timestamps are non-decreasing from a healthy source but not guaranteed
// strictly increasing.
type Packet struct {
	Time   int64               `json:"time"`
	Units  UnitSystem          `json:"units"`
	Fields map[string]*float64 `json:"fields"`
}

// Timestamp returns the packet time as a time.Time in UTC.
func (p Packet) Timestamp() time.Time {
	return time.Unix(p.Time, 0).UTC()
}

// Value returns the field's value and whether it is present and non-nil.
func (p Packet) Value(name string) (float64, bool) {
	v, ok := p.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Ptr returns the field's value pointer, or nil when absent.
func (p Packet) Ptr(name string) *float64 {
	return p.Fields[name]
}

// Set stores a value for a field, allocating the field map if needed.
func (p *Packet) Set(name string, v float64) {
	if p.Fields == nil {
		p.Fields = make(map[string]*float64)
	}
	p.Fields[name] = &v
}

// Clone returns a deep copy of the packet. The aggregation buffer and the
// packet cache both retain packet data past the Submit call, so the ingest
// path clones before handing off.
func (p Packet) Clone() Packet {
	out := Packet{Time: p.Time, Units: p.Units}
	if p.Fields != nil {
		out.Fields = make(map[string]*float64, len(p.Fields))
		for k, v := range p.Fields {
			if v == nil {
				out.Fields[k] = nil
				continue
			}
			val := *v
			out.Fields[k] = &val
		}
	}
	return out
}

// Float64Ptr is a convenience for building packets in tests and drivers.
func Float64Ptr(v float64) *float64 { return &v }
