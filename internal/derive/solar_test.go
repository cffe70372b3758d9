package derive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfeed/internal/types"
)

func pktWith(fields map[string]float64) types.Packet {
	pkt := types.Packet{Time: 1000, Units: types.UnitsCanonical}
	for name, v := range fields {
		pkt.Set(name, v)
	}
	return pkt
}

func TestSolarElevationDayAndNight(t *testing.T) {
	// Greenwich, June 21: the sun is up at local noon and set at local
	// midnight.
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)

	assert.Greater(t, SolarElevation(51.5, 0.0, noon), 50.0)
	assert.Less(t, SolarElevation(51.5, 0.0, midnight), 0.0)
}

func TestSolarElevationSummerNoonApprox(t *testing.T) {
	// Solstice noon at 51.5N: elevation near 90 - 51.5 + 23.4 = 61.9.
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	assert.InDelta(t, 61.9, SolarElevation(51.5, 0.0, noon), 1.5)
}

func TestMaxSolarRadNilAtNight(t *testing.T) {
	midnight := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, MaxSolarRadRS(51.5, 0.0, 0.0, midnight, DefaultATC))
}

func TestMaxSolarRadDaytimeRange(t *testing.T) {
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	sr := MaxSolarRadRS(51.5, 0.0, 0.0, noon, DefaultATC)
	require.NotNil(t, sr)
	assert.Greater(t, *sr, 500.0)
	assert.Less(t, *sr, solarConstant)
}

func TestMaxSolarRadAltitudeIncreasesIrradiance(t *testing.T) {
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	sea := MaxSolarRadRS(51.5, 0.0, 0.0, noon, DefaultATC)
	high := MaxSolarRadRS(51.5, 0.0, 2000.0, noon, DefaultATC)
	require.NotNil(t, sea)
	require.NotNil(t, high)
	assert.Greater(t, *high, *sea, "thinner atmosphere transmits more")
}

func TestMaxSolarRadATCClamp(t *testing.T) {
	noon := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)
	def := MaxSolarRadRS(51.5, 0.0, 0.0, noon, 0.0)
	explicit := MaxSolarRadRS(51.5, 0.0, 0.0, noon, DefaultATC)
	require.NotNil(t, def)
	assert.InDelta(t, *explicit, *def, 1e-9, "out-of-range atc falls back to the default")
}

func TestCalculatorPrefersStationValues(t *testing.T) {
	calc := Calculator{}
	pkt := pktWith(map[string]float64{
		"outTemp":     30.0,
		"outHumidity": 70.0,
		"humidex":     55.0, // station-reported, deliberately off-formula
	})

	d := calc.Compute(pkt, time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC))
	require.NotNil(t, d.Humidex)
	assert.Equal(t, 55.0, *d.Humidex)

	// Dewpoint has no station value and is computed.
	require.NotNil(t, d.Dewpoint)
	assert.InDelta(t, 23.9, *d.Dewpoint, 0.5)
}

func TestCalculatorNoLocationNoSolar(t *testing.T) {
	calc := Calculator{}
	pkt := pktWith(map[string]float64{"radiation": 500.0})
	d := calc.Compute(pkt, time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC))
	assert.Nil(t, d.MaxSolarRad)
	assert.Nil(t, d.SolarPercent)
}

func TestCalculatorSolarPercentCapped(t *testing.T) {
	calc := Calculator{Loc: &Location{Latitude: 51.5}}
	pkt := pktWith(map[string]float64{"radiation": 5000.0})
	d := calc.Compute(pkt, time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC))
	require.NotNil(t, d.SolarPercent)
	assert.Equal(t, 100.0, *d.SolarPercent)
}
