// Package derive computes quantities not present in raw packets: composite
// temperatures, wet bulb, cloud base, the clear-sky solar maximum and the
// day's wind run. Everything here is a pure function of the buffer snapshot,
// the latest packet and configuration; no state is kept between calls.
//
// All formula inputs and outputs are canonical units (degrees C, hPa, m/s,
// mm). Functions take pointer arguments and return nil whenever a required
// input is nil: a missing sensor must never fabricate a value.
package derive

import "math"

// HumidexC returns the humidex for temperature t (C) and relative
// humidity rh (%).
func HumidexC(t, rh *float64) *float64 {
	if t == nil || rh == nil {
		return nil
	}
	// Dewpoint via Magnus, then the Environment Canada humidex adjustment.
	td := dewpointMagnus(*t, *rh)
	e := 6.11 * math.Exp(5417.7530*(1.0/273.16-1.0/(td+273.15)))
	h := *t + 0.5555*(e-10.0)
	return &h
}

// HeatIndexC returns the NWS heat index for t (C) and rh (%). Below 26.7 C
// the heat index is defined as the air temperature.
func HeatIndexC(t, rh *float64) *float64 {
	if t == nil || rh == nil {
		return nil
	}
	if *t < 26.7 {
		v := *t
		return &v
	}
	tf := *t*9.0/5.0 + 32.0
	r := *rh
	hiF := -42.379 + 2.04901523*tf + 10.14333127*r -
		0.22475541*tf*r - 6.83783e-3*tf*tf - 5.481717e-2*r*r +
		1.22874e-3*tf*tf*r + 8.5282e-4*tf*r*r - 1.99e-6*tf*tf*r*r
	hi := (hiF - 32.0) * 5.0 / 9.0
	return &hi
}

// WindChillC returns the North American wind chill for t (C) and wind speed
// v (m/s). Defined only for t <= 10 C and v > 1.34 m/s; outside that range
// the air temperature is returned.
func WindChillC(t, v *float64) *float64 {
	if t == nil || v == nil {
		return nil
	}
	if *t > 10.0 || *v <= 1.34 {
		out := *t
		return &out
	}
	kmh := *v * 3.6
	wc := 13.12 + 0.6215**t - 11.37*math.Pow(kmh, 0.16) +
		0.3965**t*math.Pow(kmh, 0.16)
	return &wc
}

// AppTempC returns the Australian BoM apparent temperature for t (C),
// rh (%) and wind speed v (m/s).
func AppTempC(t, rh, v *float64) *float64 {
	if t == nil || rh == nil || v == nil {
		return nil
	}
	e := *rh / 100.0 * 6.105 * math.Exp(17.27**t/(237.7+*t))
	at := *t + 0.33*e - 0.70**v - 4.0
	return &at
}

// DewpointC returns the Magnus-approximation dewpoint for t (C) and rh (%).
func DewpointC(t, rh *float64) *float64 {
	if t == nil || rh == nil || *rh <= 0 {
		return nil
	}
	td := dewpointMagnus(*t, *rh)
	return &td
}

// WetBulbC returns the wet bulb temperature for t (C), rh (%) and station
// pressure p (hPa).
func WetBulbC(t, rh, p *float64) *float64 {
	if t == nil || rh == nil || p == nil {
		return nil
	}
	ta, h := *t, *rh
	tdc := ta - (14.55+0.114*ta)*(1-0.01*h) -
		math.Pow((2.5+0.007*ta)*(1-0.01*h), 3) -
		(15.9+0.117*ta)*math.Pow(1-0.01*h, 14)
	e := 6.11 * math.Pow(10, 7.5*tdc/(237.7+tdc))
	wb := (0.00066**p*ta + 4098*e/math.Pow(tdc+237.7, 2)*tdc) /
		(0.00066**p + 4098*e/math.Pow(tdc+237.7, 2))
	return &wb
}

// CloudBaseM returns the lifted-condensation cloud base in meters above sea
// level for t (C), rh (%) and station altitude altM (m), using the standard
// 125 m per degree of temperature/dewpoint spread.
func CloudBaseM(t, rh *float64, altM float64) *float64 {
	if t == nil || rh == nil || *rh <= 0 {
		return nil
	}
	td := dewpointMagnus(*t, *rh)
	cb := 125.0*(*t-td) + altM
	if cb < altM {
		cb = altM
	}
	return &cb
}

func dewpointMagnus(t, rh float64) float64 {
	const a, b = 17.27, 237.7
	gamma := a*t/(b+t) + math.Log(rh/100.0)
	return b * gamma / (a - gamma)
}
