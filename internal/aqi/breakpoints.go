package aqi

// Breakpoint maps a concentration range onto an AQI sub-range.
type Breakpoint struct {
	Low     float64
	High    float64
	AQILow  int
	AQIHigh int
}

// Table is an ordered list of breakpoints. Tiers are looked up by their upper
// bound, so a value between two published ranges belongs to the upper tier and
// a value equal to High belongs to that tier.
type Table []Breakpoint

// Max returns the upper bound of the last tier.
func (t Table) Max() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].High
}

func (t Table) lookup(value float64) (Breakpoint, bool) {
	for _, bp := range t {
		if value <= bp.High {
			return bp, true
		}
	}
	return Breakpoint{}, false
}

// US EPA PM2.5 breakpoints (µg/m³).
var PM25 = Table{
	{Low: 0.0, High: 12.0, AQILow: 0, AQIHigh: 50},
	{Low: 12.1, High: 35.4, AQILow: 51, AQIHigh: 100},
	{Low: 35.5, High: 55.4, AQILow: 101, AQIHigh: 150},
	{Low: 55.5, High: 150.4, AQILow: 151, AQIHigh: 200},
	{Low: 150.5, High: 250.4, AQILow: 201, AQIHigh: 300},
	{Low: 250.5, High: 350.4, AQILow: 301, AQIHigh: 400},
	{Low: 350.5, High: 500.4, AQILow: 401, AQIHigh: 500},
}

// US EPA PM10 breakpoints (µg/m³).
var PM10 = Table{
	{Low: 0, High: 54, AQILow: 0, AQIHigh: 50},
	{Low: 55, High: 154, AQILow: 51, AQIHigh: 100},
	{Low: 155, High: 254, AQILow: 101, AQIHigh: 150},
	{Low: 255, High: 354, AQILow: 151, AQIHigh: 200},
	{Low: 355, High: 424, AQILow: 201, AQIHigh: 300},
	{Low: 425, High: 504, AQILow: 301, AQIHigh: 400},
	{Low: 505, High: 604, AQILow: 401, AQIHigh: 500},
}
