package adsb

import "math"

// CPRFrame is one Compact Position Reporting sample as broadcast
type CPRFrame struct {
	Odd bool
	Lat uint32 // 17-bit encoded latitude
	Lon uint32 // 17-bit encoded longitude
}

const cprMax = float64(CPR_LAT_MAX)

// nlBoundaries holds the latitudes at which the number of longitude zones
// drops by one, starting from NL=59 at the equator
var nlBoundaries = [...]float64{
	10.47047130, 14.82817437, 18.18626357, 21.02939493, 23.54504487,
	25.82924707, 27.93898710, 29.91135686, 31.77209708, 33.53993436,
	35.22899598, 36.85025108, 38.41241892, 39.92256684, 41.38651832,
	42.80914012, 44.19454951, 45.54626723, 46.86733252, 48.16039128,
	49.42776439, 50.67150166, 51.89342469, 53.09516153, 54.27817472,
	55.44378444, 56.59318756, 57.72747354, 58.84763776, 59.95459277,
	61.04917774, 62.13216659, 63.20427479, 64.26616523, 65.31845310,
	66.36171008, 67.39646774, 68.42322022, 69.44242631, 70.45451075,
	71.45986473, 72.45884545, 73.45177442, 74.43893416, 75.42056257,
	76.39684391, 77.36789461, 78.33374083, 79.29428225, 80.24923213,
	81.19801349, 82.13956981, 83.07199445, 83.99173563, 84.89166191,
	85.75541621, 86.53536998, 87.00000000,
}

// cprNL returns the number of longitude zones for a latitude
func cprNL(lat float64) int {
	absLat := math.Abs(lat)
	for i, boundary := range nlBoundaries {
		if absLat < boundary {
			return 59 - i
		}
	}
	return 1
}

// cprN returns the number of longitude zones for the given frame parity
func cprN(lat float64, odd bool) int {
	nl := cprNL(lat)
	if odd {
		nl--
	}
	if nl < 1 {
		nl = 1
	}
	return nl
}

// cprDlat returns the latitude zone size for the given frame parity
func cprDlat(odd bool) float64 {
	if odd {
		return 360.0 / 59.0
	}
	return 360.0 / 60.0
}

// cprMod is an always-positive modulo
func cprMod(a, b float64) float64 {
	res := math.Mod(a, b)
	if res < 0 {
		res += b
	}
	return res
}

// DecodeGlobal resolves an unambiguous airborne position from an even/odd
// pair. oddLatest selects which frame's latitude zone the result uses.
func DecodeGlobal(even, odd CPRFrame, oddLatest bool) (float64, float64, bool) {
	lat0 := float64(even.Lat)
	lat1 := float64(odd.Lat)
	lon0 := float64(even.Lon)
	lon1 := float64(odd.Lon)

	// Latitude index
	j := math.Floor((59*lat0-60*lat1)/cprMax + 0.5)

	rlat0 := cprDlat(false) * (cprMod(j, 60) + lat0/cprMax)
	rlat1 := cprDlat(true) * (cprMod(j, 59) + lat1/cprMax)

	if rlat0 >= 270 {
		rlat0 -= 360
	}
	if rlat1 >= 270 {
		rlat1 -= 360
	}

	if rlat0 < -90 || rlat0 > 90 || rlat1 < -90 || rlat1 > 90 {
		return 0, 0, false
	}

	// Both frames must lie in the same longitude zone band
	if cprNL(rlat0) != cprNL(rlat1) {
		return 0, 0, false
	}

	rlat, lonCPR := rlat0, lon0
	if oddLatest {
		rlat, lonCPR = rlat1, lon1
	}

	nl := float64(cprNL(rlat))
	ni := float64(cprN(rlat, oddLatest))
	m := math.Floor((lon0*(nl-1)-lon1*nl)/cprMax + 0.5)
	rlon := (360.0 / ni) * (cprMod(m, ni) + lonCPR/cprMax)

	// Renormalize longitude to -180 .. +180
	rlon -= math.Floor((rlon+180)/360) * 360

	return rlat, rlon, true
}

// DecodeLocal resolves a single frame against a reference position known
// to lie within half a zone (about 180 NM) of the target
func DecodeLocal(frame CPRFrame, refLat, refLon float64) (float64, float64, bool) {
	dlat := cprDlat(frame.Odd)
	latCPR := float64(frame.Lat) / cprMax
	lonCPR := float64(frame.Lon) / cprMax

	j := math.Floor(refLat/dlat) + math.Floor(0.5+cprMod(refLat, dlat)/dlat-latCPR)
	rlat := dlat * (j + latCPR)
	if rlat < -90 || rlat > 90 {
		return 0, 0, false
	}

	dlon := 360.0 / float64(cprN(rlat, frame.Odd))
	m := math.Floor(refLon/dlon) + math.Floor(0.5+cprMod(refLon, dlon)/dlon-lonCPR)
	rlon := dlon * (m + lonCPR)
	rlon -= math.Floor((rlon+180)/360) * 360

	return rlat, rlon, true
}

// EncodeCPR encodes a position into 17-bit airborne CPR coordinates
func EncodeCPR(lat, lon float64, odd bool) CPRFrame {
	dlat := cprDlat(odd)
	yz := math.Floor(cprMax*cprMod(lat, dlat)/dlat + 0.5)
	rlat := dlat * (yz/cprMax + math.Floor(lat/dlat))

	dlon := 360.0 / float64(cprN(rlat, odd))
	xz := math.Floor(cprMax*cprMod(lon, dlon)/dlon + 0.5)

	return CPRFrame{
		Odd: odd,
		Lat: uint32(yz) & (CPR_LAT_MAX - 1),
		Lon: uint32(xz) & (CPR_LON_MAX - 1),
	}
}
