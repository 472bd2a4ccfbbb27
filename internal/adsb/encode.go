package adsb

import (
	"math"
	"strings"
)

// newExtendedSquitter assembles a DF17 frame around me and appends parity
func newExtendedSquitter(icao ICAO, me [7]byte) Frame {
	var f Frame
	f[0] = DFExtendedSquitter<<3 | 5 // CA=5: airborne
	f[1] = byte(icao >> 16)
	f[2] = byte(icao >> 8)
	f[3] = byte(icao)
	copy(f[4:11], me[:])

	parity := Checksum(f[:11])
	f[11] = byte(parity >> 16)
	f[12] = byte(parity >> 8)
	f[13] = byte(parity)
	return f
}

// EncodeIdentification builds an aircraft identification frame (TC4,
// category A0). Characters outside the ADS-B set are sent as spaces.
func EncodeIdentification(icao ICAO, callsign string) Frame {
	var me [7]byte
	setBits(me[:], 1, 5, 4)

	padded := strings.ToUpper(callsign) + strings.Repeat(" ", 8)
	for i := 0; i < 8; i++ {
		idx := strings.IndexByte(ADSBCharset, padded[i])
		if idx <= 0 {
			idx = strings.IndexByte(ADSBCharset, ' ')
		}
		first := 9 + i*6
		setBits(me[:], first, first+5, uint32(idx))
	}

	return newExtendedSquitter(icao, me)
}

// EncodeAirbornePosition builds an airborne position frame (TC11) with a
// 25-foot resolution barometric altitude
func EncodeAirbornePosition(icao ICAO, altitude int, lat, lon float64, odd bool) Frame {
	var me [7]byte
	setBits(me[:], 1, 5, 11)

	n := uint32((altitude + 1000) / 25)
	ac12 := ((n & 0x7F0) << 1) | 0x10 | (n & 0x0F)
	setBits(me[:], 9, 20, ac12)

	cpr := EncodeCPR(lat, lon, odd)
	if odd {
		setBits(me[:], 22, 22, 1)
	}
	setBits(me[:], 23, 39, cpr.Lat)
	setBits(me[:], 40, 56, cpr.Lon)

	return newExtendedSquitter(icao, me)
}

// EncodeVelocity builds a subsonic ground speed frame (TC19 subtype 1)
func EncodeVelocity(icao ICAO, groundSpeed, heading float64, verticalRate int) Frame {
	var me [7]byte
	setBits(me[:], 1, 5, 19)
	setBits(me[:], 6, 8, 1)

	rad := heading * math.Pi / 180.0
	ew := groundSpeed * math.Sin(rad)
	ns := groundSpeed * math.Cos(rad)

	if ew < 0 {
		setBits(me[:], 14, 14, 1)
	}
	setBits(me[:], 15, 24, velocityComponent(ew))
	if ns < 0 {
		setBits(me[:], 25, 25, 1)
	}
	setBits(me[:], 26, 35, velocityComponent(ns))

	if verticalRate < 0 {
		setBits(me[:], 37, 37, 1)
		verticalRate = -verticalRate
	}
	vr := uint32(verticalRate/64) + 1
	if vr > 511 {
		vr = 511
	}
	setBits(me[:], 38, 46, vr)

	return newExtendedSquitter(icao, me)
}

// velocityComponent encodes a speed magnitude in the 10-bit "value+1" form
func velocityComponent(v float64) uint32 {
	raw := uint32(math.Abs(v)+0.5) + 1
	if raw > 1023 {
		raw = 1023
	}
	return raw
}
