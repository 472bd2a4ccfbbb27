package adsb

import (
	"fmt"
	"math"
	"strings"
)

// bits extracts bits first..last (1-based, inclusive, at most 32) from data
func bits(data []byte, first, last int) uint32 {
	var v uint32
	for i := first - 1; i < last; i++ {
		v <<= 1
		if data[i/8]&(0x80>>(i%8)) != 0 {
			v |= 1
		}
	}
	return v
}

// setBits writes v into bits first..last (1-based, inclusive) of data
func setBits(data []byte, first, last int, v uint32) {
	for i := last - 1; i >= first-1; i-- {
		mask := byte(0x80 >> (i % 8))
		if v&1 != 0 {
			data[i/8] |= mask
		} else {
			data[i/8] &^= mask
		}
		v >>= 1
	}
}

// extractCallsign decodes the eight 6-bit characters of an identification
// message (ME bits 9-56)
func extractCallsign(me []byte) (string, bool) {
	var callsign [8]byte
	for i := range callsign {
		first := 9 + i*6
		callsign[i] = ADSBCharset[bits(me, first, first+5)]
	}

	for _, c := range callsign {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == ' ') {
			return "", false
		}
	}

	result := strings.TrimRight(string(callsign[:]), " ")
	if result == "" {
		return "", false
	}
	return result, true
}

// extractCategory renders the emitter category as set letter + code, e.g.
// "A3". TC4 is set A, TC1 is set D.
func extractCategory(me []byte) string {
	tc := bits(me, 1, 5)
	ca := bits(me, 6, 8)
	return fmt.Sprintf("%c%d", 'A'+rune(4-tc), ca)
}

// decodeAC12 decodes a 12-bit altitude field (dump1090's decodeAC12Field)
func decodeAC12(ac12 uint32) (int, bool) {
	if ac12 == 0 {
		return 0, false
	}

	if ac12&0x10 != 0 {
		// 25-foot resolution: N is the 11-bit integer with the Q bit removed
		n := ((ac12 & 0x0FE0) >> 1) | (ac12 & 0x000F)
		return int(n)*25 - 1000, true
	}

	// 100-foot Gillham code: insert M=0 at bit 6 to get a 13-bit field
	n13 := ((ac12 & 0x0FC0) << 1) | (ac12 & 0x003F)
	hundreds, ok := modeAToModeC(decodeID13(n13))
	if !ok || hundreds < -12 {
		return 0, false
	}
	return hundreds * 100, true
}

// decodeID13 reorders a 13-bit identity field into hex-digit Mode A form
// (0xABCD, one octal digit per nibble)
func decodeID13(id13 uint32) uint32 {
	var hex uint32
	if id13&0x1000 != 0 {
		hex |= 0x0010 // C1
	}
	if id13&0x0800 != 0 {
		hex |= 0x1000 // A1
	}
	if id13&0x0400 != 0 {
		hex |= 0x0020 // C2
	}
	if id13&0x0200 != 0 {
		hex |= 0x2000 // A2
	}
	if id13&0x0100 != 0 {
		hex |= 0x0040 // C4
	}
	if id13&0x0080 != 0 {
		hex |= 0x4000 // A4
	}
	if id13&0x0020 != 0 {
		hex |= 0x0100 // B1
	}
	if id13&0x0010 != 0 {
		hex |= 0x0001 // D1
	}
	if id13&0x0008 != 0 {
		hex |= 0x0200 // B2
	}
	if id13&0x0004 != 0 {
		hex |= 0x0002 // D2
	}
	if id13&0x0002 != 0 {
		hex |= 0x0400 // B4
	}
	if id13&0x0001 != 0 {
		hex |= 0x0004 // D4
	}
	return hex
}

// modeAToModeC converts a Gillham-coded Mode A value into hundreds of feet
func modeAToModeC(modeA uint32) (int, bool) {
	if modeA&0xFFFF8889 != 0 || modeA&0x000000F0 == 0 {
		return 0, false
	}

	var oneHundreds, fiveHundreds uint32
	if modeA&0x0010 != 0 {
		oneHundreds ^= 0x007 // C1
	}
	if modeA&0x0020 != 0 {
		oneHundreds ^= 0x003 // C2
	}
	if modeA&0x0040 != 0 {
		oneHundreds ^= 0x001 // C4
	}

	// Remove 7s from oneHundreds (7 -> 5, 5 -> 7)
	if oneHundreds&5 == 5 {
		oneHundreds ^= 2
	}
	if oneHundreds > 5 {
		return 0, false
	}

	if modeA&0x0002 != 0 {
		fiveHundreds ^= 0x0FF // D2
	}
	if modeA&0x0004 != 0 {
		fiveHundreds ^= 0x07F // D4
	}
	if modeA&0x1000 != 0 {
		fiveHundreds ^= 0x03F // A1
	}
	if modeA&0x2000 != 0 {
		fiveHundreds ^= 0x01F // A2
	}
	if modeA&0x4000 != 0 {
		fiveHundreds ^= 0x00F // A4
	}
	if modeA&0x0100 != 0 {
		fiveHundreds ^= 0x007 // B1
	}
	if modeA&0x0200 != 0 {
		fiveHundreds ^= 0x003 // B2
	}
	if modeA&0x0400 != 0 {
		fiveHundreds ^= 0x001 // B4
	}

	if fiveHundreds&1 != 0 {
		oneHundreds = 6 - oneHundreds
	}

	return int(fiveHundreds*5+oneHundreds) - 13, true
}

// extractCPR reads the odd flag and 17-bit CPR coordinates (ME bits 22-56)
func extractCPR(me []byte) CPRFrame {
	return CPRFrame{
		Odd: bits(me, 22, 22) == 1,
		Lat: bits(me, 23, 39),
		Lon: bits(me, 40, 56),
	}
}

// extractVelocity decodes an airborne velocity message (TC19) into report
func extractVelocity(me []byte, report *Report) error {
	subtype := bits(me, 6, 8)

	switch subtype {
	case 1, 2:
		// Ground speed from east-west and north-south components
		ewRaw := bits(me, 15, 24)
		nsRaw := bits(me, 26, 35)
		if ewRaw != 0 && nsRaw != 0 {
			scale := float64(int(1) << (subtype - 1)) // subtype 2 is supersonic, 4 kt units
			ew := float64(ewRaw-1) * scale
			if bits(me, 14, 14) == 1 {
				ew = -ew
			}
			ns := float64(nsRaw-1) * scale
			if bits(me, 25, 25) == 1 {
				ns = -ns
			}

			speed := math.Hypot(ew, ns)
			heading := math.Atan2(ew, ns) * 180.0 / math.Pi
			if heading < 0 {
				heading += 360
			}
			report.GroundSpeed = &speed
			report.Heading = &heading
		}

	case 3, 4:
		// Airspeed with magnetic heading; not a ground vector
		if bits(me, 14, 14) == 1 {
			heading := float64(bits(me, 15, 24)) * 360.0 / 1024.0
			report.MagneticHeading = &heading
		}
		if raw := bits(me, 26, 35); raw != 0 {
			speed := float64(raw-1) * float64(int(1)<<(subtype-3))
			kind := AirspeedIndicated
			if bits(me, 25, 25) == 1 {
				kind = AirspeedTrue
			}
			report.Airspeed = &speed
			report.AirspeedType = &kind
		}

	default:
		return fmt.Errorf("%w: velocity subtype %d", ErrInvalidSubtype, subtype)
	}

	if raw := bits(me, 38, 46); raw != 0 {
		rate := int(raw-1) * 64
		if bits(me, 37, 37) == 1 {
			rate = -rate
		}
		report.VerticalRate = &rate
	}

	if report.GroundSpeed == nil && report.Heading == nil && report.Airspeed == nil &&
		report.MagneticHeading == nil && report.VerticalRate == nil {
		return ErrNoInformation
	}

	airborne := false
	report.OnGround = &airborne
	return nil
}

// extractStatusSquawk reads the Mode A code from an emergency/priority
// status message (TC28 subtype 1)
func extractStatusSquawk(me []byte) (string, error) {
	if subtype := bits(me, 6, 8); subtype != 1 {
		return "", fmt.Errorf("%w: status subtype %d", ErrInvalidSubtype, subtype)
	}

	id13 := bits(me, 12, 24)
	if id13 == 0 {
		return "", ErrNoInformation
	}
	return fmt.Sprintf("%04x", decodeID13(id13)), nil
}
