package adsb

import (
	"errors"
	"fmt"
)

// Decode failures. All of them are routine on a live feed.
var (
	ErrFrameLength       = errors.New("unexpected frame length")
	ErrUnsupportedFormat = errors.New("unsupported downlink format")
	ErrBadParity         = errors.New("parity check failed")
	ErrUnsupportedType   = errors.New("unsupported extended squitter type")
	ErrInvalidSubtype    = errors.New("unsupported message subtype")
	ErrNoInformation     = errors.New("message carries no usable fields")
)

// Frame is a raw 112-bit Mode S frame
type Frame [LongFrameBytes]byte

// GetDF extracts the Downlink Format
func (f *Frame) GetDF() uint8 {
	return (f[0] >> 3) & 0x1F
}

// GetICAO extracts the announced address (AA field)
func (f *Frame) GetICAO() ICAO {
	return ICAO(uint32(f[1])<<16 | uint32(f[2])<<8 | uint32(f[3]))
}

// GetTypeCode extracts the extended squitter Type Code
func (f *Frame) GetTypeCode() uint8 {
	return (f[4] >> 3) & 0x1F
}

// ME returns the 56-bit Message Extended field
func (f *Frame) ME() []byte {
	return f[4:11]
}

// Report is the decoded content of a single extended squitter. Fields are
// nil when the message did not carry them.
type Report struct {
	ICAO      ICAO
	DF        uint8
	TypeCode  uint8
	Corrected int // bits repaired by the parity check

	Callsign     *string
	Category     *string
	Squawk       *string
	Altitude     *int // feet
	OnGround     *bool
	Position     *CPRFrame
	GroundSpeed  *float64 // knots
	Heading      *float64 // track, degrees from true north
	VerticalRate *int     // feet per minute

	// Set by airspeed velocity messages (subtypes 3 and 4) instead of
	// GroundSpeed and Heading
	Airspeed        *float64 // knots
	AirspeedType    *string  // AirspeedIndicated or AirspeedTrue
	MagneticHeading *float64 // degrees from magnetic north
}

// Airspeed kinds carried by velocity subtypes 3 and 4
const (
	AirspeedIndicated = "IAS"
	AirspeedTrue      = "TAS"
)

// Decode turns a raw frame into a Report. It keeps no state between calls.
func Decode(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, ErrFrameLength
	}

	df := (data[0] >> 3) & 0x1F
	if df != DFExtendedSquitter && df != DFNonTransponder {
		return nil, fmt.Errorf("%w: DF%d", ErrUnsupportedFormat, df)
	}

	if len(data) != LongFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameLength, len(data))
	}

	var frame Frame
	copy(frame[:], data)

	corrected, ok := checkParity(&frame)
	if !ok {
		return nil, ErrBadParity
	}

	report := &Report{
		ICAO:      frame.GetICAO(),
		DF:        df,
		TypeCode:  frame.GetTypeCode(),
		Corrected: corrected,
	}

	me := frame.ME()
	tc := report.TypeCode

	switch {
	case tc >= 1 && tc <= 4:
		// Aircraft identification
		callsign, ok := extractCallsign(me)
		if ok {
			report.Callsign = &callsign
		}
		category := extractCategory(me)
		report.Category = &category

	case tc >= 5 && tc <= 8:
		// Surface position: only the ground state is used
		onGround := true
		report.OnGround = &onGround

	case tc >= 9 && tc <= 18:
		// Airborne position with barometric altitude
		if alt, ok := decodeAC12(bits(me, 9, 20)); ok {
			report.Altitude = &alt
		}
		airborne := false
		report.OnGround = &airborne
		pos := extractCPR(me)
		report.Position = &pos

	case tc == 19:
		if err := extractVelocity(me, report); err != nil {
			return nil, err
		}

	case tc >= 20 && tc <= 22:
		// Airborne position with GNSS height in meters
		if raw := bits(me, 9, 20); raw != 0 {
			alt := int(float64(raw)*metersToFeet + 0.5)
			report.Altitude = &alt
		}
		airborne := false
		report.OnGround = &airborne
		pos := extractCPR(me)
		report.Position = &pos

	case tc == 28:
		squawk, err := extractStatusSquawk(me)
		if err != nil {
			return nil, err
		}
		report.Squawk = &squawk

	default:
		return nil, fmt.Errorf("%w: TC%d", ErrUnsupportedType, tc)
	}

	return report, nil
}
