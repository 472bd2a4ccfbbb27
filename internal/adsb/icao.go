package adsb

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidICAO is returned when a string is not a 24-bit hex address
var ErrInvalidICAO = errors.New("invalid ICAO address")

// ICAO is a 24-bit Mode S transponder address
type ICAO uint32

// ParseICAO parses exactly six hex digits, in either case
func ParseICAO(s string) (ICAO, error) {
	if len(s) != 6 {
		return 0, fmt.Errorf("%w: %q must be 6 hex digits", ErrInvalidICAO, s)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidICAO, s)
	}

	return ICAO(v), nil
}

// String renders the address as six lower-case hex digits
func (a ICAO) String() string {
	return fmt.Sprintf("%06x", uint32(a)&0xFFFFFF)
}

// MarshalText lets ICAO values serialize as strings and map keys
func (a ICAO) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
