package registry

import (
	"time"

	"spotter/internal/adsb"
)

// Entity is the merged state of one aircraft. Optional fields stay nil
// until a report carrying them arrives. Pointer fields are replaced on
// merge, never written through, so copies of an Entity share nothing
// mutable with the registry.
type Entity struct {
	ICAO            adsb.ICAO `json:"icao"`
	Callsign        *string   `json:"callsign"`
	Category        *string   `json:"category"`
	Squawk          *string   `json:"squawk"`
	Altitude        *int      `json:"altitude"`
	Latitude        *float64  `json:"latitude"`
	Longitude       *float64  `json:"longitude"`
	GroundSpeed     *float64  `json:"ground_speed"`
	Heading         *float64  `json:"heading"`
	Airspeed        *float64  `json:"airspeed"`
	AirspeedType    *string   `json:"airspeed_type"`
	MagneticHeading *float64  `json:"magnetic_heading"`
	VerticalRate    *int      `json:"vertical_rate"`
	OnGround        *bool     `json:"on_ground"`
	Distance        *float64  `json:"distance"` // km from the observer
	Messages        uint64    `json:"messages"`
	LastSeen        time.Time `json:"last_seen"`

	even *cprSample
	odd  *cprSample
}

// cprSample is the latest CPR frame of one parity and when it arrived
type cprSample struct {
	frame adsb.CPRFrame
	at    time.Time
}

// HasPosition reports whether a position has been resolved
func (e *Entity) HasPosition() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// merge copies every field present in report, leaving the rest untouched.
// Position is handled by the registry because it needs the observer.
func (e *Entity) merge(report *adsb.Report) {
	if report.Callsign != nil {
		e.Callsign = copyOf(report.Callsign)
	}
	if report.Category != nil {
		e.Category = copyOf(report.Category)
	}
	if report.Squawk != nil {
		e.Squawk = copyOf(report.Squawk)
	}
	if report.Altitude != nil {
		e.Altitude = copyOf(report.Altitude)
	}
	if report.OnGround != nil {
		e.OnGround = copyOf(report.OnGround)
	}
	if report.GroundSpeed != nil {
		e.GroundSpeed = copyOf(report.GroundSpeed)
	}
	if report.Heading != nil {
		e.Heading = copyOf(report.Heading)
	}
	if report.Airspeed != nil {
		e.Airspeed = copyOf(report.Airspeed)
		e.AirspeedType = copyOf(report.AirspeedType)
	}
	if report.MagneticHeading != nil {
		e.MagneticHeading = copyOf(report.MagneticHeading)
	}
	if report.VerticalRate != nil {
		e.VerticalRate = copyOf(report.VerticalRate)
	}
}

// clone returns a detached copy without the CPR bookkeeping
func (e *Entity) clone() Entity {
	c := *e
	c.even = nil
	c.odd = nil
	return c
}

func copyOf[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
