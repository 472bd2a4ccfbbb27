package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"spotter/internal/adsb"
	"spotter/internal/geo"
)

const knotsToKmPerSecond = 0.000514444

// aircraft flies a circle of fixed radius around the centre
type aircraft struct {
	icao     adsb.ICAO
	callsign string
	radiusKm float64
	bearing  float64 // position on the circle, degrees from north
	altitude int
	speed    float64 // knots
	climb    int     // ft/min
}

// simulator owns one client's fleet
type simulator struct {
	center  geo.Point
	fleet   []*aircraft
	rng     *rand.Rand
	elapsed time.Duration
	bursts  int
	sent    int
}

func newSimulator(center geo.Point, count int, seed int64) *simulator {
	rng := rand.New(rand.NewSource(seed))
	s := &simulator{center: center, rng: rng}

	for i := 0; i < count; i++ {
		s.fleet = append(s.fleet, &aircraft{
			icao:     adsb.ICAO(0xA00000 + rng.Intn(0x0FFFFF)),
			callsign: fmt.Sprintf("SIM%04d", i+1),
			radiusKm: 5 + rng.Float64()*195,
			bearing:  rng.Float64() * 360,
			altitude: 2000 + rng.Intn(36)*1000,
			speed:    150 + rng.Float64()*330,
		})
	}
	return s
}

// position returns the aircraft's current location
func (s *simulator) position(ac *aircraft) geo.Point {
	return geo.Destination(s.center, ac.bearing, ac.radiusKm)
}

// track returns the direction of travel, perpendicular to the radius
func (ac *aircraft) track() float64 {
	return math.Mod(ac.bearing+90, 360)
}

// step advances every aircraft along its circle
func (s *simulator) step(dt time.Duration) {
	s.elapsed += dt
	for _, ac := range s.fleet {
		distance := ac.speed * knotsToKmPerSecond * dt.Seconds()
		ac.bearing = math.Mod(ac.bearing+distance/ac.radiusKm*180/math.Pi, 360)

		ac.climb = (s.rng.Intn(5) - 2) * 640
		ac.altitude += int(float64(ac.climb) * dt.Minutes())
		if ac.altitude < 1000 {
			ac.altitude = 1000
		}
		if ac.altitude > 41000 {
			ac.altitude = 41000
		}
	}
}

// clock returns the 12 MHz receiver clock used by Beast timestamps
func (s *simulator) clock() uint64 {
	return uint64(s.elapsed.Nanoseconds()) * 12 / 1000
}

// burst returns the frames for one interval: an even and odd position and
// a velocity per aircraft, identification every fifth burst and an
// occasional idle marker
func (s *simulator) burst() [][]byte {
	var frames [][]byte
	add := func(f adsb.Frame) {
		frames = append(frames, f[:])
	}

	for _, ac := range s.fleet {
		if s.bursts%5 == 0 {
			add(adsb.EncodeIdentification(ac.icao, ac.callsign))
		}
		pos := s.position(ac)
		add(adsb.EncodeAirbornePosition(ac.icao, ac.altitude, pos.Latitude, pos.Longitude, false))
		add(adsb.EncodeAirbornePosition(ac.icao, ac.altitude, pos.Latitude, pos.Longitude, true))
		add(adsb.EncodeVelocity(ac.icao, ac.speed, ac.track(), ac.climb))
	}

	if s.rng.Intn(4) == 0 {
		frames = append(frames, make([]byte, adsb.LongFrameBytes))
	}

	s.bursts++
	s.sent += len(frames)
	return frames
}
