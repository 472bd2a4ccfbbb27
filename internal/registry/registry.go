// Package registry is the live store of tracked aircraft.
//
// A single ingestion goroutine writes into the Registry while any number of
// HTTP handlers read from it. Every operation, read or write, runs under one
// sync.Mutex covering the whole map, so readers never observe a half-merged
// entity. Readers and the writer contend for the same lock; this is a known
// simplification and a burst of queries can delay ingestion and vice versa.
package registry

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"spotter/internal/adsb"
	"spotter/internal/geo"
)

// ErrNotFound is returned by Get for identifiers that are not tracked
var ErrNotFound = errors.New("aircraft not tracked")

// Options configures a Registry
type Options struct {
	// Observer is the fixed point distances are measured from
	Observer geo.Point

	// MaxRange rejects decoded positions further than this from the
	// observer, in kilometres
	MaxRange float64

	// Now is the clock; defaults to time.Now
	Now func() time.Time

	Logger *logrus.Logger
}

// Registry maps ICAO addresses to tracked entities
type Registry struct {
	mu       sync.Mutex
	entities map[adsb.ICAO]*Entity

	observer geo.Point
	maxRange float64
	now      func() time.Time
	logger   *logrus.Logger
}

// New creates an empty registry
func New(opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}

	return &Registry{
		entities: make(map[adsb.ICAO]*Entity),
		observer: opts.Observer,
		maxRange: opts.MaxRange,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// Observer returns the fixed observation point
func (r *Registry) Observer() geo.Point {
	return r.observer
}

// Upsert merges a decoded report into the entity for its address, creating
// the entity if needed. Only fields present in the report are written.
func (r *Registry) Upsert(report *adsb.Report) {
	if report == nil {
		return
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[report.ICAO]
	if !ok {
		e = &Entity{ICAO: report.ICAO}
		r.entities[report.ICAO] = e
		r.logger.WithField("icao", report.ICAO.String()).Debug("Tracking new aircraft")
	}

	e.merge(report)
	if report.Position != nil {
		r.mergePosition(e, *report.Position, now)
	}

	e.Messages++
	e.LastSeen = now
}

// mergePosition stores a CPR frame and, when it resolves to a position
// inside MaxRange, updates the position and distance
func (r *Registry) mergePosition(e *Entity, frame adsb.CPRFrame, now time.Time) {
	sample := &cprSample{frame: frame, at: now}
	if frame.Odd {
		e.odd = sample
	} else {
		e.even = sample
	}

	var lat, lon float64
	ok := false

	if e.even != nil && e.odd != nil && absDuration(e.even.at.Sub(e.odd.at)) <= adsb.CPRPairWindow*time.Second {
		lat, lon, ok = adsb.DecodeGlobal(e.even.frame, e.odd.frame, frame.Odd)
	}
	if !ok && e.Latitude != nil && e.Longitude != nil {
		lat, lon, ok = adsb.DecodeLocal(frame, *e.Latitude, *e.Longitude)
	}
	if !ok {
		return
	}

	pos := geo.Point{Latitude: lat, Longitude: lon}
	distance := geo.DistanceKm(r.observer, pos)
	if distance > r.maxRange {
		r.logger.WithFields(logrus.Fields{
			"icao":     e.ICAO.String(),
			"distance": distance,
		}).Debug("Discarding position beyond max range")
		return
	}

	e.Latitude = &lat
	e.Longitude = &lon
	e.Distance = &distance
}

// Evict removes every entity not updated for longer than maxAge and returns
// how many were removed
func (r *Registry) Evict(maxAge time.Duration) int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for icao, e := range r.entities {
		if now.Sub(e.LastSeen) > maxAge {
			delete(r.entities, icao)
			removed++
		}
	}

	if removed > 0 {
		r.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(r.entities),
		}).Debug("Evicted stale aircraft")
	}
	return removed
}

// Snapshot copies every entity at a single point in time
func (r *Registry) Snapshot() map[adsb.ICAO]Entity {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[adsb.ICAO]Entity, len(r.entities))
	for icao, e := range r.entities {
		snapshot[icao] = e.clone()
	}
	return snapshot
}

// Get returns a copy of one entity
func (r *Registry) Get(icao adsb.ICAO) (Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entities[icao]
	if !ok {
		return Entity{}, ErrNotFound
	}
	return e.clone(), nil
}

// Len returns the number of tracked entities
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entities)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
