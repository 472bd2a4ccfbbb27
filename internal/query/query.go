// Package query answers read-only questions about the tracked aircraft.
package query

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"spotter/internal/adsb"
	"spotter/internal/registry"
)

// ErrNotFound is returned by ByID for well-formed but untracked identifiers
var ErrNotFound = registry.ErrNotFound

// Source is the registry view the engine reads from
type Source interface {
	Snapshot() map[adsb.ICAO]registry.Entity
	Get(icao adsb.ICAO) (registry.Entity, error)
	Len() int
}

// Match pairs an identifier with its entity. It serializes as a
// two-element JSON array.
type Match struct {
	ICAO   adsb.ICAO
	Entity registry.Entity
}

// MarshalJSON renders the match as [icao, entity]
func (m Match) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{m.ICAO, m.Entity})
}

// Engine runs queries against a Source
type Engine struct {
	source Source
}

// NewEngine creates a query engine
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// All returns every tracked entity
func (e *Engine) All() map[adsb.ICAO]registry.Entity {
	return e.source.Snapshot()
}

// Count returns the number of tracked entities
func (e *Engine) Count() int {
	return e.source.Len()
}

// Nearest returns the entity closest to the observer, or nil when no
// entity has a known distance
func (e *Engine) Nearest() *Match {
	return e.extreme(func(candidate, best float64) bool { return candidate < best })
}

// Farthest returns the entity furthest from the observer, or nil when no
// entity has a known distance
func (e *Engine) Farthest() *Match {
	return e.extreme(func(candidate, best float64) bool { return candidate > best })
}

// extreme scans one snapshot for the entity whose distance beats all
// others. Equal distances go to the lowest ICAO address.
func (e *Engine) extreme(better func(candidate, best float64) bool) *Match {
	var best *Match
	for icao, entity := range e.source.Snapshot() {
		if entity.Distance == nil {
			continue
		}
		if best == nil {
			best = &Match{ICAO: icao, Entity: entity}
			continue
		}

		d, bestD := *entity.Distance, *best.Entity.Distance
		if better(d, bestD) || (d == bestD && icao < best.ICAO) {
			best = &Match{ICAO: icao, Entity: entity}
		}
	}
	return best
}

// ByID looks up an entity by its textual ICAO address. Malformed input
// yields adsb.ErrInvalidICAO, untracked addresses ErrNotFound.
func (e *Engine) ByID(id string) (registry.Entity, error) {
	icao, err := adsb.ParseICAO(id)
	if err != nil {
		return registry.Entity{}, err
	}

	entity, err := e.source.Get(icao)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return registry.Entity{}, fmt.Errorf("%s: %w", icao, ErrNotFound)
		}
		return registry.Entity{}, err
	}
	return entity, nil
}
