package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"clientmap/internal"
	"clientmap/internal/util"
)

// Locator resolves a city to coordinates. Implementations report misses
// with ok=false and never fail the caller.
type Locator interface {
	Locate(ctx context.Context, q internal.CityQuery) (internal.Coordinate, bool)
}

// LocatorChain asks each locator in order; the first hit wins.
type LocatorChain []Locator

func (c LocatorChain) Locate(ctx context.Context, q internal.CityQuery) (internal.Coordinate, bool) {
	for _, l := range c {
		if l == nil {
			continue
		}
		if coord, ok := l.Locate(ctx, q); ok {
			return coord, true
		}
	}
	return internal.Coordinate{}, false
}

type locateResult struct {
	coord internal.Coordinate
	ok    bool
}

type entityState struct {
	entity    internal.Entity
	equipment map[string]struct{}
}

// Aggregator merges rows by normalized name. Iteration order of the result
// is the order in which each key was first seen.
type Aggregator struct {
	locator   Locator
	refiner   *util.CityRefiner
	extractor *EquipmentExtractor
	logger    *slog.Logger

	entities map[string]*entityState
	order    []string

	located    map[string]locateResult
	unresolved []string

	stats internal.RunStats
}

func NewAggregator(locator Locator, refiner *util.CityRefiner, extractor *EquipmentExtractor, logger *slog.Logger) *Aggregator {
	if locator == nil {
		locator = LocatorChain{}
	}
	if refiner == nil {
		refiner = util.NewCityRefiner(util.DefaultCityPrefixes)
	}
	if extractor == nil {
		extractor = defaultEquipmentExtractor
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		locator:   locator,
		refiner:   refiner,
		extractor: extractor,
		logger:    logger,
		entities:  map[string]*entityState{},
		located:   map[string]locateResult{},
	}
}

// Add folds one row into the result. Rows without a usable name are
// skipped; a row that fails mid-way is counted and dropped.
func (a *Aggregator) Add(ctx context.Context, row internal.RawRecord) (err error) {
	a.stats.Rows++
	defer func() {
		if r := recover(); r != nil {
			a.stats.Failed++
			err = fmt.Errorf("line %d: %v", row.LineNo, r)
		}
	}()

	name := strings.TrimSpace(row.Name)
	key := util.Normalize(name)
	if key == "" {
		a.stats.Skipped++
		return nil
	}

	label, hasLabel := a.extractor.Extract(row.EquipmentRaw)

	state, exists := a.entities[key]
	if !exists {
		state = a.newEntity(ctx, name, row)
		a.entities[key] = state
		a.order = append(a.order, key)
	}
	if hasLabel {
		state.equipment[label] = struct{}{}
	}
	return nil
}

func (a *Aggregator) newEntity(ctx context.Context, name string, row internal.RawRecord) *entityState {
	city := strings.TrimSpace(row.City)
	state := &entityState{
		entity: internal.Entity{
			Name:    name,
			TaxID:   strings.TrimSpace(row.TaxID),
			City:    city,
			Contact: strings.TrimSpace(row.Contact),
			Phone:   strings.TrimSpace(row.Phone),
		},
		equipment: map[string]struct{}{},
	}

	q := internal.CityQuery{Key: a.refiner.Refine(city), Display: city}
	if q.Key == "" {
		return state
	}
	if res := a.locate(ctx, q); res.ok {
		state.entity.Latitude = util.FloatPtr(res.coord.Latitude)
		state.entity.Longitude = util.FloatPtr(res.coord.Longitude)
	}
	return state
}

// locate asks the chain at most once per refined city key; hits and misses
// are both remembered for the rest of the batch.
func (a *Aggregator) locate(ctx context.Context, q internal.CityQuery) locateResult {
	if res, ok := a.located[q.Key]; ok {
		return res
	}
	coord, ok := a.locator.Locate(ctx, q)
	res := locateResult{coord: coord, ok: ok}
	a.located[q.Key] = res
	if !ok {
		a.logger.Debug("city unresolved", "city", q.Display, "key", q.Key)
		a.unresolved = append(a.unresolved, q.Display)
	}
	return res
}

// Finalize converts the accumulated state into the exported sequence,
// sorting each equipment set once.
func (a *Aggregator) Finalize() []internal.Entity {
	out := make([]internal.Entity, 0, len(a.order))
	for _, key := range a.order {
		state := a.entities[key]
		entity := state.entity
		entity.Equipment = make([]string, 0, len(state.equipment))
		for label := range state.equipment {
			entity.Equipment = append(entity.Equipment, label)
		}
		sort.Strings(entity.Equipment)
		out = append(out, entity)
	}
	return out
}

func (a *Aggregator) Stats() internal.RunStats {
	stats := a.stats
	stats.Entities = len(a.order)
	stats.WithCoordinates = 0
	for _, key := range a.order {
		if a.entities[key].entity.HasCoordinates() {
			stats.WithCoordinates++
		}
	}
	stats.UnresolvedCities = append([]string(nil), a.unresolved...)
	return stats
}

// Aggregate runs a full batch over rows and returns the finalized entities.
func Aggregate(ctx context.Context, rows []internal.RawRecord, agg *Aggregator) ([]internal.Entity, internal.RunStats) {
	for _, row := range rows {
		if err := agg.Add(ctx, row); err != nil {
			agg.logger.Warn("row skipped", "error", err)
		}
	}
	return agg.Finalize(), agg.Stats()
}
