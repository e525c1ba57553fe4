// Package catalog keeps the service-point catalog in memory and answers
// nearest and radius queries over it by linear scan.
package catalog

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/geo"
	"fleet_tracker/internal/metrics"
	"fleet_tracker/internal/models"
)

// ErrNotFound is returned by Nearest when no point matches the filter.
var ErrNotFound = apperr.ErrNotFound

// Repository is the durable side of the catalog.
type Repository interface {
	UpsertServicePoint(ctx context.Context, p *models.ServicePoint) error
	ListServicePoints(ctx context.Context) ([]models.ServicePoint, error)
}

// Match is a service point together with its distance from the query.
// DistanceKm is rounded to two decimals.
type Match struct {
	models.ServicePoint
	DistanceKm float64 `json:"distance_km"`
}

// snapshot is immutable once published.
type snapshot struct {
	points []models.ServicePoint
	byID   map[string]int
}

// Index serves reads from an immutable snapshot; writers build a new one
// and swap it in after the store write succeeds.
type Index struct {
	repo Repository
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewIndex returns an empty index; call Reload to load the stored catalog.
func NewIndex(repo Repository) *Index {
	idx := &Index{repo: repo}
	idx.snap.Store(&snapshot{byID: map[string]int{}})
	return idx
}

// Reload replaces the in-memory catalog with the store's contents.
func (i *Index) Reload(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	points, err := i.repo.ListServicePoints(ctx)
	if err != nil {
		return err
	}

	s := &snapshot{points: points, byID: make(map[string]int, len(points))}
	for n, p := range points {
		s.byID[p.ID] = n
	}

	i.snap.Store(s)

	logrus.WithField("points", len(points)).Debug("Service point catalog reloaded.")
	return nil
}

// Upsert validates p, writes it to the store and then to the snapshot. A
// known id keeps its catalog position; a new id is appended.
func (i *Index) Upsert(ctx context.Context, p models.ServicePoint) (models.ServicePoint, error) {
	p, err := models.NewServicePoint(p.ID, p.Name, p.Category, p.Address, p.Lat, p.Lon)
	if err != nil {
		return models.ServicePoint{}, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.repo.UpsertServicePoint(ctx, &p); err != nil {
		return models.ServicePoint{}, err
	}

	cur := i.snap.Load()
	next := &snapshot{
		points: make([]models.ServicePoint, len(cur.points), len(cur.points)+1),
		byID:   make(map[string]int, len(cur.byID)+1),
	}
	copy(next.points, cur.points)
	for id, n := range cur.byID {
		next.byID[id] = n
	}
	if n, ok := next.byID[p.ID]; ok {
		next.points[n] = p
	} else {
		next.byID[p.ID] = len(next.points)
		next.points = append(next.points, p)
	}
	i.snap.Store(next)

	return p, nil
}

// Get returns the cataloged point with the given id.
func (i *Index) Get(id string) (models.ServicePoint, bool) {
	s := i.snap.Load()
	n, ok := s.byID[id]
	if !ok {
		return models.ServicePoint{}, false
	}
	return s.points[n], true
}

// All returns a copy of the catalog in catalog order.
func (i *Index) All() []models.ServicePoint {
	s := i.snap.Load()
	out := make([]models.ServicePoint, len(s.points))
	copy(out, s.points)
	return out
}

// Len reports the number of cataloged points.
func (i *Index) Len() int {
	return len(i.snap.Load().points)
}

// Nearest returns the closest point of the given category, or of any
// category when category is empty. Equal distances resolve to the point
// that comes first in catalog order.
func (i *Index) Nearest(lat, lon float64, category string) (Match, error) {
	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return Match{}, err
	}
	metrics.CatalogQueries.WithLabelValues("nearest").Inc()

	var (
		best  *models.ServicePoint
		bestD = math.Inf(1)
	)
	points := i.snap.Load().points
	for n := range points {
		p := &points[n]
		if category != "" && p.Category != category {
			continue
		}
		d := geo.Haversine(lat, lon, p.Lat, p.Lon)
		if best == nil || d < bestD {
			best, bestD = p, d
		}
	}

	if best == nil {
		return Match{}, ErrNotFound
	}
	return Match{ServicePoint: *best, DistanceKm: geo.Round2(bestD)}, nil
}

// WithinRadius returns every matching point no farther than radiusKm,
// closest first. Equal distances keep catalog order.
func (i *Index) WithinRadius(lat, lon, radiusKm float64, category string) ([]Match, error) {
	if err := geo.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) || radiusKm < 0 {
		return nil, apperr.Invalid("radius_km", "must be a non-negative number")
	}
	metrics.CatalogQueries.WithLabelValues("radius").Inc()

	type hit struct {
		p models.ServicePoint
		d float64
	}
	var hits []hit
	for _, p := range i.snap.Load().points {
		if category != "" && p.Category != category {
			continue
		}
		if d := geo.Haversine(lat, lon, p.Lat, p.Lon); d <= radiusKm {
			hits = append(hits, hit{p: p, d: d})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].d < hits[b].d })

	out := make([]Match, len(hits))
	for n, h := range hits {
		out[n] = Match{ServicePoint: h.p, DistanceKm: geo.Round2(h.d)}
	}
	return out, nil
}
