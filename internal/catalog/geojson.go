package catalog

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection renders matches as GeoJSON point features for map
// clients. Coordinates are (lon, lat) as GeoJSON requires.
func FeatureCollection(matches []Match) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(matches))}
	for _, m := range matches {
		props := map[string]interface{}{
			"name":        m.Name,
			"category":    m.Category,
			"distance_km": m.DistanceKm,
		}
		if m.Address != nil {
			props["address"] = *m.Address
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         m.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{m.Lon, m.Lat}),
			Properties: props,
		})
	}
	return fc
}
