package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

const geoJSONContentType = "application/geo+json"

func toPoint(c domain.Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// zoneFeatureCollection renders each zone as its center point with the
// radius carried in the properties.
func zoneFeatureCollection(zones []domain.Zone) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		f := geojson.NewFeature(toPoint(z.Center))
		f.ID = z.ID
		f.Properties["radiusMeters"] = z.RadiusMeters
		if z.Name != "" {
			f.Properties["name"] = z.Name
		}
		fc.Append(f)
	}
	return fc
}

func routeFeatureCollection(est *domain.RouteEstimate) *geojson.FeatureCollection {
	line := make(orb.LineString, len(est.Path))
	for i, c := range est.Path {
		line[i] = toPoint(c)
	}

	f := geojson.NewFeature(line)
	f.Properties["source"] = string(est.Source)
	f.Properties["approximate"] = est.Approximate
	if est.Minutes != nil {
		f.Properties["minutes"] = *est.Minutes
	}
	if est.DistanceKm != nil {
		f.Properties["distanceKm"] = *est.DistanceKm
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}

func writeGeoJSON(c *gin.Context, fc *geojson.FeatureCollection) {
	body, err := fc.MarshalJSON()
	if err != nil {
		log.Printf("marshal geojson error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render geojson"})
		return
	}
	c.Data(http.StatusOK, geoJSONContentType, body)
}
