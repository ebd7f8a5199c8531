package geo

import (
	"strings"

	"civiceye/models"
)

// City is a predefined city boundary.
type City struct {
	Name   string          `json:"name"`
	Center models.Location `json:"center"`
	Bounds Bounds          `json:"bounds"`
}

var cities = map[string]City{
	"pune": {
		Name:   "pune",
		Center: models.Location{Latitude: 18.5204, Longitude: 73.8567},
		Bounds: Bounds{North: 18.6298, South: 18.4109, East: 73.9345, West: 73.7788},
	},
	"mumbai": {
		Name:   "mumbai",
		Center: models.Location{Latitude: 19.0760, Longitude: 72.8777},
		Bounds: Bounds{North: 19.2695, South: 18.8826, East: 72.9781, West: 72.7767},
	},
	"bangalore": {
		Name:   "bangalore",
		Center: models.Location{Latitude: 12.9716, Longitude: 77.5946},
		Bounds: Bounds{North: 13.1394, South: 12.8039, East: 77.7815, West: 77.4076},
	},
}

// CityInfo returns the predefined boundary for a city, matched case-insensitively.
func CityInfo(name string) (City, bool) {
	c, ok := cities[strings.ToLower(name)]
	return c, ok
}

// InCity reports whether the point falls inside a predefined city boundary.
// Unknown cities are never a match.
func InCity(point models.Location, name string) bool {
	c, ok := CityInfo(name)
	if !ok {
		return false
	}
	return c.Bounds.South <= point.Latitude && point.Latitude <= c.Bounds.North &&
		c.Bounds.West <= point.Longitude && point.Longitude <= c.Bounds.East
}
