package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apex/log"

	"civiceye/models"
)

const earthRadiusKm = 6371.0

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// HaversineKm returns the great circle distance between two points in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := radians(lat1)
	rlat2 := radians(lat2)
	dlat := rlat2 - rlat1
	dlon := radians(lon2) - radians(lon1)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// Distance returns the great circle distance between two locations in kilometers.
func Distance(a, b models.Location) float64 {
	return HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// ValidCoordinates reports whether the pair is inside WGS84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90.0 && lat <= 90.0 && lon >= -180.0 && lon <= 180.0
}

// NormalizeLocation parses and validates raw coordinate strings. It returns
// nil when either value is missing, unparsable, or out of range; submissions
// keep no location in those cases.
func NormalizeLocation(latitude, longitude string) *models.Location {
	latitude = strings.TrimSpace(latitude)
	longitude = strings.TrimSpace(longitude)
	if latitude == "" || longitude == "" {
		return nil
	}

	lat, err := strconv.ParseFloat(latitude, 64)
	if err != nil {
		log.Warnf("Error parsing latitude %q: %v", latitude, err)
		return nil
	}
	lon, err := strconv.ParseFloat(longitude, 64)
	if err != nil {
		log.Warnf("Error parsing longitude %q: %v", longitude, err)
		return nil
	}

	if lat < -90.0 || lat > 90.0 {
		log.Warnf("Invalid latitude: %v (must be between -90 and 90)", lat)
		return nil
	}
	if lon < -180.0 || lon > 180.0 {
		log.Warnf("Invalid longitude: %v (must be between -180 and 180)", lon)
		return nil
	}

	return &models.Location{Latitude: lat, Longitude: lon}
}

// FormatCoordinates renders a point like "18.520400°N, 73.856700°E".
func FormatCoordinates(lat, lon float64) string {
	if !ValidCoordinates(lat, lon) {
		return "Invalid coordinates"
	}
	latDir := "N"
	if lat < 0 {
		latDir = "S"
	}
	lonDir := "E"
	if lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.6f°%s, %.6f°%s", math.Abs(lat), latDir, math.Abs(lon), lonDir)
}

// Bounds is a bounding box in degrees.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// LocationBounds returns the bounding box around the given points, padded and
// clamped to valid coordinate ranges. Returns nil for an empty input.
func LocationBounds(coords []models.Location, padding float64) *Bounds {
	if len(coords) == 0 {
		return nil
	}

	b := &Bounds{North: -90.0, South: 90.0, East: -180.0, West: 180.0}
	for _, c := range coords {
		b.North = math.Max(b.North, c.Latitude)
		b.South = math.Min(b.South, c.Latitude)
		b.East = math.Max(b.East, c.Longitude)
		b.West = math.Min(b.West, c.Longitude)
	}

	b.North = math.Min(b.North+padding, 90.0)
	b.South = math.Max(b.South-padding, -90.0)
	b.East = math.Min(b.East+padding, 180.0)
	b.West = math.Max(b.West-padding, -180.0)
	return b
}

// WithinRadiusKm reports whether point lies within radiusKm of center.
func WithinRadiusKm(point, center models.Location, radiusKm float64) bool {
	return Distance(point, center) <= radiusKm
}
