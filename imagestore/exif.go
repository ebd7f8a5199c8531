package imagestore

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"

	"civiceye/geo"
	"civiceye/models"
)

// ExtractGPS reads the position embedded in the image metadata. Returns nil
// when the image carries no usable location.
func ExtractGPS(data []byte) *models.Location {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	lat, lon, err := x.LatLong()
	if err != nil {
		return nil
	}
	if !geo.ValidCoordinates(lat, lon) {
		return nil
	}
	return &models.Location{Latitude: lat, Longitude: lon}
}
