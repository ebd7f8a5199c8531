package detector

import (
	"strconv"
	"strings"

	"github.com/apex/log"

	"civiceye/geo"
	"civiceye/models"
)

// isNear reports whether the submitted location sits within the proximity
// threshold of any recent report. Malformed or out-of-range coordinates
// count as suspicious.
func (d *Detector) isNear(latitude, longitude string, recent []models.Report) bool {
	if latitude == "" || longitude == "" {
		return false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latitude), 64)
	if err != nil {
		log.Warnf("error parsing latitude %q: %v", latitude, err)
		return true
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(longitude), 64)
	if err != nil {
		log.Warnf("error parsing longitude %q: %v", longitude, err)
		return true
	}

	if !geo.ValidCoordinates(lat, lon) {
		log.Warnf("invalid coordinates: %v, %v", lat, lon)
		return true
	}

	for i := range recent {
		loc := recent[i].Location
		if loc == nil {
			continue
		}
		distance := geo.HaversineKm(lat, lon, loc.Latitude, loc.Longitude)
		if distance <= d.cfg.ProximityKm {
			log.Debugf("found nearby report within %.0fm", distance*1000)
			return true
		}
	}
	return false
}
