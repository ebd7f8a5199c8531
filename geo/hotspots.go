package geo

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Viewport is the map window hotspot queries aggregate over.
type Viewport struct {
	LatMin float64 `json:"latmin"`
	LonMin float64 `json:"lonmin"`
	LatMax float64 `json:"latmax"`
	LonMax float64 `json:"lonmax"`
}

// ClusterPoint is one aggregated cluster of report locations.
type ClusterPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int64   `json:"count"`
}

type clusterCell struct {
	cnt      int64
	origCell s2.CellID
}

// Clusterer buckets points into s2 cells sized to the viewport.
type Clusterer struct {
	level int
	cells map[s2.CellID]*clusterCell
}

const (
	expectedCells = 160
	minCellLevel  = 6
	maxCellLevel  = 16
)

func cellBaseLevel(vp Viewport) int {
	minLL := s2.LatLngFromDegrees(vp.LatMin, vp.LonMin)
	maxLL := s2.LatLngFromDegrees(vp.LatMax, vp.LonMax)

	rect := s2.Rect{
		Lat: r1.Interval{
			Lo: minLL.Lat.Radians(),
			Hi: maxLL.Lat.Radians()},
		Lng: s1.Interval{
			Lo: minLL.Lng.Radians(),
			Hi: maxLL.Lng.Radians()},
	}

	vpArea := rect.Area()

	center := s2.CellIDFromLatLng(s2.LatLngFromDegrees(
		(vp.LatMin+vp.LatMax)/2, (vp.LonMin+vp.LonMax)/2))

	for lv := maxCellLevel; lv >= minCellLevel; lv-- {
		cc := s2.CellFromCellID(center.Parent(lv))
		if vpArea/cc.ApproxArea() < expectedCells {
			return lv
		}
	}
	return minCellLevel // Large enough level
}

// NewClusterer picks the cell level that keeps the viewport at a readable
// number of clusters.
func NewClusterer(vp Viewport) *Clusterer {
	return &Clusterer{
		level: cellBaseLevel(vp),
		cells: make(map[s2.CellID]*clusterCell),
	}
}

// AddPoint buckets one report location into its covering cell.
func (c *Clusterer) AddPoint(lat, lon float64) {
	pc := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
	parent := pc.Parent(c.level)
	if _, ok := c.cells[parent]; !ok {
		c.cells[parent] = &clusterCell{}
	}
	c.cells[parent].cnt++
	c.cells[parent].origCell = pc
}

// Points returns one aggregated point per occupied cell. Cells holding a
// single report keep that report's own location instead of the cell center.
func (c *Clusterer) Points() []ClusterPoint {
	r := make([]ClusterPoint, 0, len(c.cells))
	for cell, unit := range c.cells {
		ll := cell.LatLng()
		if unit.cnt == 1 {
			ll = unit.origCell.LatLng()
		}
		r = append(r, ClusterPoint{
			Latitude:  ll.Lat.Degrees(),
			Longitude: ll.Lng.Degrees(),
			Count:     unit.cnt,
		})
	}
	return r
}
