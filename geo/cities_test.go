package geo

import (
	"testing"

	"civiceye/models"
)

func TestCityInfo(t *testing.T) {
	c, ok := CityInfo("Pune")
	if !ok {
		t.Fatal("Pune not found")
	}
	if c.Center.Latitude != 18.5204 || c.Center.Longitude != 73.8567 {
		t.Errorf("Pune center = %v, expected 18.5204, 73.8567", c.Center)
	}

	if _, ok := CityInfo("atlantis"); ok {
		t.Error("Unknown city reported as found")
	}
}

func TestInCity(t *testing.T) {
	cases := []struct {
		name  string
		point models.Location
		city  string
		want  bool
	}{
		{"pune center in pune", models.Location{Latitude: 18.5204, Longitude: 73.8567}, "pune", true},
		{"case insensitive", models.Location{Latitude: 18.5204, Longitude: 73.8567}, "PUNE", true},
		{"mumbai center not in pune", models.Location{Latitude: 19.0760, Longitude: 72.8777}, "pune", false},
		{"bangalore center in bangalore", models.Location{Latitude: 12.9716, Longitude: 77.5946}, "bangalore", true},
		{"unknown city", models.Location{Latitude: 18.5204, Longitude: 73.8567}, "atlantis", false},
		{"on the northern bound", models.Location{Latitude: 18.6298, Longitude: 73.8567}, "pune", true},
		{"just past the northern bound", models.Location{Latitude: 18.6299, Longitude: 73.8567}, "pune", false},
	}
	for _, c := range cases {
		if got := InCity(c.point, c.city); got != c.want {
			t.Errorf("%s: InCity = %v, expected %v", c.name, got, c.want)
		}
	}
}
