package geo

import (
	"math"
	"testing"
)

func TestCoordinatesValidate(t *testing.T) {
	tests := []struct {
		name    string
		coords  Coordinates
		wantErr bool
	}{
		{name: "valid", coords: Coordinates{Lat: 37.7749, Lon: -122.4194}},
		{name: "equator meridian", coords: Coordinates{Lat: 0, Lon: 0}},
		{name: "poles", coords: Coordinates{Lat: 90, Lon: 180}},
		{name: "lat too high", coords: Coordinates{Lat: 90.01, Lon: 0}, wantErr: true},
		{name: "lat too low", coords: Coordinates{Lat: -90.01, Lon: 0}, wantErr: true},
		{name: "lon too high", coords: Coordinates{Lat: 0, Lon: 180.5}, wantErr: true},
		{name: "lon too low", coords: Coordinates{Lat: 0, Lon: -181}, wantErr: true},
		{name: "nan lat", coords: Coordinates{Lat: math.NaN(), Lon: 0}, wantErr: true},
		{name: "inf lon", coords: Coordinates{Lat: 0, Lon: math.Inf(1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coords.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHaversine(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Coordinates
		wantKm float64
		tolKm  float64
	}{
		{
			name:   "same point",
			a:      Coordinates{Lat: 51.5074, Lon: -0.1278},
			b:      Coordinates{Lat: 51.5074, Lon: -0.1278},
			wantKm: 0,
			tolKm:  0.001,
		},
		{
			name:   "san francisco to new york",
			a:      Coordinates{Lat: 37.7749, Lon: -122.4194},
			b:      Coordinates{Lat: 40.7128, Lon: -74.0060},
			wantKm: 4130,
			tolKm:  20,
		},
		{
			name:   "london to tokyo",
			a:      Coordinates{Lat: 51.5074, Lon: -0.1278},
			b:      Coordinates{Lat: 35.6762, Lon: 139.6503},
			wantKm: 9560,
			tolKm:  30,
		},
		{
			name:   "antipodal",
			a:      Coordinates{Lat: 0, Lon: 0},
			b:      Coordinates{Lat: 0, Lon: 180},
			wantKm: math.Pi * EarthRadiusKm,
			tolKm:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolKm {
				t.Errorf("Haversine() = %.1f km, want %.1f ± %.1f", got, tt.wantKm, tt.tolKm)
			}
		})
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := Coordinates{Lat: 37.7749, Lon: -122.4194}
	b := Coordinates{Lat: -33.8688, Lon: 151.2093}

	if d1, d2 := Haversine(a, b), Haversine(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", d1, d2)
	}
}

func TestResolveRegion(t *testing.T) {
	tests := []struct {
		name   string
		coords Coordinates
		want   string
	}{
		{"san francisco", Coordinates{Lat: 37.7749, Lon: -122.4194}, "North America"},
		{"sao paulo", Coordinates{Lat: -23.5505, Lon: -46.6333}, "South America"},
		{"london", Coordinates{Lat: 51.5074, Lon: -0.1278}, "Europe"},
		{"lagos", Coordinates{Lat: 6.5244, Lon: 3.3792}, "Africa"},
		{"tokyo", Coordinates{Lat: 35.6762, Lon: 139.6503}, "East Asia"},
		{"sydney", Coordinates{Lat: -33.8688, Lon: 151.2093}, "Oceania"},
		{"mumbai", Coordinates{Lat: 19.0760, Lon: 72.8777}, "South Asia"},
		{"mid pacific", Coordinates{Lat: -20, Lon: -140}, RegionUnknown},
		{"south pole", Coordinates{Lat: -89, Lon: 0}, RegionUnknown},
		{"invalid", Coordinates{Lat: math.NaN(), Lon: 0}, RegionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveRegion(tt.coords); got != tt.want {
				t.Errorf("ResolveRegion(%v) = %q, want %q", tt.coords, got, tt.want)
			}
		})
	}
}

func TestMidpoint(t *testing.T) {
	tests := []struct {
		name string
		a, b Coordinates
		want Coordinates
	}{
		{"equator quarter", Coordinates{Lat: 0, Lon: 0}, Coordinates{Lat: 0, Lon: 90}, Coordinates{Lat: 0, Lon: 45}},
		{"same point", Coordinates{Lat: 10, Lon: 20}, Coordinates{Lat: 10, Lon: 20}, Coordinates{Lat: 10, Lon: 20}},
		{"pole to equator", Coordinates{Lat: 90, Lon: 0}, Coordinates{Lat: 0, Lon: 0}, Coordinates{Lat: 45, Lon: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Midpoint(tt.a, tt.b)
			if math.Abs(got.Lat-tt.want.Lat) > 1e-6 || math.Abs(got.Lon-tt.want.Lon) > 1e-6 {
				t.Errorf("Midpoint(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}

	// The midpoint is equidistant from both endpoints.
	a := Coordinates{Lat: 37.7749, Lon: -122.4194}
	b := Coordinates{Lat: 51.5074, Lon: -0.1278}
	mid := Midpoint(a, b)
	d1 := Haversine(a, mid)
	d2 := Haversine(mid, b)
	if math.Abs(d1-d2) > 1.0 {
		t.Errorf("midpoint not equidistant: %v km vs %v km", d1, d2)
	}
}
