package geo

import (
	"math"
	"testing"
)

func TestProject(t *testing.T) {
	tests := []struct {
		name  string
		lng   float64
		lat   float64
		wantX float64
		wantY float64
	}{
		{
			name:  "origin",
			lng:   0,
			lat:   0,
			wantX: 0,
			wantY: 0,
		},
		{
			name:  "equator at 180",
			lng:   180,
			lat:   0,
			wantX: math.Pi,
			wantY: 0,
		},
		{
			name:  "45 north",
			lng:   90,
			lat:   45,
			wantX: math.Pi / 2,
			wantY: math.Log(math.Tan(math.Pi/4 + (45*math.Pi/180)/2)),
		},
		{
			name:  "southern hemisphere is negative y",
			lng:   -122.4194,
			lat:   -33.8688,
			wantX: -122.4194 * math.Pi / 180,
			wantY: math.Log(math.Tan(math.Pi/4 + (-33.8688*math.Pi/180)/2)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.lng, tt.lat)
			if math.Abs(got[0]-tt.wantX) > 1e-12 {
				t.Errorf("Project() x = %v, want %v", got[0], tt.wantX)
			}
			if math.Abs(got[1]-tt.wantY) > 1e-12 {
				t.Errorf("Project() y = %v, want %v", got[1], tt.wantY)
			}
		})
	}
}

// TestProjectClampsLatitude verifies that out-of-range latitudes are clamped
// to the Mercator bound before projection, so y never goes infinite.
func TestProjectClampsLatitude(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
	}{
		{name: "north pole", lat: 90},
		{name: "south pole", lat: -90},
		{name: "just above bound", lat: MaxMercatorLatitude + 0.0001},
		{name: "just below negative bound", lat: -MaxMercatorLatitude - 0.0001},
		{name: "absurd latitude", lat: 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(0, tt.lat)
			if math.IsInf(got[1], 0) || math.IsNaN(got[1]) {
				t.Fatalf("Project(0, %v) y = %v, want finite", tt.lat, got[1])
			}

			clamped := tt.lat
			if clamped > MaxMercatorLatitude {
				clamped = MaxMercatorLatitude
			} else if clamped < -MaxMercatorLatitude {
				clamped = -MaxMercatorLatitude
			}
			want := Project(0, clamped)
			if got != want {
				t.Errorf("Project(0, %v) = %v, want clamped result %v", tt.lat, got, want)
			}
		})
	}
}

func TestProjectIsFiniteForAllValidInputs(t *testing.T) {
	for lat := -90.0; lat <= 90.0; lat += 0.5 {
		for lng := -180.0; lng <= 180.0; lng += 7.5 {
			p := Project(lng, lat)
			if math.IsNaN(p[0]) || math.IsInf(p[0], 0) ||
				math.IsNaN(p[1]) || math.IsInf(p[1], 0) {
				t.Fatalf("Project(%v, %v) = %v, not finite", lng, lat, p)
			}
		}
	}
}

func TestValidCoordinate(t *testing.T) {
	tests := []struct {
		name string
		lng  float64
		lat  float64
		want bool
	}{
		{name: "normal", lng: -122.4, lat: 37.7, want: true},
		{name: "zero", lng: 0, lat: 0, want: true},
		{name: "nan lng", lng: math.NaN(), lat: 37.7, want: false},
		{name: "nan lat", lng: -122.4, lat: math.NaN(), want: false},
		{name: "inf lng", lng: math.Inf(1), lat: 0, want: false},
		{name: "negative inf lat", lng: 0, lat: math.Inf(-1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCoordinate(tt.lng, tt.lat); got != tt.want {
				t.Errorf("ValidCoordinate(%v, %v) = %v, want %v", tt.lng, tt.lat, got, tt.want)
			}
		})
	}
}
