package viewport

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"mapsearch/internal/domain/entities"
	"mapsearch/internal/geo"
)

// identitySource maps pixel (x, y) to coordinate (lng=x/100, lat=-y/100) so
// corner geometry is easy to assert against. The divisor keeps latitudes
// inside the Mercator bound for realistic viewport sizes.
type identitySource struct {
	mu    sync.Mutex
	calls [][2]float64
	fail  func(x, y float64) error
}

func (s *identitySource) PointToCoordinate(ctx context.Context, x, y float64) (entities.Coordinate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, [2]float64{x, y})
	s.mu.Unlock()
	if s.fail != nil {
		if err := s.fail(x, y); err != nil {
			return entities.Coordinate{}, err
		}
	}
	return entities.Coordinate{Longitude: x / 100, Latitude: -y / 100}, nil
}

func TestResolvePolygonCornerOrder(t *testing.T) {
	ov := Overscan{Left: 13, Top: 8, Right: 13, Bottom: 25}
	r := NewResolver(ov)
	src := &identitySource{}

	size := entities.ViewportSize{Width: 400, Height: 800}
	ring, err := r.ResolvePolygon(context.Background(), src, size)
	if err != nil {
		t.Fatalf("ResolvePolygon() error = %v", err)
	}
	if len(ring) != 4 {
		t.Fatalf("ResolvePolygon() returned %d vertices, want 4", len(ring))
	}

	// Expected corner pixels.
	left, top := -13.0, -8.0
	right, bottom := 399.0+13, 799.0+25
	wantPixels := [4][2]float64{
		{left, top},
		{right, top},
		{right, bottom},
		{left, bottom},
	}
	for i, px := range wantPixels {
		want := geo.Project(px[0]/100, -px[1]/100)
		if math.Abs(ring[i][0]-want[0]) > 1e-12 || math.Abs(ring[i][1]-want[1]) > 1e-12 {
			t.Errorf("vertex %d = %v, want %v", i, ring[i], want)
		}
	}
}

func TestResolvePolygonPartialFailure(t *testing.T) {
	ov := MarkerOverscan(24, 32, 8)
	size := entities.ViewportSize{Width: 300, Height: 500}

	tests := []struct {
		name string
		fail func(x, y float64) error
	}{
		{
			name: "one corner rejects",
			fail: func(x, y float64) error {
				if x < 0 && y < 0 {
					return errors.New("bridge torn down")
				}
				return nil
			},
		},
		{
			name: "all corners reject",
			fail: func(x, y float64) error { return errors.New("unavailable") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(ov)
			src := &identitySource{fail: tt.fail}
			ring, err := r.ResolvePolygon(context.Background(), src, size)
			if err == nil {
				t.Fatal("ResolvePolygon() error = nil, want failure")
			}
			if ring != nil {
				t.Fatalf("ResolvePolygon() = %v, want nil ring on failure", ring)
			}
		})
	}
}

func TestResolvePolygonInvalidCoordinate(t *testing.T) {
	r := NewResolver(MarkerOverscan(24, 32, 8))
	src := FuncSource(func(ctx context.Context, x, y float64) (entities.Coordinate, error) {
		if x > 0 && y > 0 {
			return entities.Coordinate{Longitude: math.NaN(), Latitude: 0}, nil
		}
		return entities.Coordinate{Longitude: x / 100, Latitude: -y / 100}, nil
	})

	ring, err := r.ResolvePolygon(context.Background(), src, entities.ViewportSize{Width: 100, Height: 100})
	if !errors.Is(err, ErrPartial) {
		t.Fatalf("ResolvePolygon() error = %v, want ErrPartial", err)
	}
	if ring != nil {
		t.Fatalf("ResolvePolygon() = %v, want nil", ring)
	}
}

func TestResolvePolygonNoSource(t *testing.T) {
	r := NewResolver(MarkerOverscan(24, 32, 8))
	ring, err := r.ResolvePolygon(context.Background(), nil, entities.ViewportSize{Width: 100, Height: 100})
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("ResolvePolygon() error = %v, want ErrNoSource", err)
	}
	if ring != nil {
		t.Fatalf("ring = %v, want nil", ring)
	}
}

func TestResolvePolygonBadSize(t *testing.T) {
	r := NewResolver(MarkerOverscan(24, 32, 8))
	src := &identitySource{}

	for _, size := range []entities.ViewportSize{
		{Width: 0, Height: 100},
		{Width: 100, Height: 0},
		{Width: -5, Height: 100},
	} {
		if _, err := r.ResolvePolygon(context.Background(), src, size); !errors.Is(err, ErrBadSize) {
			t.Errorf("ResolvePolygon(size=%v) error = %v, want ErrBadSize", size, err)
		}
	}
	if len(src.calls) != 0 {
		t.Errorf("source was called %d times for invalid sizes, want 0", len(src.calls))
	}
}

func TestMarkerOverscan(t *testing.T) {
	ov := MarkerOverscan(24, 32, 8)
	if ov.Left != 13 || ov.Right != 13 {
		t.Errorf("side margins = %v/%v, want 13 (half width + 1px slack)", ov.Left, ov.Right)
	}
	if ov.Top != 8 {
		t.Errorf("top margin = %v, want 8", ov.Top)
	}
	if ov.Bottom != 33 {
		t.Errorf("bottom margin = %v, want 33 (marker height + 1px slack)", ov.Bottom)
	}
}
