package geom

import "testing"

func TestNearby(t *testing.T) {
	a := Point{X: 1000, Y: 600}
	cases := []struct {
		name string
		b    Point
		want bool
	}{
		{"same tile", Point{1000, 600}, true},
		{"one tile right", Point{1500, 600}, true},
		{"one tile down", Point{1000, 900}, true},
		{"diagonal neighbor", Point{1500, 900}, true},
		{"just past x limit", Point{1501, 600}, false},
		{"just past y limit", Point{1000, 901}, false},
	}
	for _, tc := range cases {
		if got := Nearby(a, tc.b); got != tc.want {
			t.Errorf("%s: Nearby(%v,%v)=%v want %v", tc.name, a, tc.b, got, tc.want)
		}
	}
}

func TestAdjacentSides(t *testing.T) {
	tile := Point{X: 500, Y: 300}
	candidates := []Point{
		{500, 0},    // up
		{1000, 300}, // right
		{508, 595},  // down, within epsilon
		{0, 300},    // left
		{1500, 300}, // two tiles right, not adjacent
	}
	s := AdjacentSides(tile, candidates)
	if !s.Up || !s.Down || !s.Left || !s.Right {
		t.Fatalf("expected all sides adjacent, got %+v", s)
	}

	s = AdjacentSides(tile, []Point{{1500, 300}, {500, 911}})
	if s.Up || s.Down || s.Left || s.Right {
		t.Fatalf("expected no sides adjacent, got %+v", s)
	}
}

func TestRotate90(t *testing.T) {
	o := Offset{X: 3, Y: 7}
	if got := Rotate90(o); got != (Offset{X: -7, Y: 3}) {
		t.Fatalf("Rotate90: got %+v", got)
	}
	// Four quarter turns are the identity.
	if got := RotateSteps(o, 4); got != o {
		t.Fatalf("RotateSteps 4: got %+v want %+v", got, o)
	}
	if got := RotateSteps(o, -1); got != RotateSteps(o, 3) {
		t.Fatalf("negative steps should wrap: got %+v", got)
	}
	if got := RotateSteps(o, 2); got != (Offset{X: -3, Y: -7}) {
		t.Fatalf("half turn: got %+v", got)
	}
}
