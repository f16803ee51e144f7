package facematch

import (
	"math"
	"reflect"
	"testing"
)

// sig builds a valid signature whose first component is x and the rest zero.
func sig(x float32) Signature {
	s := make(Signature, SignatureDim)
	s[0] = x
	return s
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Signature
		expected float64
		nan      bool
	}{
		{name: "identical", a: sig(0.5), b: sig(0.5), expected: 0},
		{name: "single axis", a: sig(0), b: sig(0.3), expected: 0.3},
		{name: "3-4-5", a: Signature{0, 0}, b: Signature{3, 4}, expected: 5},
		{name: "length mismatch", a: Signature{1, 2}, b: Signature{1}, nan: true},
		{name: "empty", a: Signature{}, b: Signature{}, nan: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EuclideanDistance(tt.a, tt.b)
			if tt.nan {
				if !math.IsNaN(d) {
					t.Errorf("EuclideanDistance() = %v, want NaN", d)
				}
				return
			}
			if math.Abs(d-tt.expected) > 1e-6 {
				t.Errorf("EuclideanDistance() = %v, want %v", d, tt.expected)
			}
		})
	}
}

func TestEuclideanDistance_Symmetric(t *testing.T) {
	a := sig(0.1)
	a[5] = -0.7
	b := sig(0.9)
	b[64] = 0.25
	if EuclideanDistance(a, b) != EuclideanDistance(b, a) {
		t.Error("distance should be symmetric")
	}
}

func TestSignatureValid(t *testing.T) {
	nan := sig(0)
	nan[3] = float32(math.NaN())
	inf := sig(0)
	inf[7] = float32(math.Inf(1))

	tests := []struct {
		name     string
		s        Signature
		expected bool
	}{
		{"valid", sig(0.2), true},
		{"nil", nil, false},
		{"too short", make(Signature, 127), false},
		{"too long", make(Signature, 129), false},
		{"contains NaN", nan, false},
		{"contains Inf", inf, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Valid(); got != tt.expected {
				t.Errorf("Valid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRank(t *testing.T) {
	probe := sig(0)

	t.Run("filters and sorts ascending", func(t *testing.T) {
		gallery := []GalleryEntry{
			{ID: "far", Signature: sig(0.9)},
			{ID: "near", Signature: sig(0.1)},
			{ID: "mid", Signature: sig(0.4)},
			{ID: "edge", Signature: sig(0.5)},
		}
		matches := Rank(probe, gallery, 0.5)

		want := []string{"near", "mid", "edge"}
		if len(matches) != len(want) {
			t.Fatalf("Rank() returned %d matches, want %d", len(matches), len(want))
		}
		for i, id := range want {
			if matches[i].ID != id {
				t.Errorf("matches[%d].ID = %q, want %q", i, matches[i].ID, id)
			}
		}
		for i := 1; i < len(matches); i++ {
			if matches[i].Distance < matches[i-1].Distance {
				t.Errorf("matches not sorted at index %d", i)
			}
		}
	})

	t.Run("skips invalid gallery entries", func(t *testing.T) {
		broken := sig(0)
		broken[1] = float32(math.NaN())
		gallery := []GalleryEntry{
			{ID: "short", Signature: make(Signature, 64)},
			{ID: "empty", Signature: nil},
			{ID: "nan", Signature: broken},
			{ID: "ok", Signature: sig(0.2)},
		}
		matches := Rank(probe, gallery, 0.6)
		if len(matches) != 1 || matches[0].ID != "ok" {
			t.Errorf("Rank() = %+v, want only ok", matches)
		}
	})

	t.Run("invalid probe", func(t *testing.T) {
		gallery := []GalleryEntry{{ID: "a", Signature: sig(0)}}
		if matches := Rank(make(Signature, 10), gallery, 0.6); len(matches) != 0 {
			t.Errorf("Rank() = %+v, want none", matches)
		}
	})

	t.Run("empty gallery", func(t *testing.T) {
		matches := Rank(probe, nil, 0.6)
		if matches == nil || len(matches) != 0 {
			t.Errorf("Rank() = %#v, want empty non-nil slice", matches)
		}
	})

	t.Run("ties keep gallery order", func(t *testing.T) {
		gallery := []GalleryEntry{
			{ID: "first", Signature: sig(0.3)},
			{ID: "second", Signature: sig(-0.3)},
		}
		matches := Rank(probe, gallery, 0.6)
		if len(matches) != 2 || matches[0].ID != "first" || matches[1].ID != "second" {
			t.Errorf("Rank() = %+v, want first then second", matches)
		}
	})

	t.Run("zero threshold keeps exact duplicates", func(t *testing.T) {
		gallery := []GalleryEntry{{ID: "dup", Signature: sig(0)}, {ID: "other", Signature: sig(0.01)}}
		matches := Rank(probe, gallery, 0)
		if len(matches) != 1 || matches[0].ID != "dup" {
			t.Errorf("Rank() = %+v, want only dup", matches)
		}
	})
}

func TestRank_DefaultThresholdBoundary(t *testing.T) {
	gallery := []GalleryEntry{
		{ID: "over", Signature: sig(0.6000001)},
		{ID: "at", Signature: sig(0.6)},
	}
	matches := Rank(sig(0), gallery, DefaultThreshold)
	if len(matches) != 1 || matches[0].ID != "at" {
		t.Fatalf("Rank() = %+v, want only at", matches)
	}
	if math.Abs(matches[0].Distance-0.6) > 1e-6 {
		t.Errorf("distance = %v, want 0.6", matches[0].Distance)
	}
}

func TestWithinThreshold(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		threshold float64
		expected  bool
	}{
		{"float32 rounded 0.6", float64(float32(0.6)), 0.6, true},
		{"below", 0.59, 0.6, true},
		{"next float32 above", float64(float32(0.6000001)), 0.6, false},
		{"zero at zero", 0, 0, true},
		{"nan distance", math.NaN(), 0.6, false},
		{"nan threshold", 0.1, math.NaN(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinThreshold(tt.distance, tt.threshold); got != tt.expected {
				t.Errorf("WithinThreshold(%v, %v) = %v, want %v", tt.distance, tt.threshold, got, tt.expected)
			}
		})
	}
}

func TestRank_MixedGallery(t *testing.T) {
	short := make(Signature, 127)
	inf := sig(0)
	inf[5] = float32(math.Inf(1))
	gallery := []GalleryEntry{
		{ID: "v1", Signature: sig(0.3)},
		{ID: "short", Signature: short},
		{ID: "v2", Signature: sig(0.1)},
		{ID: "inf", Signature: inf},
		{ID: "v3", Signature: sig(0.2)},
	}

	matches := Rank(sig(0), gallery, DefaultThreshold)
	want := []string{"v2", "v3", "v1"}
	if len(matches) != len(want) {
		t.Fatalf("Rank() = %+v, want %v", matches, want)
	}
	for i, id := range want {
		if matches[i].ID != id {
			t.Errorf("matches[%d].ID = %q, want %q", i, matches[i].ID, id)
		}
	}
}

func TestRank_Idempotent(t *testing.T) {
	gallery := []GalleryEntry{
		{ID: "a", Signature: sig(0.4)},
		{ID: "b", Signature: sig(-0.1)},
		{ID: "c", Signature: sig(0.1)},
		{ID: "d", Signature: sig(0.9)},
	}
	first := Rank(sig(0), gallery, DefaultThreshold)
	second := Rank(sig(0), gallery, DefaultThreshold)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Rank() not idempotent: %+v then %+v", first, second)
	}
}

func TestBest(t *testing.T) {
	if _, ok := Best(nil); ok {
		t.Error("Best(nil) should report no match")
	}
	m, ok := Best([]RankedMatch{{ID: "a", Distance: 0.1}, {ID: "b", Distance: 0.2}})
	if !ok || m.ID != "a" {
		t.Errorf("Best() = %+v, %v, want a", m, ok)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		distance float64
		expected string
	}{
		{0, "100.00%"},
		{0.28, "72.00%"},
		{0.6, "40.00%"},
		{1.25, "-25.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatConfidence(tt.distance); got != tt.expected {
				t.Errorf("FormatConfidence(%v) = %q, want %q", tt.distance, got, tt.expected)
			}
		})
	}
}
