package database

import (
	"testing"

	"github.com/kozaktomas/lost-trace/internal/facematch"
)

func TestValidGender(t *testing.T) {
	tests := []struct {
		gender string
		want   bool
	}{
		{"male", true},
		{"female", true},
		{"other", true},
		{"Male", false},
		{"unknown", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.gender, func(t *testing.T) {
			if got := ValidGender(tc.gender); got != tc.want {
				t.Errorf("ValidGender(%q) = %v, want %v", tc.gender, got, tc.want)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusOpen.Valid() || !StatusMatched.Valid() {
		t.Error("OPEN and MATCHED should be valid")
	}
	if Status("CLOSED").Valid() {
		t.Error("CLOSED should not be valid")
	}
}

func TestGalleryEntries(t *testing.T) {
	sig := make(facematch.Signature, facematch.SignatureDim)
	reports := []Report{
		{ID: "a", Signature: sig},
		{ID: "b"},
	}

	entries := GalleryEntries(reports)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "a" || entries[1].ID != "b" {
		t.Errorf("order not preserved: %+v", entries)
	}
	if !reports[0].HasSignature() || reports[1].HasSignature() {
		t.Error("HasSignature mismatch")
	}
}
