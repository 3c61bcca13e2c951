package locations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Cities) != 10 {
		t.Fatalf("expected 10 cities, got %d", len(r.Cities))
	}
	if len(r.Districts) != 14 {
		t.Fatalf("expected 14 districts, got %d", len(r.Districts))
	}

	first := r.Cities[0]
	if first.City != "Kathmandu" || first.Lat != 27.7172 || first.Lng != 85.324 {
		t.Fatalf("unexpected first city: %+v", first)
	}
	if r.Districts[3].District != "Chitwan" {
		t.Fatalf("unexpected district: %+v", r.Districts[3])
	}
}

func TestList(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cities, err := r.List("")
	if err != nil || len(cities) != len(r.Cities) {
		t.Fatalf("expected cities by default, got %d (%v)", len(cities), err)
	}

	districts, err := r.List("Districts")
	if err != nil || len(districts) != len(r.Districts) {
		t.Fatalf("expected districts, got %d (%v)", len(districts), err)
	}

	// Callers cannot mutate the registry through the returned slice.
	cities[0].City = "Changed"
	if r.Cities[0].City != "Kathmandu" {
		t.Fatal("registry was mutated through List result")
	}

	if _, err := r.List("schools"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestQueries(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	qs := r.Queries()
	if len(qs) != len(r.Cities) {
		t.Fatalf("expected %d queries, got %d", len(r.Cities), len(qs))
	}
	if qs[1].City != "Pokhara" || qs[1].Lat != 28.2096 || qs[1].Debug {
		t.Fatalf("unexpected query: %+v", qs[1])
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.yaml")
	data := []byte("cities:\n  - {id: 1, city: Lalitpur, province: Bagmati, lat: 27.6588, lng: 85.324}\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Cities) != 1 || r.Cities[0].City != "Lalitpur" || len(r.Districts) != 0 {
		t.Fatalf("unexpected registry: %+v", r)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "missing city", data: "cities:\n  - {id: 1, lat: 1, lng: 1}\n"},
		{name: "bad latitude", data: "cities:\n  - {id: 1, city: X, lat: 91, lng: 1}\n"},
		{name: "not yaml", data: "cities: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}
