// Package locations holds the static registry of monitored places.
package locations

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/i474232898/air-quality-aggregation/internal/airquality"
)

//go:embed nepal.yaml
var defaultRegistry []byte

// Kind selects one of the registry lists.
type Kind string

const (
	KindCities    Kind = "cities"
	KindDistricts Kind = "districts"
)

var ErrUnknownKind = errors.New("unknown location kind")

type Location struct {
	ID       int     `yaml:"id" json:"id"`
	City     string  `yaml:"city" json:"city"`
	District string  `yaml:"district,omitempty" json:"district,omitempty"`
	Province string  `yaml:"province" json:"province"`
	Lat      float64 `yaml:"lat" json:"lat"`
	Lng      float64 `yaml:"lng" json:"lng"`
}

// Query converts the location into an air quality query.
func (l Location) Query() airquality.Query {
	return airquality.Query{Lat: l.Lat, Lng: l.Lng, City: l.City}
}

// Registry is immutable after Load.
type Registry struct {
	Cities    []Location `yaml:"cities"`
	Districts []Location `yaml:"districts"`
}

// Load reads the registry from path, or the embedded Nepal registry when
// path is empty.
func Load(path string) (*Registry, error) {
	data := defaultRegistry
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read locations file %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse decodes and validates a YAML registry.
func Parse(data []byte) (*Registry, error) {
	r := &Registry{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse locations: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns a copy of the requested list. An empty kind means cities.
func (r *Registry) List(kind Kind) ([]Location, error) {
	var src []Location
	switch Kind(strings.ToLower(string(kind))) {
	case "", KindCities:
		src = r.Cities
	case KindDistricts:
		src = r.Districts
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	out := make([]Location, len(src))
	copy(out, src)
	return out, nil
}

// Queries returns one query per city.
func (r *Registry) Queries() []airquality.Query {
	qs := make([]airquality.Query, 0, len(r.Cities))
	for _, l := range r.Cities {
		qs = append(qs, l.Query())
	}
	return qs
}

func (r *Registry) validate() error {
	if len(r.Cities) == 0 {
		return fmt.Errorf("locations: cities cannot be empty")
	}
	for _, list := range [][]Location{r.Cities, r.Districts} {
		for _, l := range list {
			if l.City == "" {
				return fmt.Errorf("locations: entry %d has no city", l.ID)
			}
			if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
				return fmt.Errorf("locations: %s has out of range coordinates", l.City)
			}
		}
	}
	return nil
}
