// Package catalog loads the read-only volcano reference list.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
)

// ErrVolcanoNotFound is returned by Get for an unknown identifier.
var ErrVolcanoNotFound = errors.New("volcano not found")

//go:embed data/volcanoes.json
var builtin []byte

type document struct {
	Philippine []domain.PhilippineVolcano `json:"philippine"`
	Global     []domain.GlobalVolcano     `json:"global"`
}

// Catalog is an ordered, immutable volcano list.
type Catalog struct {
	volcanoes []domain.Volcano
	byID      map[string]domain.Volcano
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// LoadFile reads a catalog document from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a catalog document from r.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. Philippine records come first, then
// global records, each in document order.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]domain.Volcano)}
	for _, v := range doc.Philippine {
		if err := c.add(v); err != nil {
			return nil, err
		}
	}
	for _, v := range doc.Global {
		if err := c.add(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(v domain.Volcano) error {
	if err := validate(v); err != nil {
		return err
	}
	if _, dup := c.byID[v.ID()]; dup {
		return fmt.Errorf("catalog: duplicate volcano id %q", v.ID())
	}
	c.byID[v.ID()] = v
	c.volcanoes = append(c.volcanoes, v)
	return nil
}

func validate(v domain.Volcano) error {
	if v.ID() == "" {
		return errors.New("catalog: volcano without id")
	}
	lat, lon := v.Location()
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("catalog: volcano %q has invalid location %.3f,%.3f", v.ID(), lat, lon)
	}
	switch v.Status() {
	case domain.StatusActive, domain.StatusPotentiallyActive, domain.StatusDormant:
	default:
		return fmt.Errorf("catalog: volcano %q has unknown status %q", v.ID(), v.Status())
	}
	return nil
}

// All returns the volcanoes in catalog order.
func (c *Catalog) All() []domain.Volcano {
	return append([]domain.Volcano(nil), c.volcanoes...)
}

// Len is the number of volcanoes.
func (c *Catalog) Len() int { return len(c.volcanoes) }

// Get looks up a volcano by identifier.
func (c *Catalog) Get(id string) (domain.Volcano, error) {
	v, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVolcanoNotFound, id)
	}
	return v, nil
}
