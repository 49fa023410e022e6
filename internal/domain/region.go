package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/quake-risk-service/internal/geo"
)

// RegionGlobal is the name of the unbounded region.
const RegionGlobal = "global"

var regions = map[string]*geo.BoundingBox{
	"philippines": {MinLat: 4.5, MaxLat: 21.5, MinLon: 116.0, MaxLon: 127.0},
	"japan":       {MinLat: 24.0, MaxLat: 46.0, MinLon: 122.0, MaxLon: 146.0},
	"indonesia":   {MinLat: -11.0, MaxLat: 6.0, MinLon: 95.0, MaxLon: 141.0},
	RegionGlobal:  nil,
}

// LookupRegion resolves a named region to its bounding box. The empty name
// and "global" resolve to nil, meaning no spatial filter. Names are case
// insensitive.
func LookupRegion(name string) (*geo.BoundingBox, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, nil
	}
	box, ok := regions[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown region %q", ErrInvalidQuery, name)
	}
	if box == nil {
		return nil, nil
	}
	b := *box
	return &b, nil
}

// RegionNames lists the known region names in alphabetical order.
func RegionNames() []string {
	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
