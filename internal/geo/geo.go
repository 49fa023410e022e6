// Package geo provides great-circle geometry and seismic energy conversions.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

const degToRad = math.Pi / 180

// Distance returns the great-circle (haversine) distance in kilometres.
// Only coordinate differences enter the formula, so longitudes on either
// side of the antimeridian are handled without normalization.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad
	p1 := lat1 * degToRad
	p2 := lat2 * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(p1)*math.Cos(p2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a a hair outside [0, 1] for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Bearing returns the initial compass bearing from origin to target in
// degrees within [0, 360), 0 being north and increasing clockwise.
func Bearing(fromLat, fromLon, toLat, toLon float64) float64 {
	p1 := fromLat * degToRad
	p2 := toLat * degToRad
	dLon := (toLon - fromLon) * degToRad

	y := math.Sin(dLon) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dLon)
	deg := math.Atan2(y, x) / degToRad
	deg = math.Mod(deg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// MeanLongitude returns the circular mean of lons in [-180, 180], so a
// set straddling the antimeridian averages to a point beside its members.
// An empty set yields 0.
func MeanLongitude(lons []float64) float64 {
	var sumSin, sumCos float64
	for _, lon := range lons {
		sumSin += math.Sin(lon * degToRad)
		sumCos += math.Cos(lon * degToRad)
	}
	if sumSin == 0 && sumCos == 0 {
		return 0
	}
	return math.Atan2(sumSin, sumCos) / degToRad
}

// SeismicEnergy converts a magnitude to radiated energy in joules using
// the Gutenberg-Richter energy relation log10(E) = 1.5M + 4.8.
func SeismicEnergy(magnitude float64) float64 {
	return math.Pow(10, 1.5*magnitude+4.8)
}

// EquivalentMagnitude is the inverse of SeismicEnergy. It expresses the
// summed energy of several events as a single magnitude. Non-positive
// energy yields negative infinity.
func EquivalentMagnitude(energyJoules float64) float64 {
	if energyJoules <= 0 {
		return math.Inf(-1)
	}
	return (math.Log10(energyJoules) - 4.8) / 1.5
}

// sectorNames are the eight 45° compass sectors, each centred on its
// direction: N covers [337.5, 22.5), NE covers [22.5, 67.5), and so on.
var sectorNames = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// SectorCount is the number of compass sectors returned by Sector.
const SectorCount = len(sectorNames)

// Sector maps a bearing in degrees to one of eight compass sectors (0 = N).
func Sector(bearing float64) int {
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	return int(math.Floor((b+22.5)/45)) % SectorCount
}

// SectorName returns the compass label for a sector index.
func SectorName(sector int) string {
	if sector < 0 || sector >= SectorCount {
		return ""
	}
	return sectorNames[sector]
}

// Opposite returns the sector facing the given one across the origin.
func Opposite(sector int) int {
	return (sector + SectorCount/2) % SectorCount
}

// BoundingBox is a latitude/longitude rectangle. A box whose MinLon is
// greater than MaxLon wraps across the antimeridian.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the point lies inside the box, edges inclusive.
func (b BoundingBox) Contains(lat, lon float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.MinLon <= b.MaxLon {
		return lon >= b.MinLon && lon <= b.MaxLon
	}
	return lon >= b.MinLon || lon <= b.MaxLon
}
