package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/geo"
)

// ClusterOptions tunes IdentifyClusters.
type ClusterOptions struct {
	RadiusKm   float64
	MaxGap     time.Duration
	MinMembers int
}

// DefaultClusterOptions returns the near-field clustering parameters:
// 30 km radius, 72 hour gap, at least three members.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		RadiusKm:   30,
		MaxGap:     72 * time.Hour,
		MinMembers: 3,
	}
}

const (
	swarmMaxMagnitudeStdDev = 0.3
	swarmMinEvents          = 10

	// MinClusterMigrationEvents is the smallest cluster whose own depth
	// trend is fitted.
	MinClusterMigrationEvents = 5
)

// Cluster is a group of near-field events sharing a bearing sector and
// separated by no more than the configured gap.
type Cluster struct {
	Sector          int                   `json:"sector"`
	SectorName      string                `json:"sector_name"`
	Count           int                   `json:"count"`
	Start           time.Time             `json:"start"`
	End             time.Time             `json:"end"`
	CentroidLat     float64               `json:"centroid_lat"`
	CentroidLon     float64               `json:"centroid_lon"`
	MaxMagnitude    float64               `json:"max_magnitude"`
	MagnitudeStdDev float64               `json:"magnitude_stddev"`
	TotalEnergyJ    float64               `json:"total_energy_j"`
	EquivalentMag   float64               `json:"equivalent_magnitude"`
	MeanDepthKm     float64               `json:"mean_depth_km"`
	MinDepthKm      float64               `json:"min_depth_km"`
	MaxDepthKm      float64               `json:"max_depth_km"`
	RatePerDay      float64               `json:"rate_per_day"`
	Swarm           bool                  `json:"swarm"`
	Migration       DepthMigrationResult  `json:"migration"`
	Events          []domain.SeismicEvent `json:"-"`
}

// Duration is the span between the first and last member.
func (c Cluster) Duration() time.Duration {
	return c.End.Sub(c.Start)
}

// Shallowing reports whether the cluster's own depth regression detected
// rising hypocentres.
func (c Cluster) Shallowing() bool {
	return c.Migration.Detected && c.Migration.Direction == MigrationShallowing
}

// IdentifyClusters groups events within opts.RadiusKm of (lat, lon) by
// compass sector, then splits each sector's time-ordered events wherever
// consecutive members are more than opts.MaxGap apart. Groups smaller than
// opts.MinMembers are discarded. Clusters are returned ordered by sector,
// then start time.
func IdentifyClusters(events []domain.SeismicEvent, lat, lon float64, opts ClusterOptions) []Cluster {
	if opts.RadiusKm <= 0 || opts.MaxGap <= 0 || opts.MinMembers <= 0 {
		opts = DefaultClusterOptions()
	}

	bySector := make([][]domain.SeismicEvent, geo.SectorCount)
	for i := range events {
		e := events[i]
		if geo.Distance(lat, lon, e.Latitude, e.Longitude) > opts.RadiusKm {
			continue
		}
		s := geo.Sector(geo.Bearing(lat, lon, e.Latitude, e.Longitude))
		bySector[s] = append(bySector[s], e)
	}

	var clusters []Cluster
	for sector, members := range bySector {
		if len(members) < opts.MinMembers {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool { return members[i].Time.Before(members[j].Time) })

		groupStart := 0
		for i := 1; i <= len(members); i++ {
			if i < len(members) && members[i].Time.Sub(members[i-1].Time) <= opts.MaxGap {
				continue
			}
			if group := members[groupStart:i]; len(group) >= opts.MinMembers {
				clusters = append(clusters, summarise(sector, group))
			}
			groupStart = i
		}
	}
	return clusters
}

func summarise(sector int, members []domain.SeismicEvent) Cluster {
	c := Cluster{
		Sector:       sector,
		SectorName:   geo.SectorName(sector),
		Count:        len(members),
		Start:        members[0].Time,
		End:          members[len(members)-1].Time,
		MaxMagnitude: math.Inf(-1),
		MinDepthKm:   math.Inf(1),
		MaxDepthKm:   math.Inf(-1),
		Events:       append([]domain.SeismicEvent(nil), members...),
	}

	mags := make([]float64, len(members))
	depths := make([]float64, len(members))
	lons := make([]float64, len(members))
	var sumLat float64
	for i := range members {
		e := members[i]
		mags[i] = e.Magnitude
		depths[i] = e.DepthKm
		sumLat += e.Latitude
		lons[i] = e.Longitude
		c.MaxMagnitude = math.Max(c.MaxMagnitude, e.Magnitude)
		c.MinDepthKm = math.Min(c.MinDepthKm, e.DepthKm)
		c.MaxDepthKm = math.Max(c.MaxDepthKm, e.DepthKm)
		c.TotalEnergyJ += geo.SeismicEnergy(e.Magnitude)
	}
	n := float64(len(members))
	c.CentroidLat = sumLat / n
	c.CentroidLon = geo.MeanLongitude(lons)
	c.MeanDepthKm = mean(depths)
	c.MagnitudeStdDev = stddev(mags)
	c.EquivalentMag = geo.EquivalentMagnitude(c.TotalEnergyJ)

	if days := c.Duration().Hours() / 24; days > 0 {
		c.RatePerDay = n / days
	} else {
		c.RatePerDay = n
	}

	c.Swarm = c.MagnitudeStdDev < swarmMaxMagnitudeStdDev && c.Count >= swarmMinEvents
	c.Migration = depthTrend(members, MinClusterMigrationEvents)
	return c
}

// Bracketing reports whether any two clusters sit in opposite sectors,
// i.e. on either side of the volcano.
func Bracketing(clusters []Cluster) bool {
	var seen [geo.SectorCount]bool
	for i := range clusters {
		seen[clusters[i].Sector] = true
	}
	for s := 0; s < geo.SectorCount/2; s++ {
		if seen[s] && seen[geo.Opposite(s)] {
			return true
		}
	}
	return false
}
