package domain

// VolcanoStatus is the activity classification used to pick a baseline
// eruption rate.
type VolcanoStatus string

const (
	StatusActive            VolcanoStatus = "active"
	StatusPotentiallyActive VolcanoStatus = "potentially_active"
	StatusDormant           VolcanoStatus = "dormant"
)

// NoHoloceneEruption is the LastEruption sentinel for volcanoes with no
// known eruption in the Holocene.
const NoHoloceneEruption = 0

// VolcanoKind discriminates the two reference record shapes.
type VolcanoKind string

const (
	KindPhilippine VolcanoKind = "philippine"
	KindGlobal     VolcanoKind = "global"
)

// Volcano exposes the static attributes risk scoring consumes. The two
// record shapes differ in what they know about monitoring and
// hydrothermal state; each implementation answers for itself.
type Volcano interface {
	ID() string
	Name() string
	Kind() VolcanoKind
	Location() (lat, lon float64)
	Status() VolcanoStatus
	// HydrothermalActivity is an ordinal in [0, 3].
	HydrothermalActivity() int
	MonitoringStations() int
	// LastEruption is a calendar year or NoHoloceneEruption.
	LastEruption() int
}

// PhilippineVolcano is a record from the national volcano agency, which
// tracks station counts and a hydrothermal activity grade.
type PhilippineVolcano struct {
	Slug         string        `json:"id"`
	DisplayName  string        `json:"name"`
	Province     string        `json:"province"`
	Lat          float64       `json:"latitude"`
	Lon          float64       `json:"longitude"`
	ElevationM   float64       `json:"elevation_m"`
	State        VolcanoStatus `json:"status"`
	AlertLevel   int           `json:"alert_level"`
	Hydrothermal int           `json:"hydrothermal_activity"`
	Stations     int           `json:"monitoring_stations"`
	LastErupted  int           `json:"last_eruption"`
}

func (v PhilippineVolcano) ID() string                   { return v.Slug }
func (v PhilippineVolcano) Name() string                 { return v.DisplayName }
func (v PhilippineVolcano) Kind() VolcanoKind            { return KindPhilippine }
func (v PhilippineVolcano) Location() (float64, float64) { return v.Lat, v.Lon }
func (v PhilippineVolcano) Status() VolcanoStatus        { return v.State }
func (v PhilippineVolcano) HydrothermalActivity() int    { return clampOrdinal(v.Hydrothermal) }
func (v PhilippineVolcano) MonitoringStations() int      { return max(v.Stations, 0) }
func (v PhilippineVolcano) LastEruption() int            { return v.LastErupted }

// GlobalVolcano is a generic catalog record. It carries no station data
// and only a boolean fumarole observation.
type GlobalVolcano struct {
	Slug             string        `json:"id"`
	DisplayName      string        `json:"name"`
	Country          string        `json:"country"`
	Lat              float64       `json:"latitude"`
	Lon              float64       `json:"longitude"`
	State            VolcanoStatus `json:"status"`
	ActiveFumaroles  bool          `json:"active_fumaroles"`
	HasHotSprings    bool          `json:"hot_springs"`
	LastEruptionYear int           `json:"last_eruption"`
}

func (v GlobalVolcano) ID() string                   { return v.Slug }
func (v GlobalVolcano) Name() string                 { return v.DisplayName }
func (v GlobalVolcano) Kind() VolcanoKind            { return KindGlobal }
func (v GlobalVolcano) Location() (float64, float64) { return v.Lat, v.Lon }
func (v GlobalVolcano) Status() VolcanoStatus        { return v.State }
func (v GlobalVolcano) MonitoringStations() int      { return 0 }
func (v GlobalVolcano) LastEruption() int            { return v.LastEruptionYear }

// HydrothermalActivity grades surface manifestations: fumaroles count
// for two grades, hot springs for one.
func (v GlobalVolcano) HydrothermalActivity() int {
	grade := 0
	if v.ActiveFumaroles {
		grade += 2
	}
	if v.HasHotSprings {
		grade++
	}
	return clampOrdinal(grade)
}

func clampOrdinal(n int) int {
	return min(max(n, 0), 3)
}
