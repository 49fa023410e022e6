package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// USGSFeature is one feature of the USGS FDSN GeoJSON feed.
type USGSFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag     *float64 `json:"mag"`
		Place   string   `json:"place"`
		Time    *int64   `json:"time"` // epoch milliseconds
		URL     string   `json:"url"`
		Felt    *int     `json:"felt"`
		Tsunami int      `json:"tsunami"`
		MagType string   `json:"magType"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}

// EMSCFeature is one feature of the EMSC seismicportal FDSN JSON feed.
type EMSCFeature struct {
	ID         string `json:"id"`
	Properties struct {
		UNID        string   `json:"unid"`
		Time        string   `json:"time"`
		Lat         *float64 `json:"lat"`
		Lon         *float64 `json:"lon"`
		Depth       *float64 `json:"depth"`
		Mag         *float64 `json:"mag"`
		MagType     string   `json:"magtype"`
		FlynnRegion string   `json:"flynn_region"`
	} `json:"properties"`
}

// JMAEntry is one element of the JMA quake list JSON.
type JMAEntry struct {
	EID         string `json:"eid"`
	At          string `json:"at"`
	AreaName    string `json:"anm"`
	AreaNameEN  string `json:"en_anm"`
	Mag         string `json:"mag"`
	Coordinates string `json:"cod"` // ISO 6709, e.g. "+37.5+137.3-10000/"
	DetailJSON  string `json:"json"`
}

// PHIVOLCSRow is one row of the PHIVOLCS earthquake bulletin HTML table.
// All cells are kept as scraped text.
type PHIVOLCSRow struct {
	DateTime  string
	Latitude  string
	Longitude string
	DepthKm   string
	Magnitude string
	Location  string
	Link      string
}

var (
	// cod6709Re parses JMA's ISO 6709 triplet: "+lat+lon-depth/" with the
	// depth in metres (negative below sea level) being optional.
	cod6709Re = regexp.MustCompile(`^([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)([+-]\d+(?:\.\d+)?)?/?$`)

	// manila is the fixed UTC+8 zone PHIVOLCS reports in.
	manila = time.FixedZone("PST", 8*60*60)
)

// phivolcsLayouts are the date-time formats seen in the bulletin table.
var phivolcsLayouts = []string{
	"02 January 2006 - 03:04 PM",
	"2 January 2006 - 03:04 PM",
	"02 January 2006 - 3:04 PM",
	"2006-01-02 15:04:05",
}

// NormalizeUSGS maps a USGS GeoJSON feature to a SeismicEvent. The second
// return is false when the record lacks an id, magnitude, time or position.
func NormalizeUSGS(f USGSFeature) (SeismicEvent, bool) {
	p := f.Properties
	coords := f.Geometry.Coordinates
	if f.ID == "" || p.Mag == nil || p.Time == nil || len(coords) < 2 {
		return SeismicEvent{}, false
	}
	lat, lon := coords[1], coords[0]
	if !validPosition(lat, lon) || !finite(*p.Mag) {
		return SeismicEvent{}, false
	}

	depth := DefaultDepthKm
	if len(coords) >= 3 && finite(coords[2]) {
		depth = coords[2]
	}

	return SeismicEvent{
		ID:            eventID(SourceUSGS, f.ID),
		Source:        SourceUSGS,
		Magnitude:     *p.Mag,
		MagnitudeType: p.MagType,
		Place:         p.Place,
		Time:          time.UnixMilli(*p.Time).UTC(),
		Latitude:      lat,
		Longitude:     lon,
		DepthKm:       depth,
		URL:           p.URL,
		Felt:          p.Felt,
		Tsunami:       p.Tsunami != 0,
	}, true
}

// NormalizeEMSC maps an EMSC feature to a SeismicEvent.
func NormalizeEMSC(f EMSCFeature) (SeismicEvent, bool) {
	p := f.Properties
	nativeID := p.UNID
	if nativeID == "" {
		nativeID = f.ID
	}
	if nativeID == "" || p.Mag == nil || p.Lat == nil || p.Lon == nil {
		return SeismicEvent{}, false
	}
	if !validPosition(*p.Lat, *p.Lon) || !finite(*p.Mag) {
		return SeismicEvent{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, p.Time)
	if err != nil {
		return SeismicEvent{}, false
	}

	depth := DefaultDepthKm
	if p.Depth != nil && finite(*p.Depth) {
		depth = *p.Depth
	}

	return SeismicEvent{
		ID:            eventID(SourceEMSC, nativeID),
		Source:        SourceEMSC,
		Magnitude:     *p.Mag,
		MagnitudeType: strings.ToLower(p.MagType),
		Place:         p.FlynnRegion,
		Time:          t.UTC(),
		Latitude:      *p.Lat,
		Longitude:     *p.Lon,
		DepthKm:       depth,
		URL:           "https://www.seismicportal.eu/eventdetails.html?unid=" + nativeID,
	}, true
}

// NormalizeJMA maps a JMA list entry to a SeismicEvent. JMA reports the
// JMA magnitude scale (Mj) and encodes the hypocentre as ISO 6709.
func NormalizeJMA(e JMAEntry) (SeismicEvent, bool) {
	if e.EID == "" {
		return SeismicEvent{}, false
	}
	mag, ok := parseFloat(e.Mag)
	if !ok {
		return SeismicEvent{}, false
	}
	lat, lon, depth, ok := parseISO6709(e.Coordinates)
	if !ok {
		return SeismicEvent{}, false
	}
	t, err := time.Parse(time.RFC3339, e.At)
	if err != nil {
		return SeismicEvent{}, false
	}

	place := e.AreaNameEN
	if place == "" {
		place = e.AreaName
	}

	event := SeismicEvent{
		ID:            eventID(SourceJMA, e.EID),
		Source:        SourceJMA,
		Magnitude:     mag,
		MagnitudeType: "mj",
		Place:         place,
		Time:          t.UTC(),
		Latitude:      lat,
		Longitude:     lon,
		DepthKm:       depth,
	}
	if e.DetailJSON != "" {
		event.URL = "https://www.jma.go.jp/bosai/quake/data/" + e.DetailJSON
	}
	return event, true
}

// NormalizePHIVOLCS maps a scraped bulletin row to a SeismicEvent.
// PHIVOLCS publishes no event identifier, so the id is derived from the
// origin time and epicentre, which are stable across re-fetches.
func NormalizePHIVOLCS(r PHIVOLCSRow) (SeismicEvent, bool) {
	mag, ok := parseFloat(r.Magnitude)
	if !ok {
		return SeismicEvent{}, false
	}
	lat, okLat := parseFloat(r.Latitude)
	lon, okLon := parseFloat(r.Longitude)
	if !okLat || !okLon || !validPosition(lat, lon) {
		return SeismicEvent{}, false
	}
	t, ok := parsePHIVOLCSTime(r.DateTime)
	if !ok {
		return SeismicEvent{}, false
	}

	depth, ok := parseFloat(r.DepthKm)
	if !ok {
		depth = DefaultDepthKm
	}

	nativeID := fmt.Sprintf("%s_%.2f_%.2f", t.Format("20060102150405"), lat, lon)
	return SeismicEvent{
		ID:            eventID(SourcePHIVOLCS, nativeID),
		Source:        SourcePHIVOLCS,
		Magnitude:     mag,
		MagnitudeType: "ml",
		Place:         collapseSpace(r.Location),
		Time:          t,
		Latitude:      lat,
		Longitude:     lon,
		DepthKm:       depth,
		URL:           r.Link,
	}, true
}

// eventID prefixes a provider-native id so ids stay unique across sources.
func eventID(source Source, nativeID string) string {
	return string(source) + "_" + nativeID
}

// parseFloat parses trimmed text, treating empty, "-" and non-finite
// values as missing.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func parseISO6709(s string) (lat, lon, depthKm float64, ok bool) {
	m := cod6709Re.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, 0, false
	}
	lat, _ = strconv.ParseFloat(m[1], 64)
	lon, _ = strconv.ParseFloat(m[2], 64)
	if !validPosition(lat, lon) {
		return 0, 0, 0, false
	}
	depthKm = DefaultDepthKm
	if m[3] != "" {
		metres, _ := strconv.ParseFloat(m[3], 64)
		depthKm = math.Abs(metres) / 1000
	}
	return lat, lon, depthKm, true
}

func parsePHIVOLCSTime(s string) (time.Time, bool) {
	s = collapseSpace(s)
	for _, layout := range phivolcsLayouts {
		if t, err := time.ParseInLocation(layout, s, manila); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func validPosition(lat, lon float64) bool {
	return finite(lat) && finite(lon) && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
