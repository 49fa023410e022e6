// Package domain models unified earthquake records and volcano reference
// data shared by the fusion and risk-scoring stages.
//
// # Data Sources
//
// Four seismic networks feed the service. Each publishes a different
// record shape; the Normalize* functions map one native record to at most
// one [SeismicEvent]:
//
//	usgs      USGS FDSN GeoJSON. Time in epoch milliseconds,
//	          coordinates as [lon, lat, depth_km].
//	emsc      EMSC seismicportal FDSN JSON. ISO-8601 times, flat
//	          lat/lon/depth properties, Flynn-Engdahl region names.
//	jma       JMA quake list JSON. Magnitude as text, hypocentre as an
//	          ISO 6709 string "+37.5+137.3-10000/" with depth in metres.
//	phivolcs  PHIVOLCS bulletin HTML table. Every cell is text; times are
//	          local (UTC+8), e.g. "01 January 2024 - 10:15 AM".
//
// # Normalization Rules
//
// Records missing a position or magnitude are dropped rather than
// defaulted to zero. A missing depth becomes [DefaultDepthKm] (10 km).
//
// Event IDs take the form "<source>_<native id>", e.g. "usgs_us7000abcd".
// PHIVOLCS publishes no identifier, so its native id is built from the UTC
// origin time and the epicentre rounded to 0.01°:
//
//	phivolcs_20240101021500_14.05_120.65
//
// Repeated fetches of the same record therefore produce the same ID.
//
// # Source Priority
//
// When fusion finds duplicate reports it keeps the source with the higher
// [Source.Priority]: phivolcs > jma > emsc > usgs. National agencies run
// denser local networks and calibrate magnitudes for their own region.
//
// # Volcanoes
//
// [Volcano] is satisfied by [PhilippineVolcano] (national agency records
// with station counts and a hydrothermal grade) and [GlobalVolcano]
// (generic catalog records without monitoring data).
package domain
