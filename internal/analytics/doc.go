// Package analytics implements the seismic statistics used by risk scoring:
// Gutenberg-Richter b-value estimation, depth-migration detection, rate
// acceleration with a Failure Forecast Method projection, and sector-based
// spatio-temporal clustering around a reference point.
//
// Every analysis returns a result value with a Sufficient flag instead of
// an error. Samples below each analysis' minimum produce a result carrying
// the InsufficientData note and no extrapolated numbers.
package analytics
