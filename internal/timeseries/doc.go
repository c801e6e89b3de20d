// Package timeseries reshapes per-announcement shelter snapshots into an
// occupancy matrix indexed by the announcement time axis.
//
// The matrix has one row per announcement (in publication order, including
// announcements that reported no occupied shelters) and one column per shelter
// that ever reported a nonzero occupant count. Two views are derived from it:
// the cumulative view holds the counts as published, and the delta view holds
// the change from the previous row, with the first row equal to its own counts.
// Both views carry a total per row.
package timeseries
