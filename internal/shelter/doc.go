// Package shelter provides the domain types for evacuation announcements and
// per-shelter occupancy snapshots.
//
// An Announcement is one published status update about a disaster response. Each
// Announcement may link to a detail page listing shelters; every row of that
// listing becomes a Snapshot stamped with the Announcement's date. The package
// also owns the per-field coercion policy (capacity is strict, household and
// occupant counts default to zero) and the date parsing used for the time axis.
package shelter
