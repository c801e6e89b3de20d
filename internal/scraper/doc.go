// Package scraper provides HTTP fetching and HTML parsing for the city's
// evacuation shelter announcements.
//
// The scraper package fetches the public announcement index, lists the entries
// that belong to a given disaster, and parses each entry's detail page into
// shelter snapshots and an optional supplementary note. Shelter coordinates are
// pulled out of the map link's click handler or href. Structural irregularities
// are reported as Anomaly values rather than errors so that one bad row never
// costs the whole run.
package scraper
