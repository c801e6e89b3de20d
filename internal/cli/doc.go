// Package cli implements the command-line interface for shelter-watch.
//
// The cli package provides the Cobra-based CLI with three commands: scrape
// fetches the announcement index and detail pages and exports info.csv and
// data.csv; matrix reads those exports back and renders the cumulative and
// delta occupancy views; version prints the build version. It coordinates the
// config, pipeline, storage, and timeseries packages.
package cli
