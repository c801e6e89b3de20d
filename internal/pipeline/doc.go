// Package pipeline runs one scrape: it fetches the announcement index, lists
// the entries matching the disaster keyword, fetches and parses each detail
// page, and folds the per-announcement batches into the announcement and
// shelter-snapshot tables.
//
// Temporary fetch failures are retried with exponential backoff. A failed
// index fetch aborts the run; a failed detail fetch drops only that
// announcement's shelter rows.
package pipeline
