// Package storage provides CSV persistence for the announcement and shelter
// snapshot datasets.
//
// Both tables are written as UTF-8 with a byte order mark so spreadsheet tools
// detect the encoding, one header row, dates in "2006-01-02 15:04:05" form and
// empty cells for missing values. The announcement table is keyed by its date
// column. Matrix views can be exported the same way. The default data
// directory is ~/.local/share/shelter-watch/.
package storage
