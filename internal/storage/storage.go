package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// bom is the UTF-8 byte order mark written at the start of every export.
const bom = "\ufeff"

// Default file names of the two datasets.
const (
	AnnouncementsFile = "info.csv"
	SnapshotsFile     = "data.csv"
)

// Storage handles persistence of the exported tables
type Storage struct {
	dataDir string
	loc     *time.Location
}

// New creates a new Storage instance rooted at dataDir. Dates read back from
// disk are interpreted in loc (UTC when nil).
func New(dataDir string, loc *time.Location) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	if loc == nil {
		loc = time.UTC
	}

	return &Storage{
		dataDir: dataDir,
		loc:     loc,
	}, nil
}

// Dir returns the resolved data directory.
func (s *Storage) Dir() string {
	return s.dataDir
}

// Path returns the location of name inside the data directory.
// Absolute names are returned unchanged.
func (s *Storage) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dataDir, name)
}

// writeFile renders a table with fn and writes it to name.
func (s *Storage) writeFile(name string, fn func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(name), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// writeTable writes a BOM, the header, and rows as CSV.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}

// record is one CSV row addressed by header name.
type record struct {
	line   int
	fields map[string]string
}

func (r record) get(column string) string {
	return r.fields[column]
}

// readTable reads a CSV with an optional BOM and checks that every column in
// required is present in the header.
func readTable(r io.Reader, required []string) ([]record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("missing header row")
	}

	header := all[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, col := range required {
		if !present[col] {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	records := make([]record, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		records = append(records, record{line: i + 2, fields: fields})
	}
	return records, nil
}

func (s *Storage) readFile(name string, required []string) ([]record, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	records, err := readTable(f, required)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return records, nil
}
