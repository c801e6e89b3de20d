package storage

import (
	"fmt"
	"io"

	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

// AnnouncementColumns is the header of the announcement table.
var AnnouncementColumns = []string{"title", "status", "date", "link", "information"}

// WriteAnnouncements writes announcements as CSV to w.
func WriteAnnouncements(w io.Writer, announcements []shelter.Announcement) error {
	rows := make([][]string, len(announcements))
	for i, a := range announcements {
		rows[i] = []string{a.Title, a.Status, shelter.FormatDate(a.Date), a.Link, a.Information}
	}
	return writeTable(w, AnnouncementColumns, rows)
}

// SaveAnnouncements writes the announcement table to name in the data directory.
func (s *Storage) SaveAnnouncements(name string, announcements []shelter.Announcement) error {
	return s.writeFile(name, func(w io.Writer) error {
		return WriteAnnouncements(w, announcements)
	})
}

// LoadAnnouncements reads the announcement table back in file order.
// An unparseable date yields a zero Date rather than an error.
func (s *Storage) LoadAnnouncements(name string) ([]shelter.Announcement, error) {
	records, err := s.readFile(name, AnnouncementColumns)
	if err != nil {
		return nil, fmt.Errorf("loading announcements: %w", err)
	}

	announcements := make([]shelter.Announcement, len(records))
	for i, r := range records {
		announcements[i] = shelter.Announcement{
			Title:       r.get("title"),
			Status:      r.get("status"),
			Date:        shelter.ParseDate(r.get("date"), s.loc),
			Link:        r.get("link"),
			Information: r.get("information"),
		}
	}
	return announcements, nil
}
