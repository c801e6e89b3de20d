package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/shelter-watch/internal/shelter"
)

// AnnouncementSelector selects one index entry: a status label (dt) and a
// body of two paragraphs, the date and the linked title.
const AnnouncementSelector = "div.volunteer > dl"

// AnnouncementRef is an index entry that matched the disaster keyword
type AnnouncementRef struct {
	Title    string
	Status   string
	DateText string
	Date     time.Time // zero when DateText could not be parsed
	Link     string    // absolute detail-page URL, empty when the entry had no link
}

// ListOptions controls entry filtering and date parsing
type ListOptions struct {
	Keyword     string
	TitlePrefix string
	Location    *time.Location
}

// Listing is the result of scanning the index page
type Listing struct {
	Refs      []AnnouncementRef
	Anomalies []Anomaly
}

// ListAnnouncements returns the index entries whose title contains
// opts.Keyword, oldest first. The page lists newest first, so entries are
// reversed before filtering. Relative links are resolved against base.
// Keyword matching is done on NFKC-normalized text.
func ListAnnouncements(doc *goquery.Document, base *url.URL, opts ListOptions) *Listing {
	entries := doc.Find(AnnouncementSelector)
	listing := &Listing{Refs: make([]AnnouncementRef, 0, entries.Length())}
	keyword := shelter.Normalize(opts.Keyword)

	for i := entries.Length() - 1; i >= 0; i-- {
		dl := entries.Eq(i)

		paragraphs := dl.Find("dd > p")
		if paragraphs.Length() != 2 {
			listing.Anomalies = append(listing.Anomalies, Anomaly{
				Kind: AnomalyEntryMalformed,
				Row:  i,
				Err:  fmt.Errorf("expected 2 body paragraphs, got %d", paragraphs.Length()),
			})
			continue
		}

		dateText := strippedText(paragraphs.Eq(0))
		title := strippedText(paragraphs.Eq(1))
		if opts.TitlePrefix != "" {
			title = strings.TrimSpace(strings.ReplaceAll(title, opts.TitlePrefix, ""))
		}

		if !strings.Contains(shelter.Normalize(title), keyword) {
			continue
		}

		ref := AnnouncementRef{
			Title:    title,
			Status:   strings.Join(strings.Fields(strippedText(dl.Find("dt"))), ""),
			DateText: dateText,
			Date:     shelter.ParseDate(dateText, opts.Location),
		}

		if ref.Date.IsZero() {
			listing.Anomalies = append(listing.Anomalies, Anomaly{
				Kind:    AnomalyDateUnparsed,
				Row:     i,
				Shelter: title,
				Err:     fmt.Errorf("unparseable date %q", dateText),
			})
		}

		link, err := resolveLink(dl, base)
		if err != nil {
			listing.Anomalies = append(listing.Anomalies, Anomaly{Kind: AnomalyLinkMissing, Row: i, Shelter: title, Err: err})
		}
		ref.Link = link

		listing.Refs = append(listing.Refs, ref)
	}

	return listing
}

func resolveLink(dl *goquery.Selection, base *url.URL) (string, error) {
	href, ok := dl.Find("a").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", fmt.Errorf("entry has no link")
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parsing link %q: %w", href, err)
	}
	if base == nil {
		if !ref.IsAbs() {
			return "", fmt.Errorf("relative link %q without base URL", href)
		}
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
