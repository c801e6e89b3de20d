package scraper

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrTableNotFound is reported when a detail page has no shelter listing.
var ErrTableNotFound = errors.New("shelter table not found")

// mapLink yields the text that embeds a shelter's coordinates.
type mapLink interface {
	action() string
}

// clickHandler is an anchor whose onclick opens the map.
type clickHandler string

func (c clickHandler) action() string { return string(c) }

// hyperlink is an anchor that points at the map directly.
type hyperlink string

func (h hyperlink) action() string { return string(h) }

// mapLinkOf returns the map link of a cell. onclick wins over href.
func mapLinkOf(cell *goquery.Selection) (mapLink, bool) {
	a := cell.Find("a").First()
	if a.Length() == 0 {
		return nil, false
	}
	if v, ok := a.Attr("onclick"); ok && strings.TrimSpace(v) != "" {
		return clickHandler(v), true
	}
	if v, ok := a.Attr("href"); ok && strings.TrimSpace(v) != "" {
		return hyperlink(v), true
	}
	return nil, false
}
