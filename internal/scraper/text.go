package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// strippedText joins the trimmed text of every text node below the selection,
// dropping whitespace-only nodes. Cells that wrap values in spans or line
// breaks come out as a single clean string.
func strippedText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		appendText(&b, n)
	}
	return b.String()
}

func appendText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(strings.TrimSpace(n.Data))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(b, c)
	}
}

// findTextNode returns the first text node in document order whose content
// begins with prefix, ignoring leading whitespace.
func findTextNode(root *html.Node, prefix string) *html.Node {
	if root == nil {
		return nil
	}
	if root.Type == html.TextNode && strings.HasPrefix(strings.TrimLeft(root.Data, " \t\r\n　"), prefix) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findTextNode(c, prefix); found != nil {
			return found
		}
	}
	return nil
}
