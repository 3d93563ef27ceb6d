package transform

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	yearPattern   = regexp.MustCompile(`\d{4}`)
	numberPattern = regexp.MustCompile(`\d`)
	urlPattern    = regexp.MustCompile(`\w+\.\w+(/\w+)?`)
)

// firstLeaf returns the first element matching tag under s that carries
// text and has no nested element of the same tag. Badge and icon wrappers
// around the real text are skipped this way.
func firstLeaf(s *goquery.Selection, tag string) *goquery.Selection {
	return s.Find(tag).FilterFunction(func(_ int, el *goquery.Selection) bool {
		return strings.TrimSpace(el.Text()) != "" && el.Find(tag).Length() == 0
	}).First()
}

// firstLeafMatching is firstLeaf restricted to leaves whose text matches re.
func firstLeafMatching(s *goquery.Selection, tag string, re *regexp.Regexp) *goquery.Selection {
	return s.Find(tag).FilterFunction(func(_ int, el *goquery.Selection) bool {
		return el.Find(tag).Length() == 0 && re.MatchString(el.Text())
	}).First()
}

// firstTextMatching returns the first text node under s matching re.
func firstTextMatching(s *goquery.Selection, re *regexp.Regexp) (string, bool) {
	for _, n := range s.Nodes {
		if t, ok := findText(n, re); ok {
			return t, true
		}
	}
	return "", false
}

func findText(n *html.Node, re *regexp.Regexp) (string, bool) {
	if n.Type == html.TextNode && re.MatchString(n.Data) {
		return strings.TrimSpace(n.Data), true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t, ok := findText(c, re); ok {
			return t, true
		}
	}
	return "", false
}

// richText flattens s into plain text. Emoji are rendered as <img alt>,
// so their alt text is kept.
func richText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "img":
			for _, a := range n.Attr {
				if a.Key == "alt" {
					b.WriteString(a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}
