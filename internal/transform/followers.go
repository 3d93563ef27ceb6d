package transform

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FollowerHandles lists the handles shown on a followers page, in page
// order with duplicates removed.
func FollowerHandles(markup string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse followers page: %w", err)
	}

	region := doc.Find(selRegion).First()
	if region.Length() == 0 {
		return nil, fmt.Errorf("followers page: %s: %w", selRegion, errMissing)
	}

	seen := make(map[string]bool)
	var handles []string
	region.Find(selUserCell).Each(func(_ int, cell *goquery.Selection) {
		href, ok := cell.Find(selCellLink).First().Attr("href")
		if !ok {
			return
		}
		handle, _, _ := strings.Cut(strings.TrimPrefix(href, "/"), "/")
		if handle == "" || seen[handle] {
			return
		}
		seen[handle] = true
		handles = append(handles, handle)
	})
	return handles, nil
}
