package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"watchdxg/internal/logger"
	"watchdxg/internal/model"
	"watchdxg/internal/normalize"
)

// Engagement counters in the order the page renders them.
const (
	statReplies = iota
	statReposts
	statLikes
	statViews
)

// Post reads one timeline article. It returns nil without error when the
// article is neither authored nor reposted by profileHandle; quoted and
// threaded posts from other accounts appear in the with-replies view.
func (t *Transformer) Post(article *goquery.Selection, profileHandle string) (*model.Post, error) {
	reposted := article.Find(selSocialCtx).Length() > 0

	block := article.Find(selPostUserName).First()
	if block.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selPostUserName, errMissing)
	}
	groups := block.ChildrenFiltered("div")
	if groups.Length() < 2 {
		return nil, fmt.Errorf("author groups: want 2, got %d", groups.Length())
	}
	nameGroup, handleGroup := groups.Eq(0), groups.Eq(1)

	handleLeaf := firstLeaf(handleGroup, "span")
	if handleLeaf.Length() == 0 {
		return nil, fmt.Errorf("author handle: %w", errMissing)
	}
	handle := strings.TrimPrefix(strings.TrimSpace(handleLeaf.Text()), "@")

	id, ok := statusID(handleGroup)
	if !ok {
		return nil, fmt.Errorf("status link: %w", errMissing)
	}

	if !reposted && !strings.EqualFold(handle, profileHandle) {
		t.log.Debug("Discarding post by another author",
			logger.Handle(profileHandle),
			logger.String("post_id", id),
			logger.String("author", handle),
		)
		return nil, nil
	}

	displayName := handle
	if leaf := firstLeaf(nameGroup, "span"); leaf.Length() > 0 {
		displayName = strings.TrimSpace(leaf.Text())
	}

	datetime, ok := handleGroup.Find("time").First().Attr("datetime")
	if !ok {
		return nil, fmt.Errorf("post %s: time: %w", id, errMissing)
	}
	ts, err := time.Parse(time.RFC3339, datetime)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", id, err)
	}

	stats := article.Find(selStat)
	p := &model.Post{
		ID:                id,
		Timestamp:         ts.UTC(),
		AuthorDisplayName: displayName,
		AuthorHandle:      handle,
		ReplyCount:        t.stat(stats, statReplies, id),
		RepostCount:       t.stat(stats, statReposts, id),
		LikeCount:         t.stat(stats, statLikes, id),
		ViewCount:         t.stat(stats, statViews, id),
		IsRepost:          reposted,
	}

	if box := article.Find(selPostText).First(); box.Length() > 0 {
		if text := strings.TrimSpace(richText(box)); text != "" {
			p.Text = &text
		}
	}
	return p, nil
}

// statusID returns the path segment after "status" in the first status link
// that does not wrap another link. Media links such as /status/77/photo/1
// end in an index, so the last segment is not the id.
func statusID(s *goquery.Selection) (string, bool) {
	var id string
	s.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "status/") || a.Find("a").Length() > 0 {
			return true
		}
		parts := strings.Split(strings.Trim(href, "/"), "/")
		for i, part := range parts {
			if part == "status" && i+1 < len(parts) {
				id = parts[i+1]
				return false
			}
		}
		return true
	})
	return id, id != ""
}

// stat reads the display text of the i-th counter. Empty or missing
// counters read as "0".
func (t *Transformer) stat(containers *goquery.Selection, i int, postID string) int64 {
	display := "0"
	if i < containers.Length() {
		outer := containers.Eq(i).Find("span span").First()
		if inner := outer.Find("span").First(); inner.Length() > 0 {
			if text := normalize.CleanStatText(inner.Text()); text != "" {
				display = text
			}
		}
	}
	if _, err := normalize.Count(display); err != nil {
		t.log.Warn("Unreadable engagement counter",
			logger.String("post_id", postID),
			logger.Int("position", i),
			logger.String("display", display),
			logger.Error(err),
		)
	}
	return normalize.CountOrZero(display)
}
