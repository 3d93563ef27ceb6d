// Package transform turns captured profile markup into model entities.
package transform

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goodsign/monday"

	"watchdxg/internal/logger"
	"watchdxg/internal/model"
	"watchdxg/internal/normalize"
)

// Step names reported in TransformError.
const (
	StepParse     = "parse"
	StepName      = "name"
	StepJoinDate  = "join_date"
	StepFollowing = "following"
	StepFollowers = "followers"
	StepTimeline  = "timeline"
	StepPost      = "post"
)

var errMissing = errors.New("element not found")

// ErrPanic wraps a value recovered while transforming a profile.
var ErrPanic = errors.New("transform panicked")

// Transformer parses profile pages. It is safe for concurrent use.
type Transformer struct {
	log     logger.Logger
	locales []monday.Locale
}

// New returns a Transformer reading join dates in the given locales after
// English. A nil slice uses DefaultLocales.
func New(log logger.Logger, locales []monday.Locale) *Transformer {
	if locales == nil {
		locales = DefaultLocales
	}
	return &Transformer{log: log, locales: locales}
}

// User builds the profile entity for raw. Any missing structural element
// other than the optional bio, website and post text yields a
// *model.TransformError naming the step; no entity is returned then.
func (t *Transformer) User(raw model.RawExtract, accountRef int64, isFollower bool) (u *model.User, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("Profile transform panicked",
				logger.Handle(raw.Handle),
				logger.String("stack", string(debug.Stack())),
			)
			u, err = nil, &model.TransformError{Handle: raw.Handle, Step: StepParse, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	return t.user(raw, accountRef, isFollower)
}

func (t *Transformer) user(raw model.RawExtract, accountRef int64, isFollower bool) (*model.User, error) {
	fail := func(step string, err error) (*model.User, error) {
		return nil, &model.TransformError{Handle: raw.Handle, Step: step, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Markup))
	if err != nil {
		return fail(StepParse, err)
	}

	u := &model.User{
		AccountRef: accountRef,
		Handle:     raw.Handle,
		IsFollower: isFollower,
	}

	nameBlock := doc.Find(selUserName).First()
	if nameBlock.Length() == 0 {
		return fail(StepName, fmt.Errorf("%s: %w", selUserName, errMissing))
	}
	nameLeaf := firstLeaf(nameBlock, "div")
	if nameLeaf.Length() == 0 {
		return fail(StepName, fmt.Errorf("display name leaf: %w", errMissing))
	}
	u.DisplayName = strings.TrimSpace(nameLeaf.Text())
	u.Certified = nameBlock.Find(selVerified).Length() > 0

	if bioBlock := doc.Find(selBio).First(); bioBlock.Length() > 0 {
		if leaf := firstLeaf(bioBlock, "span"); leaf.Length() > 0 {
			bio := strings.TrimSpace(leaf.Text())
			u.Bio = &bio
		}
	}

	joinLeaf := firstLeafMatching(doc.Find(selJoinDate).First(), "span", yearPattern)
	if joinLeaf.Length() == 0 {
		return fail(StepJoinDate, fmt.Errorf("%s: %w", selJoinDate, errMissing))
	}
	u.JoinedAt, err = ParseJoinDate(joinLeaf.Text(), t.locales)
	if err != nil {
		return fail(StepJoinDate, err)
	}

	u.FollowingDisplay, u.FollowingCount, err = countUnder(doc.Find(followingHref(raw.Handle)).First())
	if err != nil {
		return fail(StepFollowing, err)
	}

	var followers *goquery.Selection
	for _, sel := range followersHrefs(raw.Handle) {
		if followers = doc.Find(sel).First(); followers.Length() > 0 {
			break
		}
	}
	u.FollowersDisplay, u.FollowersCount, err = countUnder(followers)
	if err != nil {
		return fail(StepFollowers, err)
	}

	if header := doc.Find(selHeaderItems).First(); header.Length() > 0 {
		if link := header.Find(selUserURL).First(); link.Length() > 0 {
			if text, ok := firstTextMatching(link, urlPattern); ok {
				u.FeaturedURL = &text
			}
		}
	}

	region := doc.Find(selRegion).First()
	if region.Length() == 0 {
		return fail(StepTimeline, fmt.Errorf("%s: %w", selRegion, errMissing))
	}

	articles := region.Find(selArticle)
	articles.Each(func(_ int, article *goquery.Selection) {
		p, err := t.Post(article, raw.Handle)
		if err != nil {
			t.log.Warn("Skipping unreadable post",
				logger.Handle(raw.Handle),
				logger.Step(StepPost),
				logger.Error(err),
			)
			return
		}
		if p != nil {
			u.AddPost(p)
		}
	})

	t.log.Info("Profile parsed",
		logger.Handle(raw.Handle),
		logger.Bool("certified", u.Certified),
		logger.Int64("followers", u.FollowersCount),
		logger.Int64("following", u.FollowingCount),
		logger.Int("posts", len(u.Posts)),
		logger.Int("articles", articles.Length()),
	)
	return u, nil
}

// countUnder reads the first digit-bearing leaf span under anchor, keeping
// the display text as rendered.
func countUnder(anchor *goquery.Selection) (string, int64, error) {
	if anchor == nil || anchor.Length() == 0 {
		return "", 0, fmt.Errorf("count anchor: %w", errMissing)
	}
	leaf := firstLeafMatching(anchor, "span", numberPattern)
	if leaf.Length() == 0 {
		return "", 0, fmt.Errorf("count text: %w", errMissing)
	}
	display := leaf.Text()
	n, err := normalize.Count(display)
	if err != nil {
		return "", 0, err
	}
	return display, n, nil
}
