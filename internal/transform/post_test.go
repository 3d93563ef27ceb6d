package transform

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func article(t *testing.T, markup string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	sel := doc.Find(selArticle).First()
	require.Equal(t, 1, sel.Length())
	return sel
}

const replyArticle = `<article data-testid="tweet">
  <div data-testid="User-Name">
    <div><a href="/dev_ops"><div><span><span>Dev</span></span></div></a></div>
    <div>
      <div><a href="/dev_ops"><div><span>@dev_ops</span></div></a></div>
      <div><a href="/dev_ops/status/42"><time datetime="2024-02-29T12:00:00.000Z">Feb 29</time></a></div>
    </div>
  </div>
  <div data-testid="tweetText"><span>Leap day deploy</span></div>
  <span data-testid="app-text-transition-container"><span><span>1 234</span></span></span>
</article>`

func TestPost_ReadsOwnPost(t *testing.T) {
	p, err := newTransformer().Post(article(t, replyArticle), "dev_ops")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "42", p.ID)
	assert.Equal(t, "Dev", p.AuthorDisplayName)
	assert.Equal(t, int64(1234), p.ReplyCount)
	assert.Equal(t, int64(0), p.RepostCount)
	assert.Equal(t, int64(0), p.LikeCount)
	assert.Equal(t, int64(0), p.ViewCount)
	require.NotNil(t, p.Text)
	assert.Equal(t, "Leap day deploy", *p.Text)
}

func TestPost_DiscardsOtherAuthor(t *testing.T) {
	p, err := newTransformer().Post(article(t, replyArticle), "someone")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPost_HandleComparisonIgnoresCase(t *testing.T) {
	p, err := newTransformer().Post(article(t, replyArticle), "Dev_Ops")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPost_StructuralErrors(t *testing.T) {
	tests := map[string]string{
		"no author block": `<article data-testid="tweet"><div>text</div></article>`,
		"single group": `<article data-testid="tweet"><div data-testid="User-Name">
			<div><span>Dev</span></div></div></article>`,
		"no status link": `<article data-testid="tweet"><div data-testid="User-Name">
			<div><span>Dev</span></div>
			<div><a href="/dev_ops"><span>@dev_ops</span></a></div></div></article>`,
		"no time": `<article data-testid="tweet"><div data-testid="User-Name">
			<div><span>Dev</span></div>
			<div><span>@dev_ops</span><a href="/dev_ops/status/9">now</a></div></div></article>`,
	}
	for name, markup := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := newTransformer().Post(article(t, markup), "dev_ops")
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestStatusID_SkipsNonStatusLinks(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div><a href="/dev_ops">@dev_ops</a><a href="/dev_ops/status/77/photo/1">p</a><a href="/dev_ops/status/78">t</a></div>`))
	require.NoError(t, err)

	id, ok := statusID(doc.Find("div").First())
	require.True(t, ok)
	assert.Equal(t, "77", id)
}
