package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"

	"watchdxg/internal/model"
	"watchdxg/internal/pipeline"
)

// Section ids, also used as CSV block headers.
const (
	SectionRun      = "run"
	SectionUsers    = "users"
	SectionFailures = "failures"
)

// RunReport renders a pipeline.Summary.
type RunReport struct {
	sum *pipeline.Summary
}

// New wraps sum for rendering.
func New(sum *pipeline.Summary) *RunReport {
	return &RunReport{sum: sum}
}

func (r *RunReport) runTable() table.Writer {
	s := r.sum
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Account", s.Account},
		{"Started", s.StartedAt.UTC().Format(time.RFC3339)},
		{"Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()},
		{"Discovered", s.Discovered},
		{"Queued", s.Queued},
		{"Loaded", s.Loaded},
		{"Posts inserted", s.PostsInserted},
		{"Boundary hits", s.BoundaryHits},
		{"Extract failures", s.FailuresAt(pipeline.StageExtract)},
		{"Transform failures", s.FailuresAt(pipeline.StageTransform)},
		{"Persist failures", s.FailuresAt(pipeline.StagePersist)},
	})
	return t
}

func (r *RunReport) usersTable() table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Handle", "Name", "Certified", "Followers", "Following", "Joined", "Posts"})
	for _, u := range r.sum.Users {
		t.AppendRow(table.Row{
			u.Handle, u.DisplayName, yesNo(u.Certified),
			u.FollowersCount, u.FollowingCount, joined(u), len(u.Posts),
		})
	}
	return t
}

func (r *RunReport) failuresTable() table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Handle", "Stage", "Error"})
	for _, f := range r.sum.Failures {
		t.AppendRow(table.Row{f.Handle, f.Stage, f.Err.Error()})
	}
	return t
}

type section struct {
	id    string
	title string
	table table.Writer
}

func (r *RunReport) sections() []section {
	out := []section{
		{SectionRun, "Run", r.runTable()},
		{SectionUsers, "Users", r.usersTable()},
	}
	if len(r.sum.Failures) > 0 {
		out = append(out, section{SectionFailures, "Failures", r.failuresTable()})
	}
	return out
}

// ToText renders boxed terminal tables.
func (r *RunReport) ToText() (string, error) {
	var b strings.Builder
	for i, s := range r.sections() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		s.table.SetTitle(s.title)
		s.table.SetStyle(table.StyleLight)
		b.WriteString(s.table.Render())
	}
	return b.String(), nil
}

// ToHTML renders one <section> per table.
func (r *RunReport) ToHTML() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Harvest report: @%s</h1>\n", html.EscapeString(r.sum.Account))
	for _, s := range r.sections() {
		fmt.Fprintf(&b, "<section id=%q>\n<h2>%s</h2>\n%s\n</section>\n", s.id, s.title, s.table.RenderHTML())
	}
	return b.String(), nil
}

// ToMarkdown converts the HTML rendering.
func (r *RunReport) ToMarkdown() (string, error) {
	doc, err := r.ToHTML()
	if err != nil {
		return "", err
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.Table())
	markdown, err := converter.ConvertString(doc)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	return markdown, nil
}

// ToCSV writes each table as a CSV block headed by "# <section>".
func (r *RunReport) ToCSV() (string, error) {
	doc, err := r.ToHTML()
	if err != nil {
		return "", err
	}
	page, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var buf bytes.Buffer
	var werr error
	page.Find("section").Each(func(i int, sec *goquery.Selection) {
		if werr != nil {
			return
		}
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "# %s\n", sec.AttrOr("id", ""))

		w := csv.NewWriter(&buf)
		sec.Find("table tr").Each(func(_ int, row *goquery.Selection) {
			var record []string
			row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				record = append(record, strings.TrimSpace(cell.Text()))
			})
			if len(record) > 0 && werr == nil {
				werr = w.Write(record)
			}
		})
		w.Flush()
		if werr == nil {
			werr = w.Error()
		}
	})
	if werr != nil {
		return "", fmt.Errorf("failed to write CSV: %w", werr)
	}
	return buf.String(), nil
}

type jsonPost struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Text      *string   `json:"text,omitempty"`
	Replies   int64     `json:"replies"`
	Reposts   int64     `json:"reposts"`
	Likes     int64     `json:"likes"`
	Views     int64     `json:"views"`
	IsRepost  bool      `json:"is_repost"`
}

type jsonUser struct {
	ID          int64      `json:"id"`
	Handle      string     `json:"handle"`
	DisplayName string     `json:"display_name"`
	Certified   bool       `json:"certified"`
	Bio         *string    `json:"bio,omitempty"`
	JoinedAt    string     `json:"joined_at,omitempty"`
	Followers   int64      `json:"followers"`
	Following   int64      `json:"following"`
	FeaturedURL *string    `json:"featured_url,omitempty"`
	Posts       []jsonPost `json:"posts"`
}

type jsonFailure struct {
	Handle string `json:"handle"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

type jsonReport struct {
	Account       string        `json:"account"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Discovered    int           `json:"discovered"`
	Queued        int           `json:"queued"`
	Loaded        int           `json:"loaded"`
	PostsInserted int           `json:"posts_inserted"`
	BoundaryHits  int           `json:"boundary_hits"`
	Users         []jsonUser    `json:"users"`
	Failures      []jsonFailure `json:"failures"`
}

// ToJSON returns the full run including every user's posts.
func (r *RunReport) ToJSON() ([]byte, error) {
	s := r.sum
	out := jsonReport{
		Account:       s.Account,
		StartedAt:     s.StartedAt.UTC(),
		FinishedAt:    s.FinishedAt.UTC(),
		Discovered:    s.Discovered,
		Queued:        s.Queued,
		Loaded:        s.Loaded,
		PostsInserted: s.PostsInserted,
		BoundaryHits:  s.BoundaryHits,
		Users:         make([]jsonUser, 0, len(s.Users)),
		Failures:      make([]jsonFailure, 0, len(s.Failures)),
	}
	for _, u := range s.Users {
		ju := jsonUser{
			ID:          u.ID,
			Handle:      u.Handle,
			DisplayName: u.DisplayName,
			Certified:   u.Certified,
			Bio:         u.Bio,
			JoinedAt:    joined(u),
			Followers:   u.FollowersCount,
			Following:   u.FollowingCount,
			FeaturedURL: u.FeaturedURL,
			Posts:       make([]jsonPost, 0, len(u.Posts)),
		}
		for _, p := range u.Posts {
			ju.Posts = append(ju.Posts, jsonPost{
				ID:        p.ID,
				Timestamp: p.Timestamp.UTC(),
				Author:    p.AuthorHandle,
				Text:      p.Text,
				Replies:   p.ReplyCount,
				Reposts:   p.RepostCount,
				Likes:     p.LikeCount,
				Views:     p.ViewCount,
				IsRepost:  p.IsRepost,
			})
		}
		out.Users = append(out.Users, ju)
	}
	for _, f := range s.Failures {
		out.Failures = append(out.Failures, jsonFailure{Handle: f.Handle, Stage: f.Stage, Error: f.Err.Error()})
	}
	return json.MarshalIndent(out, "", "  ")
}

func joined(u *model.User) string {
	if u.JoinedAt.IsZero() {
		return ""
	}
	return u.JoinedAt.Format("2006-01")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
