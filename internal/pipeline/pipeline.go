// Package pipeline drives a harvest run: follower discovery, filtering,
// extraction, transformation and loading.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"watchdxg/internal/logger"
	"watchdxg/internal/metrics"
	"watchdxg/internal/model"
	"watchdxg/internal/scheduler"
	"watchdxg/internal/transform"
)

// Session is the authenticated browser session.
type Session interface {
	EnsureSession(ctx context.Context) error
	FollowersMarkup(ctx context.Context, account string) (string, error)
}

// Gateway is the persistence gateway.
type Gateway interface {
	Exists(ctx context.Context, handle string) (bool, error)
	UpsertUser(ctx context.Context, u *model.User) (int64, error)
	// InsertPost returns model.ErrDuplicatePost for an already stored id.
	InsertPost(ctx context.Context, p *model.Post) error
}

// Stage names where a handle dropped out of the run.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StagePersist   = "persist"
)

// Failure records one handle that did not make it to the database.
type Failure struct {
	Handle string
	Stage  string
	Err    error
}

// Summary describes a finished run.
type Summary struct {
	Account    string
	StartedAt  time.Time
	FinishedAt time.Time

	Discovered int
	Queued     int
	Loaded     int

	PostsInserted int
	// BoundaryHits counts users whose post inserts stopped at a stored post.
	BoundaryHits int

	Users    []*model.User
	Failures []Failure
}

// FailuresAt counts failures recorded at stage.
func (s *Summary) FailuresAt(stage string) int {
	n := 0
	for _, f := range s.Failures {
		if f.Stage == stage {
			n++
		}
	}
	return n
}

// Options tune a run.
type Options struct {
	// Account is the handle whose followers are harvested.
	Account    string
	AccountRef int64
	// SkipKnown applies FilterUnknown before extraction.
	SkipKnown bool
	Policy    FilterPolicy
}

// Pipeline wires the session, scheduler, transformer and gateway together.
type Pipeline struct {
	session     Session
	gateway     Gateway
	scheduler   *scheduler.Scheduler
	extract     scheduler.Task
	transformer *transform.Transformer
	opts        Options
	log         logger.Logger
	metrics     *metrics.Metrics
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Session     Session
	Gateway     Gateway
	Scheduler   *scheduler.Scheduler
	Extract     scheduler.Task
	Transformer *transform.Transformer
	Log         logger.Logger
	Metrics     *metrics.Metrics
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	return &Pipeline{
		session:     deps.Session,
		gateway:     deps.Gateway,
		scheduler:   deps.Scheduler,
		extract:     deps.Extract,
		transformer: deps.Transformer,
		opts:        opts,
		log:         deps.Log,
		metrics:     deps.Metrics,
	}
}

// Run performs one harvest. It returns an error only for run-level
// failures: no session, no follower list, or a failed known-handle lookup.
// Per-handle failures are recorded in the summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{Account: p.opts.Account, StartedAt: time.Now()}

	if err := p.session.EnsureSession(ctx); err != nil {
		if !errors.Is(err, model.ErrSession) {
			err = fmt.Errorf("%w: %w", model.ErrSession, err)
		}
		return nil, err
	}

	markup, err := p.session.FollowersMarkup(ctx, p.opts.Account)
	if err != nil {
		return nil, fmt.Errorf("load followers of %s: %w", p.opts.Account, err)
	}
	handles, err := transform.FollowerHandles(markup)
	if err != nil {
		return nil, err
	}
	sum.Discovered = len(handles)
	p.metrics.HandlesDiscovered.Set(float64(len(handles)))

	if p.opts.SkipKnown {
		handles, err = FilterUnknown(ctx, handles, p.gateway.Exists, p.opts.Policy)
		if err != nil {
			return nil, err
		}
	}
	sum.Queued = len(handles)
	p.metrics.HandlesQueued.Set(float64(len(handles)))
	p.log.Info("Followers queued",
		logger.String("account", p.opts.Account),
		logger.Int("discovered", sum.Discovered),
		logger.Int("queued", sum.Queued),
		logger.Bool("skip_known", p.opts.SkipKnown),
	)
	p.log.Debug("Queued handles", logger.Strings("handles", handles))

	results := p.scheduler.RunAll(ctx, handles, p.extract)
	byHandle := make(map[string]scheduler.Result, len(results))
	for _, r := range results {
		byHandle[r.Handle] = r
	}

	for _, h := range handles {
		res, ok := byHandle[h]
		if !ok {
			// Suppressed by the scheduler; already logged there.
			continue
		}
		if !res.OK() {
			sum.Failures = append(sum.Failures, Failure{Handle: h, Stage: StageExtract, Err: res.Err})
			continue
		}
		p.process(ctx, sum, res.Extract)
	}

	sum.FinishedAt = time.Now()
	p.metrics.FinishRun(sum.StartedAt)
	p.log.Info("Run finished",
		logger.Int("loaded", sum.Loaded),
		logger.Int("posts_inserted", sum.PostsInserted),
		logger.Int("failures", len(sum.Failures)),
		logger.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, nil
}

func (p *Pipeline) process(ctx context.Context, sum *Summary, raw model.RawExtract) {
	u, err := p.transformer.User(raw, p.opts.AccountRef, true)
	if err != nil {
		p.metrics.ProfilesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		fields := []logger.Field{logger.Handle(raw.Handle), logger.Error(err)}
		var te *model.TransformError
		if errors.As(err, &te) {
			fields = append(fields, logger.Step(te.Step))
		}
		p.log.Error("Profile markup not understood", fields...)
		sum.Failures = append(sum.Failures, Failure{Handle: raw.Handle, Stage: StageTransform, Err: err})
		return
	}
	p.metrics.ProfilesTotal.WithLabelValues(metrics.OutcomeParsed).Inc()

	res, err := p.Load(ctx, u)
	sum.PostsInserted += res.Inserted
	if err != nil {
		p.metrics.PersistenceErrors.Inc()
		p.log.Error("Persisting profile failed", logger.Handle(u.Handle), logger.Error(err))
		sum.Failures = append(sum.Failures, Failure{Handle: u.Handle, Stage: StagePersist, Err: err})
		return
	}
	if res.StoppedAt != "" {
		sum.BoundaryHits++
	}
	sum.Loaded++
	sum.Users = append(sum.Users, u)
}

// LoadResult reports what Load wrote.
type LoadResult struct {
	UserID   int64
	Inserted int
	// StoppedAt is the id of the first already-stored post, if any.
	StoppedAt string
}

// Load upserts u, assigns the stored id to it and its posts, then inserts
// posts in order until one is already stored. Posts after that one are
// never attempted. Other failures come back as *model.PersistenceError.
func (p *Pipeline) Load(ctx context.Context, u *model.User) (LoadResult, error) {
	var res LoadResult

	id, err := p.gateway.UpsertUser(ctx, u)
	if err != nil {
		return res, &model.PersistenceError{Handle: u.Handle, Op: "upsert_user", Err: err}
	}
	u.AssignID(id)
	res.UserID = id

	for _, post := range u.Posts {
		err := p.gateway.InsertPost(ctx, post)
		if errors.Is(err, model.ErrDuplicatePost) {
			p.metrics.PostsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			p.log.Debug("Reached stored posts",
				logger.Handle(u.Handle),
				logger.String("post_id", post.ID),
				logger.Int("inserted", res.Inserted),
			)
			res.StoppedAt = post.ID
			break
		}
		if err != nil {
			p.metrics.PostsTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return res, &model.PersistenceError{Handle: u.Handle, Op: "insert_post " + post.ID, Err: err}
		}
		p.metrics.PostsTotal.WithLabelValues(metrics.OutcomeInserted).Inc()
		res.Inserted++
	}
	return res, nil
}
