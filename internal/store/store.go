// Package store persists accounts, harvested users and their posts in
// PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"watchdxg/internal/model"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout is the default timeout for ping operations
	DefaultPingTimeout = 5 * time.Second

	uniqueViolation = "23505"
)

// Config holds database connection settings.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Open connects to PostgreSQL and verifies the connection.
func Open(cfg Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(DefaultMaxIdleConns, maxOpen))
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}
	return db, nil
}

// Store is the persistence gateway. It is safe for concurrent use; the
// connection pool is the only shared state.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps an open database. Queries are written with ? placeholders and
// rebound for the driver, so the same store runs on PostgreSQL and SQLite.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RegisterAccount returns the id of the owning account, creating the row
// on first use.
func (s *Store) RegisterAccount(ctx context.Context, handle string) (int64, error) {
	const q = `
		INSERT INTO accounts (handle) VALUES (?)
		ON CONFLICT (handle) DO UPDATE SET handle = excluded.handle
		RETURNING id`

	var id int64
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(q), handle).Scan(&id); err != nil {
		return 0, fmt.Errorf("register account %s: %w", handle, err)
	}
	return id, nil
}

// UpsertUser inserts u or overwrites the mutable fields of the row with the
// same handle, and returns the row id. Concurrent upserts of one handle
// resolve last-write-wins. Existing posts are never touched.
func (s *Store) UpsertUser(ctx context.Context, u *model.User) (int64, error) {
	const q = `
		INSERT INTO users (
			account_id, handle, display_name, certified, bio, joined_at,
			following_count, followers_count, following_display, followers_display,
			featured_url, is_follower, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (handle) DO UPDATE SET
			account_id = excluded.account_id,
			display_name = excluded.display_name,
			certified = excluded.certified,
			bio = excluded.bio,
			joined_at = excluded.joined_at,
			following_count = excluded.following_count,
			followers_count = excluded.followers_count,
			following_display = excluded.following_display,
			followers_display = excluded.followers_display,
			featured_url = excluded.featured_url,
			is_follower = excluded.is_follower,
			last_updated = excluded.last_updated
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(q),
		u.AccountRef, u.Handle, u.DisplayName, u.Certified, u.Bio, u.JoinedAt,
		u.FollowingCount, u.FollowersCount, u.FollowingDisplay, u.FollowersDisplay,
		u.FeaturedURL, u.IsFollower, s.now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert user %s: %w", u.Handle, err)
	}
	return id, nil
}

// InsertPost records p. A post id that is already stored yields
// model.ErrDuplicatePost.
func (s *Store) InsertPost(ctx context.Context, p *model.Post) error {
	const q = `
		INSERT INTO posts (
			id, user_id, posted_at, author_display_name, author_handle, text,
			reply_count, repost_count, like_count, view_count, is_repost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		p.ID, p.UserRef, p.Timestamp.UTC(), p.AuthorDisplayName, p.AuthorHandle, p.Text,
		p.ReplyCount, p.RepostCount, p.LikeCount, p.ViewCount, p.IsRepost,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("post %s: %w", p.ID, model.ErrDuplicatePost)
		}
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("post %s: %w", p.ID, model.ErrDuplicatePost)
	}
	return nil
}

// Exists reports whether a user row with handle is stored.
func (s *Store) Exists(ctx context.Context, handle string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE handle = ?)`

	var exists bool
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(q), handle).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user %s: %w", handle, err)
	}
	return exists, nil
}
