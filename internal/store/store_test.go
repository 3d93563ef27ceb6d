package store

import (
	"context"
	"database/sql"
	_ "embed"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"watchdxg/internal/model"
)

//go:embed testdata/schema_sqlite.sql
var sqliteSchema string

func setup(t testing.TB) *Store {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)

	s := New(db)
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func strPtr(s string) *string { return &s }

func sampleUser(accountRef int64) *model.User {
	return &model.User{
		AccountRef:       accountRef,
		Handle:           "janedoe",
		DisplayName:      "Jane Doe",
		Certified:        true,
		Bio:              strPtr("Building things."),
		JoinedAt:         time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC),
		FollowingCount:   1234,
		FollowersCount:   12500,
		FollowingDisplay: "1,234",
		FollowersDisplay: "12.5k",
		IsFollower:       true,
	}
}

func samplePost(id string, userRef int64) *model.Post {
	return &model.Post{
		ID:                id,
		UserRef:           userRef,
		Timestamp:         time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC),
		AuthorDisplayName: "Jane Doe",
		AuthorHandle:      "janedoe",
		Text:              strPtr("hello"),
		ReplyCount:        1,
		LikeCount:         2,
	}
}

func count(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestRegisterAccount(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	first, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)
	again, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)
	other, err := s.RegisterAccount(ctx, "someone")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 2, count(t, s, "accounts"))
}

func TestUpsertUser_Idempotent(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	acc, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)

	id1, err := s.UpsertUser(ctx, sampleUser(acc))
	require.NoError(t, err)
	id2, err := s.UpsertUser(ctx, sampleUser(acc))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, count(t, s, "users"))
}

func TestUpsertUser_UpdatesFieldsAndKeepsPosts(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	acc, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)

	u := sampleUser(acc)
	id, err := s.UpsertUser(ctx, u)
	require.NoError(t, err)
	require.NoError(t, s.InsertPost(ctx, samplePost("100", id)))
	require.NoError(t, s.InsertPost(ctx, samplePost("99", id)))

	u.Bio = strPtr("New bio.")
	u.FollowersCount = 13000
	u.FeaturedURL = strPtr("janedoe.dev")
	again, err := s.UpsertUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	var row struct {
		Bio            sql.NullString `db:"bio"`
		FollowersCount int64          `db:"followers_count"`
		FeaturedURL    sql.NullString `db:"featured_url"`
	}
	require.NoError(t, s.db.Get(&row, `SELECT bio, followers_count, featured_url FROM users WHERE id = ?`, id))
	assert.Equal(t, "New bio.", row.Bio.String)
	assert.Equal(t, int64(13000), row.FollowersCount)
	assert.Equal(t, "janedoe.dev", row.FeaturedURL.String)
	assert.Equal(t, 2, count(t, s, "posts"))
}

func TestUpsertUser_NullBio(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	acc, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)

	u := sampleUser(acc)
	u.Bio = nil
	id, err := s.UpsertUser(ctx, u)
	require.NoError(t, err)

	var bio sql.NullString
	require.NoError(t, s.db.Get(&bio, `SELECT bio FROM users WHERE id = ?`, id))
	assert.False(t, bio.Valid)
}

func TestInsertPost_Duplicate(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	acc, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)
	id, err := s.UpsertUser(ctx, sampleUser(acc))
	require.NoError(t, err)

	require.NoError(t, s.InsertPost(ctx, samplePost("100", id)))
	err = s.InsertPost(ctx, samplePost("100", id))

	assert.ErrorIs(t, err, model.ErrDuplicatePost)
	assert.Equal(t, 1, count(t, s, "posts"))
}

func TestInsertPost_NullText(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	acc, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)
	id, err := s.UpsertUser(ctx, sampleUser(acc))
	require.NoError(t, err)

	p := samplePost("7", id)
	p.Text = nil
	require.NoError(t, s.InsertPost(ctx, p))

	var text sql.NullString
	require.NoError(t, s.db.Get(&text, `SELECT text FROM posts WHERE id = ?`, "7"))
	assert.False(t, text.Valid)
}

func TestExists(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	acc, err := s.RegisterAccount(ctx, "owner")
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "janedoe")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UpsertUser(ctx, sampleUser(acc))
	require.NoError(t, err)

	ok, err = s.Exists(ctx, "janedoe")
	require.NoError(t, err)
	assert.True(t, ok)
}
