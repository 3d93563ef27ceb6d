// Package model holds the entities that flow through the harvest pipeline.
package model

import "time"

// RawExtract is the markup captured for one handle by a single extraction.
// It is discarded after transformation and never persisted.
type RawExtract struct {
	Handle string
	Markup string
}

// User is one harvested profile.
type User struct {
	// ID is assigned by the store on upsert.
	ID         int64
	AccountRef int64

	Handle      string
	DisplayName string
	Certified   bool
	Bio         *string
	// JoinedAt has month precision; the day is always the 1st.
	JoinedAt time.Time

	FollowingCount   int64
	FollowersCount   int64
	FollowingDisplay string
	FollowersDisplay string

	FeaturedURL *string
	IsFollower  bool

	// Posts keeps document order, newest first.
	Posts []*Post
}

// AddPost attaches p to the user, keeping encounter order.
func (u *User) AddPost(p *Post) {
	u.Posts = append(u.Posts, p)
}

// AssignID records the store-assigned id on the user and its posts.
func (u *User) AssignID(id int64) {
	u.ID = id
	for _, p := range u.Posts {
		p.UserRef = id
	}
}

// Post is one post visible on a harvested profile's first timeline page.
type Post struct {
	ID      string
	UserRef int64

	Timestamp         time.Time
	AuthorDisplayName string
	// AuthorHandle differs from the profile owner's handle on reposts.
	AuthorHandle string
	Text         *string

	ReplyCount  int64
	RepostCount int64
	LikeCount   int64
	ViewCount   int64

	IsRepost bool
}
