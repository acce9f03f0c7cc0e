package models

import (
	"time"
)

// Source identifies the platform a corpus was harvested from.
type Source string

const (
	SourceTelegram Source = "telegram"
	SourceYouTube  Source = "youtube"
)

// CommentType distinguishes top-level comments from replies. A reply always
// carries the id of its parent comment; a top-level comment never does.
type CommentType string

const (
	CommentTopLevel CommentType = "top_level"
	CommentReply    CommentType = "reply"
)

// User is the author of a comment. Username and names are optional depending
// on what the platform exposes.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName resolves a human-readable name for the user, falling back to a
// synthesized placeholder when the platform provided nothing.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User_" + u.ID
}

// Comment is the canonical persisted comment record.
type Comment struct {
	CommentID string      `json:"comment_id"`
	PostID    string      `json:"post_id"`
	Type      CommentType `json:"comment_type"`
	ParentID  string      `json:"parent_id,omitempty"`
	User      User        `json:"user"`
	Text      string      `json:"text"`
	Date      time.Time   `json:"date"`
	Likes     int         `json:"likes,omitempty"`
}

// IsReply reports whether the comment is a reply to another comment.
func (c Comment) IsReply() bool {
	return c.Type == CommentReply
}

// Post is a channel post or video with its engagement metrics. ReplyCount is
// the platform-reported number of comments/replies, which may be stale
// relative to what a comment fetch actually returns.
type Post struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text,omitempty"`
	Date       time.Time `json:"date"`
	Views      int       `json:"views,omitempty"`
	Likes      int       `json:"likes,omitempty"`
	ReplyCount int       `json:"reply_count"`
}

// Age returns how old the post is relative to now.
func (p Post) Age(now time.Time) time.Duration {
	return now.Sub(p.Date)
}

// SyncStats summarizes one sync run. TotalComments counts comments stored
// for every processed post (existing plus new), not only freshly fetched ones.
type SyncStats struct {
	TotalPosts    int `json:"total_posts"`
	NewPosts      int `json:"new_posts"`
	UpdatedPosts  int `json:"updated_posts"`
	SkippedPosts  int `json:"skipped_posts"`
	TotalComments int `json:"total_comments"`
	NewComments   int `json:"new_comments"`
}

// ChannelInfo is the channel-level sync state snapshot persisted after each
// successful run.
type ChannelInfo struct {
	Channel    string     `json:"channel"`
	Source     Source     `json:"source"`
	LastSync   time.Time  `json:"last_sync"`
	PostsLimit int        `json:"posts_limit"`
	Stats      *SyncStats `json:"stats,omitempty"`
}

// Dimension is one independent classification axis.
type Dimension string

const (
	DimensionToxicity Dimension = "toxicity"
	DimensionStance   Dimension = "stance"
)

// Classification categories. The neutral category doubles as the catch-all
// default for unparseable oracle output.
const (
	CategoryToxic    = "toxic"
	CategoryFriendly = "friendly"
	CategoryNeutral  = "neutral"
	CategoryStanceA  = "pro_ukraine"
	CategoryStanceB  = "pro_russia"
)

// ClassificationRecord assigns a category to one comment on one dimension.
type ClassificationRecord struct {
	CommentID string    `json:"comment_id"`
	Dimension Dimension `json:"dimension"`
	Category  string    `json:"category"`
}
