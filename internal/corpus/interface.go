package corpus

import (
	"chanwatch/internal/models"
)

// Store defines the interface to one channel's persisted corpus.
//
// Load operations are fail-soft: a missing or unreadable file reads as
// absent, never as an error. Saves of a post and its comments are one
// logical unit; an interrupted save leaves the previously stored pair
// intact.
type Store interface {
	Channel() string
	Source() models.Source

	PostExists(postID string) bool
	LoadPost(postID string) *models.Post
	LoadComments(postID string) []models.Comment
	SavePostData(postID string, post *models.Post, comments []models.Comment) error

	ListPostIDs() []string
	LoadAllComments() []models.Comment

	SaveChannelInfo(info *models.ChannelInfo) error
	LoadChannelInfo() *models.ChannelInfo

	// AnalysisDir is the directory for statistics snapshots, keyword
	// exports and classification results. It exists after Open.
	AnalysisDir() string
}
