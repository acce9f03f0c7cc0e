// Package platform contains the adapters that fetch posts and comments from
// remote platforms. Pagination, authentication and rate-limit mechanics stay
// behind the Adapter interface; the sync engine only sees unified records.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chanwatch/internal/models"
)

// Adapter fetches posts and comments from one remote platform.
type Adapter interface {
	Source() models.Source

	// Connect validates credentials/session state. A failure here is
	// always fatal for the run.
	Connect(ctx context.Context) error

	// ListPosts returns up to limit posts, most recent first.
	ListPosts(ctx context.Context, channel string, limit int) ([]models.Post, error)

	// ListComments returns the comments of a post that are not in the
	// known set, following pagination (and reply recursion where the
	// platform nests replies) to exhaustion.
	ListComments(ctx context.Context, channel, postID string, known map[string]bool) ([]models.Comment, error)

	// Cutoff is the maximum post age within which comments are still
	// re-fetched.
	Cutoff() time.Duration
}

// FatalError marks authentication/session failures that must abort the whole
// sync run. Advice tells the operator how to recover.
type FatalError struct {
	Reason string
	Advice string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
