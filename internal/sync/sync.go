// Package sync reconciles a channel's local corpus against freshly fetched
// remote data. The reconciliation policy is a pure decision function; the
// Engine applies it post by post with cooperative rate limiting.
package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"chanwatch/internal/corpus"
	"chanwatch/internal/models"
	"chanwatch/internal/platform"
)

// Action is the reconciliation decision for one remote post.
type Action int

const (
	// ActionStoreEmpty persists a new post that reports no engagement,
	// with an empty comment list.
	ActionStoreEmpty Action = iota
	// ActionFetchAll fetches the full comment set of a new post.
	ActionFetchAll
	// ActionSkipStale leaves a stored post outside the re-fetch window
	// untouched.
	ActionSkipStale
	// ActionSkipNoComments leaves a stored post alone because neither the
	// remote nor the store has any comments for it.
	ActionSkipNoComments
	// ActionRefresh re-fetches comments excluding the already-known set
	// and merges additively.
	ActionRefresh
)

func (a Action) String() string {
	switch a {
	case ActionStoreEmpty:
		return "store_empty"
	case ActionFetchAll:
		return "fetch_all"
	case ActionSkipStale:
		return "skip_stale"
	case ActionSkipNoComments:
		return "skip_no_comments"
	case ActionRefresh:
		return "refresh"
	}
	return "unknown"
}

// Decide maps one post's local and remote state to a reconciliation action.
// Stored posts older than the cutoff are frozen regardless of what the
// remote reports.
func Decide(exists bool, age, cutoff time.Duration, remoteReplies, storedComments int) Action {
	switch {
	case !exists && remoteReplies == 0:
		return ActionStoreEmpty
	case !exists:
		return ActionFetchAll
	case age > cutoff:
		return ActionSkipStale
	case remoteReplies == 0 && storedComments == 0:
		return ActionSkipNoComments
	default:
		return ActionRefresh
	}
}

// Engine drives one sync run for one channel.
type Engine struct {
	adapter platform.Adapter
	store   corpus.Store
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates an Engine. requestDelay is the minimum spacing between
// consecutive post-processing iterations.
func New(adapter platform.Adapter, store corpus.Store, requestDelay time.Duration) *Engine {
	return &Engine{
		adapter: adapter,
		store:   store,
		limiter: rate.NewLimiter(rate.Every(requestDelay), 1),
		now:     time.Now,
	}
}

// Run fetches up to limit posts and reconciles each against the store.
// Session failures and a zero-post listing abort the run; per-post fetch
// errors are logged and treated as zero new items for that post.
func (e *Engine) Run(ctx context.Context, limit int) (*models.SyncStats, error) {
	if err := e.adapter.Connect(ctx); err != nil {
		return nil, err
	}

	channel := e.store.Channel()
	log.Printf("Syncing %s/%s (limit %d)", e.adapter.Source(), channel, limit)

	posts, err := e.adapter.ListPosts(ctx, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts of %s: %w", channel, err)
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("channel %s returned no posts, nothing to sync", channel)
	}

	stats := &models.SyncStats{TotalPosts: len(posts)}
	now := e.now()

	for i := range posts {
		if err := e.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		if err := e.syncPost(ctx, &posts[i], now, stats); err != nil {
			if platform.IsFatal(err) {
				return stats, err
			}
			log.Printf("Skipping post %s: %v", posts[i].ID, err)
			stats.SkippedPosts++
		}
	}

	info := &models.ChannelInfo{
		Channel:    channel,
		Source:     e.adapter.Source(),
		LastSync:   now.UTC(),
		PostsLimit: limit,
		Stats:      stats,
	}
	if err := e.store.SaveChannelInfo(info); err != nil {
		log.Printf("Failed to save channel info for %s: %v", channel, err)
	}

	log.Printf("Sync of %s done: %d posts (%d new, %d updated, %d skipped), %d comments (%d new)",
		channel, stats.TotalPosts, stats.NewPosts, stats.UpdatedPosts, stats.SkippedPosts,
		stats.TotalComments, stats.NewComments)
	return stats, nil
}

func (e *Engine) syncPost(ctx context.Context, post *models.Post, now time.Time, stats *models.SyncStats) error {
	var existing []models.Comment
	exists := e.store.PostExists(post.ID)
	if exists {
		existing = e.store.LoadComments(post.ID)
	}

	action := Decide(exists, post.Age(now), e.adapter.Cutoff(), post.ReplyCount, len(existing))

	switch action {
	case ActionStoreEmpty:
		if err := e.store.SavePostData(post.ID, post, nil); err != nil {
			return err
		}
		stats.SkippedPosts++

	case ActionFetchAll:
		comments, err := e.adapter.ListComments(ctx, e.store.Channel(), post.ID, nil)
		if err != nil {
			return err
		}
		if err := e.store.SavePostData(post.ID, post, comments); err != nil {
			return err
		}
		stats.NewPosts++
		stats.TotalComments += len(comments)
		stats.NewComments += len(comments)
		log.Printf("Post %s: new, %d comments fetched", post.ID, len(comments))

	case ActionSkipStale, ActionSkipNoComments:
		stats.SkippedPosts++

	case ActionRefresh:
		known := make(map[string]bool, len(existing))
		for _, c := range existing {
			known[c.CommentID] = true
		}

		fetched, err := e.adapter.ListComments(ctx, e.store.Channel(), post.ID, known)
		if err != nil {
			// Previously stored comments still count toward the total.
			stats.TotalComments += len(existing)
			return err
		}

		merged, added := merge(existing, fetched)
		if added == 0 {
			stats.SkippedPosts++
			stats.TotalComments += len(existing)
			return nil
		}

		if err := e.store.SavePostData(post.ID, post, merged); err != nil {
			stats.TotalComments += len(existing)
			return err
		}
		stats.UpdatedPosts++
		stats.TotalComments += len(merged)
		stats.NewComments += added
		log.Printf("Post %s: updated, %d new comments (%d total)", post.ID, added, len(merged))
	}
	return nil
}

// merge appends fetched comments to existing, dropping duplicates by
// comment id. Existing entries always win.
func merge(existing, fetched []models.Comment) ([]models.Comment, int) {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.CommentID] = true
	}

	merged := make([]models.Comment, len(existing), len(existing)+len(fetched))
	copy(merged, existing)

	added := 0
	for _, c := range fetched {
		if seen[c.CommentID] {
			continue
		}
		seen[c.CommentID] = true
		merged = append(merged, c)
		added++
	}
	return merged, added
}
