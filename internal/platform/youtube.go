package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"chanwatch/internal/models"
)

const (
	defaultYouTubeAPIBase  = "https://www.googleapis.com/youtube/v3"
	defaultYouTubeFeedBase = "https://www.youtube.com/feeds/videos.xml"
	youtubePageSize        = 50
	youtubeCommentPageSize = 100
)

// YouTube fetches videos and comments via the public channel RSS feed and
// the YouTube Data API v3. The RSS feed covers the newest uploads without
// spending API quota; the uploads playlist is paged only when the requested
// limit exceeds what the feed carries.
type YouTube struct {
	apiKey   string
	cutoff   time.Duration
	client   *http.Client
	parser   *gofeed.Parser
	apiBase  string
	feedBase string
}

// NewYouTube creates a YouTube adapter.
func NewYouTube(apiKey string, cutoff time.Duration) *YouTube {
	return &YouTube{
		apiKey:   apiKey,
		cutoff:   cutoff,
		client:   &http.Client{Timeout: 30 * time.Second},
		parser:   gofeed.NewParser(),
		apiBase:  defaultYouTubeAPIBase,
		feedBase: defaultYouTubeFeedBase,
	}
}

func (y *YouTube) Source() models.Source { return models.SourceYouTube }
func (y *YouTube) Cutoff() time.Duration { return y.cutoff }

func (y *YouTube) Connect(ctx context.Context) error {
	if y.apiKey == "" {
		return &FatalError{
			Reason: "YOUTUBE_API_KEY is not set",
			Advice: "create an API key in the Google Cloud console and export YOUTUBE_API_KEY",
		}
	}
	return nil
}

// resolveChannelID turns a @handle into a channel id. Ids are passed through.
func (y *YouTube) resolveChannelID(ctx context.Context, channel string) (string, error) {
	if strings.HasPrefix(channel, "UC") && !strings.Contains(channel, "@") {
		return channel, nil
	}

	handle := strings.TrimPrefix(channel, "@")
	params := url.Values{"part": {"id"}, "forHandle": {handle}, "key": {y.apiKey}}

	var resp struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := y.apiGet(ctx, "/channels", params, &resp); err != nil {
		return "", fmt.Errorf("failed to resolve channel handle %s: %w", channel, err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("channel not found: %s", channel)
	}
	return resp.Items[0].ID, nil
}

func (y *YouTube) ListPosts(ctx context.Context, channel string, limit int) ([]models.Post, error) {
	channelID, err := y.resolveChannelID(ctx, channel)
	if err != nil {
		return nil, err
	}

	posts, err := y.listFromFeed(ctx, channelID, limit)
	if err != nil {
		log.Printf("YouTube feed listing failed, falling back to API: %v", err)
	}

	if len(posts) < limit {
		posts, err = y.extendFromUploads(ctx, channelID, posts, limit)
		if err != nil {
			return nil, err
		}
	}

	if err := y.attachStatistics(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// listFromFeed reads the channel's public Atom feed (newest uploads first).
func (y *YouTube) listFromFeed(ctx context.Context, channelID string, limit int) ([]models.Post, error) {
	feedURL := fmt.Sprintf("%s?channel_id=%s", y.feedBase, channelID)
	feed, err := y.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel feed: %w", err)
	}

	var posts []models.Post
	for _, item := range feed.Items {
		if len(posts) >= limit {
			break
		}
		videoID := strings.TrimPrefix(item.GUID, "yt:video:")
		if videoID == "" {
			continue
		}
		post := models.Post{ID: videoID, Title: item.Title}
		if item.PublishedParsed != nil {
			post.Date = item.PublishedParsed.UTC()
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// extendFromUploads pages the uploads playlist for videos older than the
// feed window, skipping ids already collected.
func (y *YouTube) extendFromUploads(ctx context.Context, channelID string, posts []models.Post, limit int) ([]models.Post, error) {
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		seen[p.ID] = true
	}

	// The uploads playlist id mirrors the channel id with a UU prefix.
	playlistID := "UU" + strings.TrimPrefix(channelID, "UC")

	pageToken := ""
	for len(posts) < limit {
		params := url.Values{
			"part":       {"snippet,contentDetails"},
			"playlistId": {playlistID},
			"maxResults": {strconv.Itoa(min(youtubePageSize, limit-len(posts)))},
			"key":        {y.apiKey},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp struct {
			NextPageToken string `json:"nextPageToken"`
			Items         []struct {
				Snippet struct {
					Title       string    `json:"title"`
					PublishedAt time.Time `json:"publishedAt"`
				} `json:"snippet"`
				ContentDetails struct {
					VideoID string `json:"videoId"`
				} `json:"contentDetails"`
			} `json:"items"`
		}
		if err := y.apiGet(ctx, "/playlistItems", params, &resp); err != nil {
			return nil, fmt.Errorf("failed to list uploads: %w", err)
		}

		for _, item := range resp.Items {
			if len(posts) >= limit {
				break
			}
			if seen[item.ContentDetails.VideoID] {
				continue
			}
			seen[item.ContentDetails.VideoID] = true
			posts = append(posts, models.Post{
				ID:    item.ContentDetails.VideoID,
				Title: item.Snippet.Title,
				Date:  item.Snippet.PublishedAt.UTC(),
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return posts, nil
}

// attachStatistics fills views/likes/comment counts via videos.list, batched
// at the API maximum of 50 ids.
func (y *YouTube) attachStatistics(ctx context.Context, posts []models.Post) error {
	for start := 0; start < len(posts); start += youtubePageSize {
		end := min(start+youtubePageSize, len(posts))

		ids := make([]string, 0, end-start)
		for _, p := range posts[start:end] {
			ids = append(ids, p.ID)
		}

		params := url.Values{
			"part": {"statistics"},
			"id":   {strings.Join(ids, ",")},
			"key":  {y.apiKey},
		}
		var resp struct {
			Items []struct {
				ID         string `json:"id"`
				Statistics struct {
					ViewCount    string `json:"viewCount"`
					LikeCount    string `json:"likeCount"`
					CommentCount string `json:"commentCount"`
				} `json:"statistics"`
			} `json:"items"`
		}
		if err := y.apiGet(ctx, "/videos", params, &resp); err != nil {
			return fmt.Errorf("failed to fetch video statistics: %w", err)
		}

		for _, item := range resp.Items {
			idx := indexOfPost(posts, item.ID)
			if idx < 0 {
				continue
			}
			posts[idx].Views, _ = strconv.Atoi(item.Statistics.ViewCount)
			posts[idx].Likes, _ = strconv.Atoi(item.Statistics.LikeCount)
			posts[idx].ReplyCount, _ = strconv.Atoi(item.Statistics.CommentCount)
		}
	}
	return nil
}

func indexOfPost(posts []models.Post, id string) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (y *YouTube) ListComments(ctx context.Context, channel, postID string, known map[string]bool) ([]models.Comment, error) {
	var comments []models.Comment

	pageToken := ""
	for {
		params := url.Values{
			"part":       {"snippet"},
			"videoId":    {postID},
			"maxResults": {strconv.Itoa(youtubeCommentPageSize)},
			"textFormat": {"plainText"},
			"order":      {"time"},
			"key":        {y.apiKey},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp struct {
			NextPageToken string `json:"nextPageToken"`
			Items         []struct {
				Snippet struct {
					TotalReplyCount int `json:"totalReplyCount"`
					TopLevelComment struct {
						ID      string         `json:"id"`
						Snippet commentSnippet `json:"snippet"`
					} `json:"topLevelComment"`
				} `json:"snippet"`
			} `json:"items"`
		}
		err := y.apiGet(ctx, "/commentThreads", params, &resp)
		if err != nil {
			if isCommentsDisabled(err) {
				log.Printf("Comments disabled for video %s", postID)
				return comments, nil
			}
			return comments, err
		}

		for _, item := range resp.Items {
			top := item.Snippet.TopLevelComment
			if !known[top.ID] {
				comments = append(comments, top.Snippet.toComment(top.ID, postID, models.CommentTopLevel, ""))
			}

			if item.Snippet.TotalReplyCount > 0 {
				replies, err := y.listReplies(ctx, postID, top.ID, known)
				if err != nil {
					// Deleted threads and permission quirks are not
					// worth failing the whole video for.
					log.Printf("Skipping replies of comment %s: %v", top.ID, err)
					continue
				}
				comments = append(comments, replies...)
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return comments, nil
		}
	}
}

// listReplies pages through all replies to one top-level comment, excluding
// already-known ids.
func (y *YouTube) listReplies(ctx context.Context, postID, parentID string, known map[string]bool) ([]models.Comment, error) {
	var replies []models.Comment

	pageToken := ""
	for {
		params := url.Values{
			"part":       {"snippet"},
			"parentId":   {parentID},
			"maxResults": {strconv.Itoa(youtubeCommentPageSize)},
			"textFormat": {"plainText"},
			"key":        {y.apiKey},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp struct {
			NextPageToken string `json:"nextPageToken"`
			Items         []struct {
				ID      string         `json:"id"`
				Snippet commentSnippet `json:"snippet"`
			} `json:"items"`
		}
		if err := y.apiGet(ctx, "/comments", params, &resp); err != nil {
			return replies, err
		}

		for _, item := range resp.Items {
			if known[item.ID] {
				continue
			}
			replies = append(replies, item.Snippet.toComment(item.ID, postID, models.CommentReply, parentID))
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return replies, nil
		}
	}
}

type commentSnippet struct {
	AuthorDisplayName string `json:"authorDisplayName"`
	AuthorChannelID   struct {
		Value string `json:"value"`
	} `json:"authorChannelId"`
	TextDisplay string    `json:"textDisplay"`
	PublishedAt time.Time `json:"publishedAt"`
	LikeCount   int       `json:"likeCount"`
}

func (s commentSnippet) toComment(id, postID string, typ models.CommentType, parentID string) models.Comment {
	userID := s.AuthorChannelID.Value
	if userID == "" {
		userID = s.AuthorDisplayName
	}
	return models.Comment{
		CommentID: id,
		PostID:    postID,
		Type:      typ,
		ParentID:  parentID,
		User: models.User{
			ID:        userID,
			Username:  s.AuthorDisplayName,
			FirstName: s.AuthorDisplayName,
		},
		Text:  s.TextDisplay,
		Date:  s.PublishedAt.UTC(),
		Likes: s.LikeCount,
	}
}

// apiError carries the HTTP status of a Data API failure so callers can tell
// disabled comments (403 on comment endpoints) from real failures.
type apiError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("youtube api %s returned status %d", e.Endpoint, e.Status)
}

func isCommentsDisabled(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusForbidden
}

func (y *YouTube) apiGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.apiBase+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("youtube api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &FatalError{
			Reason: "YouTube API rejected the key",
			Advice: "verify YOUTUBE_API_KEY and that the YouTube Data API v3 is enabled",
			Err:    &apiError{Endpoint: endpoint, Status: resp.StatusCode},
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode youtube api response: %w", err)
	}
	return nil
}
