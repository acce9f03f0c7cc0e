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

	"chanwatch/internal/models"
)

// Telegram talks to a local MTProto bridge process over HTTP. The bridge
// owns the Telegram session file; this adapter only translates its JSON
// into unified records and maps its session failures to fatal errors.
type Telegram struct {
	baseURL string
	cutoff  time.Duration
	client  *http.Client
}

// NewTelegram creates a Telegram adapter talking to the bridge at baseURL.
func NewTelegram(baseURL string, cutoff time.Duration) *Telegram {
	return &Telegram{
		baseURL: strings.TrimRight(baseURL, "/"),
		cutoff:  cutoff,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *Telegram) Source() models.Source { return models.SourceTelegram }
func (t *Telegram) Cutoff() time.Duration { return t.cutoff }

// Connect checks that the bridge is up and holds an authorized session.
func (t *Telegram) Connect(ctx context.Context) error {
	var status struct {
		Authorized bool `json:"authorized"`
	}
	if err := t.bridgeGet(ctx, "/health", nil, &status); err != nil {
		if IsFatal(err) {
			return err
		}
		return &FatalError{
			Reason: "telegram bridge is unreachable",
			Advice: "start the bridge and check TELEGRAM_BRIDGE_URL",
			Err:    err,
		}
	}
	if !status.Authorized {
		return &FatalError{
			Reason: "telegram session is not authorized",
			Advice: "log in through the bridge, or delete its session file and re-authenticate",
		}
	}
	return nil
}

type bridgePost struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	Date       time.Time `json:"date"`
	Views      int       `json:"views"`
	Reactions  int       `json:"reactions"`
	ReplyCount int       `json:"reply_count"`
}

func (t *Telegram) ListPosts(ctx context.Context, channel string, limit int) ([]models.Post, error) {
	params := url.Values{"limit": {strconv.Itoa(limit)}}

	var raw []bridgePost
	path := "/channels/" + url.PathEscape(strings.TrimPrefix(channel, "@")) + "/posts"
	if err := t.bridgeGet(ctx, path, params, &raw); err != nil {
		return nil, fmt.Errorf("failed to list posts of %s: %w", channel, err)
	}

	posts := make([]models.Post, 0, len(raw))
	for _, p := range raw {
		posts = append(posts, models.Post{
			ID:         strconv.FormatInt(p.ID, 10),
			Text:       p.Text,
			Date:       p.Date.UTC(),
			Views:      p.Views,
			Likes:      p.Reactions,
			ReplyCount: p.ReplyCount,
		})
	}
	return posts, nil
}

type bridgeComment struct {
	ID        int64     `json:"id"`
	ReplyToID int64     `json:"reply_to_id"`
	Text      string    `json:"text"`
	Date      time.Time `json:"date"`
	User      struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"user"`
}

// ListComments pages the discussion thread of one post. Telegram exposes no
// like counter on discussion messages, so Likes stays zero.
func (t *Telegram) ListComments(ctx context.Context, channel, postID string, known map[string]bool) ([]models.Comment, error) {
	var comments []models.Comment

	path := "/channels/" + url.PathEscape(strings.TrimPrefix(channel, "@")) + "/posts/" + url.PathEscape(postID) + "/comments"
	offset := int64(0)
	for {
		params := url.Values{"limit": {"100"}}
		if offset != 0 {
			params.Set("offset_id", strconv.FormatInt(offset, 10))
		}

		var page struct {
			Comments     []bridgeComment `json:"comments"`
			NextOffsetID int64           `json:"next_offset_id"`
		}
		if err := t.bridgeGet(ctx, path, params, &page); err != nil {
			if isNoDiscussion(err) {
				log.Printf("Post %s has no discussion thread", postID)
				return comments, nil
			}
			return comments, fmt.Errorf("failed to list comments of post %s: %w", postID, err)
		}

		for _, c := range page.Comments {
			id := strconv.FormatInt(c.ID, 10)
			if known[id] {
				continue
			}

			typ := models.CommentTopLevel
			parentID := ""
			if c.ReplyToID != 0 {
				typ = models.CommentReply
				parentID = strconv.FormatInt(c.ReplyToID, 10)
			}
			comments = append(comments, models.Comment{
				CommentID: id,
				PostID:    postID,
				Type:      typ,
				ParentID:  parentID,
				User: models.User{
					ID:        strconv.FormatInt(c.User.ID, 10),
					Username:  c.User.Username,
					FirstName: c.User.FirstName,
					LastName:  c.User.LastName,
				},
				Text: c.Text,
				Date: c.Date.UTC(),
			})
		}

		if page.NextOffsetID == 0 {
			return comments, nil
		}
		offset = page.NextOffsetID
	}
}

// bridgeError carries the bridge's HTTP status and error code so callers
// can tell a missing discussion thread from a real failure.
type bridgeError struct {
	Status int
	Code   string
	Detail string
}

func (e *bridgeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("telegram bridge returned %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("telegram bridge returned %d", e.Status)
}

func isNoDiscussion(err error) bool {
	var be *bridgeError
	return errors.As(err, &be) && (be.Code == "no_discussion" || be.Status == http.StatusNotFound)
}

func (t *Telegram) bridgeGet(ctx context.Context, path string, params url.Values, out any) error {
	u := t.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		be := &bridgeError{Status: resp.StatusCode}
		var detail struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &detail) == nil {
			be.Code = detail.Code
			be.Detail = detail.Detail
		}

		// The bridge reports a corrupt or revoked session as 401 with a
		// session error code. Nothing recoverable from this side.
		if resp.StatusCode == http.StatusUnauthorized || be.Code == "session_corrupt" {
			return &FatalError{
				Reason: "telegram session failed",
				Advice: "delete the bridge session file and re-authenticate",
				Err:    be,
			}
		}
		return be
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode bridge response: %w", err)
	}
	return nil
}
