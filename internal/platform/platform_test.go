package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanwatch/internal/models"
)

func TestTelegramConnect(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    bool
		wantFatal  bool
		wantAdvice string
	}{
		{
			name: "authorized session",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"authorized": true}`)
			},
		},
		{
			name: "unauthorized session",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"authorized": false}`)
			},
			wantErr:   true,
			wantFatal: true,
		},
		{
			name: "corrupt session reported by bridge",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"code": "session_corrupt"}`)
			},
			wantErr:   true,
			wantFatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			tg := NewTelegram(srv.URL, 7*24*time.Hour)
			err := tg.Connect(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantFatal, IsFatal(err))
		})
	}
}

func TestTelegramListComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels/somechannel/posts/42/comments", r.URL.Path)

		if r.URL.Query().Get("offset_id") == "" {
			fmt.Fprint(w, `{
				"comments": [
					{"id": 1, "text": "перший", "date": "2025-02-01T10:00:00Z", "user": {"id": 7, "username": "vova"}},
					{"id": 2, "reply_to_id": 1, "text": "відповідь", "date": "2025-02-01T10:05:00Z", "user": {"id": 8, "first_name": "Оля"}}
				],
				"next_offset_id": 2
			}`)
			return
		}
		fmt.Fprint(w, `{
			"comments": [
				{"id": 3, "text": "третій", "date": "2025-02-01T11:00:00Z", "user": {"id": 7, "username": "vova"}}
			],
			"next_offset_id": 0
		}`)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, 7*24*time.Hour)
	known := map[string]bool{"1": true}

	comments, err := tg.ListComments(context.Background(), "@somechannel", "42", known)
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.Equal(t, "2", comments[0].CommentID)
	assert.Equal(t, models.CommentReply, comments[0].Type)
	assert.Equal(t, "1", comments[0].ParentID)
	assert.Equal(t, "Оля", comments[0].User.DisplayName())
	assert.Zero(t, comments[0].Likes)

	assert.Equal(t, "3", comments[1].CommentID)
	assert.Equal(t, models.CommentTopLevel, comments[1].Type)
}

func TestTelegramNoDiscussionThreadIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code": "no_discussion"}`)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, 7*24*time.Hour)
	comments, err := tg.ListComments(context.Background(), "ch", "1", nil)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func fakeYouTube(t *testing.T, api http.HandlerFunc, feed http.HandlerFunc) *YouTube {
	t.Helper()

	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)
	feedSrv := httptest.NewServer(feed)
	t.Cleanup(feedSrv.Close)

	y := NewYouTube("test-key", 30*24*time.Hour)
	y.apiBase = apiSrv.URL
	y.feedBase = feedSrv.URL
	return y
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Test Channel</title>
  <entry>
    <id>yt:video:vid-new</id>
    <title>Newest video</title>
    <published>2025-03-02T12:00:00+00:00</published>
  </entry>
  <entry>
    <id>yt:video:vid-old</id>
    <title>Older video</title>
    <published>2025-03-01T12:00:00+00:00</published>
  </entry>
</feed>`

func TestYouTubeListPostsFromFeed(t *testing.T) {
	y := fakeYouTube(t,
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/videos", r.URL.Path)
			fmt.Fprint(w, `{"items": [
				{"id": "vid-new", "statistics": {"viewCount": "1000", "likeCount": "50", "commentCount": "7"}},
				{"id": "vid-old", "statistics": {"viewCount": "200", "likeCount": "3", "commentCount": "0"}}
			]}`)
		},
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "UCabc", r.URL.Query().Get("channel_id"))
			w.Header().Set("Content-Type", "application/atom+xml")
			fmt.Fprint(w, testFeed)
		},
	)

	posts, err := y.ListPosts(context.Background(), "UCabc", 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "vid-new", posts[0].ID)
	assert.Equal(t, "Newest video", posts[0].Title)
	assert.Equal(t, 1000, posts[0].Views)
	assert.Equal(t, 50, posts[0].Likes)
	assert.Equal(t, 7, posts[0].ReplyCount)
	assert.Equal(t, "vid-old", posts[1].ID)
}

func TestYouTubeListPostsExtendsBeyondFeed(t *testing.T) {
	y := fakeYouTube(t,
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/playlistItems":
				require.Equal(t, "UUabc", r.URL.Query().Get("playlistId"))
				fmt.Fprint(w, `{"items": [
					{"snippet": {"title": "Newest video", "publishedAt": "2025-03-02T12:00:00Z"}, "contentDetails": {"videoId": "vid-new"}},
					{"snippet": {"title": "Archived video", "publishedAt": "2024-01-01T00:00:00Z"}, "contentDetails": {"videoId": "vid-archive"}}
				]}`)
			case "/videos":
				fmt.Fprint(w, `{"items": []}`)
			default:
				t.Errorf("unexpected api path %s", r.URL.Path)
			}
		},
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, testFeed)
		},
	)

	posts, err := y.ListPosts(context.Background(), "UCabc", 3)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	// Feed entries first, playlist extension deduplicated against them.
	assert.Equal(t, []string{"vid-new", "vid-old", "vid-archive"},
		[]string{posts[0].ID, posts[1].ID, posts[2].ID})
}

func TestYouTubeCommentsDisabledReadsAsEmpty(t *testing.T) {
	y := fakeYouTube(t,
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/commentThreads", r.URL.Path)
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error": {"errors": [{"reason": "commentsDisabled"}]}}`)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	comments, err := y.ListComments(context.Background(), "UCabc", "vid-1", nil)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestYouTubeListCommentsWithReplies(t *testing.T) {
	y := fakeYouTube(t,
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/commentThreads":
				fmt.Fprint(w, `{"items": [
					{"snippet": {
						"totalReplyCount": 1,
						"topLevelComment": {"id": "ct1", "snippet": {
							"authorDisplayName": "Alice", "authorChannelId": {"value": "ua1"},
							"textDisplay": "top comment", "publishedAt": "2025-03-01T10:00:00Z", "likeCount": 4
						}}
					}},
					{"snippet": {
						"totalReplyCount": 0,
						"topLevelComment": {"id": "ct2", "snippet": {
							"authorDisplayName": "Bob",
							"textDisplay": "known comment", "publishedAt": "2025-03-01T11:00:00Z"
						}}
					}}
				]}`)
			case "/comments":
				require.Equal(t, "ct1", r.URL.Query().Get("parentId"))
				fmt.Fprint(w, `{"items": [
					{"id": "r1", "snippet": {
						"authorDisplayName": "Carol", "authorChannelId": {"value": "ua3"},
						"textDisplay": "a reply", "publishedAt": "2025-03-01T10:30:00Z", "likeCount": 1
					}}
				]}`)
			default:
				t.Errorf("unexpected api path %s", r.URL.Path)
			}
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	known := map[string]bool{"ct2": true}
	comments, err := y.ListComments(context.Background(), "UCabc", "vid-1", known)
	require.NoError(t, err)
	require.Len(t, comments, 2)

	assert.Equal(t, "ct1", comments[0].CommentID)
	assert.Equal(t, models.CommentTopLevel, comments[0].Type)
	assert.Equal(t, "ua1", comments[0].User.ID)
	assert.Equal(t, 4, comments[0].Likes)

	assert.Equal(t, "r1", comments[1].CommentID)
	assert.Equal(t, models.CommentReply, comments[1].Type)
	assert.Equal(t, "ct1", comments[1].ParentID)
}

func TestYouTubeBadKeyIsFatal(t *testing.T) {
	y := fakeYouTube(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		func(w http.ResponseWriter, r *http.Request) {},
	)

	_, err := y.resolveChannelID(context.Background(), "@somehandle")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestYouTubeConnectRequiresKey(t *testing.T) {
	y := NewYouTube("", time.Hour)
	err := y.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}
