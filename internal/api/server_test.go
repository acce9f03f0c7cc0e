package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanwatch/internal/config"
	"chanwatch/internal/corpus"
	"chanwatch/internal/models"
)

func testServer(t *testing.T, dataDir string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Port:     0,
		DataDir:  dataDir,
		CacheTTL: 5 * time.Minute,
		Security: config.SecurityConfig{
			EnableRateLimit: false,
			MaxRequestSize:  1 << 20,
		},
	}
	return NewServer(cfg)
}

func seedChannel(t *testing.T, dataDir, channel string, comments []models.Comment) corpus.Store {
	t.Helper()
	store, err := corpus.Open(dataDir, models.SourceTelegram, channel)
	require.NoError(t, err)
	require.NoError(t, store.SavePostData("p1", &models.Post{ID: "p1"}, comments))
	require.NoError(t, store.SaveChannelInfo(&models.ChannelInfo{
		Channel:  channel,
		Source:   models.SourceTelegram,
		LastSync: time.Now().UTC(),
		Stats:    &models.SyncStats{TotalPosts: 1, TotalComments: len(comments)},
	}))
	return store
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	s.Router().ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &body)
	}
	return w, body
}

func apiComment(id, userID string, likes int, typ models.CommentType) models.Comment {
	return models.Comment{
		CommentID: id,
		PostID:    "p1",
		Type:      typ,
		User:      models.User{ID: userID},
		Text:      "text " + id,
		Likes:     likes,
	}
}

func TestHealthCheck(t *testing.T) {
	s := testServer(t, t.TempDir())

	w, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestListChannels(t *testing.T) {
	dataDir := t.TempDir()
	seedChannel(t, dataDir, "one", nil)
	seedChannel(t, dataDir, "two", nil)
	s := testServer(t, dataDir)

	w, body := get(t, s, "/api/v1/channels")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])
}

func TestGetChannelInfo(t *testing.T) {
	dataDir := t.TempDir()
	seedChannel(t, dataDir, "somechannel", []models.Comment{
		apiComment("c1", "u1", 0, models.CommentTopLevel),
	})
	s := testServer(t, dataDir)

	w, body := get(t, s, "/api/v1/channels/telegram/somechannel")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "somechannel", body["channel"])

	w, _ = get(t, s, "/api/v1/channels/telegram/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStatistics(t *testing.T) {
	dataDir := t.TempDir()
	seedChannel(t, dataDir, "somechannel", []models.Comment{
		apiComment("c1", "u1", 0, models.CommentTopLevel),
		apiComment("c2", "u1", 0, models.CommentTopLevel),
		apiComment("c3", "u2", 0, models.CommentReply),
	})
	s := testServer(t, dataDir)

	w, body := get(t, s, "/api/v1/channels/telegram/somechannel/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["total_comments"])
	assert.EqualValues(t, 2, body["unique_users"])

	// Second read is served from cache and stays identical.
	w2, body2 := get(t, s, "/api/v1/channels/telegram/somechannel/stats")
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, body["generated_at"], body2["generated_at"])
}

func TestGetCommentsFilters(t *testing.T) {
	dataDir := t.TempDir()
	seedChannel(t, dataDir, "somechannel", []models.Comment{
		apiComment("c1", "u1", 10, models.CommentTopLevel),
		apiComment("c2", "u2", 1, models.CommentReply),
		apiComment("c3", "u3", 5, models.CommentTopLevel),
	})
	s := testServer(t, dataDir)

	w, body := get(t, s, "/api/v1/channels/telegram/somechannel/comments?min_likes=5")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["total"])

	w, body = get(t, s, "/api/v1/channels/telegram/somechannel/comments?type=reply")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])

	w, body = get(t, s, "/api/v1/channels/telegram/somechannel/comments?limit=1&skip=1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 1, body["returned"])
}

func TestGetKeywords(t *testing.T) {
	dataDir := t.TempDir()
	seedChannel(t, dataDir, "somechannel", []models.Comment{
		apiComment("c1", "u1", 0, models.CommentTopLevel),
		{CommentID: "c2", PostID: "p1", Type: models.CommentTopLevel,
			User: models.User{ID: "u2"}, Text: "орки всюди"},
	})
	s := testServer(t, dataDir)

	w, body := get(t, s, "/api/v1/channels/telegram/somechannel/keywords")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["matched_comments"])
}

func TestGetClassificationMissing(t *testing.T) {
	dataDir := t.TempDir()
	seedChannel(t, dataDir, "somechannel", nil)
	s := testServer(t, dataDir)

	w, _ := get(t, s, "/api/v1/channels/telegram/somechannel/classification")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshInvalidatesCache(t *testing.T) {
	dataDir := t.TempDir()
	store := seedChannel(t, dataDir, "somechannel", []models.Comment{
		apiComment("c1", "u1", 0, models.CommentTopLevel),
	})
	s := testServer(t, dataDir)

	_, before := get(t, s, "/api/v1/channels/telegram/somechannel/stats")
	assert.EqualValues(t, 1, before["total_comments"])

	// A sync outside the server adds a comment.
	require.NoError(t, store.SavePostData("p1", &models.Post{ID: "p1"}, []models.Comment{
		apiComment("c1", "u1", 0, models.CommentTopLevel),
		apiComment("c2", "u2", 0, models.CommentTopLevel),
	}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/channels/telegram/somechannel/refresh", nil)
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, after := get(t, s, "/api/v1/channels/telegram/somechannel/stats")
	assert.EqualValues(t, 2, after["total_comments"])
}

func TestUnknownSourceRejected(t *testing.T) {
	s := testServer(t, t.TempDir())

	w, _ := get(t, s, "/api/v1/channels/vk/somechannel")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
