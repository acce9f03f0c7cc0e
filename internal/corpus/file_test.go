package corpus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanwatch/internal/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Open(t.TempDir(), models.SourceTelegram, "@test channel!")
	require.NoError(t, err)
	return store
}

func testComment(id, postID, userID string) models.Comment {
	return models.Comment{
		CommentID: id,
		PostID:    postID,
		Type:      models.CommentTopLevel,
		User:      models.User{ID: userID},
		Text:      "text " + id,
		Date:      time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeChannelName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@durov", "durov"},
		{"  @some channel  ", "some_channel"},
		{"name-with_ok.chars!", "name-with_okchars"},
		{"кацапи_spotted", "кацапи_spotted"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeChannelName(tt.in), "input %q", tt.in)
	}
}

func TestSaveAndLoadPostData(t *testing.T) {
	store := newTestStore(t)

	post := &models.Post{ID: "p1", Date: time.Now().UTC(), ReplyCount: 2}
	comments := []models.Comment{testComment("c1", "p1", "u1"), testComment("c2", "p1", "u2")}

	require.NoError(t, store.SavePostData("p1", post, comments))

	assert.True(t, store.PostExists("p1"))
	assert.False(t, store.PostExists("p2"))

	loaded := store.LoadPost("p1")
	require.NotNil(t, loaded)
	assert.Equal(t, "p1", loaded.ID)
	assert.Equal(t, 2, loaded.ReplyCount)

	got := store.LoadComments("p1")
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].CommentID)
}

func TestLoadMissingIsAbsentNotError(t *testing.T) {
	store := newTestStore(t)

	assert.Nil(t, store.LoadPost("nope"))
	assert.Empty(t, store.LoadComments("nope"))
	assert.Nil(t, store.LoadChannelInfo())
	assert.Empty(t, store.ListPostIDs())
	assert.Empty(t, store.LoadAllComments())
}

func TestMalformedFileReadsAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, models.SourceYouTube, "chan")
	require.NoError(t, err)

	require.NoError(t, store.SavePostData("p1", &models.Post{ID: "p1"}, []models.Comment{testComment("c1", "p1", "u1")}))

	// Corrupt the comments file in place.
	path := filepath.Join(dir, "youtube", "chan", "posts", "p1", "comments.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0640))

	assert.Empty(t, store.LoadComments("p1"))
	// Post metadata is untouched by the corruption.
	assert.NotNil(t, store.LoadPost("p1"))
}

func TestResaveWithSupersetIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	post := &models.Post{ID: "p1"}

	base := []models.Comment{testComment("c1", "p1", "u1")}
	superset := append(append([]models.Comment{}, base...), testComment("c2", "p1", "u2"))

	require.NoError(t, store.SavePostData("p1", post, superset))
	first := store.LoadComments("p1")

	require.NoError(t, store.SavePostData("p1", post, superset))
	second := store.LoadComments("p1")

	assert.Equal(t, first, second)
}

func TestListPostIDsAndLoadAllComments(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SavePostData("10", &models.Post{ID: "10"}, []models.Comment{testComment("a", "10", "u1")}))
	require.NoError(t, store.SavePostData("11", &models.Post{ID: "11"}, nil))
	require.NoError(t, store.SavePostData("12", &models.Post{ID: "12"}, []models.Comment{
		testComment("b", "12", "u1"),
		testComment("c", "12", "u2"),
	}))

	assert.Equal(t, []string{"10", "11", "12"}, store.ListPostIDs())
	assert.Len(t, store.LoadAllComments(), 3)
}

func TestChannelInfoRoundTrip(t *testing.T) {
	store := newTestStore(t)

	info := &models.ChannelInfo{
		Channel:    store.Channel(),
		Source:     models.SourceTelegram,
		LastSync:   time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		PostsLimit: 100,
		Stats:      &models.SyncStats{TotalPosts: 5, NewPosts: 2},
	}
	require.NoError(t, store.SaveChannelInfo(info))

	loaded := store.LoadChannelInfo()
	require.NotNil(t, loaded)
	assert.Equal(t, info.PostsLimit, loaded.PostsLimit)
	require.NotNil(t, loaded.Stats)
	assert.Equal(t, 2, loaded.Stats.NewPosts)
}

func TestOpenRejectsUnusableChannelName(t *testing.T) {
	_, err := Open(t.TempDir(), models.SourceTelegram, "@!!!")
	assert.Error(t, err)
}
