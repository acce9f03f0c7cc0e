package cli

import (
	"testing"

	goflags "github.com/jessevdk/go-flags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanwatch/internal/models"
)

func TestBuildParserRegistersCommands(t *testing.T) {
	parser, _, cmds := buildParser("test")

	for _, name := range []string{"sync", "stats", "analyze", "serve"} {
		assert.NotNil(t, parser.Find(name), "command %s not registered", name)
	}
	assert.NotNil(t, cmds.Sync)
	assert.NotNil(t, cmds.Analyze)
}

func TestParseSyncArguments(t *testing.T) {
	parser, globals, cmds := buildParser("test")

	// Parse only, don't execute.
	parser.CommandHandler = func(command goflags.Commander, args []string) error { return nil }

	_, err := parser.ParseArgs([]string{"--source", "youtube", "sync", "@somechannel", "25"})
	require.NoError(t, err)

	assert.Equal(t, models.SourceYouTube, globals.sourceID())
	assert.Equal(t, "@somechannel", cmds.Sync.Args.Channel)
	assert.Equal(t, 25, cmds.Sync.Args.Limit)
}

func TestParseAnalyzeFlags(t *testing.T) {
	parser, _, cmds := buildParser("test")
	parser.CommandHandler = func(command goflags.Commander, args []string) error { return nil }

	_, err := parser.ParseArgs([]string{"analyze", "--force", "--local-only", "--min-likes", "3", "somechannel"})
	require.NoError(t, err)

	assert.True(t, cmds.Analyze.Force)
	assert.True(t, cmds.Analyze.LocalOnly)
	assert.Equal(t, 3, cmds.Analyze.MinLikes)
	assert.Equal(t, "somechannel", cmds.Analyze.Args.Channel)
}

func TestParseRejectsUnknownSource(t *testing.T) {
	parser, _, _ := buildParser("test")
	parser.CommandHandler = func(command goflags.Commander, args []string) error { return nil }

	_, err := parser.ParseArgs([]string{"--source", "vk", "sync", "somechannel"})
	assert.Error(t, err)
}

func TestParseRequiresChannel(t *testing.T) {
	parser, _, _ := buildParser("test")
	parser.CommandHandler = func(command goflags.Commander, args []string) error { return nil }

	_, err := parser.ParseArgs([]string{"sync"})
	assert.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	err := RunWithArgs("1.2.3", []string{"--version"})
	assert.NoError(t, err)
}

func TestFilterComments(t *testing.T) {
	comments := []models.Comment{
		{CommentID: "a", Type: models.CommentTopLevel, Likes: 5},
		{CommentID: "b", Type: models.CommentReply, Likes: 1},
		{CommentID: "c", Type: models.CommentTopLevel, Likes: 0},
	}

	assert.Len(t, filterComments(comments, 0, false, false), 3)

	got := filterComments(comments, 2, false, false)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].CommentID)

	got = filterComments(comments, 0, true, false)
	assert.Len(t, got, 2)

	got = filterComments(comments, 0, false, true)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].CommentID)
}
