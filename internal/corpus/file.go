package corpus

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"chanwatch/internal/models"
)

const (
	postInfoFile    = "post_info.json"
	commentsFile    = "comments.json"
	channelInfoFile = "channel_info.json"
)

// fileStore persists one channel's corpus as a directory tree:
//
//	<dataDir>/<source>/<channel>/
//	    channel_info.json
//	    posts/<post_id>/post_info.json
//	    posts/<post_id>/comments.json
//	    analysis/...
type fileStore struct {
	channel     string
	source      models.Source
	baseDir     string
	postsDir    string
	analysisDir string
}

func newFileStore(dataDir string, source models.Source, channel string) (*fileStore, error) {
	name := NormalizeChannelName(channel)
	if name == "" {
		return nil, fmt.Errorf("channel name '%s' normalizes to empty", channel)
	}

	baseDir := filepath.Join(dataDir, string(source), name)
	s := &fileStore{
		channel:     name,
		source:      source,
		baseDir:     baseDir,
		postsDir:    filepath.Join(baseDir, "posts"),
		analysisDir: filepath.Join(baseDir, "analysis"),
	}

	if err := os.MkdirAll(s.postsDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create posts directory: %w", err)
	}
	if err := os.MkdirAll(s.analysisDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create analysis directory: %w", err)
	}

	return s, nil
}

// NormalizeChannelName makes a channel identifier safe to use as a directory
// name: leading handle marker stripped, whitespace replaced by underscores,
// everything except letters, digits, '_' and '-' dropped.
func NormalizeChannelName(name string) string {
	clean := strings.TrimPrefix(strings.TrimSpace(name), "@")

	var b strings.Builder
	for _, r := range clean {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *fileStore) Channel() string       { return s.channel }
func (s *fileStore) Source() models.Source { return s.source }
func (s *fileStore) AnalysisDir() string   { return s.analysisDir }

func (s *fileStore) postDir(postID string) string {
	return filepath.Join(s.postsDir, postID)
}

func (s *fileStore) PostExists(postID string) bool {
	info, err := os.Stat(s.postDir(postID))
	return err == nil && info.IsDir()
}

func (s *fileStore) LoadPost(postID string) *models.Post {
	var post models.Post
	if !readJSON(filepath.Join(s.postDir(postID), postInfoFile), &post) {
		return nil
	}
	return &post
}

func (s *fileStore) LoadComments(postID string) []models.Comment {
	var comments []models.Comment
	if !readJSON(filepath.Join(s.postDir(postID), commentsFile), &comments) {
		return nil
	}
	return comments
}

// SavePostData writes the post metadata and comment list as one logical
// unit. New posts are staged in a temp directory and renamed into place;
// for existing posts each file is replaced atomically, comments first, so
// an interruption never loses previously stored comments.
func (s *fileStore) SavePostData(postID string, post *models.Post, comments []models.Comment) error {
	if comments == nil {
		comments = []models.Comment{}
	}

	dir := s.postDir(postID)
	if !s.PostExists(postID) {
		staging, err := os.MkdirTemp(s.postsDir, "."+postID+"-")
		if err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		defer os.RemoveAll(staging)

		if err := writeJSON(filepath.Join(staging, commentsFile), comments); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(staging, postInfoFile), post); err != nil {
			return err
		}
		if err := os.Rename(staging, dir); err != nil {
			return fmt.Errorf("failed to commit post %s: %w", postID, err)
		}
		return nil
	}

	if err := writeJSONAtomic(filepath.Join(dir, commentsFile), comments); err != nil {
		return err
	}
	return writeJSONAtomic(filepath.Join(dir, postInfoFile), post)
}

func (s *fileStore) ListPostIDs() []string {
	entries, err := os.ReadDir(s.postsDir)
	if err != nil {
		return nil
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *fileStore) LoadAllComments() []models.Comment {
	var all []models.Comment
	for _, postID := range s.ListPostIDs() {
		all = append(all, s.LoadComments(postID)...)
	}
	return all
}

func (s *fileStore) SaveChannelInfo(info *models.ChannelInfo) error {
	return writeJSONAtomic(filepath.Join(s.baseDir, channelInfoFile), info)
}

func (s *fileStore) LoadChannelInfo() *models.ChannelInfo {
	var info models.ChannelInfo
	if !readJSON(filepath.Join(s.baseDir, channelInfoFile), &info) {
		return nil
	}
	return &info
}

// readJSON loads a JSON file into v. Missing and malformed files both read
// as absent; malformed ones are logged since they indicate a damaged corpus.
func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("Ignoring unreadable corpus file %s: %v", path, err)
		return false
	}
	return true
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// writeJSONAtomic replaces path via a temp file and rename so readers never
// observe a partial write.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
