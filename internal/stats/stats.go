// Package stats computes activity distributions over a channel's comment
// corpus: per-user grouping, fixed-bucket histograms, top-K shares and the
// greedy percentile concentration metric.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"chanwatch/internal/models"
)

// UserActivity is one user's share of a comment set.
type UserActivity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// GroupByUser tallies comments per user id, preserving the order in which
// users are first encountered. The display name comes from the user's first
// comment.
func GroupByUser(comments []models.Comment) []UserActivity {
	index := make(map[string]int)
	var groups []UserActivity

	for _, c := range comments {
		i, ok := index[c.User.ID]
		if !ok {
			i = len(groups)
			index[c.User.ID] = i
			groups = append(groups, UserActivity{
				UserID: c.User.ID,
				Name:   c.User.DisplayName(),
			})
		}
		groups[i].Count++
	}
	return groups
}

// SortByCount orders groups by descending count. The sort is stable, so
// ties keep their encounter order.
func SortByCount(groups []UserActivity) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})
}

// Bucket is one histogram band, inclusive on both ends. Max < 0 means
// unbounded.
type Bucket struct {
	Label string
	Min   int
	Max   int
}

// DefaultBuckets is the per-user activity histogram used for matched-comment
// breakdowns.
var DefaultBuckets = []Bucket{
	{"1", 1, 1}, {"2", 2, 2}, {"3", 3, 3}, {"4", 4, 4}, {"5", 5, 5},
	{"6-10", 6, 10}, {"11-20", 11, 20}, {"21-50", 21, 50},
	{"51-100", 51, 100}, {"101+", 101, -1},
}

// ExtendedBuckets adds finer high-end bands for full-corpus histograms.
var ExtendedBuckets = []Bucket{
	{"1", 1, 1}, {"2", 2, 2}, {"3", 3, 3}, {"4", 4, 4}, {"5", 5, 5},
	{"6-10", 6, 10}, {"11-20", 11, 20}, {"21-50", 21, 50},
	{"51-100", 51, 100}, {"101-200", 101, 200}, {"201-500", 201, 500},
	{"501+", 501, -1},
}

// BucketCount pairs a bucket label with the number of users falling in it.
type BucketCount struct {
	Label string `json:"bucket"`
	Users int    `json:"users"`
}

// Histogram counts users per activity bucket, in bucket order.
func Histogram(groups []UserActivity, buckets []Bucket) []BucketCount {
	out := make([]BucketCount, len(buckets))
	for i, b := range buckets {
		out[i].Label = b.Label
	}
	for _, g := range groups {
		for i, b := range buckets {
			if g.Count >= b.Min && (b.Max < 0 || g.Count <= b.Max) {
				out[i].Users++
				break
			}
		}
	}
	return out
}

// ConcentrationPoint reports how many of the most active users it takes to
// cover a target share of all comments.
type ConcentrationPoint struct {
	Percent   int     `json:"percent"`
	Users     int     `json:"users"`
	UserShare float64 `json:"user_share_percent"`
	Comments  int     `json:"comments"`
}

var concentrationTargets = []int{20, 40, 60, 80, 100}

// Concentration walks the count-sorted user list from the top, accumulating
// until each target percentage of total comments is reached. Greedy
// accumulation can overshoot a target by one user's worth of comments; that
// overshoot is part of the metric, not an error to correct.
func Concentration(sorted []UserActivity, totalComments int) []ConcentrationPoint {
	if totalComments == 0 || len(sorted) == 0 {
		return nil
	}

	points := make([]ConcentrationPoint, 0, len(concentrationTargets))
	for _, p := range concentrationTargets {
		target := float64(p) / 100 * float64(totalComments)

		cumulative := 0
		users := 0
		for _, g := range sorted {
			cumulative += g.Count
			users++
			if float64(cumulative) >= target {
				break
			}
		}

		points = append(points, ConcentrationPoint{
			Percent:   p,
			Users:     users,
			UserShare: float64(users) / float64(len(sorted)) * 100,
			Comments:  cumulative,
		})
	}
	return points
}

// TopShare reports the comment share of the K most active users.
type TopShare struct {
	K        int     `json:"top"`
	Comments int     `json:"comments"`
	Percent  float64 `json:"percent"`
}

var topShareSizes = []int{10, 100, 1000}

// TopShares computes the share of comments held by the top 10/100/1000
// users. A size is only reported when at least that many distinct users
// exist.
func TopShares(sorted []UserActivity, totalComments int) []TopShare {
	if totalComments == 0 {
		return nil
	}

	var shares []TopShare
	for _, k := range topShareSizes {
		if len(sorted) < k {
			continue
		}
		sum := 0
		for _, g := range sorted[:k] {
			sum += g.Count
		}
		shares = append(shares, TopShare{
			K:        k,
			Comments: sum,
			Percent:  float64(sum) / float64(totalComments) * 100,
		})
	}
	return shares
}

// Report is the basic-statistics snapshot persisted under the channel's
// analysis directory.
type Report struct {
	Channel       string               `json:"channel"`
	Source        models.Source        `json:"source"`
	GeneratedAt   time.Time            `json:"generated_at"`
	TotalComments int                  `json:"total_comments"`
	UniqueUsers   int                  `json:"unique_users"`
	TopUsers      []UserActivity       `json:"top_users"`
	Histogram     []BucketCount        `json:"activity_histogram"`
	Concentration []ConcentrationPoint `json:"concentration"`
	TopShares     []TopShare           `json:"top_shares,omitempty"`
	TopLiked      []models.Comment     `json:"top_liked_comments,omitempty"`
}

// Analyze builds the full-corpus report. topN bounds the reported most
// active users.
func Analyze(channel string, source models.Source, comments []models.Comment, topN int) *Report {
	groups := GroupByUser(comments)
	SortByCount(groups)

	top := groups
	if len(top) > topN {
		top = top[:topN]
	}

	return &Report{
		Channel:       channel,
		Source:        source,
		GeneratedAt:   time.Now().UTC(),
		TotalComments: len(comments),
		UniqueUsers:   len(groups),
		TopUsers:      top,
		Histogram:     Histogram(groups, ExtendedBuckets),
		Concentration: Concentration(groups, len(comments)),
		TopShares:     TopShares(groups, len(comments)),
		TopLiked:      TopLiked(comments, 10),
	}
}

// TopLiked returns the n most liked comments, or nil when no comment
// carries likes (platforms without a like counter).
func TopLiked(comments []models.Comment, n int) []models.Comment {
	any := false
	for _, c := range comments {
		if c.Likes > 0 {
			any = true
			break
		}
	}
	if !any {
		return nil
	}

	liked := make([]models.Comment, len(comments))
	copy(liked, comments)
	sort.SliceStable(liked, func(i, j int) bool {
		return liked[i].Likes > liked[j].Likes
	})

	if len(liked) > n {
		liked = liked[:n]
	}
	return liked
}

const reportFile = "basic_statistics.json"

// Save writes the report into dir, replacing any previous snapshot.
func (r *Report) Save(dir string) (string, error) {
	path := filepath.Join(dir, reportFile)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode statistics report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("failed to write statistics report: %w", err)
	}
	return path, nil
}
