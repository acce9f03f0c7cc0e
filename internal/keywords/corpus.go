package keywords

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"chanwatch/internal/models"
	"chanwatch/internal/stats"
)

const (
	topMatchesLimit  = 20
	categoryExamples = 5
	matchesJSONFile  = "keyword_matches.json"
	matchesPlainFile = "keyword_matches.txt"
)

// MatchedComment is a comment together with what it matched.
type MatchedComment struct {
	models.Comment
	Categories []string `json:"categories"`
	Matches    []string `json:"matches"`
}

// MatchCount is one matched substring and its corpus-wide frequency.
type MatchCount struct {
	Match string `json:"match"`
	Count int    `json:"count"`
}

// CategoryStats summarizes one category over the corpus.
type CategoryStats struct {
	Name     string           `json:"name"`
	Count    int              `json:"count"`
	Examples []models.Comment `json:"examples,omitempty"`
}

// CorpusReport is the keyword analysis persisted under the channel's
// analysis directory.
type CorpusReport struct {
	Channel          string                     `json:"channel"`
	Source           models.Source              `json:"source"`
	GeneratedAt      time.Time                  `json:"generated_at"`
	TotalComments    int                        `json:"total_comments"`
	MatchedComments  int                        `json:"matched_comments"`
	MatchedPercent   float64                    `json:"matched_percent"`
	UsersWithMatches int                        `json:"users_with_matches"`
	Categories       []CategoryStats            `json:"categories"`
	TopMatches       []MatchCount               `json:"top_matches"`
	TopShares        []stats.TopShare           `json:"top_shares,omitempty"`
	Histogram        []stats.BucketCount        `json:"activity_histogram"`
	Concentration    []stats.ConcentrationPoint `json:"concentration"`
	Matched          []MatchedComment           `json:"matched"`
}

// AnalyzeCorpus runs the detector over every comment and aggregates the
// results. Per-user breakdowns cover the matched subset only.
func (d *Detector) AnalyzeCorpus(channel string, source models.Source, comments []models.Comment) *CorpusReport {
	report := &CorpusReport{
		Channel:       channel,
		Source:        source,
		GeneratedAt:   time.Now().UTC(),
		TotalComments: len(comments),
	}

	byCategory := make(map[string]*CategoryStats, len(d.categories))
	for _, cat := range d.categories {
		cs := &CategoryStats{Name: cat.Name}
		byCategory[cat.Name] = cs
		report.Categories = append(report.Categories, CategoryStats{Name: cat.Name})
	}

	matchIndex := map[string]int{}
	var matchCounts []MatchCount
	users := map[string]bool{}
	var matchedRaw []models.Comment

	for _, c := range comments {
		res := d.CheckText(c.Text)
		if !res.HasMatch {
			continue
		}

		report.Matched = append(report.Matched, MatchedComment{
			Comment:    c,
			Categories: res.Categories,
			Matches:    res.Matches,
		})
		matchedRaw = append(matchedRaw, c)
		users[c.User.ID] = true

		for _, name := range res.Categories {
			cs := byCategory[name]
			cs.Count++
			if len(cs.Examples) < categoryExamples {
				cs.Examples = append(cs.Examples, c)
			}
		}
		for _, m := range res.Matches {
			key := strings.ToLower(m)
			i, ok := matchIndex[key]
			if !ok {
				i = len(matchCounts)
				matchIndex[key] = i
				matchCounts = append(matchCounts, MatchCount{Match: key})
			}
			matchCounts[i].Count++
		}
	}

	for i := range report.Categories {
		report.Categories[i] = *byCategory[report.Categories[i].Name]
	}

	report.MatchedComments = len(report.Matched)
	if report.TotalComments > 0 {
		report.MatchedPercent = float64(report.MatchedComments) / float64(report.TotalComments) * 100
	}
	report.UsersWithMatches = len(users)

	// Frequency order, ties kept in first-encounter order.
	sort.SliceStable(matchCounts, func(i, j int) bool {
		return matchCounts[i].Count > matchCounts[j].Count
	})
	if len(matchCounts) > topMatchesLimit {
		matchCounts = matchCounts[:topMatchesLimit]
	}
	report.TopMatches = matchCounts

	groups := stats.GroupByUser(matchedRaw)
	stats.SortByCount(groups)
	report.TopShares = stats.TopShares(groups, len(matchedRaw))
	report.Histogram = stats.Histogram(groups, stats.DefaultBuckets)
	report.Concentration = stats.Concentration(groups, len(matchedRaw))

	// Exports read better with the most liked comments first.
	sort.SliceStable(report.Matched, func(i, j int) bool {
		return report.Matched[i].Likes > report.Matched[j].Likes
	})
	return report
}

// Save writes the JSON report and its plain-text companion into dir,
// replacing prior exports.
func (r *CorpusReport) Save(dir string) (jsonPath, textPath string, err error) {
	jsonPath = filepath.Join(dir, matchesJSONFile)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode keyword report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0640); err != nil {
		return "", "", fmt.Errorf("failed to write keyword report: %w", err)
	}

	textPath = filepath.Join(dir, matchesPlainFile)
	var b strings.Builder
	for _, m := range r.Matched {
		if m.Likes > 0 {
			fmt.Fprintf(&b, "[%d] ", m.Likes)
		}
		fmt.Fprintf(&b, "%s: %s\n", m.User.DisplayName(), flatten(m.Text))
	}
	if err := os.WriteFile(textPath, []byte(b.String()), 0640); err != nil {
		return "", "", fmt.Errorf("failed to write keyword text export: %w", err)
	}
	return jsonPath, textPath, nil
}

// flatten collapses line breaks so every comment stays on one export line.
func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
