package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"chanwatch/internal/models"
)

const exportFile = "latest_analysis.json"

// minStanceShare is the share of a user's analyzed comments a stance must
// reach before it is called dominant for that user.
const minStanceShare = 0.2

// Export is the channel-level classification snapshot written after each
// analysis run. Re-running overwrites it in place; the SQLite store stays
// the durable source.
type Export struct {
	Channel     string         `json:"channel"`
	Source      models.Source  `json:"source"`
	GeneratedAt time.Time      `json:"generated_at"`
	Total       int            `json:"total_comments"`
	Analyzed    int            `json:"analyzed_comments"`
	Toxicity    map[string]int `json:"toxicity"`
	Stance      map[string]int `json:"stance"`
	Users       []UserProfile  `json:"users"`
}

// UserProfile is one commenter's dominant categories across their analyzed
// comments.
type UserProfile struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Comments int    `json:"comments"`
	Toxicity string `json:"toxicity"`
	Stance   string `json:"stance"`
}

func (m *Manager) export(comments []models.Comment) (string, error) {
	results, err := m.results.LoadAll()
	if err != nil {
		return "", err
	}

	exp := &Export{
		Channel:     m.store.Channel(),
		Source:      m.store.Source(),
		GeneratedAt: time.Now().UTC(),
		Total:       len(comments),
		Toxicity:    map[string]int{},
		Stance:      map[string]int{},
	}

	type userTally struct {
		profile  UserProfile
		toxicity map[string]int
		stance   map[string]int
	}
	byUser := map[string]*userTally{}
	var order []string

	for _, c := range comments {
		byDim := results[c.CommentID]
		if !fullyAnalyzed(byDim) {
			continue
		}
		exp.Analyzed++
		exp.Toxicity[byDim[models.DimensionToxicity]]++
		exp.Stance[byDim[models.DimensionStance]]++

		tally, ok := byUser[c.User.ID]
		if !ok {
			tally = &userTally{
				profile:  UserProfile{UserID: c.User.ID, Name: c.User.DisplayName()},
				toxicity: map[string]int{},
				stance:   map[string]int{},
			}
			byUser[c.User.ID] = tally
			order = append(order, c.User.ID)
		}
		tally.profile.Comments++
		tally.toxicity[byDim[models.DimensionToxicity]]++
		tally.stance[byDim[models.DimensionStance]]++
	}

	for _, userID := range order {
		tally := byUser[userID]
		tally.profile.Toxicity = dominantToxicity(tally.toxicity)
		tally.profile.Stance = dominantStance(tally.stance, tally.profile.Comments)
		exp.Users = append(exp.Users, tally.profile)
	}
	sort.SliceStable(exp.Users, func(i, j int) bool {
		return exp.Users[i].Comments > exp.Users[j].Comments
	})

	path := filepath.Join(m.store.AnalysisDir(), exportFile)
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis export: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("failed to write analysis export: %w", err)
	}
	return path, nil
}

// dominantToxicity picks the user's most frequent tone, preferring the
// stronger signal on ties.
func dominantToxicity(counts map[string]int) string {
	best := models.CategoryNeutral
	bestCount := counts[models.CategoryNeutral]
	for _, cat := range []string{models.CategoryToxic, models.CategoryFriendly} {
		if counts[cat] > bestCount {
			best = cat
			bestCount = counts[cat]
		}
	}
	return best
}

// dominantStance calls a stance only when it covers at least minStanceShare
// of the user's analyzed comments and strictly leads the opposing stance.
func dominantStance(counts map[string]int, total int) string {
	if total == 0 {
		return models.CategoryNeutral
	}

	ukr := counts[models.CategoryStanceA]
	rus := counts[models.CategoryStanceB]
	switch {
	case float64(ukr)/float64(total) >= minStanceShare && ukr > rus:
		return models.CategoryStanceA
	case float64(rus)/float64(total) >= minStanceShare && rus > ukr:
		return models.CategoryStanceB
	default:
		return models.CategoryNeutral
	}
}
