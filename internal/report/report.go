// Package report renders sync and analysis results for the terminal.
package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"chanwatch/internal/analysis"
	"chanwatch/internal/keywords"
	"chanwatch/internal/models"
	"chanwatch/internal/stats"
)

// OK prints a green check line.
func OK(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, "✓ "+format+"\n", args...)
}

// Fail prints a red cross line.
func Fail(w io.Writer, format string, args ...any) {
	color.New(color.FgRed).Fprintf(w, "✗ "+format+"\n", args...)
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	return tbl
}

// SyncSummary prints the outcome of one sync run.
func SyncSummary(w io.Writer, info *models.ChannelInfo) {
	if info == nil || info.Stats == nil {
		Fail(w, "no sync state recorded")
		return
	}
	s := info.Stats

	OK(w, "synced %s/%s", info.Source, info.Channel)
	tbl := newTable(w)
	tbl.AppendRows([]table.Row{
		{"posts", humanize.Comma(int64(s.TotalPosts))},
		{"new posts", humanize.Comma(int64(s.NewPosts))},
		{"updated posts", humanize.Comma(int64(s.UpdatedPosts))},
		{"skipped posts", humanize.Comma(int64(s.SkippedPosts))},
		{"comments stored", humanize.Comma(int64(s.TotalComments))},
		{"new comments", humanize.Comma(int64(s.NewComments))},
		{"last sync", humanize.Time(info.LastSync)},
	})
	tbl.Render()
}

// Statistics prints the full-corpus activity report.
func Statistics(w io.Writer, r *stats.Report) {
	fmt.Fprintf(w, "\n%s comments from %s users\n",
		humanize.Comma(int64(r.TotalComments)), humanize.Comma(int64(r.UniqueUsers)))

	if len(r.TopUsers) > 0 {
		tbl := newTable(w)
		tbl.AppendHeader(table.Row{"#", "user", "comments"})
		for i, u := range r.TopUsers {
			tbl.AppendRow(table.Row{i + 1, u.Name, u.Count})
		}
		tbl.Render()
	}

	if len(r.Concentration) > 0 {
		tbl := newTable(w)
		tbl.AppendHeader(table.Row{"share of comments", "users", "share of users"})
		for _, p := range r.Concentration {
			tbl.AppendRow(table.Row{
				fmt.Sprintf("%d%%", p.Percent),
				p.Users,
				fmt.Sprintf("%.1f%%", p.UserShare),
			})
		}
		tbl.Render()
	}

	for _, ts := range r.TopShares {
		fmt.Fprintf(w, "top %d users wrote %.1f%% of all comments\n", ts.K, ts.Percent)
	}

	if len(r.TopLiked) > 0 {
		fmt.Fprintln(w, "\nmost liked comments:")
		for _, c := range r.TopLiked {
			fmt.Fprintf(w, "  [%d] %s: %s\n", c.Likes, c.User.DisplayName(), oneLine(c.Text, 80))
		}
	}
}

// Keywords prints the keyword detection report.
func Keywords(w io.Writer, r *keywords.CorpusReport) {
	if r.MatchedComments == 0 {
		OK(w, "no keyword matches in %s comments", humanize.Comma(int64(r.TotalComments)))
		return
	}

	Fail(w, "%s of %s comments matched (%.1f%%), %s distinct users",
		humanize.Comma(int64(r.MatchedComments)),
		humanize.Comma(int64(r.TotalComments)),
		r.MatchedPercent,
		humanize.Comma(int64(r.UsersWithMatches)))

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"category", "comments"})
	for _, c := range r.Categories {
		tbl.AppendRow(table.Row{c.Name, c.Count})
	}
	tbl.Render()

	if len(r.TopMatches) > 0 {
		tbl = newTable(w)
		tbl.AppendHeader(table.Row{"match", "count"})
		for _, m := range r.TopMatches {
			tbl.AppendRow(table.Row{m.Match, m.Count})
		}
		tbl.Render()
	}
}

// Analysis prints the classification snapshot.
func Analysis(w io.Writer, e *analysis.Export) {
	OK(w, "%s of %s comments classified",
		humanize.Comma(int64(e.Analyzed)), humanize.Comma(int64(e.Total)))

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"dimension", "category", "comments"})
	for _, cat := range []string{models.CategoryToxic, models.CategoryFriendly, models.CategoryNeutral} {
		tbl.AppendRow(table.Row{models.DimensionToxicity, cat, e.Toxicity[cat]})
	}
	for _, cat := range []string{models.CategoryStanceA, models.CategoryStanceB, models.CategoryNeutral} {
		tbl.AppendRow(table.Row{models.DimensionStance, cat, e.Stance[cat]})
	}
	tbl.Render()

	shown := 0
	for _, u := range e.Users {
		if u.Toxicity == models.CategoryNeutral && u.Stance == models.CategoryNeutral {
			continue
		}
		if shown == 0 {
			fmt.Fprintln(w, "\nusers with a pronounced profile:")
		}
		fmt.Fprintf(w, "  %s (%d comments): %s, %s\n", u.Name, u.Comments, u.Toxicity, u.Stance)
		shown++
		if shown == 20 {
			break
		}
	}
}

func oneLine(text string, limit int) string {
	out := make([]rune, 0, limit)
	for _, r := range text {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		out = append(out, r)
		if len(out) == limit {
			out = append(out, '…')
			break
		}
	}
	return string(out)
}
