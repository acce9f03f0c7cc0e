// Package keywords classifies free text against curated phrase sets. Each
// category compiles to a single pattern matching any of its phrases as a
// word prefix, so declined and inflected forms are caught without listing
// every ending.
package keywords

import (
	"fmt"
	"regexp"
	"strings"
)

// Category pairs a category name with its phrase list. Order matters for
// deterministic reporting.
type Category struct {
	Name    string
	Phrases []string
}

// DefaultCategories is the built-in phrase table for RU/UA hostile-speech
// detection.
var DefaultCategories = []Category{
	{
		Name: "death_wishes",
		Phrases: []string{
			"смерть москал", "смерть орк", "смерть русск", "смерть русн",
			"смерть росіян", "вбивати москал", "вбивати русск",
			"убивать москал", "убивать русск", "боже бомб", "боже, бомб",
		},
	},
	{
		Name: "ethnic_slurs",
		Phrases: []string{
			"русорез", "русоріз", "москал", "кацап", "чурк", "узки",
			"уззки", "уzки", "уzzки", "рузг", "руззг", "руzг", "руzzг",
			"монгол", "орд",
		},
	},
	{
		Name: "dehumanization",
		Phrases: []string{
			"хуйл", "пыня", "пыни", "пыне", "пыню", "пынi", "пып", "орк",
			"ватник", "ват", "ватян", "совок", "совк", "русн", "рашк",
			"раша", "раши", "рашe", "мордор", "русак", "руz", "роz",
			"пидор", "пидар", "жмур", "оккупант", "окупант", "перде",
		},
	},
	{
		Name: "violence_calls",
		Phrases: []string{
			"порва", "вирізат", "вырезат", "знищ", "уничтож", "спалит",
			"сжечь", "сожг", "сожж", "розірва", "разорва", "бомбi",
		},
	},
}

// Detector holds the compiled per-category matchers.
type Detector struct {
	categories []Category
	patterns   []*regexp.Regexp
}

// New compiles a detector for the given category table.
func New(categories []Category) (*Detector, error) {
	d := &Detector{
		categories: categories,
		patterns:   make([]*regexp.Regexp, len(categories)),
	}
	for i, cat := range categories {
		re, err := compileCategory(cat.Phrases)
		if err != nil {
			return nil, fmt.Errorf("failed to compile category %s: %w", cat.Name, err)
		}
		d.patterns[i] = re
	}
	return d, nil
}

// NewDefault compiles the built-in table.
func NewDefault() *Detector {
	d, err := New(DefaultCategories)
	if err != nil {
		// The built-in table is static, a compile failure is a bug.
		panic(err)
	}
	return d
}

// compileCategory builds one alternation pattern for a phrase list.
// Matching is case-insensitive, anchored on the left word boundary only
// (so a phrase matches as a prefix of a longer word), and any run of
// whitespace stands in for a single space inside a multi-word phrase.
//
// regexp's \b is ASCII-only and never fires between Cyrillic letters, so
// the left boundary is spelled out as start-of-text or a non-word rune.
func compileCategory(phrases []string) (*regexp.Regexp, error) {
	alts := make([]string, len(phrases))
	for i, phrase := range phrases {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(phrase), " ", `\s+`)
	}
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])(` + strings.Join(alts, "|") + `)`)
}

// Result is the outcome of checking one text.
type Result struct {
	HasMatch   bool
	Categories []string
	Matches    []string
}

// CheckText tests the text against every category independently. Matches
// are de-duplicated case-insensitively across categories.
func (d *Detector) CheckText(text string) Result {
	if text == "" {
		return Result{}
	}

	var res Result
	seen := map[string]bool{}
	for i, re := range d.patterns {
		found := re.FindAllStringSubmatch(text, -1)
		if len(found) == 0 {
			continue
		}

		res.HasMatch = true
		res.Categories = append(res.Categories, d.categories[i].Name)
		for _, m := range found {
			key := strings.ToLower(m[1])
			if seen[key] {
				continue
			}
			seen[key] = true
			res.Matches = append(res.Matches, m[1])
		}
	}
	return res
}

// CategoryNames returns the configured category names in table order.
func (d *Detector) CategoryNames() []string {
	names := make([]string, len(d.categories))
	for i, c := range d.categories {
		names[i] = c.Name
	}
	return names
}
