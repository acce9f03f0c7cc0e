// Package analysis drives the classification oracle over a channel's
// corpus with checkpoint/resume semantics. Results live in a SQLite store
// keyed by (comment, dimension); a comment is done only when every
// dimension has a category.
package analysis

import (
	"context"
	"log"

	"chanwatch/internal/corpus"
	"chanwatch/internal/models"
)

// maxTextRunes is the per-comment character budget submitted to the oracle.
const maxTextRunes = 300

var dimensions = []models.Dimension{models.DimensionToxicity, models.DimensionStance}

// Manager runs one analysis pass over a channel.
type Manager struct {
	store           corpus.Store
	results         *ResultStore
	oracle          *Oracle
	batchSize       int
	checkpointEvery int
}

// NewManager wires a manager. checkpointEvery is the number of new results
// accumulated between durable flushes.
func NewManager(store corpus.Store, results *ResultStore, oracle *Oracle, batchSize, checkpointEvery int) *Manager {
	return &Manager{
		store:           store,
		results:         results,
		oracle:          oracle,
		batchSize:       batchSize,
		checkpointEvery: checkpointEvery,
	}
}

// RunReport summarizes one analysis run.
type RunReport struct {
	TotalComments  int
	AlreadyDone    int
	Submitted      int
	Defaulted      int
	ExportPath     string
}

type pendingBatch struct {
	dim      models.Dimension
	comments []models.Comment
}

// Run analyzes every not-yet-fully-classified comment. force discards all
// persisted results first. An unreachable oracle aborts before any batch
// is sent; malformed batch replies are retried once and then defaulted to
// neutral, never escalated.
func (m *Manager) Run(ctx context.Context, force bool) (*RunReport, error) {
	if err := m.oracle.Ping(ctx); err != nil {
		return nil, err
	}

	if force {
		log.Printf("Forced reanalysis, discarding previous results")
		if err := m.results.Reset(); err != nil {
			return nil, err
		}
	}

	existing, err := m.results.LoadAll()
	if err != nil {
		return nil, err
	}

	comments := m.store.LoadAllComments()
	report := &RunReport{TotalComments: len(comments)}

	var pending []models.Comment
	for _, c := range comments {
		if fullyAnalyzed(existing[c.CommentID]) {
			report.AlreadyDone++
			continue
		}
		pending = append(pending, c)
	}
	report.Submitted = len(pending)

	if len(pending) == 0 {
		log.Printf("All %d comments already analyzed", len(comments))
	} else {
		calls := 0
		for _, dim := range dimensions {
			calls += (len(m.missing(pending, existing, dim)) + m.batchSize - 1) / m.batchSize
		}
		log.Printf("Analyzing %d of %d comments, about %d oracle calls ahead",
			len(pending), len(comments), calls)
	}

	var retries []pendingBatch
	var unsaved []models.ClassificationRecord

	flush := func() error {
		if err := m.results.SaveBatch(unsaved); err != nil {
			return err
		}
		unsaved = unsaved[:0]
		return nil
	}

	for _, dim := range dimensions {
		targets := m.missing(pending, existing, dim)
		for start := 0; start < len(targets); start += m.batchSize {
			end := min(start+m.batchSize, len(targets))
			batch := targets[start:end]

			parsed := m.classify(ctx, dim, batch)
			if parsed == nil {
				retries = append(retries, pendingBatch{dim: dim, comments: batch})
				continue
			}

			for i, c := range batch {
				unsaved = append(unsaved, models.ClassificationRecord{
					CommentID: c.CommentID,
					Dimension: dim,
					Category:  parsed[i+1],
				})
			}
			if len(unsaved) >= m.checkpointEvery {
				if err := flush(); err != nil {
					return report, err
				}
			}
		}
	}

	// One retry pass for batches whose reply did not line up; anything
	// still malformed gets the neutral catch-all.
	for _, rb := range retries {
		parsed := m.classify(ctx, rb.dim, rb.comments)
		for i, c := range rb.comments {
			category := models.CategoryNeutral
			if parsed != nil {
				category = parsed[i+1]
			} else {
				report.Defaulted++
			}
			unsaved = append(unsaved, models.ClassificationRecord{
				CommentID: c.CommentID,
				Dimension: rb.dim,
				Category:  category,
			})
		}
		if len(unsaved) >= m.checkpointEvery {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}

	path, err := m.export(comments)
	if err != nil {
		return report, err
	}
	report.ExportPath = path

	log.Printf("Analysis done: %d submitted, %d already complete, %d defaulted",
		report.Submitted, report.AlreadyDone, report.Defaulted)
	return report, nil
}

// classify submits one batch and returns a complete index→category map, or
// nil when the reply did not cover the whole batch.
func (m *Manager) classify(ctx context.Context, dim models.Dimension, batch []models.Comment) map[int]string {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = truncate(c.Text, maxTextRunes)
	}

	parsed, err := m.oracle.Classify(ctx, dim, texts)
	if err != nil {
		log.Printf("Oracle call failed for %s batch of %d: %v", dim, len(batch), err)
		return nil
	}
	if len(parsed) != len(batch) {
		log.Printf("Oracle reply covered %d of %d %s texts", len(parsed), len(batch), dim)
		return nil
	}
	return parsed
}

// missing filters comments that lack a category on dim.
func (m *Manager) missing(comments []models.Comment, existing map[string]map[models.Dimension]string, dim models.Dimension) []models.Comment {
	var out []models.Comment
	for _, c := range comments {
		if existing[c.CommentID][dim] == "" {
			out = append(out, c)
		}
	}
	return out
}

func fullyAnalyzed(byDim map[models.Dimension]string) bool {
	for _, dim := range dimensions {
		if byDim[dim] == "" {
			return false
		}
	}
	return true
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
