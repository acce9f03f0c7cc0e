package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"chanwatch/internal/analysis"
	"chanwatch/internal/api"
	"chanwatch/internal/config"
	"chanwatch/internal/corpus"
	"chanwatch/internal/keywords"
	"chanwatch/internal/models"
	"chanwatch/internal/platform"
	"chanwatch/internal/report"
	"chanwatch/internal/stats"
	syncer "chanwatch/internal/sync"
)

func (g *GlobalFlags) sourceID() models.Source {
	return models.Source(g.Source)
}

func (g *GlobalFlags) setupLogging() {
	if !g.Verbose {
		log.SetOutput(io.Discard)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newAdapter(cfg *config.Config, source models.Source) (platform.Adapter, error) {
	switch source {
	case models.SourceTelegram:
		return platform.NewTelegram(cfg.Platform.TelegramBridgeURL, cfg.Platform.TelegramCutoff), nil
	case models.SourceYouTube:
		return platform.NewYouTube(cfg.Platform.YouTubeAPIKey, cfg.Platform.YouTubeCutoff), nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

func defaultLimit(cfg *config.Config, source models.Source) int {
	if source == models.SourceYouTube {
		return cfg.DefaultVideosLimit
	}
	return cfg.DefaultPostsLimit
}

// filterComments applies the report-level comment filters.
func filterComments(comments []models.Comment, minLikes int, onlyTop, onlyReplies bool) []models.Comment {
	if minLikes == 0 && !onlyTop && !onlyReplies {
		return comments
	}

	var out []models.Comment
	for _, c := range comments {
		if c.Likes < minLikes {
			continue
		}
		if onlyTop && c.IsReply() {
			continue
		}
		if onlyReplies && !c.IsReply() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func runSync(ctx context.Context, cfg *config.Config, source models.Source, channel string, limit int) (corpus.Store, error) {
	adapter, err := newAdapter(cfg, source)
	if err != nil {
		return nil, err
	}

	store, err := corpus.Open(cfg.DataDir, source, channel)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultLimit(cfg, source)
	}

	engine := syncer.New(adapter, store, cfg.Platform.RequestDelay)
	if _, err := engine.Run(ctx, limit); err != nil {
		var fatal *platform.FatalError
		if errors.As(err, &fatal) {
			report.Fail(os.Stderr, "%s", fatal.Reason)
			if fatal.Advice != "" {
				fmt.Fprintf(os.Stderr, "  %s\n", fatal.Advice)
			}
		}
		return store, err
	}
	return store, nil
}

// Execute runs the sync subcommand.
func (c *SyncCommand) Execute(args []string) error {
	c.globals.setupLogging()
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.Load()
	store, err := runSync(ctx, cfg, c.globals.sourceID(), c.Args.Channel, c.Args.Limit)
	if err != nil {
		return err
	}

	report.SyncSummary(os.Stdout, store.LoadChannelInfo())
	return nil
}

func openExisting(cfg *config.Config, source models.Source, channel string) (corpus.Store, error) {
	store, err := corpus.Open(cfg.DataDir, source, channel)
	if err != nil {
		return nil, err
	}
	if len(store.ListPostIDs()) == 0 {
		return nil, fmt.Errorf("no local data for %s/%s, run sync first", source, store.Channel())
	}
	return store, nil
}

func runReports(store corpus.Store, comments []models.Comment) error {
	statsReport := stats.Analyze(store.Channel(), store.Source(), comments, 10)
	if _, err := statsReport.Save(store.AnalysisDir()); err != nil {
		return err
	}
	report.Statistics(os.Stdout, statsReport)

	keywordReport := keywords.NewDefault().AnalyzeCorpus(store.Channel(), store.Source(), comments)
	if _, _, err := keywordReport.Save(store.AnalysisDir()); err != nil {
		return err
	}
	report.Keywords(os.Stdout, keywordReport)

	report.OK(os.Stdout, "exports written to %s", store.AnalysisDir())
	return nil
}

// Execute runs the stats subcommand.
func (c *StatsCommand) Execute(args []string) error {
	c.globals.setupLogging()

	cfg := config.Load()
	store, err := openExisting(cfg, c.globals.sourceID(), c.Args.Channel)
	if err != nil {
		return err
	}

	comments := filterComments(store.LoadAllComments(), c.MinLikes, c.OnlyTop, c.OnlyReplies)
	return runReports(store, comments)
}

// Execute runs the analyze subcommand.
func (c *AnalyzeCommand) Execute(args []string) error {
	c.globals.setupLogging()
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.Load()
	source := c.globals.sourceID()

	var store corpus.Store
	var err error
	if c.LocalOnly {
		store, err = openExisting(cfg, source, c.Args.Channel)
	} else {
		store, err = runSync(ctx, cfg, source, c.Args.Channel, c.Args.Limit)
		if err == nil {
			report.SyncSummary(os.Stdout, store.LoadChannelInfo())
		}
	}
	if err != nil {
		return err
	}

	comments := filterComments(store.LoadAllComments(), c.MinLikes, c.OnlyTop, c.OnlyReplies)
	if err := runReports(store, comments); err != nil {
		return err
	}

	results, err := analysis.OpenResultStore(filepath.Join(store.AnalysisDir(), "classifications.db"))
	if err != nil {
		return err
	}
	defer results.Close()

	oracle := analysis.NewOracle(cfg.Oracle.APIURL, cfg.Oracle.Timeout)
	manager := analysis.NewManager(store, results, oracle, cfg.Oracle.BatchSize, cfg.Oracle.CheckpointEvery)

	runReport, err := manager.Run(ctx, c.Force)
	if err != nil {
		report.Fail(os.Stderr, "classification failed: %v", err)
		return err
	}

	data, err := os.ReadFile(runReport.ExportPath)
	if err != nil {
		return err
	}
	var export analysis.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("failed to read analysis export: %w", err)
	}
	report.Analysis(os.Stdout, &export)
	return nil
}

// Execute runs the serve subcommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg := config.Load()
	if c.Port != 0 {
		cfg.Port = c.Port
	}

	log.Printf("Serving corpora from %s on port %d", cfg.DataDir, cfg.Port)
	return api.NewServer(cfg).Start()
}
