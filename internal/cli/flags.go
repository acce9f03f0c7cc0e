package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Source  string `long:"source" short:"s" description:"Platform to work with: telegram | youtube" default:"telegram" choice:"telegram" choice:"youtube"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

type channelArgs struct {
	Channel string `positional-arg-name:"channel" description:"Channel handle or id" required:"yes"`
	Limit   int    `positional-arg-name:"limit" description:"Number of recent posts to cover"`
}

// SyncCommand — bring one channel's local corpus up to date.
type SyncCommand struct {
	Args channelArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// StatsCommand — compute activity statistics and keyword matches over the
// stored corpus and write the analysis exports.
type StatsCommand struct {
	MinLikes    int  `long:"min-likes" description:"Ignore comments with fewer likes" default:"0"`
	OnlyTop     bool `long:"only-top" description:"Only top-level comments"`
	OnlyReplies bool `long:"only-replies" description:"Only replies"`

	Args channelArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// AnalyzeCommand — run the full pipeline: sync, statistics, keyword
// detection and oracle classification with resume.
type AnalyzeCommand struct {
	Force       bool `long:"force" description:"Discard previous classification results and reanalyze everything"`
	LocalOnly   bool `long:"local-only" description:"Skip the sync step, analyze stored data only"`
	MinLikes    int  `long:"min-likes" description:"Ignore comments with fewer likes in reports" default:"0"`
	OnlyTop     bool `long:"only-top" description:"Only top-level comments in reports"`
	OnlyReplies bool `long:"only-replies" description:"Only replies in reports"`

	Args channelArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// ServeCommand — start the read-only HTTP API over the harvested corpora.
type ServeCommand struct {
	Port int `long:"port" description:"Override listen port"`

	globals *GlobalFlags
	version string
}
