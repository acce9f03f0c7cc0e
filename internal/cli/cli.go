// Package cli wires the subcommands of the chanwatch binary.
package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Sync    *SyncCommand
	Stats   *StatsCommand
	Analyze *AnalyzeCommand
	Serve   *ServeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "chanwatch"
	parser.LongDescription = "Incremental harvesting and analysis of channel comments from Telegram and YouTube."

	cmds := &commands{
		Sync:    &SyncCommand{globals: &globals, version: version},
		Stats:   &StatsCommand{globals: &globals, version: version},
		Analyze: &AnalyzeCommand{globals: &globals, version: version},
		Serve:   &ServeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("sync", "Sync a channel's corpus", "Fetch new posts and comments of a channel into the local corpus.", cmds.Sync)
	parser.AddCommand("stats", "Show corpus statistics", "Compute activity statistics and keyword matches over the stored corpus.", cmds.Stats)
	parser.AddCommand("analyze", "Run the full analysis pipeline", "Sync, compute statistics and classify comments through the local oracle, with resume.", cmds.Analyze)
	parser.AddCommand("serve", "Start the HTTP API", "Serve a read-only HTTP view over the harvested corpora.", cmds.Serve)

	return parser, &globals, cmds
}

// Run is the main entry point for the chanwatch CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the
// matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parsing (go-flags requires a subcommand,
	// but --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("chanwatch %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
