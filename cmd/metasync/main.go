// Command metasync mirrors source-repository issues into a meta
// repository as wrapper issues, keeps their BML status labels in sync,
// and propagates archive closure back to the source.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sancovp/metasync/internal/config"
	"github.com/sancovp/metasync/internal/github"
	"github.com/sancovp/metasync/internal/mapstore"
	"github.com/sancovp/metasync/internal/sync"
	"github.com/sancovp/metasync/internal/telemetry"
	"github.com/sancovp/metasync/internal/tracker"
)

var (
	metaRepoFlag string
	tokenFlag    string
	verboseFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "metasync",
	Short: "Cross-repository issue synchronization for BML kanban",
	Long: `metasync mirrors issues from source repositories into a meta repository
as wrapper issues. Each wrapper carries the source's title, BML status
labels, and open/closed state; archiving a wrapper closes its source
issue. Workflow validation is advisory only: transitions are annotated
with comments, never blocked.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		if metaRepoFlag != "" {
			config.Set(config.KeyMetaRepo, metaRepoFlag)
		}
		if tokenFlag != "" {
			config.Set(config.KeyGitHubToken, tokenFlag)
		}
		return telemetry.Init(cmd.Context(), "metasync", Version,
			config.GetBool(config.KeyTelemetryEnabled))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&metaRepoFlag, "meta-repo", "", "Meta repository in owner/repo form (overrides config)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "GitHub API token (overrides config and GITHUB_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildGitHubStore constructs the GitHub-backed issue store from config.
// The second return value is the telemetry-wrapped store for the sync
// engine; the first keeps the concrete type for point reads.
func buildGitHubStore() (*github.Store, tracker.IssueStore, error) {
	token := config.GitHubToken()
	if token == "" {
		return nil, nil, fmt.Errorf("no GitHub token configured (set METASYNC_GITHUB_TOKEN or GITHUB_TOKEN)")
	}
	client := github.NewClient(token)
	if u := config.GetString(config.KeyGitHubAPIURL); u != "" {
		client = client.WithBaseURL(u)
	}
	gh := github.NewStore(client)
	return gh, telemetry.WrapStore(gh), nil
}

// buildEngine constructs the sync engine with its SQLite wrapper
// mapping attached. The returned closer releases the mapping database.
func buildEngine() (*sync.Engine, func() error, error) {
	_, store, err := buildGitHubStore()
	if err != nil {
		return nil, nil, err
	}
	metaRepo, err := config.MetaRepo()
	if err != nil {
		return nil, nil, err
	}

	engine := sync.NewEngine(store, metaRepo)
	if verboseFlag {
		engine.OnMessage = func(msg string) { fmt.Fprintln(os.Stderr, msg) }
	}
	engine.OnWarning = func(msg string) { fmt.Fprintln(os.Stderr, "warning: "+msg) }

	closer := func() error { return nil }
	dbPath := config.MappingDBPath()
	ms, err := mapstore.Open(dbPath)
	if err != nil {
		// The mapping store is an optimization; the resolver falls back
		// to title search without it.
		fmt.Fprintf(os.Stderr, "warning: mapping store unavailable at %s: %v\n", dbPath, err)
	} else {
		engine.WithMapping(ms)
		closer = ms.Close
	}

	return engine, closer, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
