package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sancovp/metasync/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync <owner/repo> <number>",
	Short: "Sync one source issue into the meta repository",
	Long: `Fetches the source issue's current state and propagates it to its
wrapper in the meta repository, creating the wrapper if it does not
exist yet. Useful for backfilling issues that predate the webhook and
for repairing a wrapper after a partial failure.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		if strings.Count(repo, "/") != 1 {
			return fmt.Errorf("repository must be in owner/repo form, got %q", repo)
		}
		number, err := strconv.Atoi(args[1])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid issue number %q", args[1])
		}

		engine, closeMapping, err := buildEngine()
		if err != nil {
			return err
		}
		defer func() { _ = closeMapping() }()

		issue, err := engine.Store.FetchIssue(cmd.Context(), repo, number)
		if err != nil {
			return fmt.Errorf("fetching %s#%d: %w", repo, number, err)
		}

		event := &sync.SourceIssueEvent{
			SourceRepo:  repo,
			IssueNumber: number,
			Title:       issue.Title,
			Body:        issue.Body,
			State:       issue.State,
			Labels:      issue.Labels,
			Action:      "edited",
		}
		if err := engine.Propagate(cmd.Context(), event); err != nil {
			return err
		}

		fmt.Printf("Synced %s#%d\n", repo, number)
		return nil
	},
}
