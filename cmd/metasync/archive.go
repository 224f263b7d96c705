package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sancovp/metasync/internal/bml"
	"github.com/sancovp/metasync/internal/config"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <number>",
	Short: "Archive a wrapper issue and close its source",
	Long: `Moves the given meta-repository wrapper to status-archived and
propagates closure back to the source issue it wraps: the source is
closed and receives one provenance comment. Wrappers without a source
reference are archived locally only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid issue number %q", args[0])
		}

		engine, closeMapping, err := buildEngine()
		if err != nil {
			return err
		}
		defer func() { _ = closeMapping() }()

		metaRepo, err := config.MetaRepo()
		if err != nil {
			return err
		}

		if err := engine.MoveStatus(cmd.Context(), metaRepo, number, bml.StatusArchived); err != nil {
			return err
		}

		issue, err := engine.Store.FetchIssue(cmd.Context(), metaRepo, number)
		if err != nil {
			return fmt.Errorf("fetching wrapper %s#%d: %w", metaRepo, number, err)
		}
		if err := engine.CloseArchived(cmd.Context(), *issue); err != nil {
			return err
		}

		fmt.Printf("Archived %s#%d\n", metaRepo, number)
		return nil
	},
}
