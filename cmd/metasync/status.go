package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sancovp/metasync/internal/bml"
)

var statusCmd = &cobra.Command{
	Use:   "status <owner/repo> <number> <status>",
	Short: "Move an issue to a BML status",
	Long: `Sets the issue's status-* label, removing any other status labels.
Workflow validation is advisory: an out-of-order transition still
happens, but the issue receives an explanatory comment.

Statuses: backlog, plan, build, measure, learn, blocked, archived.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		if strings.Count(repo, "/") != 1 {
			return fmt.Errorf("repository must be in owner/repo form, got %q", repo)
		}
		number, err := strconv.Atoi(args[1])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid issue number %q", args[1])
		}
		status := bml.Status(strings.ToLower(args[2]))
		if !status.IsValid() {
			return fmt.Errorf("unknown status %q (want one of: backlog, plan, build, measure, learn, blocked, archived)", args[2])
		}

		engine, closeMapping, err := buildEngine()
		if err != nil {
			return err
		}
		defer func() { _ = closeMapping() }()

		if err := engine.MoveStatus(cmd.Context(), repo, number, status); err != nil {
			return err
		}

		fmt.Printf("Moved %s#%d to %s\n", repo, number, status)
		return nil
	},
}
