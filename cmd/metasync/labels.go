package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sancovp/metasync/internal/bml"
	"github.com/sancovp/metasync/internal/config"
)

var labelsFileFlag string

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Manage BML labels",
}

var labelsEnsureCmd = &cobra.Command{
	Use:   "ensure <owner/repo>",
	Short: "Create missing BML labels in a repository",
	Long: `Ensures the repository carries the BML label set: the seven status-*
labels, the priority-* labels, and the synced marker. Existing labels
are left untouched. A custom label set can be supplied with --file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		if strings.Count(repo, "/") != 1 {
			return fmt.Errorf("repository must be in owner/repo form, got %q", repo)
		}

		gh, _, err := buildGitHubStore()
		if err != nil {
			return err
		}

		defs := bml.DefaultLabelDefs()
		path := labelsFileFlag
		if path == "" {
			path = config.GetString(config.KeyLabelsFile)
		}
		if path != "" {
			defs, err = bml.LoadLabelDefs(path)
			if err != nil {
				return err
			}
		}

		for _, def := range defs {
			if err := gh.EnsureLabel(cmd.Context(), repo, def.Name, def.Color, def.Description); err != nil {
				return fmt.Errorf("ensuring label %q in %s: %w", def.Name, repo, err)
			}
			if verboseFlag {
				fmt.Printf("ensured %s\n", def.Name)
			}
		}

		fmt.Printf("Ensured %d labels in %s\n", len(defs), repo)
		return nil
	},
}

func init() {
	labelsEnsureCmd.Flags().StringVar(&labelsFileFlag, "file", "", "YAML file with custom label definitions")
	labelsCmd.AddCommand(labelsEnsureCmd)
}
