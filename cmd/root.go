// Package cmd implements the crucible command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crucible",
	Short: "Crucible - curriculum synthesis and publishing backend",
	Long: `Crucible turns ingested source material into a published learning
curriculum: documents are indexed into a retrieval store, curricula are
synthesized from retrieved context into reviewable drafts, and published
drafts drive the learner roadmap, quizzes, and coach.

Run 'crucible serve' to start the HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
