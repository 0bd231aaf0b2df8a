package cli

import (
	"github.com/spf13/cobra"

	"attendance-tracker/internal/attendance"
)

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show today's counts and the status distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				recs, err := s.records.List(cmd.Context())
				if err != nil {
					return err
				}
				today := s.records.Today()
				return newPrinter(rootOpts, cmd.OutOrStdout()).summary(summaryReport{
					Date:         today,
					Today:        attendance.SummarizeDay(recs, today),
					Distribution: attendance.Distribution(recs),
				})
			})
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Attempt a sync with the configured remote API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				res := s.records.TrySync(cmd.Context())
				return newPrinter(rootOpts, cmd.OutOrStdout()).message(res, res.Message)
			})
		},
	}
}
