package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"attendance-tracker/internal/attendance"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var query, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := attendance.Status(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("invalid status %q: must be one of %v", status, attendance.Statuses)
			}
			return withSession(cmd, rootOpts, func(s *session) error {
				recs, err := s.records.List(cmd.Context())
				if err != nil {
					return err
				}
				return newPrinter(rootOpts, cmd.OutOrStdout()).records(attendance.Filter(recs, query, st))
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive match on name or note")
	cmd.Flags().StringVar(&status, "status", "", "only records with this status (present|late|absent)")
	return cmd
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var in attendance.Input
	var status string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record",
		Long: `Add an attendance record. Date defaults to today and status to
present; the name is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Status = attendance.Status(status)
			return withSession(cmd, rootOpts, func(s *session) error {
				rec, err := s.records.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				return newPrinter(rootOpts, cmd.OutOrStdout()).record(rec)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "person's name")
	cmd.Flags().StringVar(&in.Date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&status, "status", "", "present|late|absent (default present)")
	cmd.Flags().StringVar(&in.Note, "note", "", "optional note")
	return cmd
}

// NewUpdateCommand creates the update command. Only flags given on the
// command line are changed.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var name, date, status, note string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p attendance.Patch
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.Name = &name
			}
			if flags.Changed("date") {
				p.Date = &date
			}
			if flags.Changed("status") {
				st := attendance.Status(status)
				p.Status = &st
			}
			if flags.Changed("note") {
				p.Note = &note
			}
			return withSession(cmd, rootOpts, func(s *session) error {
				rec, err := s.records.Update(cmd.Context(), args[0], p)
				if err != nil {
					return err
				}
				return newPrinter(rootOpts, cmd.OutOrStdout()).record(rec)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&date, "date", "", "new date as YYYY-MM-DD")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&note, "note", "", "new note (empty clears it)")
	return cmd
}

// NewDeleteCommand creates the delete command. Deleting an unknown id is
// not an error.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				if err := s.records.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return newPrinter(rootOpts, cmd.OutOrStdout()).message(map[string]string{"deleted": args[0]}, "Deleted "+args[0])
			})
		},
	}
}

var errNotConfirmed = errors.New("refusing to remove all records without --yes")

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Permanently remove all records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			return withSession(cmd, rootOpts, func(s *session) error {
				if err := s.records.ClearAll(cmd.Context()); err != nil {
					return err
				}
				return newPrinter(rootOpts, cmd.OutOrStdout()).message(map[string]bool{"cleared": true}, "All records removed.")
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removal")
	return cmd
}
