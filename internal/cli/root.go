package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"attendance-tracker/internal/attendance"
	"attendance-tracker/internal/config"
	"attendance-tracker/internal/logging"
	"attendance-tracker/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the tracker command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Attendance tracker",
		Long:  "Record who was present, late or absent, and serve the tracker web UI.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))

	return cmd
}

// session is the configured backend and record store one command runs on.
type session struct {
	cfg     config.App
	logger  *zap.Logger
	kv      store.KV
	records *attendance.Store
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg := config.Load()
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	logger, err := logging.New(cfg.Production(), level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	kv, err := store.Open(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
	}
	records := attendance.NewStore(kv,
		attendance.WithKey(cfg.StorageKey),
		attendance.WithAPIBase(cfg.APIBase),
		attendance.WithLogger(logger),
	)
	return &session{cfg: cfg, logger: logger, kv: kv, records: records}, nil
}

func (s *session) Close() error {
	_ = s.records.Close()
	err := s.kv.Close()
	_ = s.logger.Sync()
	return err
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(*session) error) error {
	s, err := openSession(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
