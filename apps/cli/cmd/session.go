package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/hitsession/packages/output"
	"github.com/abdul-hamid-achik/hitsession/packages/store"
	"github.com/spf13/cobra"
)

func newSessionCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear named sessions",
		Long: `Named sessions are kept in the session store (sessionStore in the
config file, --store, or .hitsession.db in the working directory).

Examples:
  hitsession session list
  hitsession session show work
  hitsession session clear work`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newStoreApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.store.List(cmd.Context())
			if err != nil {
				a.out.FormatError(err)
				return a.finish(reported(ExitFailure, err))
			}
			a.out.FormatSessions(records)
			return a.finish(nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show one stored session",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newStoreApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.store.Load(cmd.Context(), args[0])
			if err != nil {
				a.out.FormatError(err)
				return a.finish(reported(ExitFailure, err))
			}
			a.out.FormatSessions([]store.Record{*rec})
			return a.finish(nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <name>",
		Short: "Remove a stored session",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newStoreApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.store.Delete(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				a.logger.Warn().Str("name", args[0]).Msg("no such session")
				return a.finish(nil)
			}
			if err != nil {
				a.out.FormatError(err)
				return a.finish(reported(ExitFailure, err))
			}
			a.out.FormatText(fmt.Sprintf("Cleared session %s\n", args[0]))
			return a.finish(nil)
		},
	})

	return cmd
}

// newStoreApp sets up config, logging, output and the session store,
// without an HTTP session.
func newStoreApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}
	a := &app{
		cfg:    cfg,
		logger: newLogger(cmd, cfg),
		out:    output.New(cmd.OutOrStdout(), opts.jsonOutput, cfg.GetVerbose(), cfg.GetNoColor(), false),
	}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	return a, nil
}
